package fleet

import (
	"fmt"
)

// Group is a control-plane group record as returned by the group listing.
type Group struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LatestVersion string `json:"latest_version"`
}

// CoreDefinition is a control-plane core definition record.
type CoreDefinition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DeploymentType is the kind of deployment requested from the control plane.
type DeploymentType string

// DeploymentTypeNew pushes the group's current version as a new deployment.
const DeploymentTypeNew DeploymentType = "NewDeployment"

// DeploymentStatus is the remote status of a deployment.
type DeploymentStatus string

const (
	DeploymentStatusBuilding   DeploymentStatus = "Building"
	DeploymentStatusInProgress DeploymentStatus = "InProgress"
	DeploymentStatusSuccess    DeploymentStatus = "Success"
	DeploymentStatusFailure    DeploymentStatus = "Failure"
	DeploymentStatusUnknown    DeploymentStatus = "Unknown"
)

// ParseDeploymentStatus maps a raw status string to a DeploymentStatus.
// Unrecognized values map to DeploymentStatusUnknown.
func ParseDeploymentStatus(s string) DeploymentStatus {
	switch st := DeploymentStatus(s); st {
	case DeploymentStatusBuilding, DeploymentStatusInProgress,
		DeploymentStatusSuccess, DeploymentStatusFailure:
		return st
	default:
		return DeploymentStatusUnknown
	}
}

// IsTerminal returns true for Success and Failure.
func (s DeploymentStatus) IsTerminal() bool {
	return s == DeploymentStatusSuccess || s == DeploymentStatusFailure
}

// Deployment is a point-in-time deployment record created on the control plane.
type Deployment struct {
	GroupID        string         `json:"group_id"`
	GroupVersionID string         `json:"group_version_id"`
	DeploymentID   string         `json:"deployment_id"`
	DeploymentType DeploymentType `json:"deployment_type"`
}

// DeploymentState is the status observed by a single status query.
type DeploymentState struct {
	Status       DeploymentStatus `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// CertificateStatus is the activation state of an IoT certificate.
type CertificateStatus string

const (
	CertificateStatusActive   CertificateStatus = "ACTIVE"
	CertificateStatusInactive CertificateStatus = "INACTIVE"
)

// Validate checks if the certificate status is valid.
func (s CertificateStatus) Validate() error {
	switch s {
	case CertificateStatusActive, CertificateStatusInactive:
		return nil
	default:
		return fmt.Errorf("invalid certificate status: %s", s)
	}
}
