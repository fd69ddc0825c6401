package awsplane

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/greengrass"
	ggtypes "github.com/aws/aws-sdk-go-v2/service/greengrass/types"
	"github.com/aws/aws-sdk-go-v2/service/iot"
	iottypes "github.com/aws/aws-sdk-go-v2/service/iot/types"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"

	"github.com/openfroyo/ggfleet/pkg/fleet"
)

// Options selects the AWS account and region.
type Options struct {
	// Region overrides the region from the shared config.
	Region string

	// Profile selects a named profile from the shared config files.
	Profile string

	// MaxAttempts overrides the SDK retry budget per call. Zero keeps the SDK default.
	MaxAttempts int
}

// Plane is the AWS-backed control plane.
type Plane struct {
	gg     greengrassAPI
	iot    iotAPI
	shadow shadowAPI
}

var (
	_ fleet.ControlPlane = (*Plane)(nil)
	_ fleet.ShadowReader = (*Plane)(nil)
)

// New loads the AWS configuration and creates the service clients.
func New(ctx context.Context, opts Options) (*Plane, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.MaxAttempts > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(opts.MaxAttempts))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("no AWS region configured")
	}

	return &Plane{
		gg:     greengrass.NewFromConfig(cfg),
		iot:    iot.NewFromConfig(cfg),
		shadow: iotdataplane.NewFromConfig(cfg),
	}, nil
}

// ListGroups returns every group, following pagination.
func (p *Plane) ListGroups(ctx context.Context) ([]fleet.Group, error) {
	var groups []fleet.Group
	in := &greengrass.ListGroupsInput{}
	for {
		out, err := p.gg.ListGroups(ctx, in)
		if err != nil {
			return nil, classify("ListGroups", "", err)
		}
		for _, g := range out.Groups {
			groups = append(groups, fleet.Group{
				ID:            aws.ToString(g.Id),
				Name:          aws.ToString(g.Name),
				LatestVersion: aws.ToString(g.LatestVersion),
			})
		}
		if aws.ToString(out.NextToken) == "" {
			return groups, nil
		}
		in.NextToken = out.NextToken
	}
}

// CreateDeployment starts a deployment of a group version.
func (p *Plane) CreateDeployment(ctx context.Context, groupID, groupVersionID string, typ fleet.DeploymentType) (string, error) {
	out, err := p.gg.CreateDeployment(ctx, &greengrass.CreateDeploymentInput{
		GroupId:        aws.String(groupID),
		GroupVersionId: aws.String(groupVersionID),
		DeploymentType: ggtypes.DeploymentType(typ),
	})
	if err != nil {
		return "", classify("CreateDeployment", groupID, err)
	}
	return aws.ToString(out.DeploymentId), nil
}

// GetDeploymentStatus returns the current status of a deployment.
func (p *Plane) GetDeploymentStatus(ctx context.Context, groupID, deploymentID string) (fleet.DeploymentState, error) {
	out, err := p.gg.GetDeploymentStatus(ctx, &greengrass.GetDeploymentStatusInput{
		GroupId:      aws.String(groupID),
		DeploymentId: aws.String(deploymentID),
	})
	if err != nil {
		return fleet.DeploymentState{}, classify("GetDeploymentStatus", deploymentID, err)
	}
	return fleet.DeploymentState{
		Status:       fleet.ParseDeploymentStatus(aws.ToString(out.DeploymentStatus)),
		ErrorMessage: aws.ToString(out.ErrorMessage),
	}, nil
}

// ResetDeployments resets the deployments of a group.
func (p *Plane) ResetDeployments(ctx context.Context, groupID string, force bool) error {
	_, err := p.gg.ResetDeployments(ctx, &greengrass.ResetDeploymentsInput{
		GroupId: aws.String(groupID),
		Force:   aws.Bool(force),
	})
	return classify("ResetDeployments", groupID, err)
}

// DeleteGroup deletes a group.
func (p *Plane) DeleteGroup(ctx context.Context, groupID string) error {
	_, err := p.gg.DeleteGroup(ctx, &greengrass.DeleteGroupInput{GroupId: aws.String(groupID)})
	return classify("DeleteGroup", groupID, err)
}

// ListCoreDefinitions returns every core definition, following pagination.
func (p *Plane) ListCoreDefinitions(ctx context.Context) ([]fleet.CoreDefinition, error) {
	var defs []fleet.CoreDefinition
	in := &greengrass.ListCoreDefinitionsInput{}
	for {
		out, err := p.gg.ListCoreDefinitions(ctx, in)
		if err != nil {
			return nil, classify("ListCoreDefinitions", "", err)
		}
		for _, d := range out.Definitions {
			defs = append(defs, fleet.CoreDefinition{
				ID:   aws.ToString(d.Id),
				Name: aws.ToString(d.Name),
			})
		}
		if aws.ToString(out.NextToken) == "" {
			return defs, nil
		}
		in.NextToken = out.NextToken
	}
}

// DeleteCoreDefinition deletes a core definition by id.
func (p *Plane) DeleteCoreDefinition(ctx context.Context, id string) error {
	_, err := p.gg.DeleteCoreDefinition(ctx, &greengrass.DeleteCoreDefinitionInput{CoreDefinitionId: aws.String(id)})
	return classify("DeleteCoreDefinition", id, err)
}

// ListThingPrincipals returns the principal ARNs attached to a thing,
// following pagination.
func (p *Plane) ListThingPrincipals(ctx context.Context, thingName string) ([]string, error) {
	var principals []string
	in := &iot.ListThingPrincipalsInput{ThingName: aws.String(thingName)}
	for {
		out, err := p.iot.ListThingPrincipals(ctx, in)
		if err != nil {
			return nil, classify("ListThingPrincipals", thingName, err)
		}
		principals = append(principals, out.Principals...)
		if aws.ToString(out.NextToken) == "" {
			return principals, nil
		}
		in.NextToken = out.NextToken
	}
}

// DetachPolicy detaches a policy from a principal.
func (p *Plane) DetachPolicy(ctx context.Context, principalARN, policyName string) error {
	_, err := p.iot.DetachPolicy(ctx, &iot.DetachPolicyInput{
		PolicyName: aws.String(policyName),
		Target:     aws.String(principalARN),
	})
	return classify("DetachPolicy", policyName, err)
}

// DetachThingPrincipal detaches a principal from a thing.
func (p *Plane) DetachThingPrincipal(ctx context.Context, thingName, principalARN string) error {
	_, err := p.iot.DetachThingPrincipal(ctx, &iot.DetachThingPrincipalInput{
		ThingName: aws.String(thingName),
		Principal: aws.String(principalARN),
	})
	return classify("DetachThingPrincipal", thingName, err)
}

// UpdateCertificateStatus sets the status of a certificate.
func (p *Plane) UpdateCertificateStatus(ctx context.Context, certID string, status fleet.CertificateStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}
	_, err := p.iot.UpdateCertificate(ctx, &iot.UpdateCertificateInput{
		CertificateId: aws.String(certID),
		NewStatus:     iottypes.CertificateStatus(status),
	})
	return classify("UpdateCertificate", certID, err)
}

// DeleteCertificate deletes a certificate.
func (p *Plane) DeleteCertificate(ctx context.Context, certID string, force bool) error {
	_, err := p.iot.DeleteCertificate(ctx, &iot.DeleteCertificateInput{
		CertificateId: aws.String(certID),
		ForceDelete:   force,
	})
	return classify("DeleteCertificate", certID, err)
}

// DeletePolicy deletes a policy.
func (p *Plane) DeletePolicy(ctx context.Context, policyName string) error {
	_, err := p.iot.DeletePolicy(ctx, &iot.DeletePolicyInput{PolicyName: aws.String(policyName)})
	return classify("DeletePolicy", policyName, err)
}

// DeleteThing deletes a thing. IoT accepts the delete of a thing that does
// not exist, so the thing is described first to report it as not found.
func (p *Plane) DeleteThing(ctx context.Context, thingName string) error {
	if _, err := p.iot.DescribeThing(ctx, &iot.DescribeThingInput{ThingName: aws.String(thingName)}); err != nil {
		return classify("DeleteThing", thingName, err)
	}
	_, err := p.iot.DeleteThing(ctx, &iot.DeleteThingInput{ThingName: aws.String(thingName)})
	return classify("DeleteThing", thingName, err)
}

// GetThingShadow returns the classic shadow document of a thing.
func (p *Plane) GetThingShadow(ctx context.Context, thingName string) ([]byte, error) {
	out, err := p.shadow.GetThingShadow(ctx, &iotdataplane.GetThingShadowInput{ThingName: aws.String(thingName)})
	if err != nil {
		return nil, classify("GetThingShadow", thingName, err)
	}
	return out.Payload, nil
}
