package fleet

import (
	"fmt"
	"strings"
)

// Suffixes of the provisioning naming contract. Case-sensitive.
const (
	coreThingSuffix      = "_Core"
	coreDefinitionSuffix = "_Core_Definition"
	corePolicySuffix     = "_Policy"

	certMarker = "cert/"
)

// CoreThingName returns the name of the core thing of a group.
func CoreThingName(groupName string) string {
	return groupName + coreThingSuffix
}

// CoreDefinitionName returns the name of the core definition of a group.
func CoreDefinitionName(groupName string) string {
	return groupName + coreDefinitionSuffix
}

// CorePolicyName returns the name of the policy attached to a core thing's certificates.
func CorePolicyName(coreThingName string) string {
	return coreThingName + corePolicySuffix
}

// CertificateID extracts the certificate id from a principal ARN
// (the substring following "cert/").
func CertificateID(principalARN string) (string, error) {
	_, id, ok := strings.Cut(principalARN, certMarker)
	if !ok || id == "" {
		return "", fmt.Errorf("principal %q is not a certificate ARN", principalARN)
	}
	return id, nil
}
