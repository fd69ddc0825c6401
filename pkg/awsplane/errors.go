package awsplane

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/openfroyo/ggfleet/pkg/fleet"
)

// notFoundCodes are API error codes that mean the resource does not exist.
var notFoundCodes = map[string]bool{
	"ResourceNotFoundException": true,
	"NotFoundException":         true,
}

// classify converts an SDK error into a *fleet.Error.
func classify(op, resource string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		// Transport failures, expired credentials, cancelled contexts.
		return fleet.Remote(op, resource, err)
	}

	if notFoundCodes[apiErr.ErrorCode()] || missingGreengrassResource(apiErr) {
		return fleet.NotFound(op, resource, err)
	}
	return fleet.Remote(op, resource, err)
}

// missingGreengrassResource reports whether a Greengrass BadRequestException
// is the API's way of saying an id does not exist.
func missingGreengrassResource(apiErr smithy.APIError) bool {
	if apiErr.ErrorCode() != "BadRequestException" {
		return false
	}
	msg := strings.ToLower(apiErr.ErrorMessage())
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found")
}
