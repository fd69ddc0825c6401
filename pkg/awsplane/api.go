package awsplane

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/greengrass"
	"github.com/aws/aws-sdk-go-v2/service/iot"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
)

// greengrassAPI is the subset of the Greengrass client the plane calls.
type greengrassAPI interface {
	ListGroups(ctx context.Context, in *greengrass.ListGroupsInput, optFns ...func(*greengrass.Options)) (*greengrass.ListGroupsOutput, error)
	CreateDeployment(ctx context.Context, in *greengrass.CreateDeploymentInput, optFns ...func(*greengrass.Options)) (*greengrass.CreateDeploymentOutput, error)
	GetDeploymentStatus(ctx context.Context, in *greengrass.GetDeploymentStatusInput, optFns ...func(*greengrass.Options)) (*greengrass.GetDeploymentStatusOutput, error)
	ResetDeployments(ctx context.Context, in *greengrass.ResetDeploymentsInput, optFns ...func(*greengrass.Options)) (*greengrass.ResetDeploymentsOutput, error)
	DeleteGroup(ctx context.Context, in *greengrass.DeleteGroupInput, optFns ...func(*greengrass.Options)) (*greengrass.DeleteGroupOutput, error)
	ListCoreDefinitions(ctx context.Context, in *greengrass.ListCoreDefinitionsInput, optFns ...func(*greengrass.Options)) (*greengrass.ListCoreDefinitionsOutput, error)
	DeleteCoreDefinition(ctx context.Context, in *greengrass.DeleteCoreDefinitionInput, optFns ...func(*greengrass.Options)) (*greengrass.DeleteCoreDefinitionOutput, error)
}

// iotAPI is the subset of the IoT client the plane calls.
type iotAPI interface {
	ListThingPrincipals(ctx context.Context, in *iot.ListThingPrincipalsInput, optFns ...func(*iot.Options)) (*iot.ListThingPrincipalsOutput, error)
	DetachPolicy(ctx context.Context, in *iot.DetachPolicyInput, optFns ...func(*iot.Options)) (*iot.DetachPolicyOutput, error)
	DetachThingPrincipal(ctx context.Context, in *iot.DetachThingPrincipalInput, optFns ...func(*iot.Options)) (*iot.DetachThingPrincipalOutput, error)
	UpdateCertificate(ctx context.Context, in *iot.UpdateCertificateInput, optFns ...func(*iot.Options)) (*iot.UpdateCertificateOutput, error)
	DeleteCertificate(ctx context.Context, in *iot.DeleteCertificateInput, optFns ...func(*iot.Options)) (*iot.DeleteCertificateOutput, error)
	DeletePolicy(ctx context.Context, in *iot.DeletePolicyInput, optFns ...func(*iot.Options)) (*iot.DeletePolicyOutput, error)
	DeleteThing(ctx context.Context, in *iot.DeleteThingInput, optFns ...func(*iot.Options)) (*iot.DeleteThingOutput, error)
	DescribeThing(ctx context.Context, in *iot.DescribeThingInput, optFns ...func(*iot.Options)) (*iot.DescribeThingOutput, error)
}

// shadowAPI is the subset of the IoT data plane client the plane calls.
type shadowAPI interface {
	GetThingShadow(ctx context.Context, in *iotdataplane.GetThingShadowInput, optFns ...func(*iotdataplane.Options)) (*iotdataplane.GetThingShadowOutput, error)
}
