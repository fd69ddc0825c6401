// Package awsplane implements fleet.ControlPlane on the AWS SDK for Go v2.
//
// Groups, deployments and core definitions live in the Greengrass (v1) API.
// Things, certificates and policies live in IoT. Core shadows are read from
// the IoT data plane. Every error is classified: a missing resource becomes
// fleet.ErrNotFound, any other API error fleet.ErrRemote.
package awsplane
