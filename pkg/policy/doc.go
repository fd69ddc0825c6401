// Package policy guards destructive fleet operations with Rego policies.
//
// A Guard evaluates every enabled policy against a Request and collects the
// entries of each policy's deny set. Entries with error or critical severity
// deny the request; the rest are reported as warnings.
//
// Built-in policies:
//
//   - protected-groups: denies a teardown when the group matches one of the
//     configured protected_groups glob patterns.
//   - group-naming: warns about group names whose derived core thing and
//     policy names IoT would reject, and denies an empty name.
//
// Site policies are loaded from .rego files (or .json definitions carrying
// the Rego source). Example:
//
//	# Only the ops account may tear down groups.
//	package site.teardown
//
//	import rego.v1
//
//	deny contains msg if {
//		input.operation == "teardown"
//		input.actor != "ops"
//		msg := "teardowns are restricted to ops"
//	}
//
// The input document is the JSON form of Request.
package policy
