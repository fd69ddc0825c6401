package policy

// BuiltinPolicies returns the policies every guard evaluates.
func BuiltinPolicies() []Policy {
	return []Policy{
		protectedGroupsPolicy(),
		groupNamingPolicy(),
	}
}

// protectedGroupsPolicy blocks teardowns of groups matching a protected pattern.
func protectedGroupsPolicy() Policy {
	return Policy{
		Name:        "protected-groups",
		Description: "Refuses to tear down groups that match a protected_groups pattern",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"teardown", "safety"},
		Rego: `package ggfleet.policies.protected

import rego.v1

deny contains violation if {
	input.operation == "teardown"
	some pattern in input.protected_groups
	glob.match(pattern, null, input.group)
	violation := {
		"message": sprintf("Group '%s' is protected by pattern '%s'", [input.group, pattern]),
		"severity": "error",
		"group": input.group,
	}
}
`,
	}
}

// groupNamingPolicy flags group names that produce invalid IoT thing and
// policy names once the _Core suffixes are appended.
func groupNamingPolicy() Policy {
	return Policy{
		Name:        "group-naming",
		Description: "Warns about group names whose derived core resource names are not valid IoT names",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"naming"},
		Rego: `package ggfleet.policies.naming

import rego.v1

deny contains violation if {
	input.group == ""
	violation := {
		"message": "Group name is empty",
		"severity": "error",
		"group": input.group,
	}
}

deny contains violation if {
	input.group != ""
	not regex.match("^[a-zA-Z0-9:_-]+$", input.group)
	violation := {
		"message": sprintf("Group name '%s' yields core resource names IoT may reject", [input.group]),
		"severity": "warning",
		"group": input.group,
	}
}

deny contains violation if {
	count(input.group) > 116
	violation := {
		"message": sprintf("Group name '%s' is too long for the _Core_Policy suffix", [input.group]),
		"severity": "warning",
		"group": input.group,
	}
}
`,
	}
}
