// Package config loads the ggfleet configuration.
//
// Values are layered: built-in defaults, then the YAML file (ggfleet.yaml or
// --config), then environment variables, then command-line flags applied by
// the CLI. The result is checked with validator struct tags.
//
// Example ggfleet.yaml:
//
//	aws:
//	  region: eu-west-1
//	  profile: fleet-admin
//	deploy:
//	  attempts: 5
//	  interval: 2s
//	teardown:
//	  protected_groups: ["prod-*"]
//	journal:
//	  path: /var/lib/ggfleet/ggfleet.db
//	telemetry:
//	  logging:
//	    level: debug
//	  metrics:
//	    textfile: /var/lib/node_exporter/ggfleet.prom
package config
