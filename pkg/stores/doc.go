// Package stores provides the SQLite run journal for ggfleet.
//
// Every deployment and teardown is appended as a run, teardowns with one row
// per step, together with an audit trail of guard decisions. The journal is
// history only: nothing in the orchestration reads it back, so every command
// still works from a fresh listing of the control plane.
package stores
