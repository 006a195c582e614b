// Package core is the orchestration layer.  It assembles a resolver
// and an establisher into a connector, wraps it with retry policy,
// and runs a capability on what comes out.
//
// Architecture layers (bottom → top):
//
//	resolve, transport  →  connector  →  capability, session  →  core  →  cmd (CLI)
//
// Build is the single dispatch point from a Config to a Mode.
package core

import "context"

// Mode is a complete operational mode of nconnect (connect or scan).
// Each mode owns its full lifecycle from resolution to teardown.
type Mode interface {
	Run(ctx context.Context) error
	// String describes what Run would do, for --dry-run.
	String() string
}
