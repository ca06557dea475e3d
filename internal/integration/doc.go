// Package integration provides cross-package integration tests for sitepipe.
// These tests drive a real project tree through the site tasks, the
// orchestrator and the build history together.
//
// Build tag: integration
// Run with: go test -tags integration ./internal/integration/...
package integration
