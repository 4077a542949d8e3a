// Package conform provides public constants for tools and CI scripts that run
// the conform CLI.
package conform

// Exit codes returned by the conform CLI.
const (
	// ExitSuccess indicates every selected variation passed, or failed as
	// expected.
	ExitSuccess = 0

	// ExitFailure indicates a variation failed or errored unexpectedly, or
	// another runtime failure.
	ExitFailure = 1

	// ExitConfigError indicates a configuration error (invalid suite file,
	// reserved engine option, conflicting calc mode, etc.).
	ExitConfigError = 2

	// ExitEnvError indicates an environment error (engine executable missing,
	// unreadable testcase index, etc.).
	ExitEnvError = 3
)
