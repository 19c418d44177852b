// Package sandbox runs solver scripts without giving them the session cookie.
//
// The Coordinator spawns the script in a runtime that only grants network
// access to a loopback API. That API is protected with a random Basic-Auth
// password handed to the child on its command line, and forwards input and
// answer requests to the coordinator's own source. The coordinator's result is
// the child's exit code.
//
// Usage:
//
//	coord := sandbox.NewCoordinator(logger, direct)
//	code, err := coord.Run(ctx, sandbox.RunOptions{
//	    Script: "day_1.ts",
//	    Submit: true,
//	})
package sandbox
