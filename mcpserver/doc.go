// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server with two tools:
// get_puzzle_input, which returns the input for a year and day, and
// submit_answer, which submits an answer and reports whether it is correct.
// Submission is refused unless mcp.submit_enabled is set in the configuration.
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, direct)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.Serve()
package mcpserver
