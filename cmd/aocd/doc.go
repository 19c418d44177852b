// Package main is the entry point for the aocd command.
//
// aocd stores the Advent of Code session cookie, fetches and caches puzzle
// inputs, submits answers, runs solution scripts in a network-restricted
// sandbox and serves the same operations over MCP.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging, viper for configuration and
// cobra for the command line.
package main
