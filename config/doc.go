// Package config provides application configuration management.
//
// The config package loads aocd.yaml (from the working directory or the
// user config directory), applies AOCD_* environment overrides on top of the
// built-in defaults and validates the result. It covers logging, the remote
// puzzle site, storage locations, the session cookie source, default part
// runner options, the safe-run sandbox and the MCP server.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Cache database: %s\n", cfg.CacheDBPath())
package config
