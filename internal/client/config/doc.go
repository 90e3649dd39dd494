// Package config loads runtime configuration for the taskkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJSON) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string     base URL of the REST API
//	-s string     session file path
//	-t duration   request timeout
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:5000",
//	  "session_file": ".taskkeeper/session.json",
//	  "request_timeout": "10s"
//	}
package config
