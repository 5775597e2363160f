// Package aptmcp exposes apt package management as MCP tools.
package aptmcp

// Version is the aptmcp release version.
var Version = "v0.3.0"
