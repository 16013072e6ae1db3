package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-crew-server/internal/coordinate"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name        string
	Version     string
	Coordinator *coordinate.Service
}

// CreateServer creates the MCP server and registers the coordination tools
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Coordinator != nil {
		coordinate.RegisterAllTools(s, cfg.Coordinator)
	}

	return s
}
