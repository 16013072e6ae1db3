package mcp

import (
	"testing"

	"github.com/sha1n/mcp-crew-server/internal/coordinate"
)

func TestCreateServer(t *testing.T) {
	cfg := ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
	}

	server := CreateServer(cfg)
	if server == nil {
		t.Fatal("Expected server to be created")
	}
}

func TestCreateServer_EmptyConfig(t *testing.T) {
	cfg := ServerConfig{}

	server := CreateServer(cfg)
	if server == nil {
		t.Fatal("Expected server to be created even with empty config")
	}
}

func TestCreateServer_WithCoordinator(t *testing.T) {
	service := coordinate.NewService(coordinate.NewFakeStore(), coordinate.ServiceConfig{})

	cfg := ServerConfig{
		Name:        "crew-mcp",
		Version:     "1.0.0",
		Coordinator: service,
	}

	server := CreateServer(cfg)
	if server == nil {
		t.Fatal("Expected server to be created with the coordinator wired")
	}

	// The MCP SDK doesn't expose a way to list registered tools;
	// integration tests exercise them over the protocol.
}
