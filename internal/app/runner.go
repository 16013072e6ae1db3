package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-crew-server/internal/config"
	"github.com/sha1n/mcp-crew-server/internal/coordinate"
	"github.com/sha1n/mcp-crew-server/internal/graph"
	"github.com/sha1n/mcp-crew-server/internal/indexer"
	mcputil "github.com/sha1n/mcp-crew-server/internal/mcp"
	"github.com/spf13/pflag"
)

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*mcp.Server, *config.Settings) error
	CreateServer      func(context.Context, *config.Settings) (*mcp.Server, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr, stdout carries the MCP wire
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting CREW MCP server", "version", version)
	config.Log(settings)

	mcpServer, cleanup, err := params.CreateServer(ctx, settings)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if settings.Transport == "stdio" {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(mcpServer, settings)
}

// CreateMCPServer opens the graph store and assembles the MCP server with
// the coordination tools registered. The returned cleanup closes the
// store connection.
func CreateMCPServer(ctx context.Context, settings *config.Settings) (*mcp.Server, func(), error) {
	store, err := graph.Open(ctx, graph.Config{
		URI:      settings.Neo4j.URI,
		Username: settings.Neo4j.Username,
		Password: settings.Neo4j.Password,
		Database: settings.Neo4j.Database,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to the graph store: %w", err)
	}

	cleanup := func() {
		if err := store.Close(context.Background()); err != nil {
			slog.Error("Failed to close the graph store", "error", err)
		}
	}

	coordinator := coordinate.NewService(store, coordinate.ServiceConfig{
		MaxResults: settings.Query.MaxResults,
		Reindexer:  indexer.NewWalker(store),
	})

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:        "crew-mcp",
		Version:     "1.0.0",
		Coordinator: coordinator,
	})

	return server, cleanup, nil
}
