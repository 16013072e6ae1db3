package integration

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-crew-server/internal/coordinate"
	mcputil "github.com/sha1n/mcp-crew-server/internal/mcp"
)

// setupSession wires a real MCP server over an in-memory transport,
// backed by the in-memory store fake, and returns a connected client
// session.
func setupSession(t *testing.T) (*mcp.ClientSession, *coordinate.FakeStore) {
	t.Helper()

	store := coordinate.NewFakeStore()
	store.AddCodebase("repo", t.TempDir())
	store.AddDirectory("repo", "src")
	store.AddFile("repo", "src/x.py")
	store.AddFile("repo", "src/y.py")

	service := coordinate.NewService(store, coordinate.ServiceConfig{})
	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:        "crew-mcp",
		Version:     "test",
		Coordinator: service,
	})

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })

	return session, store
}

// callTool calls a tool and decodes its structured content into out.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any, out any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
	}
	if out != nil && result.StructuredContent != nil {
		raw, err := json.Marshal(result.StructuredContent)
		if err != nil {
			t.Fatalf("CallTool(%s): marshal structured content: %v", name, err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("CallTool(%s): decode structured content: %v", name, err)
		}
	}
	return tc.Text
}

func callToolExpectError(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): protocol error: %v", name, err)
	}
	tc := result.Content[0].(*mcp.TextContent)
	if !result.IsError {
		t.Fatalf("CallTool(%s): expected error but got success: %s", name, tc.Text)
	}
	return tc.Text
}

func TestIntegration_ListTools(t *testing.T) {
	session, _ := setupSession(t)

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	expectedTools := []string{
		"crew_claim_node", "crew_release_node", "crew_update_graph",
		"crew_get_active_agents", "crew_query_codebase",
		"crew_send_message", "crew_get_messages", "crew_clear_messages",
	}

	toolNames := make(map[string]bool)
	for _, tool := range result.Tools {
		toolNames[tool.Name] = true
	}
	for _, name := range expectedTools {
		if !toolNames[name] {
			t.Errorf("Missing tool: %s", name)
		}
	}
	if len(result.Tools) != len(expectedTools) {
		t.Errorf("Expected %d tools, got %d", len(expectedTools), len(result.Tools))
	}
}

func TestIntegration_ClaimConflictAndNegotiation(t *testing.T) {
	session, _ := setupSession(t)

	var claim coordinate.ClaimNodeOutput
	callTool(t, session, "crew_claim_node", map[string]any{
		"agent_name":    "alice",
		"agent_model":   "gpt-4",
		"node_path":     "src/x.py",
		"codebase_name": "repo",
		"claim_reason":  "refactoring imports",
	}, &claim)
	if claim.Status != "claimed" {
		t.Fatalf("Expected claimed, got %+v", claim)
	}

	var conflict coordinate.ClaimNodeOutput
	callTool(t, session, "crew_claim_node", map[string]any{
		"agent_name":    "bob",
		"agent_model":   "claude",
		"node_path":     "src/x.py",
		"codebase_name": "repo",
		"claim_reason":  "fixing tests",
	}, &conflict)
	if conflict.Status != "conflict" || conflict.ClaimedBy != "alice" {
		t.Fatalf("Expected conflict held by alice, got %+v", conflict)
	}

	// bob messages alice to negotiate
	var send coordinate.SendMessageOutput
	callTool(t, session, "crew_send_message", map[string]any{
		"from_agent": "bob",
		"to_agent":   "alice",
		"message":    "can you release src/x.py?",
		"node_path":  "src/x.py",
	}, &send)
	if send.Status != "sent" || send.MessageCount != 1 {
		t.Fatalf("Unexpected send output: %+v", send)
	}

	var inbox coordinate.GetMessagesOutput
	callTool(t, session, "crew_get_messages", map[string]any{
		"agent_name": "alice",
	}, &inbox)
	if inbox.Count != 1 || inbox.Messages[0].From != "bob" {
		t.Fatalf("Unexpected inbox: %+v", inbox)
	}
	if inbox.Messages[0].NodePath != "src/x.py" {
		t.Errorf("Expected the related node recorded, got %+v", inbox.Messages[0])
	}

	var clear coordinate.ClearMessagesOutput
	callTool(t, session, "crew_clear_messages", map[string]any{
		"agent_name": "alice",
	}, &clear)
	if clear.Status != "ok" {
		t.Errorf("Expected ok, got %+v", clear)
	}
}

func TestIntegration_ReleaseAndActiveAgents(t *testing.T) {
	session, store := setupSession(t)

	callTool(t, session, "crew_claim_node", map[string]any{
		"agent_name":    "alice",
		"node_path":     "src/x.py",
		"codebase_name": "repo",
		"claim_reason":  "fix bug",
	}, nil)

	var agents coordinate.ActiveAgentsOutput
	callTool(t, session, "crew_get_active_agents", map[string]any{
		"codebase_name": "repo",
	}, &agents)
	if len(agents.Agents) != 1 || agents.Agents[0].AgentName != "alice" {
		t.Fatalf("Expected alice active, got %+v", agents)
	}

	var release coordinate.ReleaseNodeOutput
	callTool(t, session, "crew_release_node", map[string]any{
		"agent_name":    "alice",
		"node_path":     "src/x.py",
		"codebase_name": "repo",
	}, &release)
	if release.Status != "released" {
		t.Fatalf("Expected released, got %+v", release)
	}

	callTool(t, session, "crew_get_active_agents", map[string]any{
		"codebase_name": "repo",
	}, &agents)
	if len(agents.Agents) != 0 {
		t.Errorf("Expected no active agents after release, got %+v", agents)
	}
	if store.HasAgent("alice") {
		t.Error("Expected the agent node removed after its last release")
	}
}

func TestIntegration_UpdateGraphAndQuery(t *testing.T) {
	session, _ := setupSession(t)

	var update coordinate.UpdateGraphOutput
	callTool(t, session, "crew_update_graph", map[string]any{
		"codebase_name": "repo",
		"changes": []map[string]any{
			{"action": "upsert", "node_type": "File", "path": "src/new.py", "parent_path": "src"},
			{"action": "upsert", "node_type": "File"},
			{"action": "delete", "node_type": "File", "path": "src/y.py"},
		},
	}, &update)
	if update.Status != "partial" || update.Applied != 2 || len(update.Errors) != 1 {
		t.Fatalf("Expected partial/2/1, got %+v", update)
	}

	var query coordinate.QueryCodebaseOutput
	callTool(t, session, "crew_query_codebase", map[string]any{
		"codebase_name": "repo",
		"node_type":     "File",
	}, &query)

	paths := make(map[string]bool)
	for _, node := range query.Nodes {
		paths[node.Path] = true
	}
	if !paths["src/new.py"] {
		t.Errorf("Expected the upserted file queryable, got %+v", query.Nodes)
	}
	if paths["src/y.py"] {
		t.Errorf("Expected the deleted file gone, got %+v", query.Nodes)
	}
}

func TestIntegration_ValidationErrors(t *testing.T) {
	session, _ := setupSession(t)

	text := callToolExpectError(t, session, "crew_claim_node", map[string]any{
		"agent_name":    "alice",
		"node_path":     "src/x.py",
		"codebase_name": "repo",
		"claim_reason":  "   ",
	})
	if !strings.Contains(text, "claim_reason") {
		t.Errorf("Expected a claim_reason validation message, got %q", text)
	}

	text = callToolExpectError(t, session, "crew_send_message", map[string]any{
		"from_agent": "alice",
		"to_agent":   "alice",
		"message":    "hi",
	})
	if !strings.Contains(text, "yourself") {
		t.Errorf("Expected a self-send validation message, got %q", text)
	}

	text = callToolExpectError(t, session, "crew_query_codebase", map[string]any{
		"codebase_name": "repo",
		"node_type":     "Widget",
	})
	if !strings.Contains(text, "node_type") {
		t.Errorf("Expected a node_type validation message, got %q", text)
	}
}
