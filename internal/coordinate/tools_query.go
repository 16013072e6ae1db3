package coordinate

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// QueryCodebaseArgument defines the query_codebase parameters.
type QueryCodebaseArgument struct {
	CodebaseName string `json:"codebase_name" jsonschema_description:"Name of the codebase to search"`
	PathFilter   string `json:"path_filter,omitempty" jsonschema_description:"Glob over node paths (e.g., src/*.py, *test*)"`
	NodeType     string `json:"node_type,omitempty" jsonschema_description:"Restrict to one of: Codebase, Directory, File, Class, Function"`
	Limit        int    `json:"limit,omitempty" jsonschema_description:"Maximum nodes to return (default and cap: 200)"`
}

// QueryNodeOutput is one matched node with its claim status.
type QueryNodeOutput struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	ClaimedBy   string `json:"claimed_by,omitempty" jsonschema_description:"Agent holding the node, empty when unclaimed"`
	ClaimReason string `json:"claim_reason,omitempty"`
}

// QueryCodebaseOutput is the structured query_codebase response.
type QueryCodebaseOutput struct {
	Nodes []QueryNodeOutput `json:"nodes"`
}

// QueryCodebaseHandler handles the query_codebase MCP tool.
type QueryCodebaseHandler struct {
	service *Service
}

// NewQueryCodebaseHandler creates a new query handler.
func NewQueryCodebaseHandler(service *Service) *QueryCodebaseHandler {
	return &QueryCodebaseHandler{service: service}
}

// Handle searches the graph and annotates each node with its claimant.
func (h *QueryCodebaseHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args QueryCodebaseArgument) (*mcp.CallToolResult, QueryCodebaseOutput, error) {
	limit := args.Limit
	if limit == 0 {
		limit = DefaultMaxResults
	}
	records, err := h.service.QueryCodebase(ctx, args.CodebaseName, args.PathFilter, args.NodeType, limit)
	if err != nil {
		return failure("Query failed", err), QueryCodebaseOutput{}, nil
	}

	out := QueryCodebaseOutput{Nodes: make([]QueryNodeOutput, 0, len(records))}
	for _, rec := range records {
		out.Nodes = append(out.Nodes, QueryNodeOutput{
			Path:        rec.Path,
			Name:        rec.Name,
			Type:        string(rec.Type),
			ClaimedBy:   rec.ClaimedBy,
			ClaimReason: rec.ClaimReason,
		})
	}
	return textResult(formatQueryResults(out.Nodes, args.CodebaseName)), out, nil
}

func formatQueryResults(nodes []QueryNodeOutput, codebase string) string {
	if len(nodes) == 0 {
		return fmt.Sprintf("No matching nodes in %s", codebase)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d node(s) in %s:\n", len(nodes), codebase)
	for _, node := range nodes {
		fmt.Fprintf(&sb, "  %s [%s]", node.Path, node.Type)
		if node.ClaimedBy != "" {
			fmt.Fprintf(&sb, " claimed by %s: %s", node.ClaimedBy, node.ClaimReason)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// GetToolDefinition returns the MCP tool definition.
func (h *QueryCodebaseHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "crew_query_codebase",
		Description: "Search the codebase graph for nodes by type and path glob; each result shows who has it claimed",
	}
}

// RegisterQueryCodebaseTool registers the query tool with an MCP server.
func RegisterQueryCodebaseTool(server *mcp.Server, service *Service) {
	handler := NewQueryCodebaseHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
