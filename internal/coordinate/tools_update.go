package coordinate

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// UpdateGraphArgument defines the update_graph parameters.
type UpdateGraphArgument struct {
	CodebaseName string   `json:"codebase_name" jsonschema_description:"Name of the codebase to mutate"`
	Changes      []Change `json:"changes" jsonschema_description:"Ordered list of upsert/delete mutations to apply"`
}

// UpdateGraphOutput is the structured update_graph response.
type UpdateGraphOutput struct {
	Status  string   `json:"status" jsonschema_description:"ok when every change applied, partial when some failed, error when none did"`
	Applied int      `json:"applied"`
	Errors  []string `json:"errors"`
}

// UpdateGraphHandler handles the update_graph MCP tool.
type UpdateGraphHandler struct {
	service *Service
}

// NewUpdateGraphHandler creates a new update handler.
func NewUpdateGraphHandler(service *Service) *UpdateGraphHandler {
	return &UpdateGraphHandler{service: service}
}

// Handle applies the batch and reports per-item failures.
func (h *UpdateGraphHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args UpdateGraphArgument) (*mcp.CallToolResult, UpdateGraphOutput, error) {
	result, err := h.service.ApplyChanges(ctx, args.CodebaseName, args.Changes)
	if err != nil {
		return failure("Graph update failed", err), UpdateGraphOutput{Status: "error"}, nil
	}

	out := UpdateGraphOutput{
		Status:  string(result.Status),
		Applied: result.Applied,
		Errors:  result.Errors,
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Applied %d of %d change(s), status: %s", result.Applied, len(args.Changes), result.Status)
	for _, e := range result.Errors {
		sb.WriteString("\n  - " + e)
	}
	return textResult(sb.String()), out, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *UpdateGraphHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "crew_update_graph",
		Description: "Apply a batch of graph mutations (upsert/delete files, directories, functions, classes) to keep the graph in sync with your edits",
	}
}

// RegisterUpdateGraphTool registers the update tool with an MCP server.
func RegisterUpdateGraphTool(server *mcp.Server, service *Service) {
	handler := NewUpdateGraphHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
