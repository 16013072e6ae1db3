package coordinate

import (
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// textResult builds a plain text MCP result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// errorResult builds an MCP error result with the given message.
func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// failure maps a service error to an MCP error result. Validation
// failures surface their reason verbatim; anything else is a backend
// failure and is prefixed so the caller can tell the two apart.
func failure(prefix string, err error) *mcp.CallToolResult {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return errorResult(verr.Reason)
	}
	return errorResult(prefix + ": " + err.Error())
}

// RegisterAllTools registers every coordination tool with an MCP server.
func RegisterAllTools(server *mcp.Server, service *Service) {
	RegisterClaimNodeTool(server, service)
	RegisterReleaseNodeTool(server, service)
	RegisterUpdateGraphTool(server, service)
	RegisterActiveAgentsTool(server, service)
	RegisterQueryCodebaseTool(server, service)
	RegisterSendMessageTool(server, service)
	RegisterGetMessagesTool(server, service)
	RegisterClearMessagesTool(server, service)
}
