package coordinate

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ClaimNodeArgument defines the claim_node parameters.
type ClaimNodeArgument struct {
	AgentName    string `json:"agent_name" jsonschema_description:"Your unique agent name"`
	AgentModel   string `json:"agent_model,omitempty" jsonschema_description:"The model you are running on (e.g., gpt-4, claude-sonnet)"`
	NodePath     string `json:"node_path" jsonschema_description:"Path of the file or directory to claim; use the codebase name to claim the whole codebase"`
	CodebaseName string `json:"codebase_name" jsonschema_description:"Name of the codebase the node belongs to"`
	ClaimReason  string `json:"claim_reason" jsonschema_description:"What you plan to do with this node; required, shown to other agents on conflict"`
}

// ClaimNodeOutput is the structured claim_node response.
type ClaimNodeOutput struct {
	Status       string `json:"status" jsonschema_description:"One of: claimed, already_yours, conflict, error"`
	NodePath     string `json:"node_path,omitempty"`
	AgentName    string `json:"agent_name,omitempty"`
	ClaimedBy    string `json:"claimed_by,omitempty" jsonschema_description:"Holding agent on conflict"`
	ClaimedModel string `json:"claimed_by_model,omitempty"`
	ClaimReason  string `json:"claim_reason,omitempty" jsonschema_description:"Holder's stated reason on conflict"`
	Message      string `json:"message,omitempty"`
}

// ClaimNodeHandler handles the claim_node MCP tool.
type ClaimNodeHandler struct {
	service *Service
}

// NewClaimNodeHandler creates a new claim handler.
func NewClaimNodeHandler(service *Service) *ClaimNodeHandler {
	return &ClaimNodeHandler{service: service}
}

// Handle attempts the claim and reports the tagged outcome.
func (h *ClaimNodeHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ClaimNodeArgument) (*mcp.CallToolResult, ClaimNodeOutput, error) {
	result, err := h.service.ClaimNode(ctx, args.AgentName, args.AgentModel, args.NodePath, args.CodebaseName, args.ClaimReason)
	if err != nil {
		return failure("Claim failed", err), ClaimNodeOutput{Status: "error"}, nil
	}

	out := ClaimNodeOutput{
		Status:    string(result.Status),
		NodePath:  result.NodePath,
		AgentName: result.AgentName,
	}
	var text string
	switch result.Status {
	case ClaimStatusClaimed:
		text = fmt.Sprintf("Claimed %s in %s for %s", result.NodePath, args.CodebaseName, args.AgentName)
	case ClaimStatusAlreadyYours:
		text = fmt.Sprintf("You already hold the claim on %s", result.NodePath)
	case ClaimStatusConflict:
		out.ClaimedBy = result.ClaimedBy
		out.ClaimedModel = result.HolderModel
		out.ClaimReason = result.ClaimReason
		text = fmt.Sprintf("Conflict: %s is claimed by %s (%s). Their reason: %s. Use crew_send_message to negotiate.",
			result.NodePath, result.ClaimedBy, result.HolderModel, result.ClaimReason)
	case ClaimStatusNotFound:
		out.Status = "error"
		out.Message = fmt.Sprintf("Node %q not found in codebase %q; check the path or run the indexer first", args.NodePath, args.CodebaseName)
		text = out.Message
	}
	return textResult(text), out, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ClaimNodeHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "crew_claim_node",
		Description: "Claim exclusive advisory ownership of a file, directory, or whole codebase before editing it",
	}
}

// RegisterClaimNodeTool registers the claim tool with an MCP server.
func RegisterClaimNodeTool(server *mcp.Server, service *Service) {
	handler := NewClaimNodeHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

// ReleaseNodeArgument defines the release_node parameters.
type ReleaseNodeArgument struct {
	AgentName    string `json:"agent_name" jsonschema_description:"Your unique agent name"`
	NodePath     string `json:"node_path" jsonschema_description:"Path of the claimed node to release"`
	CodebaseName string `json:"codebase_name" jsonschema_description:"Name of the codebase the node belongs to"`
}

// ReleaseNodeOutput is the structured release_node response.
type ReleaseNodeOutput struct {
	Status         string `json:"status" jsonschema_description:"One of: released, not_found"`
	NodePath       string `json:"node_path"`
	AgentName      string `json:"agent_name"`
	ReindexStatus  string `json:"reindex_status,omitempty" jsonschema_description:"Outcome of the post-release reindex: success, error, or skipped"`
	ReindexMessage string `json:"reindex_message,omitempty"`
}

// ReleaseNodeHandler handles the release_node MCP tool.
type ReleaseNodeHandler struct {
	service *Service
}

// NewReleaseNodeHandler creates a new release handler.
func NewReleaseNodeHandler(service *Service) *ReleaseNodeHandler {
	return &ReleaseNodeHandler{service: service}
}

// Handle releases the claim and reports the reindex outcome.
func (h *ReleaseNodeHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReleaseNodeArgument) (*mcp.CallToolResult, ReleaseNodeOutput, error) {
	result, err := h.service.ReleaseNode(ctx, args.AgentName, args.NodePath, args.CodebaseName)
	if err != nil {
		return failure("Release failed", err), ReleaseNodeOutput{Status: "error"}, nil
	}

	out := ReleaseNodeOutput{
		Status:    string(result.Status),
		NodePath:  result.NodePath,
		AgentName: result.AgentName,
	}
	if result.Status == ReleaseStatusNotFound {
		return textResult(fmt.Sprintf("No claim by %s found on %s", args.AgentName, args.NodePath)), out, nil
	}

	out.ReindexStatus = string(result.ReindexStatus)
	out.ReindexMessage = result.ReindexMessage
	text := fmt.Sprintf("Released %s. Reindex: %s", result.NodePath, result.ReindexStatus)
	if result.ReindexMessage != "" {
		text += " (" + result.ReindexMessage + ")"
	}
	return textResult(text), out, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ReleaseNodeHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "crew_release_node",
		Description: "Release your claim on a node when you are done editing; the released subtree is refreshed from disk",
	}
}

// RegisterReleaseNodeTool registers the release tool with an MCP server.
func RegisterReleaseNodeTool(server *mcp.Server, service *Service) {
	handler := NewReleaseNodeHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

// ActiveAgentsArgument defines the get_active_agents parameters.
type ActiveAgentsArgument struct {
	CodebaseName string `json:"codebase_name,omitempty" jsonschema_description:"Restrict to agents holding claims in this codebase; omit for all"`
}

// ActiveAgentOutput is one agent with its held claims.
type ActiveAgentOutput struct {
	AgentName  string             `json:"agent_name"`
	AgentModel string             `json:"agent_model"`
	Claims     []ActiveClaimEntry `json:"claims"`
}

// ActiveClaimEntry is one held node in ActiveAgentOutput.
type ActiveClaimEntry struct {
	NodePath    string `json:"node_path"`
	NodeType    string `json:"node_type"`
	ClaimReason string `json:"claim_reason"`
}

// ActiveAgentsOutput is the structured get_active_agents response.
type ActiveAgentsOutput struct {
	Agents []ActiveAgentOutput `json:"agents"`
}

// ActiveAgentsHandler handles the get_active_agents MCP tool.
type ActiveAgentsHandler struct {
	service *Service
}

// NewActiveAgentsHandler creates a new active-agents handler.
func NewActiveAgentsHandler(service *Service) *ActiveAgentsHandler {
	return &ActiveAgentsHandler{service: service}
}

// Handle lists agents holding claims, grouped per agent.
func (h *ActiveAgentsHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ActiveAgentsArgument) (*mcp.CallToolResult, ActiveAgentsOutput, error) {
	agents, err := h.service.ActiveAgents(ctx, args.CodebaseName)
	if err != nil {
		return failure("Listing active agents failed", err), ActiveAgentsOutput{}, nil
	}

	out := ActiveAgentsOutput{Agents: make([]ActiveAgentOutput, 0, len(agents))}
	for _, agent := range agents {
		entry := ActiveAgentOutput{
			AgentName:  agent.AgentName,
			AgentModel: agent.AgentModel,
			Claims:     make([]ActiveClaimEntry, 0, len(agent.Claims)),
		}
		for _, claim := range agent.Claims {
			entry.Claims = append(entry.Claims, ActiveClaimEntry{
				NodePath:    claim.NodePath,
				NodeType:    claim.NodeType,
				ClaimReason: claim.ClaimReason,
			})
		}
		out.Agents = append(out.Agents, entry)
	}
	return textResult(formatActiveAgents(out.Agents)), out, nil
}

func formatActiveAgents(agents []ActiveAgentOutput) string {
	if len(agents) == 0 {
		return "No agents currently hold claims"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d agent(s) with active claims:\n", len(agents))
	for _, agent := range agents {
		fmt.Fprintf(&sb, "\n%s (%s):\n", agent.AgentName, agent.AgentModel)
		for _, claim := range agent.Claims {
			fmt.Fprintf(&sb, "  - %s [%s]: %s\n", claim.NodePath, claim.NodeType, claim.ClaimReason)
		}
	}
	return sb.String()
}

// GetToolDefinition returns the MCP tool definition.
func (h *ActiveAgentsHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "crew_get_active_agents",
		Description: "List all agents currently holding claims, with the nodes and reasons, optionally scoped to one codebase",
	}
}

// RegisterActiveAgentsTool registers the active-agents tool with an MCP server.
func RegisterActiveAgentsTool(server *mcp.Server, service *Service) {
	handler := NewActiveAgentsHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
