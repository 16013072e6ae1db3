package coordinate

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SendMessageArgument defines the send_message parameters.
type SendMessageArgument struct {
	FromAgent string `json:"from_agent" jsonschema_description:"Your unique agent name"`
	ToAgent   string `json:"to_agent" jsonschema_description:"Recipient agent name; must currently hold at least one claim"`
	Message   string `json:"message" jsonschema_description:"Message content"`
	NodePath  string `json:"node_path,omitempty" jsonschema_description:"Node the message is about, if any"`
}

// SendMessageOutput is the structured send_message response.
type SendMessageOutput struct {
	Status       string `json:"status" jsonschema_description:"sent on success, error otherwise"`
	ToAgent      string `json:"to_agent,omitempty"`
	MessageCount int    `json:"message_count,omitempty" jsonschema_description:"Recipient's queue size after the send"`
	Message      string `json:"message,omitempty"`
}

// SendMessageHandler handles the send_message MCP tool.
type SendMessageHandler struct {
	service *Service
}

// NewSendMessageHandler creates a new send handler.
func NewSendMessageHandler(service *Service) *SendMessageHandler {
	return &SendMessageHandler{service: service}
}

// Handle queues a message on the recipient's mailbox.
func (h *SendMessageHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SendMessageArgument) (*mcp.CallToolResult, SendMessageOutput, error) {
	result, err := h.service.SendMessage(ctx, args.FromAgent, args.ToAgent, args.Message, args.NodePath)
	if err != nil {
		return failure("Send failed", err), SendMessageOutput{Status: "error"}, nil
	}

	if result.Status == SendStatusAgentNotFound {
		out := SendMessageOutput{
			Status:  "error",
			ToAgent: result.ToAgent,
			Message: fmt.Sprintf("Agent %q not found; agents exist only while they hold claims", result.ToAgent),
		}
		return textResult(out.Message), out, nil
	}

	out := SendMessageOutput{
		Status:       string(result.Status),
		ToAgent:      result.ToAgent,
		MessageCount: result.MessageCount,
	}
	return textResult(fmt.Sprintf("Message sent to %s (queue size now %d)", result.ToAgent, result.MessageCount)), out, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *SendMessageHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "crew_send_message",
		Description: "Send an asynchronous message to another active agent, for example to negotiate over a claimed node",
	}
}

// RegisterSendMessageTool registers the send tool with an MCP server.
func RegisterSendMessageTool(server *mcp.Server, service *Service) {
	handler := NewSendMessageHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

// GetMessagesArgument defines the get_messages parameters.
type GetMessagesArgument struct {
	AgentName string `json:"agent_name" jsonschema_description:"Your unique agent name"`
}

// MessageOutput is one queued message.
type MessageOutput struct {
	From      string `json:"from"`
	Content   string `json:"content"`
	NodePath  string `json:"node_path,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// GetMessagesOutput is the structured get_messages response.
type GetMessagesOutput struct {
	Messages []MessageOutput `json:"messages"`
	Count    int             `json:"count"`
}

// GetMessagesHandler handles the get_messages MCP tool.
type GetMessagesHandler struct {
	service *Service
}

// NewGetMessagesHandler creates a new get-messages handler.
func NewGetMessagesHandler(service *Service) *GetMessagesHandler {
	return &GetMessagesHandler{service: service}
}

// Handle returns the queued messages without clearing them.
func (h *GetMessagesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args GetMessagesArgument) (*mcp.CallToolResult, GetMessagesOutput, error) {
	messages, err := h.service.GetMessages(ctx, args.AgentName)
	if err != nil {
		return failure("Reading messages failed", err), GetMessagesOutput{}, nil
	}

	out := GetMessagesOutput{Messages: make([]MessageOutput, 0, len(messages)), Count: len(messages)}
	for _, msg := range messages {
		out.Messages = append(out.Messages, MessageOutput{
			From:      msg.From,
			Content:   msg.Content,
			NodePath:  msg.NodePath,
			Timestamp: msg.Timestamp,
		})
	}
	return textResult(formatMessages(out.Messages, args.AgentName)), out, nil
}

func formatMessages(messages []MessageOutput, agentName string) string {
	if len(messages) == 0 {
		return fmt.Sprintf("No messages for %s", agentName)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d message(s) for %s:\n", len(messages), agentName)
	for i, msg := range messages {
		fmt.Fprintf(&sb, "%d. from %s", i+1, msg.From)
		if msg.NodePath != "" {
			fmt.Fprintf(&sb, " (re: %s)", msg.NodePath)
		}
		if msg.Timestamp != "" {
			fmt.Fprintf(&sb, " at %s", msg.Timestamp)
		}
		fmt.Fprintf(&sb, ": %s\n", msg.Content)
	}
	sb.WriteString("Use crew_clear_messages once you have processed them.")
	return sb.String()
}

// GetToolDefinition returns the MCP tool definition.
func (h *GetMessagesHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "crew_get_messages",
		Description: "Read your queued messages in arrival order; reading does not clear the queue",
	}
}

// RegisterGetMessagesTool registers the get-messages tool with an MCP server.
func RegisterGetMessagesTool(server *mcp.Server, service *Service) {
	handler := NewGetMessagesHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

// ClearMessagesArgument defines the clear_messages parameters.
type ClearMessagesArgument struct {
	AgentName string `json:"agent_name" jsonschema_description:"Your unique agent name"`
}

// ClearMessagesOutput is the structured clear_messages response.
type ClearMessagesOutput struct {
	Status string `json:"status"`
}

// ClearMessagesHandler handles the clear_messages MCP tool.
type ClearMessagesHandler struct {
	service *Service
}

// NewClearMessagesHandler creates a new clear-messages handler.
func NewClearMessagesHandler(service *Service) *ClearMessagesHandler {
	return &ClearMessagesHandler{service: service}
}

// Handle empties the agent's mailbox.
func (h *ClearMessagesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ClearMessagesArgument) (*mcp.CallToolResult, ClearMessagesOutput, error) {
	if err := h.service.ClearMessages(ctx, args.AgentName); err != nil {
		return failure("Clearing messages failed", err), ClearMessagesOutput{Status: "error"}, nil
	}
	return textResult(fmt.Sprintf("Messages cleared for %s", args.AgentName)), ClearMessagesOutput{Status: "ok"}, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ClearMessagesHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "crew_clear_messages",
		Description: "Clear your message queue after processing it",
	}
}

// RegisterClearMessagesTool registers the clear-messages tool with an MCP server.
func RegisterClearMessagesTool(server *mcp.Server, service *Service) {
	handler := NewClearMessagesHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
