package coordinate

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// Message is one mailbox record. Messages are stored on the recipient's
// Agent node as JSON strings and parsed back on read.
type Message struct {
	From      string `json:"from"`
	Content   string `json:"content"`
	NodePath  string `json:"node_path"`
	Timestamp string `json:"timestamp"`
}

// SendStatus enumerates the outcomes of SendMessage.
type SendStatus string

const (
	SendStatusSent          SendStatus = "sent"
	SendStatusAgentNotFound SendStatus = "agent_not_found"
)

// SendResult is the tagged outcome of SendMessage.
type SendResult struct {
	Status       SendStatus
	ToAgent      string
	MessageCount int
}

// SendMessage delivers a message to another agent's mailbox and returns
// the recipient's new message count. Sending to yourself or sending
// empty content is a validation error; an unknown recipient is an
// expected tagged outcome (agents only exist while they hold claims).
func (s *Service) SendMessage(ctx context.Context, fromAgent, toAgent, content, nodePath string) (SendResult, error) {
	if strings.TrimSpace(fromAgent) == "" {
		return SendResult{}, validationErrorf("from_agent is required")
	}
	if strings.TrimSpace(toAgent) == "" {
		return SendResult{}, validationErrorf("to_agent is required")
	}
	if fromAgent == toAgent {
		return SendResult{}, validationErrorf("cannot send a message to yourself")
	}
	if strings.TrimSpace(content) == "" {
		return SendResult{}, validationErrorf("message content is required and cannot be empty")
	}

	exists, err := s.store.AgentExists(ctx, toAgent)
	if err != nil {
		return SendResult{}, err
	}
	if !exists {
		return SendResult{Status: SendStatusAgentNotFound, ToAgent: toAgent}, nil
	}

	raw, err := json.Marshal(Message{
		From:      fromAgent,
		Content:   content,
		NodePath:  nodePath,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return SendResult{}, err
	}

	count, err := s.store.AppendMessage(ctx, toAgent, string(raw))
	if err != nil {
		return SendResult{}, err
	}

	slog.Info("Message sent", "from", fromAgent, "to", toAgent, "node", nodePath)
	return SendResult{Status: SendStatusSent, ToAgent: toAgent, MessageCount: count}, nil
}

// GetMessages returns the agent's queued messages in send order. Reading
// does not clear the mailbox; ClearMessages is the explicit separate
// call. A malformed stored entry becomes a fallback record instead of
// failing the whole read.
func (s *Service) GetMessages(ctx context.Context, agentName string) ([]Message, error) {
	if strings.TrimSpace(agentName) == "" {
		return nil, validationErrorf("agent_name is required")
	}

	raws, err := s.store.Messages(ctx, agentName)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(raws))
	for _, raw := range raws {
		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			messages = append(messages, Message{From: "unknown", Content: raw})
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// ClearMessages empties the agent's mailbox; clearing an already-empty
// inbox is not an error.
func (s *Service) ClearMessages(ctx context.Context, agentName string) error {
	if strings.TrimSpace(agentName) == "" {
		return validationErrorf("agent_name is required")
	}
	return s.store.ClearMessages(ctx, agentName)
}
