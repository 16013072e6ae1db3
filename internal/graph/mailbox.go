package graph

import (
	"context"
	"fmt"
)

// AgentExists reports whether an Agent node is registered. Agents come
// into existence on their first claim and disappear when their last
// claim is released.
func (s *Store) AgentExists(ctx context.Context, agentName string) (bool, error) {
	rows, err := s.runner.Read(ctx, agentExistsQuery, map[string]any{"agent_name": agentName})
	if err != nil {
		return false, fmt.Errorf("agent lookup failed: %w", err)
	}
	return len(rows) > 0, nil
}

// AppendMessage appends a serialized message record to the agent's
// mailbox as the newest item and returns the new message count.
func (s *Store) AppendMessage(ctx context.Context, agentName, raw string) (int, error) {
	rows, err := s.runner.Write(ctx, appendMessageQuery, map[string]any{
		"agent_name": agentName,
		"message":    raw,
	})
	if err != nil {
		return 0, fmt.Errorf("message append failed: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("agent %q not found", agentName)
	}
	return rowInt(rows[0], "message_count"), nil
}

// Messages returns the raw serialized mailbox entries in send order.
// An unknown agent yields an empty list, not an error.
func (s *Store) Messages(ctx context.Context, agentName string) ([]string, error) {
	rows, err := s.runner.Read(ctx, getMessagesQuery, map[string]any{"agent_name": agentName})
	if err != nil {
		return nil, fmt.Errorf("message read failed: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowStrings(rows[0], "messages"), nil
}

// ClearMessages empties the agent's mailbox. Clearing an already-empty
// or missing mailbox is a no-op.
func (s *Store) ClearMessages(ctx context.Context, agentName string) error {
	if _, err := s.runner.Write(ctx, clearMessagesQuery, map[string]any{"agent_name": agentName}); err != nil {
		return fmt.Errorf("message clear failed: %w", err)
	}
	return nil
}
