package graph

import (
	"context"
	"fmt"
)

// CreateClaim attempts to claim a node for an agent. The read of existing
// CLAIM edges and the conditional edge creation run in one statement in
// one write transaction, with a write lock on the target node, so two
// concurrent claimants on the same node cannot both observe "unclaimed".
// First writer wins; the loser sees ClaimConflict.
func (s *Store) CreateClaim(ctx context.Context, agentName, agentModel, nodePath, codebase, reason string) (ClaimOutcome, error) {
	rows, err := s.runner.Write(ctx, createClaimQuery, map[string]any{
		"agent_name":   agentName,
		"agent_model":  agentModel,
		"node_path":    nodePath,
		"codebase":     codebase,
		"claim_reason": reason,
	})
	if err != nil {
		return ClaimOutcome{}, fmt.Errorf("claim write failed: %w", err)
	}

	if len(rows) == 0 {
		return ClaimOutcome{State: ClaimNodeNotFound, NodePath: nodePath}, nil
	}

	row := rows[0]
	outcome := ClaimOutcome{
		NodePath:     rowString(row, "path"),
		HolderName:   rowString(row, "holder_name"),
		HolderModel:  rowString(row, "holder_model"),
		HolderReason: rowString(row, "holder_reason"),
	}
	switch {
	case outcome.HolderName == "":
		outcome.State = ClaimCreated
	case outcome.HolderName == agentName:
		outcome.State = ClaimAlreadyOwned
	default:
		outcome.State = ClaimConflict
	}
	return outcome, nil
}

// ReleaseClaim removes the CLAIM edge held by agentName on the node.
// Returns nil when no such claim exists. When the agent's last claim is
// released the Agent node, including its mailbox, is deleted in the same
// transaction.
func (s *Store) ReleaseClaim(ctx context.Context, agentName, nodePath, codebase string) (*ReleaseInfo, error) {
	rows, err := s.runner.Write(ctx, releaseClaimQuery, map[string]any{
		"agent_name": agentName,
		"node_path":  nodePath,
		"codebase":   codebase,
	})
	if err != nil {
		return nil, fmt.Errorf("release write failed: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	info := &ReleaseInfo{
		NodePath:        rowString(row, "path"),
		RootPath:        rowString(row, "root_path"),
		RemainingClaims: rowInt(row, "remaining_claims"),
	}
	for _, label := range rowLabels(row, "labels") {
		if label == string(NodeTypeDirectory) {
			info.IsDirectory = true
		}
	}
	return info, nil
}

// ActiveClaims returns all CLAIM edges, optionally scoped to a codebase,
// ordered by agent name then node path.
func (s *Store) ActiveClaims(ctx context.Context, codebase string) ([]ClaimRecord, error) {
	var (
		rows []map[string]any
		err  error
	)
	if codebase == "" {
		rows, err = s.runner.Read(ctx, activeClaimsAllQuery, nil)
	} else {
		rows, err = s.runner.Read(ctx, activeClaimsByCodebaseQuery, map[string]any{"codebase": codebase})
	}
	if err != nil {
		return nil, fmt.Errorf("active claims query failed: %w", err)
	}

	records := make([]ClaimRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, ClaimRecord{
			AgentName:   rowString(row, "agent_name"),
			AgentModel:  rowString(row, "agent_model"),
			NodePath:    rowString(row, "node_path"),
			NodeType:    PrimaryType(rowLabels(row, "node_labels")),
			ClaimReason: rowString(row, "claim_reason"),
		})
	}
	return records, nil
}
