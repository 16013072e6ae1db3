package coordinate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sha1n/mcp-crew-server/internal/graph"
)

// ClaimStatus enumerates the outcomes of a claim attempt.
type ClaimStatus string

const (
	ClaimStatusClaimed      ClaimStatus = "claimed"
	ClaimStatusAlreadyYours ClaimStatus = "already_yours"
	ClaimStatusConflict     ClaimStatus = "conflict"
	ClaimStatusNotFound     ClaimStatus = "not_found"
)

// ClaimResult is the tagged outcome of ClaimNode. ClaimedBy and
// ClaimReason are set only for conflicts.
type ClaimResult struct {
	Status      ClaimStatus
	NodePath    string
	AgentName   string
	ClaimedBy   string
	HolderModel string
	ClaimReason string
}

// ClaimNode claims a node for an agent. An empty (after trimming) claim
// reason is rejected before any store access; the store performs the
// claim as a single atomic conditional write, so concurrent claimants on
// one node resolve to exactly one ClaimStatusClaimed.
func (s *Service) ClaimNode(ctx context.Context, agentName, agentModel, nodePath, codebase, reason string) (ClaimResult, error) {
	if strings.TrimSpace(agentName) == "" {
		return ClaimResult{}, validationErrorf("agent_name is required")
	}
	if strings.TrimSpace(nodePath) == "" {
		return ClaimResult{}, validationErrorf("node_path is required")
	}
	if strings.TrimSpace(codebase) == "" {
		return ClaimResult{}, validationErrorf("codebase_name is required")
	}
	if strings.TrimSpace(reason) == "" {
		return ClaimResult{}, validationErrorf(
			"claim_reason is required; describe what you plan to do with this node " +
				"(e.g. 'Changes to input parameters and return statement')")
	}

	outcome, err := s.store.CreateClaim(ctx, agentName, agentModel, nodePath, codebase, reason)
	if err != nil {
		return ClaimResult{}, err
	}

	result := ClaimResult{
		NodePath:  outcome.NodePath,
		AgentName: agentName,
	}
	switch outcome.State {
	case graph.ClaimCreated:
		result.Status = ClaimStatusClaimed
		slog.Info("Node claimed", "agent", agentName, "node", nodePath, "codebase", codebase)
	case graph.ClaimAlreadyOwned:
		result.Status = ClaimStatusAlreadyYours
	case graph.ClaimConflict:
		result.Status = ClaimStatusConflict
		result.ClaimedBy = outcome.HolderName
		result.HolderModel = outcome.HolderModel
		result.ClaimReason = outcome.HolderReason
	case graph.ClaimNodeNotFound:
		result.Status = ClaimStatusNotFound
		result.NodePath = nodePath
	default:
		return ClaimResult{}, fmt.Errorf("unexpected claim state %v", outcome.State)
	}
	return result, nil
}

// ReleaseStatus enumerates the outcomes of a release.
type ReleaseStatus string

const (
	ReleaseStatusReleased ReleaseStatus = "released"
	ReleaseStatusNotFound ReleaseStatus = "not_found"
)

// ReindexStatus describes the best-effort reindex that follows a release.
type ReindexStatus string

const (
	ReindexStatusSuccess ReindexStatus = "success"
	ReindexStatusError   ReindexStatus = "error"
	ReindexStatusSkipped ReindexStatus = "skipped"
)

// ReleaseResult is the tagged outcome of ReleaseNode. Reindex fields are
// set only when Status is released.
type ReleaseResult struct {
	Status         ReleaseStatus
	NodePath       string
	AgentName      string
	ReindexStatus  ReindexStatus
	ReindexMessage string
}

// ReleaseNode removes the agent's claim, then refreshes the released
// subtree from the filesystem. The release is final once the store
// acknowledges it: the reindex runs afterwards, outside the release
// transaction, and its failure is reported in ReindexStatus without
// affecting the release.
func (s *Service) ReleaseNode(ctx context.Context, agentName, nodePath, codebase string) (ReleaseResult, error) {
	if strings.TrimSpace(agentName) == "" {
		return ReleaseResult{}, validationErrorf("agent_name is required")
	}
	if strings.TrimSpace(nodePath) == "" {
		return ReleaseResult{}, validationErrorf("node_path is required")
	}
	if strings.TrimSpace(codebase) == "" {
		return ReleaseResult{}, validationErrorf("codebase_name is required")
	}

	info, err := s.store.ReleaseClaim(ctx, agentName, nodePath, codebase)
	if err != nil {
		return ReleaseResult{}, err
	}
	if info == nil {
		return ReleaseResult{Status: ReleaseStatusNotFound, NodePath: nodePath, AgentName: agentName}, nil
	}

	slog.Info("Node released", "agent", agentName, "node", nodePath, "codebase", codebase,
		"remaining_claims", info.RemainingClaims)

	result := ReleaseResult{
		Status:    ReleaseStatusReleased,
		NodePath:  nodePath,
		AgentName: agentName,
	}
	result.ReindexStatus, result.ReindexMessage = s.reindexAfterRelease(ctx, info, nodePath, codebase)
	return result, nil
}

// reindexAfterRelease clears the released subtree and re-walks it so the
// graph reflects filesystem changes made while the node was claimed.
func (s *Service) reindexAfterRelease(ctx context.Context, info *graph.ReleaseInfo, nodePath, codebase string) (ReindexStatus, string) {
	if info.RootPath == "" {
		return ReindexStatusSkipped, "codebase root_path not set in the graph; re-run the full indexer to set it"
	}
	if s.reindexer == nil {
		return ReindexStatusSkipped, "reindexing is not configured"
	}

	if err := s.store.ClearSubtree(ctx, codebase, nodePath, info.IsDirectory); err != nil {
		slog.Error("Subtree clear failed", "node", nodePath, "error", err)
		return ReindexStatusError, fmt.Sprintf("failed to clear subtree: %s", err)
	}

	msg, err := s.reindexer.Reindex(ctx, info.RootPath, nodePath, codebase, info.IsDirectory)
	if err != nil {
		slog.Error("Reindex failed", "node", nodePath, "error", err)
		return ReindexStatusError, err.Error()
	}
	return ReindexStatusSuccess, msg
}

// AgentClaims groups the active claims of one agent.
type AgentClaims struct {
	AgentName  string
	AgentModel string
	Claims     []Claim
}

// Claim is one held node within AgentClaims.
type Claim struct {
	NodePath    string
	NodeType    string
	ClaimReason string
}

// ActiveAgents returns all agents holding claims, optionally scoped to
// one codebase, each with their claims grouped.
func (s *Service) ActiveAgents(ctx context.Context, codebase string) ([]AgentClaims, error) {
	records, err := s.store.ActiveClaims(ctx, codebase)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int)
	agents := make([]AgentClaims, 0)
	for _, rec := range records {
		idx, ok := byName[rec.AgentName]
		if !ok {
			idx = len(agents)
			byName[rec.AgentName] = idx
			agents = append(agents, AgentClaims{
				AgentName:  rec.AgentName,
				AgentModel: rec.AgentModel,
			})
		}
		nodeType := string(rec.NodeType)
		if nodeType == "" {
			nodeType = "Unknown"
		}
		agents[idx].Claims = append(agents[idx].Claims, Claim{
			NodePath:    rec.NodePath,
			NodeType:    nodeType,
			ClaimReason: rec.ClaimReason,
		})
	}
	return agents, nil
}

// QueryCodebase searches the graph for nodes with their claim status.
// nodeType must come from the closed enumeration; limit is clamped to
// [1, MaxResults].
func (s *Service) QueryCodebase(ctx context.Context, codebase, pathFilter, nodeType string, limit int) ([]graph.NodeRecord, error) {
	if strings.TrimSpace(codebase) == "" {
		return nil, validationErrorf("codebase_name is required")
	}
	nt, err := graph.ParseNodeType(nodeType)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	if limit < 1 {
		limit = 1
	}
	if limit > s.maxResults {
		limit = s.maxResults
	}

	return s.store.Find(ctx, codebase, nt, pathFilter, limit)
}
