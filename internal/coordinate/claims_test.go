package coordinate

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newTestService(store Store, reindexer Reindexer) *Service {
	return NewService(store, ServiceConfig{Reindexer: reindexer})
}

func seededStore() *FakeStore {
	store := NewFakeStore()
	store.AddCodebase("repo", "/workspace/repo")
	store.AddDirectory("repo", "src")
	store.AddFile("repo", "src/x.py")
	store.AddFile("repo", "src/y.py")
	return store
}

func TestClaimNode_Created(t *testing.T) {
	service := newTestService(seededStore(), nil)

	result, err := service.ClaimNode(context.Background(), "A", "m", "src/x.py", "repo", "fix bug")
	if err != nil {
		t.Fatalf("ClaimNode failed: %v", err)
	}
	if result.Status != ClaimStatusClaimed {
		t.Errorf("Expected claimed, got %s", result.Status)
	}
	if result.NodePath != "src/x.py" {
		t.Errorf("Expected node path src/x.py, got %s", result.NodePath)
	}
}

func TestClaimNode_UnindexedPath(t *testing.T) {
	service := newTestService(seededStore(), nil)

	result, err := service.ClaimNode(context.Background(), "A", "m", "src/missing.py", "repo", "fix bug")
	if err != nil {
		t.Fatalf("ClaimNode failed: %v", err)
	}
	if result.Status != ClaimStatusNotFound {
		t.Errorf("Expected not_found for an unindexed path, got %s", result.Status)
	}
}

func TestClaimNode_RepeatIsAlreadyYours(t *testing.T) {
	service := newTestService(seededStore(), nil)
	ctx := context.Background()

	if _, err := service.ClaimNode(ctx, "A", "m", "src/x.py", "repo", "fix bug"); err != nil {
		t.Fatalf("First claim failed: %v", err)
	}
	result, err := service.ClaimNode(ctx, "A", "m", "src/x.py", "repo", "fix bug")
	if err != nil {
		t.Fatalf("Second claim failed: %v", err)
	}
	if result.Status != ClaimStatusAlreadyYours {
		t.Errorf("Expected already_yours on repeat claim, got %s", result.Status)
	}
}

func TestClaimNode_ConflictReportsHolder(t *testing.T) {
	service := newTestService(seededStore(), nil)
	ctx := context.Background()

	if _, err := service.ClaimNode(ctx, "A", "gpt-4", "src/x.py", "repo", "refactoring imports"); err != nil {
		t.Fatalf("First claim failed: %v", err)
	}
	result, err := service.ClaimNode(ctx, "B", "claude", "src/x.py", "repo", "fixing tests")
	if err != nil {
		t.Fatalf("Second claim failed: %v", err)
	}
	if result.Status != ClaimStatusConflict {
		t.Fatalf("Expected conflict, got %s", result.Status)
	}
	if result.ClaimedBy != "A" {
		t.Errorf("Expected holder A, got %s", result.ClaimedBy)
	}
	if result.HolderModel != "gpt-4" {
		t.Errorf("Expected holder model gpt-4, got %s", result.HolderModel)
	}
	if result.ClaimReason != "refactoring imports" {
		t.Errorf("Expected the holder's reason, got %q", result.ClaimReason)
	}
}

func TestClaimNode_WholeCodebase(t *testing.T) {
	service := newTestService(seededStore(), nil)

	result, err := service.ClaimNode(context.Background(), "A", "m", "repo", "repo", "large refactor")
	if err != nil {
		t.Fatalf("ClaimNode failed: %v", err)
	}
	if result.Status != ClaimStatusClaimed {
		t.Errorf("Expected the codebase root to be claimable, got %s", result.Status)
	}
}

func TestClaimNode_ValidationRejectsEmptyInputs(t *testing.T) {
	store := seededStore()
	service := newTestService(store, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		agent    string
		nodePath string
		codebase string
		reason   string
	}{
		{"empty agent", "", "src/x.py", "repo", "fix"},
		{"empty node path", "A", "", "repo", "fix"},
		{"empty codebase", "A", "src/x.py", "", "fix"},
		{"empty reason", "A", "src/x.py", "repo", ""},
		{"whitespace reason", "A", "src/x.py", "repo", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ClaimNode(ctx, tt.agent, "m", tt.nodePath, tt.codebase, tt.reason)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
		})
	}
	if store.HasAgent("A") {
		t.Error("Validation failures must not reach the store")
	}
}

func TestClaimNode_ConcurrentClaimantsExactlyOneWins(t *testing.T) {
	service := newTestService(seededStore(), nil)
	ctx := context.Background()
	agents := []string{"A", "B", "C", "D", "E", "F", "G", "H"}

	results := make([]ClaimResult, len(agents))
	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent string) {
			defer wg.Done()
			result, err := service.ClaimNode(ctx, agent, "m", "src/x.py", "repo", "concurrent edit")
			if err != nil {
				t.Errorf("ClaimNode for %s failed: %v", agent, err)
				return
			}
			results[i] = result
		}(i, agent)
	}
	wg.Wait()

	claimed := 0
	for _, r := range results {
		switch r.Status {
		case ClaimStatusClaimed:
			claimed++
		case ClaimStatusConflict:
		default:
			t.Errorf("Unexpected status %s", r.Status)
		}
	}
	if claimed != 1 {
		t.Errorf("Expected exactly one winner, got %d", claimed)
	}
}

func TestClaimNode_StoreError(t *testing.T) {
	store := seededStore()
	store.ForcedErr = errors.New("connection refused")
	service := newTestService(store, nil)

	if _, err := service.ClaimNode(context.Background(), "A", "m", "src/x.py", "repo", "fix"); err == nil {
		t.Fatal("Expected a store error to propagate")
	}
}

func TestReleaseNode_RemovesAgentFromActiveList(t *testing.T) {
	store := seededStore()
	service := newTestService(store, nil)
	ctx := context.Background()

	if _, err := service.ClaimNode(ctx, "A", "m", "src/x.py", "repo", "fix bug"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	result, err := service.ReleaseNode(ctx, "A", "src/x.py", "repo")
	if err != nil {
		t.Fatalf("ReleaseNode failed: %v", err)
	}
	if result.Status != ReleaseStatusReleased {
		t.Fatalf("Expected released, got %s", result.Status)
	}

	agents, err := service.ActiveAgents(ctx, "repo")
	if err != nil {
		t.Fatalf("ActiveAgents failed: %v", err)
	}
	if len(agents) != 0 {
		t.Errorf("Expected no active agents after the last release, got %d", len(agents))
	}
	if store.HasAgent("A") {
		t.Error("Agent node should be deleted when its claim count reaches zero")
	}
}

func TestReleaseNode_AgentSurvivesWhileHoldingOtherClaims(t *testing.T) {
	store := seededStore()
	service := newTestService(store, nil)
	ctx := context.Background()

	service.ClaimNode(ctx, "A", "m", "src/x.py", "repo", "fix bug")
	service.ClaimNode(ctx, "A", "m", "src/y.py", "repo", "fix bug")

	if _, err := service.ReleaseNode(ctx, "A", "src/x.py", "repo"); err != nil {
		t.Fatalf("ReleaseNode failed: %v", err)
	}
	if !store.HasAgent("A") {
		t.Error("Agent still holds a claim and must survive the release")
	}
}

func TestReleaseNode_NotFound(t *testing.T) {
	service := newTestService(seededStore(), nil)

	result, err := service.ReleaseNode(context.Background(), "A", "src/x.py", "repo")
	if err != nil {
		t.Fatalf("ReleaseNode failed: %v", err)
	}
	if result.Status != ReleaseStatusNotFound {
		t.Errorf("Expected not_found for a claim that was never made, got %s", result.Status)
	}
}

func TestReleaseNode_ReindexOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		store := seededStore()
		reindexer := &StubReindexer{Msg: "reindexed 2 files"}
		service := newTestService(store, reindexer)
		service.ClaimNode(ctx, "A", "m", "src/x.py", "repo", "fix")

		result, err := service.ReleaseNode(ctx, "A", "src/x.py", "repo")
		if err != nil {
			t.Fatalf("ReleaseNode failed: %v", err)
		}
		if result.ReindexStatus != ReindexStatusSuccess {
			t.Errorf("Expected reindex success, got %s: %s", result.ReindexStatus, result.ReindexMessage)
		}
		if reindexer.Calls != 1 {
			t.Errorf("Expected one reindex call, got %d", reindexer.Calls)
		}
	})

	t.Run("reindexer failure never undoes the release", func(t *testing.T) {
		store := seededStore()
		service := newTestService(store, &StubReindexer{Err: errors.New("walk failed")})
		service.ClaimNode(ctx, "A", "m", "src/x.py", "repo", "fix")

		result, err := service.ReleaseNode(ctx, "A", "src/x.py", "repo")
		if err != nil {
			t.Fatalf("ReleaseNode failed: %v", err)
		}
		if result.Status != ReleaseStatusReleased {
			t.Errorf("Expected released despite reindex failure, got %s", result.Status)
		}
		if result.ReindexStatus != ReindexStatusError {
			t.Errorf("Expected reindex error status, got %s", result.ReindexStatus)
		}
	})

	t.Run("skipped without a configured reindexer", func(t *testing.T) {
		store := seededStore()
		service := newTestService(store, nil)
		service.ClaimNode(ctx, "A", "m", "src/x.py", "repo", "fix")

		result, _ := service.ReleaseNode(ctx, "A", "src/x.py", "repo")
		if result.ReindexStatus != ReindexStatusSkipped {
			t.Errorf("Expected reindex skipped, got %s", result.ReindexStatus)
		}
	})

	t.Run("skipped without a codebase root path", func(t *testing.T) {
		store := NewFakeStore()
		store.AddCodebase("repo", "")
		store.AddFile("repo", "src/x.py")
		reindexer := &StubReindexer{Msg: "should not run"}
		service := newTestService(store, reindexer)
		service.ClaimNode(ctx, "A", "m", "src/x.py", "repo", "fix")

		result, _ := service.ReleaseNode(ctx, "A", "src/x.py", "repo")
		if result.ReindexStatus != ReindexStatusSkipped {
			t.Errorf("Expected reindex skipped, got %s", result.ReindexStatus)
		}
		if reindexer.Calls != 0 {
			t.Error("Reindexer must not run when the codebase root is unknown")
		}
	})
}

func TestActiveAgents_GroupsClaimsPerAgent(t *testing.T) {
	store := seededStore()
	service := newTestService(store, nil)
	ctx := context.Background()

	service.ClaimNode(ctx, "A", "gpt-4", "src/x.py", "repo", "fixing x")
	service.ClaimNode(ctx, "A", "gpt-4", "src/y.py", "repo", "fixing y")
	service.ClaimNode(ctx, "B", "claude", "src", "repo", "reorganizing")

	agents, err := service.ActiveAgents(ctx, "repo")
	if err != nil {
		t.Fatalf("ActiveAgents failed: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("Expected 2 agents, got %d", len(agents))
	}
	if agents[0].AgentName != "A" || len(agents[0].Claims) != 2 {
		t.Errorf("Expected A with 2 claims, got %s with %d", agents[0].AgentName, len(agents[0].Claims))
	}
	if agents[1].AgentName != "B" || len(agents[1].Claims) != 1 {
		t.Errorf("Expected B with 1 claim, got %s with %d", agents[1].AgentName, len(agents[1].Claims))
	}
	if agents[1].Claims[0].NodeType != "Directory" {
		t.Errorf("Expected Directory node type, got %s", agents[1].Claims[0].NodeType)
	}
}

func TestActiveAgents_ScopedToCodebase(t *testing.T) {
	store := seededStore()
	store.AddCodebase("other", "/workspace/other")
	store.AddFile("other", "main.go")
	service := newTestService(store, nil)
	ctx := context.Background()

	service.ClaimNode(ctx, "A", "m", "src/x.py", "repo", "fix")
	service.ClaimNode(ctx, "B", "m", "main.go", "other", "fix")

	agents, err := service.ActiveAgents(ctx, "repo")
	if err != nil {
		t.Fatalf("ActiveAgents failed: %v", err)
	}
	if len(agents) != 1 || agents[0].AgentName != "A" {
		t.Fatalf("Expected only agent A in repo scope, got %v", agents)
	}

	all, err := service.ActiveAgents(ctx, "")
	if err != nil {
		t.Fatalf("ActiveAgents failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected both agents without a scope, got %d", len(all))
	}
}

func TestQueryCodebase(t *testing.T) {
	store := seededStore()
	service := newTestService(store, nil)
	ctx := context.Background()

	service.ClaimNode(ctx, "A", "m", "src/x.py", "repo", "fixing x")

	nodes, err := service.QueryCodebase(ctx, "repo", "", "File", 10)
	if err != nil {
		t.Fatalf("QueryCodebase failed: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(nodes))
	}
	if nodes[0].Path != "src/x.py" {
		t.Errorf("Expected deterministic path order, got %s first", nodes[0].Path)
	}
	if nodes[0].ClaimedBy != "A" || nodes[0].ClaimReason != "fixing x" {
		t.Errorf("Expected claim annotation on src/x.py, got %+v", nodes[0])
	}
	if nodes[1].ClaimedBy != "" {
		t.Errorf("Expected src/y.py unclaimed, got %q", nodes[1].ClaimedBy)
	}
}

func TestQueryCodebase_RejectsUnknownType(t *testing.T) {
	service := newTestService(seededStore(), nil)

	_, err := service.QueryCodebase(context.Background(), "repo", "", "Module", 10)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for an unknown node type, got %v", err)
	}
}

func TestQueryCodebase_ClampsLimit(t *testing.T) {
	store := seededStore()
	service := NewService(store, ServiceConfig{MaxResults: 1})

	nodes, err := service.QueryCodebase(context.Background(), "repo", "", "File", 500)
	if err != nil {
		t.Fatalf("QueryCodebase failed: %v", err)
	}
	if len(nodes) != 1 {
		t.Errorf("Expected the limit clamped to 1, got %d nodes", len(nodes))
	}
}
