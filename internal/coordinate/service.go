package coordinate

import (
	"context"
	"fmt"
	"time"

	"github.com/sha1n/mcp-crew-server/internal/graph"
)

// Store is the persistence surface the coordination layer depends on.
// *graph.Store implements it; tests substitute a fake. Every method is a
// blocking round trip to the backend and honors ctx cancellation.
type Store interface {
	CreateClaim(ctx context.Context, agentName, agentModel, nodePath, codebase, reason string) (graph.ClaimOutcome, error)
	ReleaseClaim(ctx context.Context, agentName, nodePath, codebase string) (*graph.ReleaseInfo, error)
	ActiveClaims(ctx context.Context, codebase string) ([]graph.ClaimRecord, error)
	Find(ctx context.Context, codebase string, nodeType graph.NodeType, pathGlob string, limit int) ([]graph.NodeRecord, error)

	UpsertDirectory(ctx context.Context, codebase, path, name string, depth int, parentPath string) error
	UpsertFile(ctx context.Context, codebase, path, name, extension string, sizeBytes int64, parentPath string) error
	UpsertFunction(ctx context.Context, codebase, filePath, name string, lineNumber int, isMethod bool, parameters, ownerClass string) error
	UpsertClass(ctx context.Context, codebase, filePath, name string, lineNumber int, baseClasses string) error
	DeleteDirectory(ctx context.Context, codebase, path string, cascade bool) error
	DeleteFile(ctx context.Context, codebase, path string, cascade bool) error
	DeleteFunction(ctx context.Context, codebase, filePath, name string) error
	DeleteClass(ctx context.Context, codebase, filePath, name string) error
	ClearSubtree(ctx context.Context, codebase, path string, isDirectory bool) error

	AgentExists(ctx context.Context, agentName string) (bool, error)
	AppendMessage(ctx context.Context, agentName, raw string) (int, error)
	Messages(ctx context.Context, agentName string) ([]string, error)
	ClearMessages(ctx context.Context, agentName string) error
}

// Reindexer refreshes the graph for a released subtree from the
// filesystem. It runs outside the release transaction; failures are
// reported to the caller and never undo the release.
type Reindexer interface {
	Reindex(ctx context.Context, rootPath, nodePath, codebase string, isDirectory bool) (string, error)
}

// ServiceConfig carries the tunables and optional collaborators of a
// Service.
type ServiceConfig struct {
	// MaxResults caps query_codebase page sizes. Zero means the default.
	MaxResults int
	// Reindexer handles post-release reindexing. Nil disables it; the
	// release result then reports the reindex as skipped.
	Reindexer Reindexer
	// Clock stamps outgoing messages. Nil means time.Now.
	Clock func() time.Time
}

// DefaultMaxResults is the query_codebase page cap when none is configured.
const DefaultMaxResults = 200

// Service validates coordination requests and dispatches them to the
// store. It holds no mutable state of its own: all mutual exclusion is
// delegated to the store's transactional guarantees on the CLAIM edge.
type Service struct {
	store      Store
	reindexer  Reindexer
	maxResults int
	now        func() time.Time
}

// NewService creates a coordination service over the given store.
func NewService(store Store, cfg ServiceConfig) *Service {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		store:      store,
		reindexer:  cfg.Reindexer,
		maxResults: cfg.MaxResults,
		now:        cfg.Clock,
	}
}

// ValidationError marks a request rejected before any store access.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
