package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// cypherRunner executes one Cypher statement in its own transaction and
// returns the result rows as maps keyed by return alias. Statements that
// must be atomic are written as single Cypher statements, so one
// statement per transaction is sufficient for the whole store.
type cypherRunner interface {
	Read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	Write(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Store is the durable repository of codebase structure, claims, and
// agent mailboxes. It owns a Neo4j driver opened by Open and must be
// closed on shutdown; there is no package-level connection state.
type Store struct {
	runner cypherRunner
	close  func(context.Context) error
}

// Open connects to Neo4j, verifies connectivity, and applies the schema
// constraints. The returned Store is safe for concurrent use.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j unreachable at %s: %w", cfg.URI, err)
	}

	s := &Store{
		runner: &neo4jRunner{driver: driver, database: cfg.Database},
		close:  driver.Close,
	}

	if err := s.ensureConstraints(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}

	slog.Info("Graph store ready", "uri", cfg.URI, "database", cfg.Database)
	return s, nil
}

// NewStoreWithRunner builds a Store on a custom runner. Exported for
// tests and for in-process fakes in the integration suite.
func NewStoreWithRunner(runner cypherRunner) *Store {
	return &Store{runner: runner}
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// ensureConstraints creates the uniqueness constraints the claim protocol
// relies on. Each statement is idempotent (IF NOT EXISTS).
func (s *Store) ensureConstraints(ctx context.Context) error {
	for _, stmt := range constraintStatements {
		if _, err := s.runner.Write(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to apply schema constraint: %w", err)
		}
	}
	return nil
}

// neo4jRunner executes statements through managed driver sessions.
type neo4jRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r *neo4jRunner) Read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: r.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer func() { _ = session.Close(ctx) }()

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collectRows(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, err
	}
	return rows.([]map[string]any), nil
}

func (r *neo4jRunner) Write(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: r.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer func() { _ = session.Close(ctx) }()

	rows, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collectRows(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, err
	}
	return rows.([]map[string]any), nil
}

func collectRows(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) ([]map[string]any, error) {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.AsMap())
	}
	return rows, nil
}

// Row value helpers. Neo4j returns int64 for integers and nil for absent
// optional matches; these normalize without panicking on either.

func rowString(row map[string]any, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

func rowInt(row map[string]any, key string) int {
	switch v := row[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func rowLabels(row map[string]any, key string) []string {
	raw, ok := row[key].([]any)
	if !ok {
		return nil
	}
	labels := make([]string, 0, len(raw))
	for _, l := range raw {
		if s, ok := l.(string); ok {
			labels = append(labels, s)
		}
	}
	return labels
}

func rowStrings(row map[string]any, key string) []string {
	switch v := row[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
