package graph

import (
	"context"
	"strings"
	"sync"
)

// RecordingRunner is a cypherRunner that records statements and returns
// scripted rows. Responses are matched by substring of the statement
// text, first match wins. Exported for use in integration tests.
type RecordingRunner struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     []RunnerCall
}

type scriptedResponse struct {
	substring string
	rows      []map[string]any
	err       error
}

// RunnerCall records one executed statement.
type RunnerCall struct {
	Write  bool
	Cypher string
	Params map[string]any
}

// NewRecordingRunner creates an empty RecordingRunner. With no scripted
// response for a statement it returns no rows and no error.
func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{}
}

// Respond scripts rows for statements containing the given substring.
func (r *RecordingRunner) Respond(substring string, rows []map[string]any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, scriptedResponse{substring: substring, rows: rows, err: err})
}

// Calls returns a copy of the executed statements in order.
func (r *RecordingRunner) Calls() []RunnerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunnerCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// WriteCalls returns only the write statements.
func (r *RecordingRunner) WriteCalls() []RunnerCall {
	var out []RunnerCall
	for _, c := range r.Calls() {
		if c.Write {
			out = append(out, c)
		}
	}
	return out
}

func (r *RecordingRunner) Read(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return r.record(false, cypher, params)
}

func (r *RecordingRunner) Write(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return r.record(true, cypher, params)
}

func (r *RecordingRunner) record(write bool, cypher string, params map[string]any) ([]map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, RunnerCall{Write: write, Cypher: cypher, Params: params})
	for _, resp := range r.responses {
		if strings.Contains(cypher, resp.substring) {
			return resp.rows, resp.err
		}
	}
	return nil, nil
}
