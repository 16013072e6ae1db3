package graph

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// globOverFetchFactor controls how many extra rows are requested when a
// path glob will be applied after retrieval, so post-filtering can still
// fill a page.
const globOverFetchFactor = 5

// Find returns nodes of a codebase, each annotated with its current
// claimant, ordered by path. nodeType selects one of the pre-built query
// variants; pathGlob is applied client-side after retrieval (the store is
// asked for globOverFetchFactor times the limit in that case, and the
// result is truncated to limit afterward).
func (s *Store) Find(ctx context.Context, codebase string, nodeType NodeType, pathGlob string, limit int) ([]NodeRecord, error) {
	query, ok := findQueries[nodeType]
	if !ok {
		return nil, fmt.Errorf("invalid node_type %q, must be one of: %s", nodeType, strings.Join(NodeTypeNames(), ", "))
	}

	fetchLimit := limit
	if pathGlob != "" {
		fetchLimit = limit * globOverFetchFactor
	}

	rows, err := s.runner.Read(ctx, query, map[string]any{
		"codebase": codebase,
		"limit":    fetchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("find query failed: %w", err)
	}

	var matcher *globMatcher
	if pathGlob != "" {
		matcher, err = compileGlob(pathGlob)
		if err != nil {
			return nil, fmt.Errorf("invalid path_filter %q: %w", pathGlob, err)
		}
	}

	records := make([]NodeRecord, 0, len(rows))
	for _, row := range rows {
		path := rowString(row, "node_path")
		if matcher != nil && !matcher.Match(path) {
			continue
		}
		records = append(records, NodeRecord{
			Path:        path,
			Name:        rowString(row, "node_name"),
			Type:        PrimaryType(rowLabels(row, "node_labels")),
			ClaimedBy:   rowString(row, "claimed_by"),
			ClaimReason: rowString(row, "claim_reason"),
		})
		if len(records) == limit {
			break
		}
	}
	return records, nil
}

// globMatcher implements shell-style glob matching where `*` and `?`
// match path separators too, unlike path.Match.
type globMatcher struct {
	re *regexp.Regexp
}

func (m *globMatcher) Match(s string) bool {
	return m.re.MatchString(s)
}

func compileGlob(pattern string) (*globMatcher, error) {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				sb.WriteString(regexp.QuoteMeta(string(c)))
				continue
			}
			set := pattern[i+1 : i+1+end]
			if strings.HasPrefix(set, "!") {
				set = "^" + set[1:]
			}
			sb.WriteString("[" + set + "]")
			i += end + 1
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, err
	}
	return &globMatcher{re: re}, nil
}
