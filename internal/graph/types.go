package graph

import (
	"fmt"
	"sort"
	"strings"
)

// NodeType identifies one of the fixed labels stored in the graph.
// Query construction selects among pre-built Cypher variants keyed by
// NodeType; caller-supplied strings are never spliced into a query.
type NodeType string

const (
	NodeTypeCodebase  NodeType = "Codebase"
	NodeTypeDirectory NodeType = "Directory"
	NodeTypeFile      NodeType = "File"
	NodeTypeClass     NodeType = "Class"
	NodeTypeFunction  NodeType = "Function"

	// NodeTypeAny selects all labels; it is not a valid external filter value.
	NodeTypeAny NodeType = ""
)

// validNodeTypes is the closed set accepted from callers.
var validNodeTypes = map[NodeType]bool{
	NodeTypeCodebase:  true,
	NodeTypeDirectory: true,
	NodeTypeFile:      true,
	NodeTypeClass:     true,
	NodeTypeFunction:  true,
}

// ParseNodeType validates a caller-supplied type filter. An empty string
// means no filter. Anything outside the closed enumeration is rejected.
func ParseNodeType(s string) (NodeType, error) {
	if s == "" {
		return NodeTypeAny, nil
	}
	nt := NodeType(s)
	if !validNodeTypes[nt] {
		return NodeTypeAny, fmt.Errorf("invalid node_type %q, must be one of: %s", s, strings.Join(NodeTypeNames(), ", "))
	}
	return nt, nil
}

// NodeTypeNames returns the valid type filter values in sorted order.
func NodeTypeNames() []string {
	names := make([]string, 0, len(validNodeTypes))
	for nt := range validNodeTypes {
		names = append(names, string(nt))
	}
	sort.Strings(names)
	return names
}

// PrimaryType extracts the first recognized node type from a label list.
func PrimaryType(labels []string) NodeType {
	for _, l := range labels {
		if validNodeTypes[NodeType(l)] {
			return NodeType(l)
		}
	}
	return NodeTypeAny
}

// NodeRecord is one row returned by Find: a graph node plus its current
// claimant, if any.
type NodeRecord struct {
	Path        string
	Name        string
	Type        NodeType
	ClaimedBy   string
	ClaimReason string
}

// ClaimRecord is one active CLAIM edge as returned by ActiveClaims.
type ClaimRecord struct {
	AgentName   string
	AgentModel  string
	NodePath    string
	NodeType    NodeType
	ClaimReason string
}

// ClaimOutcome is the tagged result of a claim attempt. Exactly one of
// the states applies; Holder fields are set only for Conflict and
// AlreadyOwned.
type ClaimOutcome struct {
	State        ClaimState
	NodePath     string
	HolderName   string
	HolderModel  string
	HolderReason string
}

// ClaimState enumerates the possible outcomes of CreateClaim.
type ClaimState int

const (
	// ClaimCreated means the CLAIM edge was written in this transaction.
	ClaimCreated ClaimState = iota
	// ClaimAlreadyOwned means the requesting agent already held the claim.
	ClaimAlreadyOwned
	// ClaimConflict means a different agent holds the claim.
	ClaimConflict
	// ClaimNodeNotFound means the target node does not exist in the graph.
	ClaimNodeNotFound
)

// ReleaseInfo describes a successfully removed claim.
type ReleaseInfo struct {
	NodePath        string
	IsDirectory     bool
	RootPath        string
	RemainingClaims int
}

// Config holds the connection parameters for Open.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}
