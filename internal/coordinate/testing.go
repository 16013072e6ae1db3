package coordinate

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/sha1n/mcp-crew-server/internal/graph"
)

// FakeStore is an in-memory Store used by unit and integration tests.
// It enforces the same one-claim-per-node rule as the real backend, with
// a mutex standing in for the backend's per-node write lock, so
// concurrency tests exercise genuine first-writer-wins behavior.
type FakeStore struct {
	mu        sync.Mutex
	codebases map[string]string
	nodes     map[string]fakeNode
	members   map[string]fakeMember
	claims    map[string]fakeClaim
	agents    map[string]*fakeAgent

	// ForcedErr, when set, is returned by every store method.
	ForcedErr error
}

type fakeNode struct {
	Codebase string
	Path     string
	Name     string
	Type     graph.NodeType
}

type fakeMember struct {
	Codebase string
	FilePath string
	Name     string
	Type     graph.NodeType
}

type fakeClaim struct {
	AgentName  string
	AgentModel string
	Reason     string
}

type fakeAgent struct {
	Model    string
	Messages []string
}

// NewFakeStore creates an empty in-memory store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		codebases: make(map[string]string),
		nodes:     make(map[string]fakeNode),
		members:   make(map[string]fakeMember),
		claims:    make(map[string]fakeClaim),
		agents:    make(map[string]*fakeAgent),
	}
}

func nodeKey(codebase, p string) string { return codebase + "\x00" + p }

func memberKey(codebase, fp, n string) string { return codebase + "\x00" + fp + "\x00" + n }

// AddCodebase registers a codebase root for claim and release flows.
func (f *FakeStore) AddCodebase(name, rootPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codebases[name] = rootPath
}

// AddDirectory seeds a claimable directory node.
func (f *FakeStore) AddDirectory(codebase, p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[nodeKey(codebase, p)] = fakeNode{Codebase: codebase, Path: p, Name: path.Base(p), Type: graph.NodeTypeDirectory}
}

// AddFile seeds a claimable file node.
func (f *FakeStore) AddFile(codebase, p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[nodeKey(codebase, p)] = fakeNode{Codebase: codebase, Path: p, Name: path.Base(p), Type: graph.NodeTypeFile}
}

// AddAgent seeds an agent without any claims, for mailbox-only tests.
func (f *FakeStore) AddAgent(name, model string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agents[name] = &fakeAgent{Model: model}
}

// HasNode reports whether a node is present.
func (f *FakeStore) HasNode(codebase, p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[nodeKey(codebase, p)]
	return ok
}

// HasMember reports whether a function or class is present.
func (f *FakeStore) HasMember(codebase, filePath, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.members[memberKey(codebase, filePath, name)]
	return ok
}

// HasAgent reports whether an agent node exists.
func (f *FakeStore) HasAgent(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.agents[name]
	return ok
}

// claimTarget resolves the node a claim addresses: the codebase root when
// node_path equals the codebase name, otherwise a seeded File/Directory.
func (f *FakeStore) claimTarget(codebase, nodePath string) (graph.NodeType, bool) {
	if nodePath == codebase {
		if _, ok := f.codebases[codebase]; ok {
			return graph.NodeTypeCodebase, true
		}
		return graph.NodeTypeAny, false
	}
	node, ok := f.nodes[nodeKey(codebase, nodePath)]
	if !ok {
		return graph.NodeTypeAny, false
	}
	return node.Type, true
}

// CreateClaim implements the atomic conditional claim write.
func (f *FakeStore) CreateClaim(_ context.Context, agentName, agentModel, nodePath, codebase, reason string) (graph.ClaimOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return graph.ClaimOutcome{}, f.ForcedErr
	}

	if _, ok := f.claimTarget(codebase, nodePath); !ok {
		return graph.ClaimOutcome{State: graph.ClaimNodeNotFound, NodePath: nodePath}, nil
	}

	key := nodeKey(codebase, nodePath)
	if held, ok := f.claims[key]; ok {
		if held.AgentName == agentName {
			return graph.ClaimOutcome{State: graph.ClaimAlreadyOwned, NodePath: nodePath}, nil
		}
		return graph.ClaimOutcome{
			State:        graph.ClaimConflict,
			NodePath:     nodePath,
			HolderName:   held.AgentName,
			HolderModel:  held.AgentModel,
			HolderReason: held.Reason,
		}, nil
	}

	if agent, ok := f.agents[agentName]; ok {
		agent.Model = agentModel
	} else {
		f.agents[agentName] = &fakeAgent{Model: agentModel}
	}
	f.claims[key] = fakeClaim{AgentName: agentName, AgentModel: agentModel, Reason: reason}
	return graph.ClaimOutcome{State: graph.ClaimCreated, NodePath: nodePath}, nil
}

// ReleaseClaim removes the claim and deletes the agent when it was the last one.
func (f *FakeStore) ReleaseClaim(_ context.Context, agentName, nodePath, codebase string) (*graph.ReleaseInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return nil, f.ForcedErr
	}

	key := nodeKey(codebase, nodePath)
	held, ok := f.claims[key]
	if !ok || held.AgentName != agentName {
		return nil, nil
	}
	delete(f.claims, key)

	remaining := 0
	for _, c := range f.claims {
		if c.AgentName == agentName {
			remaining++
		}
	}
	if remaining == 0 {
		delete(f.agents, agentName)
	}

	nodeType, _ := f.claimTarget(codebase, nodePath)
	return &graph.ReleaseInfo{
		NodePath:        nodePath,
		IsDirectory:     nodeType == graph.NodeTypeDirectory || nodeType == graph.NodeTypeCodebase,
		RootPath:        f.codebases[codebase],
		RemainingClaims: remaining,
	}, nil
}

// ActiveClaims lists claims ordered by agent then path.
func (f *FakeStore) ActiveClaims(_ context.Context, codebase string) ([]graph.ClaimRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return nil, f.ForcedErr
	}

	records := make([]graph.ClaimRecord, 0, len(f.claims))
	for key, c := range f.claims {
		cb, p, _ := strings.Cut(key, "\x00")
		if codebase != "" && cb != codebase {
			continue
		}
		nodeType, _ := f.claimTarget(cb, p)
		records = append(records, graph.ClaimRecord{
			AgentName:   c.AgentName,
			AgentModel:  c.AgentModel,
			NodePath:    p,
			NodeType:    nodeType,
			ClaimReason: c.Reason,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].AgentName != records[j].AgentName {
			return records[i].AgentName < records[j].AgentName
		}
		return records[i].NodePath < records[j].NodePath
	})
	return records, nil
}

// Find returns seeded nodes matching the type and glob, annotated with claimants.
func (f *FakeStore) Find(_ context.Context, codebase string, nodeType graph.NodeType, pathGlob string, limit int) ([]graph.NodeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return nil, f.ForcedErr
	}

	records := make([]graph.NodeRecord, 0)
	for _, n := range f.nodes {
		if n.Codebase != codebase {
			continue
		}
		if nodeType != graph.NodeTypeAny && n.Type != nodeType {
			continue
		}
		if pathGlob != "" {
			if ok, _ := path.Match(pathGlob, n.Path); !ok {
				continue
			}
		}
		rec := graph.NodeRecord{Path: n.Path, Name: n.Name, Type: n.Type}
		if c, ok := f.claims[nodeKey(codebase, n.Path)]; ok {
			rec.ClaimedBy = c.AgentName
			rec.ClaimReason = c.Reason
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// UpsertDirectory implements Store.
func (f *FakeStore) UpsertDirectory(_ context.Context, codebase, p, name string, depth int, parentPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return f.ForcedErr
	}
	f.nodes[nodeKey(codebase, p)] = fakeNode{Codebase: codebase, Path: p, Name: name, Type: graph.NodeTypeDirectory}
	return nil
}

// UpsertFile implements Store.
func (f *FakeStore) UpsertFile(_ context.Context, codebase, p, name, extension string, sizeBytes int64, parentPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return f.ForcedErr
	}
	f.nodes[nodeKey(codebase, p)] = fakeNode{Codebase: codebase, Path: p, Name: name, Type: graph.NodeTypeFile}
	return nil
}

// UpsertFunction implements Store. It fails when the defining file is
// absent, mirroring the backend's referential lookup miss.
func (f *FakeStore) UpsertFunction(_ context.Context, codebase, filePath, name string, lineNumber int, isMethod bool, parameters, ownerClass string) error {
	return f.upsertMember(codebase, filePath, name, graph.NodeTypeFunction)
}

// UpsertClass implements Store.
func (f *FakeStore) UpsertClass(_ context.Context, codebase, filePath, name string, lineNumber int, baseClasses string) error {
	return f.upsertMember(codebase, filePath, name, graph.NodeTypeClass)
}

func (f *FakeStore) upsertMember(codebase, filePath, name string, t graph.NodeType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return f.ForcedErr
	}
	if _, ok := f.nodes[nodeKey(codebase, filePath)]; !ok {
		return fmt.Errorf("file %q not found in codebase %q", filePath, codebase)
	}
	f.members[memberKey(codebase, filePath, name)] = fakeMember{Codebase: codebase, FilePath: filePath, Name: name, Type: t}
	return nil
}

// DeleteDirectory implements Store.
func (f *FakeStore) DeleteDirectory(_ context.Context, codebase, p string, cascade bool) error {
	return f.deleteNode(codebase, p, cascade)
}

// DeleteFile implements Store.
func (f *FakeStore) DeleteFile(_ context.Context, codebase, p string, cascade bool) error {
	return f.deleteNode(codebase, p, cascade)
}

func (f *FakeStore) deleteNode(codebase, p string, cascade bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return f.ForcedErr
	}
	delete(f.nodes, nodeKey(codebase, p))
	if !cascade {
		return nil
	}
	prefix := p + "/"
	for key, n := range f.nodes {
		if n.Codebase == codebase && strings.HasPrefix(n.Path, prefix) {
			delete(f.nodes, key)
			f.deleteMembersOf(codebase, n.Path)
		}
	}
	f.deleteMembersOf(codebase, p)
	return nil
}

func (f *FakeStore) deleteMembersOf(codebase, filePath string) {
	for key, m := range f.members {
		if m.Codebase == codebase && m.FilePath == filePath {
			delete(f.members, key)
		}
	}
}

// DeleteFunction implements Store.
func (f *FakeStore) DeleteFunction(_ context.Context, codebase, filePath, name string) error {
	return f.deleteMember(codebase, filePath, name)
}

// DeleteClass implements Store.
func (f *FakeStore) DeleteClass(_ context.Context, codebase, filePath, name string) error {
	return f.deleteMember(codebase, filePath, name)
}

func (f *FakeStore) deleteMember(codebase, filePath, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return f.ForcedErr
	}
	delete(f.members, memberKey(codebase, filePath, name))
	return nil
}

// ClearSubtree implements Store.
func (f *FakeStore) ClearSubtree(ctx context.Context, codebase, p string, isDirectory bool) error {
	return f.deleteNode(codebase, p, true)
}

// AgentExists implements Store.
func (f *FakeStore) AgentExists(_ context.Context, agentName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return false, f.ForcedErr
	}
	_, ok := f.agents[agentName]
	return ok, nil
}

// AppendMessage implements Store.
func (f *FakeStore) AppendMessage(_ context.Context, agentName, raw string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return 0, f.ForcedErr
	}
	agent, ok := f.agents[agentName]
	if !ok {
		return 0, fmt.Errorf("agent %q not found", agentName)
	}
	agent.Messages = append(agent.Messages, raw)
	return len(agent.Messages), nil
}

// Messages implements Store.
func (f *FakeStore) Messages(_ context.Context, agentName string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return nil, f.ForcedErr
	}
	agent, ok := f.agents[agentName]
	if !ok {
		return nil, nil
	}
	out := make([]string, len(agent.Messages))
	copy(out, agent.Messages)
	return out, nil
}

// ClearMessages implements Store.
func (f *FakeStore) ClearMessages(_ context.Context, agentName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ForcedErr != nil {
		return f.ForcedErr
	}
	if agent, ok := f.agents[agentName]; ok {
		agent.Messages = nil
	}
	return nil
}

// StubReindexer is a scripted Reindexer for release tests.
type StubReindexer struct {
	Msg   string
	Err   error
	Calls int
}

// Reindex records the call and returns the scripted outcome.
func (r *StubReindexer) Reindex(_ context.Context, rootPath, nodePath, codebase string, isDirectory bool) (string, error) {
	r.Calls++
	return r.Msg, r.Err
}
