package storage

import (
	"slices"
	"sync"
	"time"
)

// MemoryEngine is a thread-safe in-memory Engine.
//
// Nodes and edges are stored as deep copies; callers never hold references
// into the engine's maps. Label and adjacency indexes are maintained on every
// write so label scans and incident-edge lookups do not walk the whole graph.
type MemoryEngine struct {
	mu sync.RWMutex

	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	nodesByLabel  map[string]map[NodeID]struct{}
	edgesByType   map[string]map[EdgeID]struct{}
	outgoingEdges map[NodeID]map[EdgeID]struct{}
	incomingEdges map[NodeID]map[EdgeID]struct{}

	closed bool
}

// NewMemoryEngine creates an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		nodes:         make(map[NodeID]*Node),
		edges:         make(map[EdgeID]*Edge),
		nodesByLabel:  make(map[string]map[NodeID]struct{}),
		edgesByType:   make(map[string]map[EdgeID]struct{}),
		outgoingEdges: make(map[NodeID]map[EdgeID]struct{}),
		incomingEdges: make(map[NodeID]map[EdgeID]struct{}),
	}
}

// ============================================================================
// Node Operations
// ============================================================================

// NodeExists reports whether a node with id is stored.
func (m *MemoryEngine) NodeExists(id NodeID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrStorageClosed
	}
	_, ok := m.nodes[id]
	return ok, nil
}

// CreateNode stores a copy of node.
func (m *MemoryEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.nodes[node.ID]; exists {
		return ErrAlreadyExists
	}

	stored := CopyNode(node)
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.nodes[stored.ID] = stored
	m.indexLabels(stored.ID, stored.Labels)
	return nil
}

// GetNode returns a copy of the node.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	node, ok := m.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return CopyNode(node), nil
}

// UpdateNode replaces labels and properties of an existing node.
func (m *MemoryEngine) UpdateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	existing, ok := m.nodes[node.ID]
	if !ok {
		return ErrNotFound
	}

	m.unindexLabels(existing.ID, existing.Labels)
	stored := CopyNode(node)
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()
	m.nodes[stored.ID] = stored
	m.indexLabels(stored.ID, stored.Labels)
	return nil
}

// DeleteNode removes a node, and with detach its incident edges.
func (m *MemoryEngine) DeleteNode(id NodeID, detach bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	node, ok := m.nodes[id]
	if !ok {
		return ErrNotFound
	}

	incident := m.incidentEdgeIDs(id)
	if len(incident) > 0 && !detach {
		return ErrHasRelationships
	}
	for _, edgeID := range incident {
		m.removeEdge(edgeID)
	}

	m.unindexLabels(id, node.Labels)
	delete(m.nodes, id)
	delete(m.outgoingEdges, id)
	delete(m.incomingEdges, id)
	return nil
}

// ============================================================================
// Edge Operations
// ============================================================================

// EdgeExists reports whether an edge with id is stored.
func (m *MemoryEngine) EdgeExists(id EdgeID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrStorageClosed
	}
	_, ok := m.edges[id]
	return ok, nil
}

// CreateEdge stores a copy of edge. Both endpoints must exist.
func (m *MemoryEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.edges[edge.ID]; exists {
		return ErrAlreadyExists
	}
	if _, ok := m.nodes[edge.StartNode]; !ok {
		return ErrInvalidEdge
	}
	if _, ok := m.nodes[edge.EndNode]; !ok {
		return ErrInvalidEdge
	}

	stored := CopyEdge(edge)
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.edges[stored.ID] = stored
	addToIndex(m.edgesByType, stored.Type, stored.ID)
	addToIndex(m.outgoingEdges, stored.StartNode, stored.ID)
	addToIndex(m.incomingEdges, stored.EndNode, stored.ID)
	return nil
}

// GetEdge returns a copy of the edge.
func (m *MemoryEngine) GetEdge(id EdgeID) (*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	edge, ok := m.edges[id]
	if !ok {
		return nil, ErrNotFound
	}
	return CopyEdge(edge), nil
}

// UpdateEdge replaces the properties and weight of an existing edge.
// Endpoints and type are immutable.
func (m *MemoryEngine) UpdateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	existing, ok := m.edges[edge.ID]
	if !ok {
		return ErrNotFound
	}
	stored := CopyEdge(existing)
	stored.Properties = CopyProperties(edge.Properties)
	stored.Weight = edge.Weight
	stored.UpdatedAt = time.Now()
	m.edges[stored.ID] = stored
	return nil
}

// DeleteEdge removes an edge.
func (m *MemoryEngine) DeleteEdge(id EdgeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	if _, ok := m.edges[id]; !ok {
		return ErrNotFound
	}
	m.removeEdge(id)
	return nil
}

// ============================================================================
// Scans
// ============================================================================

// AllNodes returns copies of every node ordered by id.
func (m *MemoryEngine) AllNodes() ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	out := make([]*Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, CopyNode(n))
	}
	sortNodes(out)
	return out, nil
}

// AllEdges returns copies of every edge ordered by id.
func (m *MemoryEngine) AllEdges() ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	out := make([]*Edge, 0, len(m.edges))
	for _, e := range m.edges {
		out = append(out, CopyEdge(e))
	}
	sortEdges(out)
	return out, nil
}

// GetNodesByLabel returns nodes carrying label, ordered by id.
func (m *MemoryEngine) GetNodesByLabel(label string) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	ids := m.nodesByLabel[label]
	out := make([]*Node, 0, len(ids))
	for id := range ids {
		out = append(out, CopyNode(m.nodes[id]))
	}
	sortNodes(out)
	return out, nil
}

// GetNodesByProperty returns nodes whose property key equals value.
func (m *MemoryEngine) GetNodesByProperty(key string, value any) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	var out []*Node
	for _, n := range m.nodes {
		if v, ok := n.Properties[key]; ok && PropertyEqual(v, value) {
			out = append(out, CopyNode(n))
		}
	}
	sortNodes(out)
	return out, nil
}

// GetEdgesByType returns edges of the given type, ordered by id.
func (m *MemoryEngine) GetEdgesByType(edgeType string) ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	ids := m.edgesByType[edgeType]
	out := make([]*Edge, 0, len(ids))
	for id := range ids {
		out = append(out, CopyEdge(m.edges[id]))
	}
	sortEdges(out)
	return out, nil
}

// GetNodeEdges returns the node's incident edges in both directions.
func (m *MemoryEngine) GetNodeEdges(id NodeID) ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	if _, ok := m.nodes[id]; !ok {
		return nil, ErrNotFound
	}
	ids := m.incidentEdgeIDs(id)
	out := make([]*Edge, 0, len(ids))
	for _, edgeID := range ids {
		out = append(out, CopyEdge(m.edges[edgeID]))
	}
	return out, nil
}

// NodeCount returns the number of stored nodes.
func (m *MemoryEngine) NodeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of stored edges.
func (m *MemoryEngine) EdgeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.edges)), nil
}

// Close marks the engine closed. Further calls return ErrStorageClosed.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ============================================================================
// Index helpers (callers hold m.mu)
// ============================================================================

func (m *MemoryEngine) indexLabels(id NodeID, labels []string) {
	for _, label := range labels {
		addToIndex(m.nodesByLabel, label, id)
	}
}

func (m *MemoryEngine) unindexLabels(id NodeID, labels []string) {
	for _, label := range labels {
		removeFromIndex(m.nodesByLabel, label, id)
	}
}

// incidentEdgeIDs returns outgoing then incoming edge ids, each sorted, with
// self-loops reported once.
func (m *MemoryEngine) incidentEdgeIDs(id NodeID) []EdgeID {
	seen := make(map[EdgeID]struct{})
	var out []EdgeID
	for _, set := range []map[EdgeID]struct{}{m.outgoingEdges[id], m.incomingEdges[id]} {
		start := len(out)
		for edgeID := range set {
			if _, dup := seen[edgeID]; dup {
				continue
			}
			seen[edgeID] = struct{}{}
			out = append(out, edgeID)
		}
		slices.Sort(out[start:])
	}
	return out
}

func (m *MemoryEngine) removeEdge(id EdgeID) {
	edge, ok := m.edges[id]
	if !ok {
		return
	}
	removeFromIndex(m.edgesByType, edge.Type, id)
	removeFromIndex(m.outgoingEdges, edge.StartNode, id)
	removeFromIndex(m.incomingEdges, edge.EndNode, id)
	delete(m.edges, id)
}

func addToIndex[K comparable, V comparable](index map[K]map[V]struct{}, key K, id V) {
	set, ok := index[key]
	if !ok {
		set = make(map[V]struct{})
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeFromIndex[K comparable, V comparable](index map[K]map[V]struct{}, key K, id V) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}

var _ Engine = (*MemoryEngine)(nil)

// ============================================================================
// Cursors
// ============================================================================

// idCursor replays an id list snapshotted under the engine lock. The memory
// engine already holds every entity, so the snapshot only adds the ids.
type idCursor struct {
	ids []string
	pos int
}

func (c *idCursor) Next() (string, bool, error) {
	if c.pos >= len(c.ids) {
		return "", false, nil
	}
	id := c.ids[c.pos]
	c.pos++
	return id, true, nil
}

func (c *idCursor) Close() error {
	c.ids = nil
	return nil
}

func sortedIDs[K ~string, V any](m map[K]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, string(id))
	}
	slices.Sort(ids)
	return ids
}

// ScanNodes streams every node id.
func (m *MemoryEngine) ScanNodes() (Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	return &idCursor{ids: sortedIDs(m.nodes)}, nil
}

// ScanNodesByLabel streams ids of nodes carrying label.
func (m *MemoryEngine) ScanNodesByLabel(label string) (Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	return &idCursor{ids: sortedIDs(m.nodesByLabel[label])}, nil
}

// ScanNodesByProperty streams ids of nodes whose property key equals value.
func (m *MemoryEngine) ScanNodesByProperty(key string, value any) (Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	var ids []string
	for id, n := range m.nodes {
		if v, ok := n.Properties[key]; ok && PropertyEqual(v, value) {
			ids = append(ids, string(id))
		}
	}
	slices.Sort(ids)
	return &idCursor{ids: ids}, nil
}

// ScanEdges streams every edge id.
func (m *MemoryEngine) ScanEdges() (Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	return &idCursor{ids: sortedIDs(m.edges)}, nil
}

// ScanEdgesByType streams ids of edges of edgeType.
func (m *MemoryEngine) ScanEdgesByType(edgeType string) (Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	return &idCursor{ids: sortedIDs(m.edgesByType[edgeType])}, nil
}
