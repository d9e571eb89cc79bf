// Package storage provides the graph store the execution core runs against.
//
// The Engine interface is the storage bridge: node and relationship CRUD,
// existence checks used by id generation, and the scans that back the
// iterator engine's leaf operators. Two implementations ship with the
// package:
//   - MemoryEngine: map-backed, for tests and ephemeral sessions
//   - BadgerEngine: persistent BadgerDB store with label, type, adjacency
//     and property indexes
//
// Ids are opaque strings at this layer. The execution core uses decimal
// integer ids so that NodeRef and RelationshipRef values stay numeric; see
// FormatID and ParseID.
//
// Example:
//
//	engine := storage.NewMemoryEngine()
//	defer engine.Close()
//
//	err := engine.CreateNode(&storage.Node{
//		ID:         storage.NodeID(storage.FormatID(1)),
//		Labels:     []string{"Person"},
//		Properties: map[string]any{"name": "Alice"},
//	})
package storage

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Common errors
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidData      = errors.New("invalid data")
	ErrInvalidEdge      = errors.New("invalid edge: start or end node not found")
	ErrStorageClosed    = errors.New("storage closed")
	ErrHasRelationships = errors.New("node still has relationships")
	ErrIterationStopped = errors.New("iteration stopped")
)

// NodeID uniquely identifies a node.
type NodeID string

// EdgeID uniquely identifies a relationship.
type EdgeID string

// Node is a graph node: labels plus a property map.
type Node struct {
	ID         NodeID
	Labels     []string
	Properties map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	ID         EdgeID
	StartNode  NodeID
	EndNode    NodeID
	Type       string
	Weight     float64
	Properties map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasLabel reports whether the node carries label (exact match).
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Engine is the storage bridge consumed by the execution core.
//
// All calls are synchronous and either succeed completely or return an
// error without partial effects. Returned nodes and edges are copies owned
// by the caller.
type Engine interface {
	// Nodes
	NodeExists(id NodeID) (bool, error)
	CreateNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	UpdateNode(node *Node) error
	// DeleteNode removes the node. Without detach a node with incident
	// edges is rejected with ErrHasRelationships; with detach its edges are
	// removed first.
	DeleteNode(id NodeID, detach bool) error

	// Edges
	EdgeExists(id EdgeID) (bool, error)
	CreateEdge(edge *Edge) error
	GetEdge(id EdgeID) (*Edge, error)
	UpdateEdge(edge *Edge) error
	DeleteEdge(id EdgeID) error

	// Scans, in store-defined (id) order
	AllNodes() ([]*Node, error)
	AllEdges() ([]*Edge, error)
	GetNodesByLabel(label string) ([]*Node, error)
	GetNodesByProperty(key string, value any) ([]*Node, error)
	GetEdgesByType(edgeType string) ([]*Edge, error)
	// GetNodeEdges returns every edge with the node as start or end.
	GetNodeEdges(id NodeID) ([]*Edge, error)

	// Cursors stream ids in the same order as the scans above without
	// loading the entities.
	ScanNodes() (Cursor, error)
	ScanNodesByLabel(label string) (Cursor, error)
	ScanNodesByProperty(key string, value any) (Cursor, error)
	ScanEdges() (Cursor, error)
	ScanEdgesByType(edgeType string) (Cursor, error)

	NodeCount() (int64, error)
	EdgeCount() (int64, error)

	Close() error
}

// Cursor is a pull-based id stream over one scan. It holds store resources
// (a read transaction for Badger) until Close. A Cursor is not safe for
// concurrent use.
type Cursor interface {
	// Next returns the next id; ok is false once the cursor is exhausted.
	Next() (id string, ok bool, err error)
	// Close releases the cursor. It is idempotent.
	Close() error
}

// Syncer is implemented by engines that can flush committed writes to
// durable storage.
type Syncer interface {
	Sync() error
}

// FormatID renders a numeric entity id as a storage id.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseID parses a storage id produced by FormatID.
func ParseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return n, nil
}

// CopyNode returns a deep copy of n.
func CopyNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Labels = append([]string(nil), n.Labels...)
	out.Properties = CopyProperties(n.Properties)
	return &out
}

// CopyEdge returns a deep copy of e.
func CopyEdge(e *Edge) *Edge {
	if e == nil {
		return nil
	}
	out := *e
	out.Properties = CopyProperties(e.Properties)
	return &out
}

// CopyProperties deep-copies a property map, including nested lists and maps.
func CopyProperties(props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = copyProperty(v)
	}
	return out
}

func copyProperty(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyProperty(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string]any:
		return CopyProperties(t)
	}
	return v
}

// PropertyEqual compares two property values after normalizing numeric
// widths, so int(1), int64(1) and a msgpack-decoded int8(1) are equal.
func PropertyEqual(a, b any) bool {
	return reflect.DeepEqual(normalizeProperty(a), normalizeProperty(b))
}

func normalizeProperty(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeProperty(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeProperty(e)
		}
		return out
	}
	return v
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

func sortEdges(edges []*Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
}
