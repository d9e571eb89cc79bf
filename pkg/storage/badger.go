// BadgerEngine provides persistent disk-based storage using BadgerDB.
package storage

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization.
// Using single-byte prefixes for efficiency.
const (
	prefixNode          = byte(0x01) // node:nodeID -> Node
	prefixEdge          = byte(0x02) // edge:edgeID -> Edge
	prefixLabelIndex    = byte(0x03) // label:labelName:nodeID -> {}
	prefixOutgoingIndex = byte(0x04) // outgoing:nodeID:edgeID -> {}
	prefixIncomingIndex = byte(0x05) // incoming:nodeID:edgeID -> {}
	prefixEdgeTypeIndex = byte(0x06) // edgetype:type:edgeID -> {}
	prefixPropertyIndex = byte(0x07) // prop:key:digest:nodeID -> {}
)

const keySep = byte(0x00)

// BadgerOptions configures a BadgerEngine.
type BadgerOptions struct {
	DataDir    string
	InMemory   bool
	SyncWrites bool
	Serializer Serializer
}

// BadgerEngine provides persistent storage using BadgerDB.
//
// Key Structure:
//   - Nodes: 0x01 + nodeID -> record(Node)
//   - Edges: 0x02 + edgeID -> record(Edge)
//   - Label Index: 0x03 + label + 0x00 + nodeID -> empty
//   - Outgoing Index: 0x04 + nodeID + 0x00 + edgeID -> empty
//   - Incoming Index: 0x05 + nodeID + 0x00 + edgeID -> empty
//   - Edge Type Index: 0x06 + type + 0x00 + edgeID -> empty
//   - Property Index: 0x07 + key + 0x00 + blake2b(value)[:16] + nodeID -> empty
//
// Records carry a small header naming their serializer (gob or msgpack), so
// a store written with one serializer stays readable after switching.
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("/path/to/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
type BadgerEngine struct {
	db         *badger.DB
	serializer Serializer
	inMemory   bool

	mu     sync.RWMutex
	closed bool

	// Cached counts, updated after each committed write.
	nodeCount atomic.Int64
	edgeCount atomic.Int64
}

// NewBadgerEngine opens (or creates) a persistent store in dataDir.
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerEngineInMemory creates a Badger store that never touches disk.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{InMemory: true})
}

// NewBadgerEngineWithOptions opens a Badger store with explicit options.
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	serializer, err := ParseSerializer(string(opts.Serializer))
	if err != nil {
		return nil, err
	}

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.DataDir == "" {
			return nil, fmt.Errorf("badger data directory is required")
		}
		badgerOpts = badger.DefaultOptions(opts.DataDir)
	}
	badgerOpts = badgerOpts.WithSyncWrites(opts.SyncWrites).WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	b := &BadgerEngine{db: db, serializer: serializer, inMemory: opts.InMemory}
	if err := b.loadCounts(); err != nil {
		db.Close()
		return nil, err
	}
	if !opts.InMemory {
		log.Printf("📂 badger store opened at %s (serializer=%s, nodes=%d, edges=%d)",
			opts.DataDir, serializer, b.nodeCount.Load(), b.edgeCount.Load())
	}
	return b, nil
}

// IsInMemory returns true if the engine is running in memory-only mode.
func (b *BadgerEngine) IsInMemory() bool {
	return b.inMemory
}

// ============================================================================
// Key helpers
// ============================================================================

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

func indexPrefix(prefix byte, name string) []byte {
	key := make([]byte, 0, len(name)+2)
	key = append(key, prefix)
	key = append(key, name...)
	return append(key, keySep)
}

func labelIndexKey(label string, id NodeID) []byte {
	return append(indexPrefix(prefixLabelIndex, label), []byte(id)...)
}

func outgoingIndexKey(from NodeID, id EdgeID) []byte {
	return append(indexPrefix(prefixOutgoingIndex, string(from)), []byte(id)...)
}

func incomingIndexKey(to NodeID, id EdgeID) []byte {
	return append(indexPrefix(prefixIncomingIndex, string(to)), []byte(id)...)
}

func edgeTypeIndexKey(edgeType string, id EdgeID) []byte {
	return append(indexPrefix(prefixEdgeTypeIndex, edgeType), []byte(id)...)
}

func propertyIndexPrefix(key string, value any) ([]byte, error) {
	digest, err := propertyDigest(value)
	if err != nil {
		return nil, err
	}
	return append(indexPrefix(prefixPropertyIndex, key), digest...), nil
}

// idFromIndexKey returns the trailing id of an index key given its prefix.
func idFromIndexKey(key, prefix []byte) string {
	return string(key[len(prefix):])
}

// ============================================================================
// Transaction helpers
// ============================================================================

func (b *BadgerEngine) ensureOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

func (b *BadgerEngine) view(fn func(txn *badger.Txn) error) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return b.db.View(fn)
}

func (b *BadgerEngine) update(fn func(txn *badger.Txn) error) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return b.db.Update(fn)
}

// scanKeys calls fn with the suffix of every key under prefix, in key order.
func scanKeys(txn *badger.Txn, prefix []byte, fn func(suffix string) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := fn(idFromIndexKey(it.Item().Key(), prefix)); err != nil {
			if errors.Is(err, ErrIterationStopped) {
				return nil
			}
			return err
		}
	}
	return nil
}

// scanValues calls fn with the value of every key under prefix.
func scanValues(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func getNodeTxn(txn *badger.Txn, id NodeID) (*Node, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var node *Node
	err = item.Value(func(val []byte) error {
		node, err = decodeNode(val)
		return err
	})
	return node, err
}

func getEdgeTxn(txn *badger.Txn, id EdgeID) (*Edge, error) {
	item, err := txn.Get(edgeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var edge *Edge
	err = item.Value(func(val []byte) error {
		edge, err = decodeEdge(val)
		return err
	})
	return edge, err
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ============================================================================
// Node Operations
// ============================================================================

// NodeExists reports whether a node with id is stored.
func (b *BadgerEngine) NodeExists(id NodeID) (bool, error) {
	var exists bool
	err := b.view(func(txn *badger.Txn) error {
		var err error
		exists, err = keyExists(txn, nodeKey(id))
		return err
	})
	return exists, err
}

// CreateNode stores a new node with its label and property indexes.
func (b *BadgerEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	stored := CopyNode(node)
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	err := b.update(func(txn *badger.Txn) error {
		exists, err := keyExists(txn, nodeKey(stored.ID))
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyExists
		}
		return b.putNodeTxn(txn, stored, nil)
	})
	if err == nil {
		b.nodeCount.Add(1)
	}
	return err
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	var node *Node
	err := b.view(func(txn *badger.Txn) error {
		var err error
		node, err = getNodeTxn(txn, id)
		return err
	})
	return node, err
}

// UpdateNode replaces labels and properties of an existing node, keeping
// indexes in step.
func (b *BadgerEngine) UpdateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	return b.update(func(txn *badger.Txn) error {
		existing, err := getNodeTxn(txn, node.ID)
		if err != nil {
			return err
		}
		stored := CopyNode(node)
		stored.CreatedAt = existing.CreatedAt
		stored.UpdatedAt = time.Now()
		return b.putNodeTxn(txn, stored, existing)
	})
}

// DeleteNode removes a node. Without detach, a node with incident edges is
// rejected with ErrHasRelationships.
func (b *BadgerEngine) DeleteNode(id NodeID, detach bool) error {
	var removedEdges int64
	err := b.update(func(txn *badger.Txn) error {
		node, err := getNodeTxn(txn, id)
		if err != nil {
			return err
		}
		if !detach {
			if has, err := hasEdgesTxn(txn, id); err != nil {
				return err
			} else if has {
				return ErrHasRelationships
			}
			return deleteNodeKeysTxn(txn, node)
		}
		edgeIDs, err := incidentEdgeIDsTxn(txn, id)
		if err != nil {
			return err
		}
		for _, edgeID := range edgeIDs {
			edge, err := getEdgeTxn(txn, edgeID)
			if err != nil {
				return err
			}
			if err := deleteEdgeKeysTxn(txn, edge); err != nil {
				return err
			}
			removedEdges++
		}
		return deleteNodeKeysTxn(txn, node)
	})
	if err == nil {
		b.nodeCount.Add(-1)
		b.edgeCount.Add(-removedEdges)
	}
	return err
}

func (b *BadgerEngine) putNodeTxn(txn *badger.Txn, node, prev *Node) error {
	if prev != nil {
		if err := deleteNodeIndexesTxn(txn, prev); err != nil {
			return err
		}
	}
	data, err := b.serializer.encodeNode(node)
	if err != nil {
		return err
	}
	if err := txn.Set(nodeKey(node.ID), data); err != nil {
		return err
	}
	for _, label := range node.Labels {
		if err := txn.Set(labelIndexKey(label, node.ID), []byte{}); err != nil {
			return err
		}
	}
	for key, val := range node.Properties {
		prefix, err := propertyIndexPrefix(key, val)
		if err != nil {
			return err
		}
		if err := txn.Set(append(prefix, []byte(node.ID)...), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

func deleteNodeIndexesTxn(txn *badger.Txn, node *Node) error {
	for _, label := range node.Labels {
		if err := txn.Delete(labelIndexKey(label, node.ID)); err != nil {
			return err
		}
	}
	for key, val := range node.Properties {
		prefix, err := propertyIndexPrefix(key, val)
		if err != nil {
			return err
		}
		if err := txn.Delete(append(prefix, []byte(node.ID)...)); err != nil {
			return err
		}
	}
	return nil
}

func deleteNodeKeysTxn(txn *badger.Txn, node *Node) error {
	if err := deleteNodeIndexesTxn(txn, node); err != nil {
		return err
	}
	return txn.Delete(nodeKey(node.ID))
}

func incidentEdgeIDsTxn(txn *badger.Txn, id NodeID) ([]EdgeID, error) {
	seen := make(map[EdgeID]struct{})
	var out []EdgeID
	collect := func(suffix string) error {
		edgeID := EdgeID(suffix)
		if _, dup := seen[edgeID]; !dup {
			seen[edgeID] = struct{}{}
			out = append(out, edgeID)
		}
		return nil
	}
	if err := scanKeys(txn, indexPrefix(prefixOutgoingIndex, string(id)), collect); err != nil {
		return nil, err
	}
	if err := scanKeys(txn, indexPrefix(prefixIncomingIndex, string(id)), collect); err != nil {
		return nil, err
	}
	return out, nil
}

// hasEdgesTxn reports whether any edge starts or ends at id, stopping at
// the first index key.
func hasEdgesTxn(txn *badger.Txn, id NodeID) (bool, error) {
	found := false
	stop := func(string) error {
		found = true
		return ErrIterationStopped
	}
	for _, prefix := range [...]byte{prefixOutgoingIndex, prefixIncomingIndex} {
		if err := scanKeys(txn, indexPrefix(prefix, string(id)), stop); err != nil || found {
			return found, err
		}
	}
	return false, nil
}

// ============================================================================
// Edge Operations
// ============================================================================

// EdgeExists reports whether an edge with id is stored.
func (b *BadgerEngine) EdgeExists(id EdgeID) (bool, error) {
	var exists bool
	err := b.view(func(txn *badger.Txn) error {
		var err error
		exists, err = keyExists(txn, edgeKey(id))
		return err
	})
	return exists, err
}

// CreateEdge stores a new edge. Both endpoints must exist.
func (b *BadgerEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}

	stored := CopyEdge(edge)
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	err := b.update(func(txn *badger.Txn) error {
		exists, err := keyExists(txn, edgeKey(stored.ID))
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyExists
		}
		for _, endpoint := range []NodeID{stored.StartNode, stored.EndNode} {
			ok, err := keyExists(txn, nodeKey(endpoint))
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidEdge
			}
		}
		if err := b.putEdgeTxn(txn, stored); err != nil {
			return err
		}
		for _, key := range [][]byte{
			outgoingIndexKey(stored.StartNode, stored.ID),
			incomingIndexKey(stored.EndNode, stored.ID),
			edgeTypeIndexKey(stored.Type, stored.ID),
		} {
			if err := txn.Set(key, []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		b.edgeCount.Add(1)
	}
	return err
}

// GetEdge retrieves an edge by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	var edge *Edge
	err := b.view(func(txn *badger.Txn) error {
		var err error
		edge, err = getEdgeTxn(txn, id)
		return err
	})
	return edge, err
}

// UpdateEdge replaces properties and weight of an existing edge.
func (b *BadgerEngine) UpdateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	return b.update(func(txn *badger.Txn) error {
		existing, err := getEdgeTxn(txn, edge.ID)
		if err != nil {
			return err
		}
		existing.Properties = CopyProperties(edge.Properties)
		existing.Weight = edge.Weight
		existing.UpdatedAt = time.Now()
		return b.putEdgeTxn(txn, existing)
	})
}

// DeleteEdge removes an edge and its index entries.
func (b *BadgerEngine) DeleteEdge(id EdgeID) error {
	err := b.update(func(txn *badger.Txn) error {
		edge, err := getEdgeTxn(txn, id)
		if err != nil {
			return err
		}
		return deleteEdgeKeysTxn(txn, edge)
	})
	if err == nil {
		b.edgeCount.Add(-1)
	}
	return err
}

func (b *BadgerEngine) putEdgeTxn(txn *badger.Txn, edge *Edge) error {
	data, err := b.serializer.encodeEdge(edge)
	if err != nil {
		return err
	}
	return txn.Set(edgeKey(edge.ID), data)
}

func deleteEdgeKeysTxn(txn *badger.Txn, edge *Edge) error {
	for _, key := range [][]byte{
		outgoingIndexKey(edge.StartNode, edge.ID),
		incomingIndexKey(edge.EndNode, edge.ID),
		edgeTypeIndexKey(edge.Type, edge.ID),
		edgeKey(edge.ID),
	} {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Scans
// ============================================================================

// AllNodes returns every node in key order.
func (b *BadgerEngine) AllNodes() ([]*Node, error) {
	var nodes []*Node
	err := b.view(func(txn *badger.Txn) error {
		return scanValues(txn, []byte{prefixNode}, func(val []byte) error {
			node, err := decodeNode(val)
			if err != nil {
				return err
			}
			nodes = append(nodes, node)
			return nil
		})
	})
	return nodes, err
}

// AllEdges returns every edge in key order.
func (b *BadgerEngine) AllEdges() ([]*Edge, error) {
	var edges []*Edge
	err := b.view(func(txn *badger.Txn) error {
		return scanValues(txn, []byte{prefixEdge}, func(val []byte) error {
			edge, err := decodeEdge(val)
			if err != nil {
				return err
			}
			edges = append(edges, edge)
			return nil
		})
	})
	return edges, err
}

// GetNodesByLabel returns nodes carrying label using the label index.
func (b *BadgerEngine) GetNodesByLabel(label string) ([]*Node, error) {
	var nodes []*Node
	err := b.view(func(txn *badger.Txn) error {
		return scanKeys(txn, indexPrefix(prefixLabelIndex, label), func(suffix string) error {
			node, err := getNodeTxn(txn, NodeID(suffix))
			if err != nil {
				return err
			}
			nodes = append(nodes, node)
			return nil
		})
	})
	return nodes, err
}

// GetNodesByProperty returns nodes whose property key equals value, using
// the property digest index and confirming each candidate.
func (b *BadgerEngine) GetNodesByProperty(key string, value any) ([]*Node, error) {
	prefix, err := propertyIndexPrefix(key, value)
	if err != nil {
		return nil, err
	}
	var nodes []*Node
	err = b.view(func(txn *badger.Txn) error {
		return scanKeys(txn, prefix, func(suffix string) error {
			node, err := getNodeTxn(txn, NodeID(suffix))
			if err != nil {
				return err
			}
			if v, ok := node.Properties[key]; ok && PropertyEqual(v, value) {
				nodes = append(nodes, node)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortNodes(nodes)
	return nodes, nil
}

// GetEdgesByType returns edges of the given type using the type index.
func (b *BadgerEngine) GetEdgesByType(edgeType string) ([]*Edge, error) {
	var edges []*Edge
	err := b.view(func(txn *badger.Txn) error {
		return scanKeys(txn, indexPrefix(prefixEdgeTypeIndex, edgeType), func(suffix string) error {
			edge, err := getEdgeTxn(txn, EdgeID(suffix))
			if err != nil {
				return err
			}
			edges = append(edges, edge)
			return nil
		})
	})
	return edges, err
}

// GetNodeEdges returns outgoing then incoming edges of the node.
func (b *BadgerEngine) GetNodeEdges(id NodeID) ([]*Edge, error) {
	var edges []*Edge
	err := b.view(func(txn *badger.Txn) error {
		if ok, err := keyExists(txn, nodeKey(id)); err != nil {
			return err
		} else if !ok {
			return ErrNotFound
		}
		ids, err := incidentEdgeIDsTxn(txn, id)
		if err != nil {
			return err
		}
		for _, edgeID := range ids {
			edge, err := getEdgeTxn(txn, edgeID)
			if err != nil {
				return err
			}
			edges = append(edges, edge)
		}
		return nil
	})
	return edges, err
}

// ============================================================================
// Cursors
// ============================================================================

// badgerCursor walks the keys under one prefix inside a read-only
// transaction it holds until Close. Values are never prefetched; ids come
// from the key suffix.
type badgerCursor struct {
	txn    *badger.Txn
	it     *badger.Iterator
	prefix []byte
	// accept filters ids, for index entries that need confirming.
	accept func(txn *badger.Txn, id string) (bool, error)
	closed bool
}

func (b *BadgerEngine) newCursor(prefix []byte, accept func(*badger.Txn, string) (bool, error)) (Cursor, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	txn := b.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	it.Seek(prefix)
	return &badgerCursor{txn: txn, it: it, prefix: prefix, accept: accept}, nil
}

func (c *badgerCursor) Next() (string, bool, error) {
	for !c.closed && c.it.ValidForPrefix(c.prefix) {
		id := idFromIndexKey(c.it.Item().Key(), c.prefix)
		c.it.Next()
		if c.accept != nil {
			ok, err := c.accept(c.txn, id)
			if err != nil {
				return "", false, err
			}
			if !ok {
				continue
			}
		}
		return id, true, nil
	}
	return "", false, nil
}

func (c *badgerCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.it.Close()
	c.txn.Discard()
	return nil
}

// ScanNodes streams node ids in key order.
func (b *BadgerEngine) ScanNodes() (Cursor, error) {
	return b.newCursor([]byte{prefixNode}, nil)
}

// ScanNodesByLabel streams ids from the label index.
func (b *BadgerEngine) ScanNodesByLabel(label string) (Cursor, error) {
	return b.newCursor(indexPrefix(prefixLabelIndex, label), nil)
}

// ScanNodesByProperty streams ids from the property digest index,
// confirming each candidate's value.
func (b *BadgerEngine) ScanNodesByProperty(key string, value any) (Cursor, error) {
	prefix, err := propertyIndexPrefix(key, value)
	if err != nil {
		return nil, err
	}
	return b.newCursor(prefix, func(txn *badger.Txn, id string) (bool, error) {
		node, err := getNodeTxn(txn, NodeID(id))
		if err != nil {
			return false, err
		}
		v, ok := node.Properties[key]
		return ok && PropertyEqual(v, value), nil
	})
}

// ScanEdges streams edge ids in key order.
func (b *BadgerEngine) ScanEdges() (Cursor, error) {
	return b.newCursor([]byte{prefixEdge}, nil)
}

// ScanEdgesByType streams ids from the edge type index.
func (b *BadgerEngine) ScanEdgesByType(edgeType string) (Cursor, error) {
	return b.newCursor(indexPrefix(prefixEdgeTypeIndex, edgeType), nil)
}

// NodeCount returns the cached node count.
func (b *BadgerEngine) NodeCount() (int64, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	return b.nodeCount.Load(), nil
}

// EdgeCount returns the cached edge count.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	return b.edgeCount.Load(), nil
}

func (b *BadgerEngine) loadCounts() error {
	nodes, err := b.countKeys([]byte{prefixNode})
	if err != nil {
		return err
	}
	edges, err := b.countKeys([]byte{prefixEdge})
	if err != nil {
		return err
	}
	b.nodeCount.Store(int64(nodes))
	b.edgeCount.Store(int64(edges))
	return nil
}

// Sync flushes pending writes to disk.
func (b *BadgerEngine) Sync() error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	if b.inMemory {
		return nil
	}
	return b.db.Sync()
}

// Close closes the underlying database. Close is idempotent.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// countKeys counts keys under prefix.
func (b *BadgerEngine) countKeys(prefix []byte) (int, error) {
	n := 0
	err := b.view(func(txn *badger.Txn) error {
		return scanKeys(txn, prefix, func(string) error { n++; return nil })
	})
	return n, err
}

var (
	_ Engine = (*BadgerEngine)(nil)
	_ Syncer = (*BadgerEngine)(nil)
)
