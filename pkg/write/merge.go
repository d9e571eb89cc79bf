package write

import (
	"errors"

	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/value"
)

// MergeNodeOp describes
//
//	MERGE (variable:Labels {match})
//	  ON CREATE SET onCreate
//	  ON MATCH SET onMatch
type MergeNodeOp struct {
	Variable string
	Labels   []string
	Match    map[string]value.Value
	OnCreate map[string]value.Value
	OnMatch  map[string]value.Value
}

// MergeRelationshipOp describes MERGE (from)-[variable:Type {match}]->(to)
// with the same ON CREATE / ON MATCH branches.
type MergeRelationshipOp struct {
	Variable string
	From, To int64
	Type     string
	Match    map[string]value.Value
	OnCreate map[string]value.Value
	OnMatch  map[string]value.Value
}

// MergeResult reports which branch a merge took.
type MergeResult struct {
	ID         int64
	WasCreated bool
}

// MergeNode finds the first node, in store order, carrying every label and
// match property. When found, OnMatch is applied as one SetProperty per key;
// otherwise a node is created with Match and OnCreate combined. Either way
// Variable is bound to the node.
func (c *Context) MergeNode(op MergeNodeOp) (MergeResult, error) {
	var res MergeResult
	err := c.run("merge-node", func() error {
		l := c.opts.Limits
		if err := c.validateNode(op.Variable, op.Labels, mergeProps(op.Match, op.OnCreate)); err != nil {
			return err
		}
		if err := l.validateProperties(op.OnMatch); err != nil {
			return err
		}

		if err := c.flush(); err != nil {
			return err
		}
		found, err := c.findNode(op.Labels, op.Match)
		if err != nil {
			return err
		}
		if found != nil {
			id, err := storage.ParseID(string(found.ID))
			if err != nil {
				return qerr.Wrap(qerr.KindStorage, "merge-node", err)
			}
			if err := c.execute(&Record{Kind: OpMergeNode, NodeID: id, Matched: true}); err != nil {
				return err
			}
			if err := c.applyOnMatch(value.Node(id), op.OnMatch); err != nil {
				return err
			}
			res = MergeResult{ID: id}
			return c.bind(op.Variable, value.Node(id))
		}

		id, err := c.allocNodeID()
		if err != nil {
			return err
		}
		rec := &Record{Kind: OpMergeNode, NodeID: id, Node: newNode(id, op.Labels, mergeProps(op.Match, op.OnCreate))}
		if err := c.execute(rec); err != nil {
			return err
		}
		res = MergeResult{ID: id, WasCreated: true}
		return c.bind(op.Variable, value.Node(id))
	})
	if err != nil {
		return MergeResult{}, err
	}
	return res, nil
}

// MergeRelationship finds a relationship of Type from From to To carrying
// the match properties, with the same branches as MergeNode.
func (c *Context) MergeRelationship(op MergeRelationshipOp) (MergeResult, error) {
	var res MergeResult
	err := c.run("merge-relationship", func() error {
		if err := c.validateRelationship(op.Variable, op.Type, mergeProps(op.Match, op.OnCreate)); err != nil {
			return err
		}
		if err := c.opts.Limits.validateProperties(op.OnMatch); err != nil {
			return err
		}
		if err := c.requireNode("merge-relationship", op.From); err != nil {
			return err
		}
		if err := c.requireNode("merge-relationship", op.To); err != nil {
			return err
		}

		if err := c.flush(); err != nil {
			return err
		}
		found, err := c.findRelationship(op.From, op.To, op.Type, op.Match)
		if err != nil {
			return err
		}
		if found != nil {
			id, err := storage.ParseID(string(found.ID))
			if err != nil {
				return qerr.Wrap(qerr.KindStorage, "merge-relationship", err)
			}
			if err := c.execute(&Record{Kind: OpMergeRelationship, RelID: id, Matched: true}); err != nil {
				return err
			}
			if err := c.applyOnMatch(value.Rel(id), op.OnMatch); err != nil {
				return err
			}
			res = MergeResult{ID: id}
			return c.bind(op.Variable, value.Rel(id))
		}

		id, err := c.allocRelID()
		if err != nil {
			return err
		}
		rec := &Record{
			Kind:   OpMergeRelationship,
			RelID:  id,
			NodeID: op.From,
			Edge:   newEdge(id, op.From, op.To, op.Type, 0, mergeProps(op.Match, op.OnCreate)),
		}
		if err := c.execute(rec); err != nil {
			return err
		}
		res = MergeResult{ID: id, WasCreated: true}
		return c.bind(op.Variable, value.Rel(id))
	})
	if err != nil {
		return MergeResult{}, err
	}
	return res, nil
}

func (c *Context) applyOnMatch(target value.Value, props map[string]value.Value) error {
	for _, key := range sortedKeys(props) {
		v := props[key]
		if v.IsNull() {
			rec, err := c.propertyRecord("merge", OpRemoveProperty, target, key)
			if err != nil {
				return err
			}
			if err := c.execute(rec); err != nil {
				return err
			}
			continue
		}
		if err := c.setProperty(target, key, v); err != nil {
			return err
		}
	}
	return nil
}

// findNode returns the first node in store order matching every label and
// property, or nil.
func (c *Context) findNode(labels []string, match map[string]value.Value) (*storage.Node, error) {
	indexKey := ""
	for _, k := range sortedKeys(match) {
		if !match[k].IsNull() {
			indexKey = k
			break
		}
	}
	var (
		cursor storage.Cursor
		err    error
	)
	switch {
	case len(labels) > 0:
		cursor, err = c.store.ScanNodesByLabel(labels[0])
	case indexKey != "":
		cursor, err = c.store.ScanNodesByProperty(indexKey, match[indexKey].ToGo())
	default:
		cursor, err = c.store.ScanNodes()
	}
	if err != nil {
		return nil, storageErr("merge-node", err)
	}
	defer cursor.Close()

	for {
		id, ok, err := cursor.Next()
		if err != nil {
			return nil, storageErr("merge-node", err)
		}
		if !ok {
			return nil, nil
		}
		n, err := c.store.GetNode(storage.NodeID(id))
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storageErr("merge-node", err)
		}
		if hasAllLabels(n, labels) && propsMatch(n.Properties, match) {
			return n, nil
		}
	}
}

func (c *Context) findRelationship(from, to int64, relType string, match map[string]value.Value) (*storage.Edge, error) {
	edges, err := c.store.GetNodeEdges(storage.NodeID(storage.FormatID(from)))
	if err != nil {
		return nil, storageErr("merge-relationship", err)
	}
	start := storage.NodeID(storage.FormatID(from))
	end := storage.NodeID(storage.FormatID(to))
	for _, e := range edges {
		if e.StartNode == start && e.EndNode == end && e.Type == relType && propsMatch(e.Properties, match) {
			return e, nil
		}
	}
	return nil, nil
}

func hasAllLabels(n *storage.Node, labels []string) bool {
	for _, l := range labels {
		if !n.HasLabel(l) {
			return false
		}
	}
	return true
}

// propsMatch reports whether props holds every match entry. A Null match
// value requires the property to be absent.
func propsMatch(props map[string]any, match map[string]value.Value) bool {
	for k, want := range match {
		got, ok := props[k]
		if want.IsNull() {
			if ok {
				return false
			}
			continue
		}
		if !ok || !storage.PropertyEqual(got, want.ToGo()) {
			return false
		}
	}
	return true
}
