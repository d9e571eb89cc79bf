package write

import (
	"sort"

	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/value"
)

// CreateNodeOp describes CREATE (variable:Labels {properties}).
type CreateNodeOp struct {
	Variable   string
	Labels     []string
	Properties map[string]value.Value
}

// CreateRelationshipOp describes CREATE (from)-[variable:Type {properties}]->(to).
type CreateRelationshipOp struct {
	Variable   string
	From, To   int64
	Type       string
	Weight     float64
	Properties map[string]value.Value
}

// CreateNode inserts a node and binds Variable to it.
func (c *Context) CreateNode(op CreateNodeOp) (int64, error) {
	var id int64
	err := c.run("create-node", func() error {
		if err := c.validateNode(op.Variable, op.Labels, op.Properties); err != nil {
			return err
		}
		var err error
		if id, err = c.allocNodeID(); err != nil {
			return err
		}
		rec := &Record{Kind: OpCreateNode, NodeID: id, Node: newNode(id, op.Labels, op.Properties)}
		if err := c.execute(rec); err != nil {
			return err
		}
		return c.bind(op.Variable, value.Node(id))
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateRelationship inserts a relationship between two existing nodes.
func (c *Context) CreateRelationship(op CreateRelationshipOp) (int64, error) {
	var id int64
	err := c.run("create-relationship", func() error {
		if err := c.validateRelationship(op.Variable, op.Type, op.Properties); err != nil {
			return err
		}
		if err := c.requireNode("create-relationship", op.From); err != nil {
			return err
		}
		if err := c.requireNode("create-relationship", op.To); err != nil {
			return err
		}
		var err error
		if id, err = c.allocRelID(); err != nil {
			return err
		}
		rec := &Record{
			Kind:   OpCreateRelationship,
			RelID:  id,
			NodeID: op.From,
			Edge:   newEdge(id, op.From, op.To, op.Type, op.Weight, op.Properties),
		}
		if err := c.execute(rec); err != nil {
			return err
		}
		return c.bind(op.Variable, value.Rel(id))
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SetProperty sets key on a node or relationship ref. Setting Null removes
// the property.
func (c *Context) SetProperty(target value.Value, key string, v value.Value) error {
	if v.IsNull() {
		return c.RemoveProperty(target, key)
	}
	return c.run("set-property", func() error {
		return c.setProperty(target, key, v)
	})
}

func (c *Context) setProperty(target value.Value, key string, v value.Value) error {
	if err := c.opts.Limits.validateProperty(key, v); err != nil {
		return err
	}
	rec, err := c.propertyRecord("set-property", OpSetProperty, target, key)
	if err != nil {
		return err
	}
	rec.NewValue = v.ToGo()
	return c.execute(rec)
}

// RemoveProperty deletes key from a node or relationship ref. Removing a
// missing property is logged and succeeds.
func (c *Context) RemoveProperty(target value.Value, key string) error {
	return c.run("remove-property", func() error {
		if err := c.opts.Limits.ValidateName("property", key); err != nil {
			return err
		}
		rec, err := c.propertyRecord("remove-property", OpRemoveProperty, target, key)
		if err != nil {
			return err
		}
		return c.execute(rec)
	})
}

func (c *Context) propertyRecord(op string, kind OpKind, target value.Value, key string) (*Record, error) {
	id, _ := target.ID()
	switch target.Kind() {
	case value.KindNode:
		if err := c.requireNode(op, id); err != nil {
			return nil, err
		}
		return &Record{Kind: kind, NodeID: id, Key: key}, nil
	case value.KindRelationship:
		if err := c.requireRel(op, id); err != nil {
			return nil, err
		}
		return &Record{Kind: kind, RelID: id, OnRelationship: true, Key: key}, nil
	}
	return nil, qerr.New(qerr.KindTypeMismatch, op, "target must be a Node or Relationship, got %s", target.Kind())
}

// SetLabels adds labels to a node. Labels it already carries are kept once.
func (c *Context) SetLabels(node int64, labels ...string) error {
	return c.labelOp("set-labels", OpSetLabel, node, labels)
}

// RemoveLabels removes labels from a node. Absent labels are ignored.
func (c *Context) RemoveLabels(node int64, labels ...string) error {
	return c.labelOp("remove-labels", OpRemoveLabel, node, labels)
}

func (c *Context) labelOp(op string, kind OpKind, node int64, labels []string) error {
	return c.run(op, func() error {
		if len(labels) == 0 {
			return qerr.New(qerr.KindMisuse, op, "no labels given")
		}
		if err := c.opts.Limits.validateLabels(labels); err != nil {
			return err
		}
		if err := c.requireNode(op, node); err != nil {
			return err
		}
		if kind == OpSetLabel && c.opts.Limits.MaxLabels > 0 {
			if err := c.flush(); err != nil {
				return err
			}
			n, err := c.store.GetNode(storage.NodeID(storage.FormatID(node)))
			if err != nil {
				return storageErr(op, err)
			}
			if got := len(addLabels(n.Labels, labels)); got > c.opts.Limits.MaxLabels {
				return qerr.New(qerr.KindRange, op, "node %d would carry %d labels, limit is %d",
					node, got, c.opts.Limits.MaxLabels)
			}
		}
		return c.execute(&Record{Kind: kind, NodeID: node, Labels: append([]string(nil), labels...)})
	})
}

// DeleteNode deletes a node without relationships. A node with any
// incident relationship is left untouched and ConstraintViolation returned.
func (c *Context) DeleteNode(node int64) error {
	return c.run("delete-node", func() error {
		if err := c.requireNode("delete-node", node); err != nil {
			return err
		}
		if err := c.flush(); err != nil {
			return err
		}
		edges, err := c.store.GetNodeEdges(storage.NodeID(storage.FormatID(node)))
		if err != nil {
			return storageErr("delete-node", err)
		}
		if len(edges) > 0 {
			return qerr.New(qerr.KindConstraint, "delete-node",
				"node %d still has %d relationships, use DETACH DELETE", node, len(edges))
		}
		return c.execute(&Record{Kind: OpDeleteNode, NodeID: node})
	})
}

// DetachDeleteNode deletes every relationship incident to node, each
// logged on its own, then the node.
func (c *Context) DetachDeleteNode(node int64) error {
	return c.run("detach-delete-node", func() error {
		if err := c.requireNode("detach-delete-node", node); err != nil {
			return err
		}
		if err := c.flush(); err != nil {
			return err
		}
		edges, err := c.store.GetNodeEdges(storage.NodeID(storage.FormatID(node)))
		if err != nil {
			return storageErr("detach-delete-node", err)
		}
		for _, e := range edges {
			id, err := storage.ParseID(string(e.ID))
			if err != nil {
				return qerr.Wrap(qerr.KindStorage, "detach-delete-node", err)
			}
			if err := c.execute(&Record{Kind: OpDeleteRelationship, RelID: id}); err != nil {
				return err
			}
		}
		return c.execute(&Record{Kind: OpDetachDeleteNode, NodeID: node})
	})
}

// DeleteRelationship deletes one relationship.
func (c *Context) DeleteRelationship(rel int64) error {
	return c.run("delete-relationship", func() error {
		if err := c.requireRel("delete-relationship", rel); err != nil {
			return err
		}
		return c.execute(&Record{Kind: OpDeleteRelationship, RelID: rel})
	})
}

// ============================================================================
// Helpers
// ============================================================================

func (c *Context) validateNode(variable string, labels []string, props map[string]value.Value) error {
	l := c.opts.Limits
	if err := l.validateVariable(variable); err != nil {
		return err
	}
	if err := l.validateLabels(labels); err != nil {
		return err
	}
	return l.validateProperties(props)
}

func (c *Context) validateRelationship(variable, relType string, props map[string]value.Value) error {
	l := c.opts.Limits
	if err := l.validateVariable(variable); err != nil {
		return err
	}
	if err := l.ValidateName("relationship type", relType); err != nil {
		return err
	}
	return l.validateProperties(props)
}

func newNode(id int64, labels []string, props map[string]value.Value) *storage.Node {
	return &storage.Node{
		ID:         storage.NodeID(storage.FormatID(id)),
		Labels:     dedupe(labels),
		Properties: toStorage(props),
	}
}

func newEdge(id, from, to int64, relType string, weight float64, props map[string]value.Value) *storage.Edge {
	return &storage.Edge{
		ID:         storage.EdgeID(storage.FormatID(id)),
		StartNode:  storage.NodeID(storage.FormatID(from)),
		EndNode:    storage.NodeID(storage.FormatID(to)),
		Type:       relType,
		Weight:     weight,
		Properties: toStorage(props),
	}
}

func dedupe(labels []string) []string {
	return addLabels(nil, labels)
}

// sortedKeys gives map iteration a fixed order so logs and merges are
// reproducible.
func sortedKeys(m map[string]value.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
