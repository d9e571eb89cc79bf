package write

import (
	"slices"

	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/storage"
)

// capture records the state rec needs for undo. It runs immediately before
// apply, so in deferred mode the snapshot reflects the store at commit.
func (c *Context) capture(rec *Record) error {
	if rec.captured {
		return nil
	}
	switch rec.Kind {
	case OpSetProperty, OpRemoveProperty:
		props, err := c.targetProperties(rec)
		if err != nil {
			return err
		}
		rec.OldValue, rec.HadOld = props[rec.Key]
		rec.OldValue = copyValue(rec.OldValue)

	case OpSetLabel, OpRemoveLabel:
		n, err := c.store.GetNode(rec.nodeKey())
		if err != nil {
			return storageErr(rec.Kind.String(), err)
		}
		rec.OldLabels = append([]string(nil), n.Labels...)
		if rec.Kind == OpSetLabel {
			rec.NewLabels = addLabels(n.Labels, rec.Labels)
		} else {
			rec.NewLabels = removeLabels(n.Labels, rec.Labels)
		}

	case OpDeleteNode, OpDetachDeleteNode:
		n, err := c.store.GetNode(rec.nodeKey())
		if err != nil {
			return storageErr(rec.Kind.String(), err)
		}
		rec.NodeSnapshot = storage.CopyNode(n)
		if rec.Kind == OpDetachDeleteNode {
			edges, err := c.store.GetNodeEdges(rec.nodeKey())
			if err != nil {
				return storageErr(rec.Kind.String(), err)
			}
			rec.DetachedEdges = edges
		}

	case OpDeleteRelationship:
		e, err := c.store.GetEdge(rec.relKey())
		if err != nil {
			return storageErr(rec.Kind.String(), err)
		}
		rec.EdgeSnapshot = storage.CopyEdge(e)
	}
	rec.captured = true
	return nil
}

// apply performs rec against the store.
func (c *Context) apply(rec *Record) error {
	op := rec.Kind.String()
	switch rec.Kind {
	case OpCreateNode, OpMergeNode:
		if rec.Matched {
			return nil
		}
		return storageErr(op, c.store.CreateNode(storage.CopyNode(rec.Node)))

	case OpCreateRelationship, OpMergeRelationship:
		if rec.Matched {
			return nil
		}
		return storageErr(op, c.store.CreateEdge(storage.CopyEdge(rec.Edge)))

	case OpSetProperty:
		return c.updateProperties(rec, func(props map[string]any) {
			props[rec.Key] = copyValue(rec.NewValue)
		})

	case OpRemoveProperty:
		return c.updateProperties(rec, func(props map[string]any) {
			delete(props, rec.Key)
		})

	case OpSetLabel, OpRemoveLabel:
		return c.setLabels(rec.nodeKey(), rec.NewLabels, op)

	case OpDeleteNode:
		return storageErr(op, c.store.DeleteNode(rec.nodeKey(), false))

	case OpDetachDeleteNode:
		return storageErr(op, c.store.DeleteNode(rec.nodeKey(), true))

	case OpDeleteRelationship:
		return storageErr(op, c.store.DeleteEdge(rec.relKey()))
	}
	return qerr.New(qerr.KindMisuse, "apply", "unknown record kind %d", rec.Kind)
}

// invert undoes an applied rec.
func (c *Context) invert(rec *Record) error {
	op := "undo " + rec.Kind.String()
	switch rec.Kind {
	case OpCreateNode, OpMergeNode:
		if rec.Matched {
			return nil
		}
		// Anything still attached was created later in the transaction.
		return storageErr(op, c.store.DeleteNode(rec.nodeKey(), true))

	case OpCreateRelationship, OpMergeRelationship:
		if rec.Matched {
			return nil
		}
		return storageErr(op, c.store.DeleteEdge(rec.relKey()))

	case OpSetProperty, OpRemoveProperty:
		return c.updateProperties(rec, func(props map[string]any) {
			if rec.HadOld {
				props[rec.Key] = copyValue(rec.OldValue)
			} else {
				delete(props, rec.Key)
			}
		})

	case OpSetLabel, OpRemoveLabel:
		return c.setLabels(rec.nodeKey(), rec.OldLabels, op)

	case OpDeleteNode, OpDetachDeleteNode:
		if err := c.store.CreateNode(storage.CopyNode(rec.NodeSnapshot)); err != nil {
			return storageErr(op, err)
		}
		for _, e := range rec.DetachedEdges {
			if err := c.store.CreateEdge(storage.CopyEdge(e)); err != nil {
				return storageErr(op, err)
			}
		}
		return nil

	case OpDeleteRelationship:
		return storageErr(op, c.store.CreateEdge(storage.CopyEdge(rec.EdgeSnapshot)))
	}
	return qerr.New(qerr.KindMisuse, "undo", "unknown record kind %d", rec.Kind)
}

func (c *Context) targetProperties(rec *Record) (map[string]any, error) {
	if rec.OnRelationship {
		e, err := c.store.GetEdge(rec.relKey())
		if err != nil {
			return nil, storageErr(rec.Kind.String(), err)
		}
		return e.Properties, nil
	}
	n, err := c.store.GetNode(rec.nodeKey())
	if err != nil {
		return nil, storageErr(rec.Kind.String(), err)
	}
	return n.Properties, nil
}

// updateProperties reads the target entity, lets mutate edit its property
// map and writes it back.
func (c *Context) updateProperties(rec *Record, mutate func(map[string]any)) error {
	op := rec.Kind.String()
	if rec.OnRelationship {
		e, err := c.store.GetEdge(rec.relKey())
		if err != nil {
			return storageErr(op, err)
		}
		if e.Properties == nil {
			e.Properties = map[string]any{}
		}
		mutate(e.Properties)
		return storageErr(op, c.store.UpdateEdge(e))
	}
	n, err := c.store.GetNode(rec.nodeKey())
	if err != nil {
		return storageErr(op, err)
	}
	if n.Properties == nil {
		n.Properties = map[string]any{}
	}
	mutate(n.Properties)
	return storageErr(op, c.store.UpdateNode(n))
}

func (c *Context) setLabels(id storage.NodeID, labels []string, op string) error {
	n, err := c.store.GetNode(id)
	if err != nil {
		return storageErr(op, err)
	}
	n.Labels = append([]string(nil), labels...)
	return storageErr(op, c.store.UpdateNode(n))
}

func addLabels(current, add []string) []string {
	out := append([]string(nil), current...)
	for _, l := range add {
		if !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

func removeLabels(current, remove []string) []string {
	out := make([]string, 0, len(current))
	for _, l := range current {
		if !slices.Contains(remove, l) {
			out = append(out, l)
		}
	}
	return out
}

func copyValue(v any) any {
	if v == nil {
		return nil
	}
	return storage.CopyProperties(map[string]any{"v": v})["v"]
}
