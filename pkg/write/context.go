// Package write implements graphexec's write-operation engine.
//
// A Context wraps one query's execution context and owns an append-only log
// of mutation records. Every mutation goes through the same steps:
//
//  1. validate names, sizes and referenced entities
//  2. allocate a fresh id, probing the store so the id is unused
//  3. capture undo state and append a Record to the log
//  4. apply the record through the storage bridge
//
// If apply fails the record is dropped and the store is left as it was.
// Rollback walks the log backwards and inverts every applied record.
//
// With DeferApply set, records logged inside an explicit transaction are
// only captured and applied when Commit runs, or earlier when a later
// mutation must read the store to decide what to log (MERGE lookups,
// delete relationship checks, label limits).
//
// Example:
//
//	w := write.New(ctx, write.DefaultOptions())
//	defer w.Close()
//
//	w.Begin()
//	id, err := w.CreateNode(write.CreateNodeOp{
//		Variable:   "n",
//		Labels:     []string{"Person"},
//		Properties: map[string]value.Value{"name": value.String("Alice")},
//	})
//	if err != nil {
//		return err
//	}
//	return w.Commit()
package write

import (
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/orneryd/graphexec/pkg/cypher"
	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/value"
)

// Options configures a write Context.
type Options struct {
	// AutoCommit wraps each mutation issued outside a transaction in its
	// own transaction. Without it such mutations are rejected.
	AutoCommit bool
	// DeferApply holds mutations made inside an explicit transaction until
	// Commit.
	DeferApply bool
	// Verbose logs transaction boundaries.
	Verbose bool
	Limits  Limits
}

// DefaultOptions enables auto-commit with eager apply and stock limits.
func DefaultOptions() Options {
	return Options{AutoCommit: true, Limits: DefaultLimits()}
}

// Context is the write state of one query. It is not safe for concurrent
// use; concurrent writers each need their own Context.
type Context struct {
	exec  *cypher.Context
	store storage.Engine
	opts  Options

	log      []*Record
	inTx     bool
	implicit bool
	txID     string
	closed   bool

	nextNodeID int64
	nextRelID  int64

	stats Stats
}

// New creates a write Context over exec and its store.
func New(exec *cypher.Context, opts Options) *Context {
	return &Context{
		exec:       exec,
		store:      exec.Store(),
		opts:       opts,
		nextNodeID: 1,
		nextRelID:  1,
	}
}

// InTransaction reports whether a transaction is open.
func (c *Context) InTransaction() bool { return c.inTx }

// TxID returns the id of the open transaction, or "".
func (c *Context) TxID() string { return c.txID }

// Log returns the records of the open transaction.
func (c *Context) Log() []*Record { return c.log }

// Stats returns the effects of every committed transaction so far.
func (c *Context) Stats() Stats { return c.stats }

// Begin opens a transaction. It is a no-op inside one.
func (c *Context) Begin() error {
	if err := c.usable("begin"); err != nil {
		return err
	}
	if c.inTx {
		return nil
	}
	c.begin(false)
	return nil
}

func (c *Context) begin(implicit bool) {
	c.inTx = true
	c.implicit = implicit
	c.txID = uuid.New().String()
	c.log = c.log[:0]
	if c.opts.Verbose && !implicit {
		log.Printf("🔄 write tx %s: begin", c.txID)
	}
}

// Commit applies every pending record and closes the transaction. It is a
// no-op outside a transaction. On failure the whole transaction is rolled
// back and the failure returned.
func (c *Context) Commit() error {
	if err := c.usable("commit"); err != nil {
		return err
	}
	if !c.inTx {
		return nil
	}

	if err := c.applyPending(); err != nil {
		return c.abort(err)
	}
	if syncer, ok := c.store.(storage.Syncer); ok {
		if err := syncer.Sync(); err != nil {
			return c.abort(qerr.Wrap(qerr.KindStorage, "commit", err))
		}
	}

	var committed Stats
	for _, rec := range c.log {
		committed.count(rec)
	}
	c.stats.add(committed)
	if c.opts.Verbose && !c.implicit {
		log.Printf("✅ write tx %s: committed %d records", c.txID, len(c.log))
	}
	c.finish()
	return nil
}

// abort rolls back after a failed commit, returning the commit error.
func (c *Context) abort(err error) error {
	if c.opts.Verbose || !c.implicit {
		log.Printf("⚠️ write tx %s: commit failed, rolling back: %v", c.txID, err)
	}
	if rbErr := c.undo(0); rbErr != nil {
		log.Printf("⚠️ write tx %s: rollback incomplete: %v", c.txID, rbErr)
	}
	c.finish()
	c.exec.SetError(err)
	return err
}

// Rollback undoes every applied record and closes the transaction. It is a
// no-op outside a transaction. Rollback is best effort: every record is
// attempted and the first failure is returned.
func (c *Context) Rollback() error {
	if err := c.usable("rollback"); err != nil {
		return err
	}
	if !c.inTx {
		return nil
	}
	err := c.undo(0)
	if c.opts.Verbose && !c.implicit {
		log.Printf("↩️ write tx %s: rolled back %d records", c.txID, len(c.log))
	}
	c.finish()
	return err
}

// Close rolls back an open transaction. Later calls fail with Misuse.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	var err error
	if c.inTx {
		err = c.Rollback()
	}
	c.closed = true
	return err
}

func (c *Context) finish() {
	c.log = nil
	c.inTx = false
	c.implicit = false
	c.txID = ""
}

func (c *Context) usable(op string) error {
	if c.closed {
		return qerr.New(qerr.KindMisuse, op, "write context is closed")
	}
	return nil
}

// undo inverts applied records above mark, newest first, and truncates the
// log to mark.
func (c *Context) undo(mark int) error {
	var first error
	for i := len(c.log) - 1; i >= mark; i-- {
		rec := c.log[i]
		if !rec.Applied {
			continue
		}
		if err := c.invert(rec); err != nil {
			log.Printf("⚠️ write tx %s: cannot undo %s: %v", c.txID, rec.Kind, err)
			if first == nil {
				first = err
			}
			continue
		}
		rec.Applied = false
	}
	for i := mark; i < len(c.log); i++ {
		c.log[i] = nil
	}
	c.log = c.log[:mark]
	return first
}

// run executes one mutation. Outside a transaction it opens an implicit one
// when auto-commit is enabled. A failing mutation leaves no trace in the log
// or the store.
func (c *Context) run(op string, fn func() error) error {
	if err := c.usable(op); err != nil {
		return err
	}
	implicit := !c.inTx
	if implicit {
		if !c.opts.AutoCommit {
			return qerr.New(qerr.KindMisuse, op, "no open transaction and auto-commit is disabled")
		}
		c.begin(true)
	}

	mark := len(c.log)
	if err := fn(); err != nil {
		if undoErr := c.undo(mark); undoErr != nil {
			log.Printf("⚠️ write tx %s: %s cleanup failed: %v", c.txID, op, undoErr)
		}
		if implicit {
			c.finish()
		}
		c.exec.SetError(err)
		return err
	}
	if implicit {
		return c.Commit()
	}
	return nil
}

func (c *Context) deferred() bool {
	return c.opts.DeferApply && c.inTx && !c.implicit
}

// execute logs rec and, unless apply is deferred, captures and applies it.
func (c *Context) execute(rec *Record) error {
	if c.deferred() {
		c.log = append(c.log, rec)
		return nil
	}
	if err := c.capture(rec); err != nil {
		return err
	}
	c.log = append(c.log, rec)
	if err := c.apply(rec); err != nil {
		c.log[len(c.log)-1] = nil
		c.log = c.log[:len(c.log)-1]
		return err
	}
	rec.Applied = true
	return nil
}

// applyPending captures and applies every pending record in log order.
func (c *Context) applyPending() error {
	for _, rec := range c.log {
		if rec.Applied || rec.Matched {
			continue
		}
		if err := c.captureAndApply(rec); err != nil {
			return err
		}
	}
	return nil
}

// flush brings the store up to date with a deferred transaction before a
// mutation reads it.
func (c *Context) flush() error {
	if !c.deferred() {
		return nil
	}
	return c.applyPending()
}

func (c *Context) captureAndApply(rec *Record) error {
	if err := c.capture(rec); err != nil {
		return err
	}
	if err := c.apply(rec); err != nil {
		return err
	}
	rec.Applied = true
	return nil
}

// bind exposes a created or matched entity to later expressions.
func (c *Context) bind(variable string, ref value.Value) error {
	if variable == "" {
		return nil
	}
	return c.exec.Bind(variable, ref)
}

// ============================================================================
// Identity and existence
// ============================================================================

// allocNodeID returns the next id not used by the store or a pending create.
func (c *Context) allocNodeID() (int64, error) {
	for {
		id := c.nextNodeID
		c.nextNodeID++
		used, err := c.nodeTaken(id)
		if err != nil {
			return 0, err
		}
		if !used {
			return id, nil
		}
	}
}

func (c *Context) allocRelID() (int64, error) {
	for {
		id := c.nextRelID
		c.nextRelID++
		used, err := c.relTaken(id)
		if err != nil {
			return 0, err
		}
		if !used {
			return id, nil
		}
	}
}

// nodeTaken reports whether id is used by the store or by any pending
// create, including one a pending delete would remove again.
func (c *Context) nodeTaken(id int64) (bool, error) {
	ok, err := c.store.NodeExists(storage.NodeID(storage.FormatID(id)))
	if err != nil {
		return false, storageErr("node-exists", err)
	}
	if ok {
		return true, nil
	}
	for _, rec := range c.log {
		if !rec.Applied && rec.creates() && rec.Node != nil && rec.NodeID == id {
			return true, nil
		}
	}
	return false, nil
}

func (c *Context) relTaken(id int64) (bool, error) {
	ok, err := c.store.EdgeExists(storage.EdgeID(storage.FormatID(id)))
	if err != nil {
		return false, storageErr("relationship-exists", err)
	}
	if ok {
		return true, nil
	}
	for _, rec := range c.log {
		if !rec.Applied && rec.creates() && rec.Edge != nil && rec.RelID == id {
			return true, nil
		}
	}
	return false, nil
}

// nodeExists reports whether node id exists once pending records apply.
// The newest pending create or delete of id decides; otherwise the store.
func (c *Context) nodeExists(id int64) (bool, error) {
	for i := len(c.log) - 1; i >= 0; i-- {
		rec := c.log[i]
		if rec.Applied || rec.NodeID != id {
			continue
		}
		switch {
		case rec.Kind == OpDeleteNode || rec.Kind == OpDetachDeleteNode:
			return false, nil
		case rec.creates() && rec.Node != nil:
			return true, nil
		}
	}
	ok, err := c.store.NodeExists(storage.NodeID(storage.FormatID(id)))
	if err != nil {
		return false, storageErr("node-exists", err)
	}
	return ok, nil
}

func (c *Context) relExists(id int64) (bool, error) {
	for i := len(c.log) - 1; i >= 0; i-- {
		rec := c.log[i]
		if rec.Applied || rec.RelID != id {
			continue
		}
		switch {
		case rec.Kind == OpDeleteRelationship:
			return false, nil
		case rec.creates() && rec.Edge != nil:
			return true, nil
		}
	}
	ok, err := c.store.EdgeExists(storage.EdgeID(storage.FormatID(id)))
	if err != nil {
		return false, storageErr("relationship-exists", err)
	}
	return ok, nil
}

func (c *Context) requireNode(op string, id int64) error {
	ok, err := c.nodeExists(id)
	if err != nil {
		return err
	}
	if !ok {
		return qerr.New(qerr.KindNotFound, op, "node %d does not exist", id)
	}
	return nil
}

func (c *Context) requireRel(op string, id int64) error {
	ok, err := c.relExists(id)
	if err != nil {
		return err
	}
	if !ok {
		return qerr.New(qerr.KindNotFound, op, "relationship %d does not exist", id)
	}
	return nil
}

// storageErr classifies a storage bridge failure.
func storageErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidEdge):
		return qerr.Wrap(qerr.KindNotFound, op, err)
	case errors.Is(err, storage.ErrHasRelationships), errors.Is(err, storage.ErrAlreadyExists):
		return qerr.Wrap(qerr.KindConstraint, op, err)
	case errors.Is(err, storage.ErrInvalidID), errors.Is(err, storage.ErrInvalidData):
		return qerr.Wrap(qerr.KindMisuse, op, err)
	}
	return qerr.Wrap(qerr.KindStorage, op, err)
}
