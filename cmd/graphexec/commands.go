package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/orneryd/graphexec/pkg/config"
	"github.com/orneryd/graphexec/pkg/cypher"
	"github.com/orneryd/graphexec/pkg/iterator"
	"github.com/orneryd/graphexec/pkg/plan"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/value"
	"github.com/orneryd/graphexec/pkg/write"
)

func openStore(cfg *config.Config) (storage.Engine, error) {
	store, err := cfg.OpenStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if cfg.Logging.Verbose {
		log.Printf("💾 storage opened: %s", cfg.Storage.Engine)
	}
	return store, nil
}

func closeStore(store storage.Engine) {
	if err := store.Close(); err != nil {
		log.Printf("⚠️ storage close: %v", err)
	}
}

func runQuery(cfg *config.Config, planPath string, out io.Writer) error {
	p, err := plan.LoadPlan(planPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	ctx := cypher.NewContext(store)
	defer ctx.Destroy()
	return executePlan(cfg, ctx, p, out)
}

func executePlan(cfg *config.Config, ctx *cypher.Context, p *iterator.Plan, out io.Writer) error {
	if cfg.Executor.DefaultLimit > 0 && p.Kind != iterator.KindLimit {
		p = &iterator.Plan{Kind: iterator.KindLimit, Count: cfg.Executor.DefaultLimit, Children: []*iterator.Plan{p}}
	}
	root, err := iterator.BuildWithOptions(ctx, p, cfg.IteratorOptions())
	if err != nil {
		return err
	}
	defer root.Destroy()

	res, err := iterator.Execute(ctx, root)
	if err != nil {
		return err
	}

	body := res.JSON()
	if cfg.Executor.PrettyJSON {
		if body, err = iterator.EncodeJSONIndent(res.Rows, "  "); err != nil {
			return err
		}
	}
	fmt.Fprintln(out, body)
	if cfg.Logging.Verbose {
		log.Printf("✅ %d rows (%d scanned) in %s", res.Stats.RowsProduced, res.Stats.RowsProcessed, res.Stats.Elapsed)
	}
	return nil
}

func runWrite(cfg *config.Config, scriptPath string, dryRun bool, out io.Writer) error {
	script, err := plan.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	ctx := cypher.NewContext(store)
	defer ctx.Destroy()

	opts := cfg.WriteOptions()
	if dryRun {
		opts.AutoCommit = false
	}
	w := write.New(ctx, opts)
	defer w.Close()

	if dryRun {
		if err := w.Begin(); err != nil {
			return err
		}
	}
	res, runErr := script.Run(ctx, w)
	if runErr == nil && w.InTransaction() {
		if dryRun {
			runErr = w.Rollback()
		} else {
			runErr = w.Commit()
		}
		res.Stats = w.Stats()
	}

	enc := json.NewEncoder(out)
	if cfg.Executor.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		return err
	}
	return runErr
}

// runDemo builds a small social graph and prints the people Alice knows.
func runDemo(cfg *config.Config, out io.Writer) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	ctx := cypher.NewContext(store)
	defer ctx.Destroy()
	w := write.New(ctx, cfg.WriteOptions())
	defer w.Close()

	if err := w.Begin(); err != nil {
		return err
	}
	people := map[string]int64{}
	for _, p := range []struct {
		name string
		age  int64
	}{{"Alice", 30}, {"Bob", 25}, {"Carol", 35}} {
		id, err := w.CreateNode(write.CreateNodeOp{
			Labels: []string{"Person"},
			Properties: map[string]value.Value{
				"name": value.String(p.name),
				"age":  value.Int(p.age),
			},
		})
		if err != nil {
			return err
		}
		people[p.name] = id
	}
	for _, to := range []string{"Bob", "Carol"} {
		if _, err := w.CreateRelationship(write.CreateRelationshipOp{
			From: people["Alice"], To: people[to], Type: "KNOWS",
		}); err != nil {
			return err
		}
	}
	if err := w.Commit(); err != nil {
		return err
	}
	fmt.Fprintf(out, "created %d nodes and %d relationships\n",
		w.Stats().NodesCreated, w.Stats().RelationshipsCreated)

	p, err := plan.ParsePlan([]byte(demoPlan))
	if err != nil {
		return err
	}
	return executePlan(cfg, ctx, p, out)
}

// demoPlan lists people over 26, oldest first.
const demoPlan = `
op: projection
projections:
  - {prop: {of: {var: p}, key: name}}
  - {prop: {of: {var: p}, key: age}}
aliases: [name, age]
children:
  - op: sort
    sort: [{expr: {prop: {of: {var: p}, key: age}}, desc: true}]
    children:
      - op: filter
        predicate: {op: ">", args: [{prop: {of: {var: p}, key: age}}, {lit: 26}]}
        children:
          - op: label_index_scan
            alias: p
            label: Person
`
