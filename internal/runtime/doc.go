// Package runtime wires the configured update-log backend, the merge
// pipeline, and the background sweeper into a single-node boardlog
// instance. It exposes Open/Close, a backend health check, and accessors
// for the components the servers mount.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(ctx)
//	seq, _ := rt.Store().Append(ctx, "pg_readme", update)
package runtime
