// Package httpserver provides the JSON operational surface for a boardlog
// node: update append/read, document state and stats, compaction, and page
// administration on the embedded backend.
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
