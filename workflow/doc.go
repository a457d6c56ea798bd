// Package workflow implements the graph scheduling and execution core:
// graph construction and validation, conditional-reachability analysis,
// the per-run node cache, and the sequential and concurrent execution
// engines that walk the graph applying a uniform retry/fallback/cancel
// protocol.
//
// A typical run:
//
//	graph, err := workflow.NewBuilder(registry).
//	    AddNodes(descriptors...).
//	    AddEdges(edges...).
//	    Build()
//
//	engine := workflow.NewEngine(graph,
//	    workflow.WithLogger(logger),
//	    workflow.WithConcurrency(8),
//	)
//	run, err := engine.Run(ctx, workflow.RunRequest{})
//	for p := range run.Progress() {
//	    // stream node results to the caller
//	}
//	snapshot := run.Snapshot() // checkpoint for pause/resume
//
// Node business logic lives behind the Node interface; the built-in kinds
// under workflow/nodes cover the structural types (start, end, branch,
// human pause, template) the scheduler itself needs to recognize.
package workflow
