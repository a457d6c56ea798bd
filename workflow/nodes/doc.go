// Package nodes provides the built-in node kinds the scheduler needs to
// recognize structurally: run entry and exit, conditional branching, the
// human-input pause boundary, and a small template node for data plumbing.
// Business node kinds (model calls, HTTP, scripts) live outside the core
// and register themselves the same way.
package nodes
