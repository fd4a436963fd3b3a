// Package catalog defines the canonical navigation catalog model for bookmerge.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import catalog; catalog imports nothing internal. This
// keeps the model the foundational layer with no circular dependencies.
//
// Key constraints:
//   - A Catalog is write-once: it is produced by the assigner and never mutated
//     by renderers or sinks.
//   - All JSON tags use snake_case and match the navigation database columns.
//   - No wall-clock timestamps; ids and order numbers are fully determined by
//     input order.
package catalog
