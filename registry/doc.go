// Package registry stores registered action handlers and their metadata.
//
// Handlers are kept per action name in a totally ordered list: higher
// priority first, ties broken by registration order. Lookups used by a
// dispatch return copies of the sorted list so concurrent register and
// unregister calls never mutate a pipeline mid-flight.
//
// Dispatch-time filtering is expressed with composable Predicate values
// (tags, category, environment, handler ids, exclusions, custom) combined
// with AND semantics, so new criteria can be added without touching the
// executor.
package registry
