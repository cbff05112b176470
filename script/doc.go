// Package script provides Lua-scripted handlers and condition
// predicates backed by yuin/gopher-lua.
//
// A scripted handler is a Lua chunk that defines a global function
// handle(payload). Its return value maps onto the pipeline contract:
//
//	return nil                     -- continue
//	return {abort = "reason"}      -- abort the pipeline
//	return {value = v}             -- terminate early with v
//	return {result = v}            -- record v as a result, continue
//	error("msg")                   -- handler failure, pipeline continues
//
// A scripted condition is a Lua expression evaluated to a boolean at
// dispatch time.
//
// Each Handler and Condition owns one Lua state. States are not safe
// for concurrent use, so invocations are serialized per script; two
// different scripts never block each other. Scripts run in a restricted
// environment with only the base, table, string, and math libraries and
// no file or chunk loading.
package script
