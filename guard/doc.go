// Package guard rate-limits dispatches per action before they reach the
// pipeline executor.
//
// Two guard kinds are supported:
//
//   - Debounce: every call resets a per-action timer. Only the last call
//     within a quiet period actually executes, using that call's payload.
//     Earlier callers block and receive the trailing execution's result,
//     so no caller is left without an outcome.
//
//   - Throttle: the first call in a window executes immediately (leading
//     edge). Calls arriving before the window elapses are coalesced into
//     one trailing execution at the window boundary, using the most
//     recent payload. Coalesced callers receive the trailing result.
//
// Guards are keyed per action. Windows are configured on the Scheduler
// with SetDebounce and SetThrottle; actions without a window pass
// through unchanged. Close cancels all pending timers and releases
// blocked callers.
package guard
