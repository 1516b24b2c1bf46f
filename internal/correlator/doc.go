// Package correlator matches outbound requests with their asynchronous
// replies.
//
// Every request is one entry in a single table, indexed by correlation id and
// by namespace. An entry moves from pending to exactly one terminal state
// (resolved or timed out) and is then removed; a reply for a namespace that is
// no longer pending is dropped.
package correlator
