// Package router classifies inbound frames and routes them to the correlator,
// push hooks and the event bus.
//
// Frame shapes:
//
//	[chan, type, data]        informational push, namespace "type"
//	[chan, type, id, body]    reply, namespace "type-id" ("type" when id is null)
//	{"event": e, ...}         application event, namespace "_e"
//	{"event": "error", "channel": c, ...}   error for channel c, namespace "_c"
package router
