// Package venue composes the channel registry, dispatcher, correlator,
// authentication machine and order pipeline into a single Client.
//
// Typical use:
//
//	c := venue.New(opts)
//	if err := c.Start(ctx); err != nil { ... } // open all channels, wait for ready
//	acct, err := c.Auth(ctx, creds)
//	res, err := c.Place(ctx, order.Params{...})
//
// Every inbound frame is re-emitted on the event bus under its namespace
// ("ci", "ct-<uuid>", "_auth", ...) in addition to the lifecycle events
// "open", "close", "error", "message" and "ready".
package venue
