// Package order builds, signs and publishes order commands.
//
// Place and Cancel are fire-and-forget on the private channel. VerifyTx is a
// correlated request on the auxiliary channel.
package order
