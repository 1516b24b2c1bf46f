// Package wire encodes the fixed-shape command envelope used on the private
// and auxiliary channels:
//
//	[protocolVersion, opcode, correlationIdOrNull, body]
//
// JSON is handled by json-iterator configured to be compatible with
// encoding/json.
package wire
