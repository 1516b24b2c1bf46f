// Package journal persists every outbound command to PostgreSQL.
//
// Writer implements order.Recorder. Record never blocks the sender: commands
// go into a growable Queue, and a background loop batch-inserts them into the
// outbound_commands table with ON CONFLICT DO NOTHING. When the queue reaches
// its limit, new commands are dropped and counted.
package journal
