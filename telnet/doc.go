// Package telnet implements the Telnet protocol's option negotiation state
// machine (RFC 854, RFC 855) and the supporting plumbing to run it over a
// live connection.
//
// # Negotiation
//
// [Negotiator] decodes IAC command sequences one byte at a time and tracks
// per-option state in an [OptionState]. Register an [OptionHandler] with
// [Negotiator.AddOptionHandler] to participate in a specific option's
// handshake and subnegotiation; TERMINAL_TYPE has a built-in responder
// enabled via [WithTerminalType].
//
// # Running Over a Connection
//
// [NewDemuxReader] starts a background goroutine that reads raw bytes from
// a net.Conn, decodes them through a Negotiator, and exposes the resulting
// data stream through [DemuxReader.Read]. [OutputWriter] encodes outbound
// application bytes back onto the wire, doubling IAC and applying NVT line
// ending rules unless BINARY is active.
package telnet
