// Package comm owns the transport layer for instrument communication.
//
// Ownership boundary:
// - framing and line termination
// - per-transport quirks (GPIB addressing, USBTMC transfers, adapter echo)
// - timeout and exclusive-access enforcement
//
// Comm does not interpret response payloads; decoding lives in package
// instr.
package comm
