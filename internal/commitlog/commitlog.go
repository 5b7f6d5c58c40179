// Package commitlog implements an append-only, hash-chained log of signed
// batch commitments.
//
// Each entry records a Merkle root over a transaction batch, the public key
// that signed it and the signature. The chain begins with a well-known
// genesis entry whose Hash equals GenesisHash (64 hex zeros); every later
// entry records the hash of its predecessor, so Verify detects tampering with
// any entry, link or signature.
//
// Two implementations of the Log interface are provided:
//   - MemoryLog: in-process, for testing and development.
//   - PostgresLog: durable, for production use.
package commitlog
