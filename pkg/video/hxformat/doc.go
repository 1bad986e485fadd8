// Package hxformat reads and writes the ".264" recording container
// produced by a family of cheap surveillance cameras.
package hxformat

// The file is a flat sequence of records. All integers are little endian.
//
// record {
//   tag  uint32 // ASCII "HXVS", "HXVT", "HXVF", "HXAF" or "HXFI".
//   body [12 or 16]byte
//   data []byte // Only video and audio frames.
// }
//
// HXVS video size, 12 bytes.
//   width   uint32
//   height  uint32
//   padding [4]byte
//
// HXVT video timing, same layout as HXVS. No known camera writes it.
//
// HXVF video frame, 12 bytes, followed by `length` bytes of Annex-B H.264.
//   length    uint32
//   timestamp uint32 // Milliseconds, device clock.
//   padding   [4]byte
//
// HXAF audio frame, 16 bytes, followed by `length - 4` bytes of G.711 A-law.
//   length    uint32 // Includes a 4 byte sub-header stored in the padding.
//   timestamp uint32 // Milliseconds, device clock.
//   padding   [8]byte
//
// HXFI end of stream, 16 bytes.
//   length  uint32
//   padding [12]byte
//
// The format has no sync markers, a record of unknown type cannot be
// skipped reliably since its body size is unknown.
