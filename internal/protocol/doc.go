// Package protocol implements the FTIR instrument binary protocol.
//
// This package handles framing, streaming reassembly and construction of
// the binary messages exchanged with the instrument over a byte-oriented
// transport (serial line or a WebSocket bridge).
//
// # Frame Format
//
// Every message travels in one frame:
//
//	offset 0     START_FLAG  2 bytes  0xA5 0x5A
//	offset 2     command     2 bytes  big-endian
//	offset 4     length      4 bytes  big-endian, payload byte count N
//	offset 8     payload     N bytes
//	offset 8+N   checksum    2 bytes  reserved, always 0x0000
//	offset 10+N  END_FLAG    2 bytes  0xFE 0xEF
//
// The minimum frame is 12 bytes. The checksum field is a placeholder: it is
// written as zero and ignored on receive.
//
// # Commands
//
// The command set is closed. ParseCommand maps a wire value to a Command and
// reports ErrUnknownCommand for anything else.
//
// # Streaming
//
// Parser accumulates arbitrarily chunked input and yields complete
// messages:
//
//	p := protocol.NewParser()
//	p.Feed(chunk)
//	for msg := range p.Parse() {
//	    fmt.Println(msg)
//	}
//
// Noise in front of a START_FLAG is discarded. A frame with an unknown command
// is dropped whole when its END_FLAG sits where the declared length puts it.
// Otherwise only its START_FLAG is skipped and the scan resumes from there.
//
// # Payloads
//
// Spectrum and interferogram payloads are sequences of big-endian IEEE-754
// 32-bit floats; see DecodeFloat32s and EncodeFloat32s.
//
// # Thread Safety
//
// Pack, ParseCommand and the float codec are stateless. A Parser is not safe
// for concurrent use; the owner serialises Feed and Parse.
package protocol
