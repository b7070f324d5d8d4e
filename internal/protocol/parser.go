package protocol

import (
	"bytes"
	"encoding/binary"
	"iter"

	"github.com/muurk/ftirlink/internal/logging"
	"go.uber.org/zap"
)

// Frame layout constants
const (
	StartFlagLen = 2
	EndFlagLen   = 2
	CommandLen   = 2
	LengthLen    = 4
	ChecksumLen  = 2

	HeaderLen    = StartFlagLen + CommandLen + LengthLen // 8
	FooterLen    = ChecksumLen + EndFlagLen              // 4
	MinFrameSize = HeaderLen + FooterLen                 // 12

	// DefaultMaxPayload bounds the declared payload length of a frame.
	DefaultMaxPayload = 16 << 20
)

var (
	// StartFlag opens every frame
	StartFlag = []byte{0xA5, 0x5A}
	// EndFlag closes every frame
	EndFlag = []byte{0xFE, 0xEF}
)

// Pack encodes a command and payload into a complete frame. The checksum
// field is always zero.
func Pack(cmd Command, data []byte) []byte {
	frame := make([]byte, MinFrameSize+len(data))

	copy(frame[0:], StartFlag)
	binary.BigEndian.PutUint16(frame[2:4], uint16(cmd))
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(data)))
	copy(frame[HeaderLen:], data)

	// checksum bytes stay zero
	copy(frame[len(frame)-EndFlagLen:], EndFlag)

	return frame
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMaxPayload sets the largest declared payload length the parser will
// wait for. Larger declarations are treated as corrupt headers.
func WithMaxPayload(n int) ParserOption {
	return func(p *Parser) {
		if n >= 0 {
			p.maxPayload = n
		}
	}
}

// Parser reassembles frames from a byte stream delivered in arbitrary
// chunks. It is not safe for concurrent use.
type Parser struct {
	buf        []byte
	maxPayload int
}

// NewParser creates an empty parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{maxPayload: DefaultMaxPayload}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Feed appends received bytes to the parser buffer. Empty and single byte
// chunks are fine.
func (p *Parser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
}

// Buffered returns the number of bytes waiting for a complete frame.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Reset discards all buffered bytes.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
}

// Parse returns the complete messages currently in the buffer. The sequence
// ends when no further complete frame is available; call Parse again after
// the next Feed. Consumed bytes are dropped before each message is yielded.
func (p *Parser) Parse() iter.Seq[RawMessage] {
	return func(yield func(RawMessage) bool) {
		for {
			msg, ok := p.next()
			if !ok {
				return
			}
			if !yield(msg) {
				return
			}
		}
	}
}

// next extracts one message, skipping noise and unknown frames on the way.
func (p *Parser) next() (RawMessage, bool) {
	for {
		start := bytes.Index(p.buf, StartFlag)
		if start == -1 {
			return RawMessage{}, false
		}
		if start > 0 {
			logging.Debug("Discarding bytes before start flag", zap.Int("discarded", start))
			p.advance(start)
		}

		if len(p.buf) < MinFrameSize {
			return RawMessage{}, false
		}

		code := binary.BigEndian.Uint16(p.buf[2:4])
		declared := binary.BigEndian.Uint32(p.buf[4:8])

		if uint64(declared) > uint64(p.maxPayload) {
			logging.Warn("Frame declares oversized payload, resynchronising",
				zap.Uint32("declared_length", declared),
				zap.Int("max_payload", p.maxPayload),
			)
			p.advance(StartFlagLen)
			continue
		}

		frameLen := MinFrameSize + int(declared)
		if len(p.buf) < frameLen {
			return RawMessage{}, false
		}

		cmd, err := ParseCommand(code)
		if err != nil {
			// a well-formed footer means the whole frame can be dropped;
			// otherwise only the start flag is trusted
			skip := StartFlagLen
			if bytes.Equal(p.buf[frameLen-EndFlagLen:frameLen], EndFlag) {
				skip = frameLen
			}
			logging.Warn("Frame with unrecognized command, resynchronising",
				zap.String("command", Command(code).String()),
				zap.Uint32("declared_length", declared),
				zap.Int("skipped", skip),
			)
			p.advance(skip)
			continue
		}

		data := make([]byte, declared)
		copy(data, p.buf[HeaderLen:HeaderLen+int(declared)])
		p.advance(frameLen)

		logging.LogFrame("rx", cmd.String(), len(data))
		return RawMessage{Command: cmd, Data: data}, true
	}
}

// advance drops n bytes from the front of the buffer.
func (p *Parser) advance(n int) {
	remaining := copy(p.buf, p.buf[n:])
	p.buf = p.buf[:remaining]
}
