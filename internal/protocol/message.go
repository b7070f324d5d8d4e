package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// RawMessage is one decoded frame: a command and its payload.
type RawMessage struct {
	Command Command
	Data    []byte
}

func (m RawMessage) String() string {
	return fmt.Sprintf("RawMessage{command=%s, len=%d}", m.Command, len(m.Data))
}

// ErrMalformedPayload is returned when a payload does not have the layout
// its command requires.
var ErrMalformedPayload = errors.New("malformed payload")

// DecodeFloat32s decodes a payload of big-endian IEEE-754 32-bit floats.
// The payload length must be a multiple of 4.
func DecodeFloat32s(data []byte) ([]float64, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 4", ErrMalformedPayload, len(data))
	}

	samples := make([]float64, len(data)/4)
	for i := range samples {
		bits := binary.BigEndian.Uint32(data[i*4:])
		samples[i] = float64(math.Float32frombits(bits))
	}
	return samples, nil
}

// EncodeFloat32s encodes samples as big-endian IEEE-754 32-bit floats.
// Values are narrowed to float32.
func EncodeFloat32s(samples []float64) []byte {
	data := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.BigEndian.PutUint32(data[i*4:], math.Float32bits(float32(s)))
	}
	return data
}
