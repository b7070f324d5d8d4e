package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/muurk/ftirlink/internal/config"
	"github.com/muurk/ftirlink/internal/handler"
	"github.com/muurk/ftirlink/internal/processing"
	"github.com/muurk/ftirlink/internal/protocol"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr bool
	}{
		{"spaced", "A5 5A fe ef", []byte{0xA5, 0x5A, 0xFE, 0xEF}, false},
		{"prefixed", "0xA5,0x5A", []byte{0xA5, 0x5A}, false},
		{"colons", "a5:5a:00", []byte{0xA5, 0x5A, 0x00}, false},
		{"multiline", "A5 5A\n02 10", []byte{0xA5, 0x5A, 0x02, 0x10}, false},
		{"odd length", "A5 5", nil, true},
		{"not hex", "zz", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHex(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHex() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("parseHex() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestDecodeFrames(t *testing.T) {
	data, err := parseHex("A5 5A 02 10 00 00 00 08 3F 80 00 00 C0 20 00 00 00 00 FE EF")
	if err != nil {
		t.Fatal(err)
	}
	tagged := protocol.Pack(protocol.CommandCheckResp, append([]byte{byte(protocol.CheckAccuracy)}, protocol.EncodeFloat32s([]float64{0.5})...))
	data = append(data, tagged...)
	data = append(data, protocol.Pack(protocol.CommandHandshakeResp, nil)...)
	data = append(data, 0xA5, 0x5A, 0x02)

	var out bytes.Buffer
	if err := decodeFrames(&out, data); err != nil {
		t.Fatalf("decodeFrames() error = %v", err)
	}

	text := out.String()
	for _, want := range []string{"#1", "samples: [1 -2.5]", "#2", "kind: accuracy", "samples: [0.5]", "#3", "3 trailing bytes"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestDecodeFramesEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := decodeFrames(&out, []byte{0x00, 0x01}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "no complete frames") {
		t.Errorf("output = %q", out.String())
	}
}

func TestWriteFrame(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := frameRecord{Index: 2, Received: at, Samples: []float64{1, -3, 2}}

	var text bytes.Buffer
	if err := writeFrame(&text, "text", rec); err != nil {
		t.Fatal(err)
	}
	if got := text.String(); got != "frame 2: 3 samples  min -3  max 2\n" {
		t.Errorf("text = %q", got)
	}

	var js bytes.Buffer
	if err := writeFrame(&js, "json", rec); err != nil {
		t.Fatal(err)
	}
	var back frameRecord
	if err := json.Unmarshal(js.Bytes(), &back); err != nil {
		t.Fatalf("json output does not parse: %v", err)
	}
	if back.Index != 2 || len(back.Samples) != 3 || !back.Received.Equal(at) {
		t.Errorf("json record = %+v", back)
	}

	var empty bytes.Buffer
	if err := writeFrame(&empty, "text", frameRecord{Index: 0}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(empty.String(), "empty") {
		t.Errorf("empty frame = %q", empty.String())
	}
}

func TestSummarise(t *testing.T) {
	fields := summarise([]float64{1, 1, 1}, []float64{4, 4, 4})
	got := map[string]string{}
	for _, f := range fields {
		got[f.Key] = f.Value
	}
	if got["Measurements"] != "3" || got["Mean peak bin"] != "4.00" || got["Peak RSD"] != "0.000%" {
		t.Errorf("summarise() = %v", got)
	}

	if f := summarise(nil, nil); len(f) != 1 || f[0].Value != "0" {
		t.Errorf("summarise(nil) = %v", f)
	}
}

func TestReceive(t *testing.T) {
	spectrum := []float64{9, 0.1, 0.7, 0.2}

	t.Run("count reached", func(t *testing.T) {
		frames := make(chan handler.Measurement, 4)
		for range 3 {
			frames <- handler.Measurement{Spectrum: spectrum}
		}
		peaks, bins, err := receive(context.Background(), frames, 3, time.Second)
		if err != nil {
			t.Fatalf("receive() error = %v", err)
		}
		if len(peaks) != 3 || bins[0] != 2 || peaks[0] != 0.7 {
			t.Errorf("peaks = %v bins = %v", peaks, bins)
		}
	})

	t.Run("idle timeout", func(t *testing.T) {
		frames := make(chan handler.Measurement, 1)
		frames <- handler.Measurement{Spectrum: spectrum}
		peaks, _, err := receive(context.Background(), frames, 2, 20*time.Millisecond)
		if err == nil || len(peaks) != 1 {
			t.Errorf("receive() = %d peaks, err %v; want 1 and a timeout", len(peaks), err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := receive(ctx, make(chan handler.Measurement), 5, time.Second)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("receive() error = %v, want context.Canceled", err)
		}
		_, _, err = receive(ctx, make(chan handler.Measurement), 0, time.Second)
		if err != nil {
			t.Errorf("unbounded receive should end cleanly on cancel, got %v", err)
		}
	})
}

func TestCheckHandler(t *testing.T) {
	chain, err := processing.NewStandardChain(processing.DefaultStandardConfig())
	if err != nil {
		t.Fatal(err)
	}
	samples := make([]float64, 16)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 2 * float64(i) / 16)
	}
	payload := protocol.EncodeFloat32s(samples)

	tests := []struct {
		name string
		kind protocol.CheckKind
		data []byte
	}{
		{"stability untagged", protocol.CheckStability, payload},
		{"stability tagged", protocol.CheckStability, append([]byte{byte(protocol.CheckStability)}, payload...)},
		{"accuracy tagged", protocol.CheckAccuracy, append([]byte{byte(protocol.CheckAccuracy)}, payload...)},
		{"repeatability tagged", protocol.CheckRepeatability, append([]byte{byte(protocol.CheckRepeatability)}, payload...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []handler.Measurement
			h, err := checkHandler(tt.kind, chain, func(m handler.Measurement) error {
				got = append(got, m)
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if err := h.Handle(protocol.RawMessage{Command: protocol.CommandCheckResp, Data: tt.data}); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("got %d measurements, want 1", len(got))
			}
			if len(got[0].Interferogram) != 16 || len(got[0].Spectrum) != 9 {
				t.Errorf("measurement sizes = %d/%d, want 16/9", len(got[0].Interferogram), len(got[0].Spectrum))
			}
			if msg := measurementMsg(got[0]); msg.PeakBin != 2 {
				t.Errorf("PeakBin = %d, want 2", msg.PeakBin)
			}
		})
	}

	if _, err := checkHandler(protocol.CheckKind(9), chain, nil); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestOpenPublisherDisabled(t *testing.T) {
	registry = config.NewRegistry()
	p, err := openPublisher("", "/dev/ttyUSB0")
	if err != nil || p != nil {
		t.Errorf("openPublisher() = %v, %v; want nil, nil", p, err)
	}
	closePublisher(nil)
}

func TestNewChainFromConfig(t *testing.T) {
	registry = config.NewRegistry()
	registry.Preferences.Processing.Window = "blackman"
	chain, err := newChain()
	if err != nil {
		t.Fatalf("newChain() error = %v", err)
	}
	if got := len(chain.Process(make([]float64, 10))); got != 9 {
		t.Errorf("bins = %d, want 9 for 10 samples padded to 16", got)
	}

	registry.Preferences.Processing.Window = "unknown"
	if _, err := newChain(); err == nil {
		t.Error("invalid window should fail")
	}
}
