package handshake

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muurk/ftirlink/internal/protocol"
)

type sendRecorder struct {
	mu    sync.Mutex
	sent  []protocol.Command
	err   error
	reply func(cmd protocol.Command)
}

func (r *sendRecorder) send(cmd protocol.Command, data []byte) error {
	r.mu.Lock()
	r.sent = append(r.sent, cmd)
	err, reply := r.err, r.reply
	r.mu.Unlock()

	if reply != nil {
		go reply(cmd)
	}
	return err
}

func (r *sendRecorder) count(cmd protocol.Command) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.sent {
		if c == cmd {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func fast() []Option {
	return []Option{
		WithResponseTimeout(20 * time.Millisecond),
		WithRetryDelay(10 * time.Millisecond),
	}
}

func TestImmediateReplyCompletes(t *testing.T) {
	rec := &sendRecorder{}
	var completed sync.WaitGroup
	completed.Add(1)

	h := New(rec.send, append(fast(), WithOnComplete(completed.Done))...)
	rec.reply = func(cmd protocol.Command) {
		if cmd == protocol.CommandHandshakeReq {
			_ = h.Handle(protocol.RawMessage{Command: protocol.CommandHandshakeResp})
		}
	}

	if err := h.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, time.Second, h.Complete)
	completed.Wait()

	if got := h.RetryCount(); got != 0 {
		t.Errorf("RetryCount() = %d, want 0", got)
	}

	// no timer left behind: nothing else is sent
	time.Sleep(80 * time.Millisecond)
	if got := rec.count(protocol.CommandHandshakeReq); got != 1 {
		t.Errorf("sent %d requests, want 1", got)
	}
}

func TestSilentPeerRetries(t *testing.T) {
	rec := &sendRecorder{}
	h := New(rec.send, fast()...)

	if err := h.Start(); err != nil {
		t.Fatal(err)
	}
	defer h.Stop()

	waitFor(t, 2*time.Second, func() bool { return h.RetryCount() >= 3 })

	if h.State() != AwaitingResponse {
		t.Errorf("State() = %s, want awaiting_response", h.State())
	}
	if got := rec.count(protocol.CommandHandshakeReq); got < 3 {
		t.Errorf("sent %d requests, want at least 3", got)
	}
}

func TestRetryCountIncreases(t *testing.T) {
	rec := &sendRecorder{}
	h := New(rec.send, fast()...)
	_ = h.Start()
	defer h.Stop()

	last := 0
	for i := 0; i < 3; i++ {
		prev := last
		waitFor(t, 2*time.Second, func() bool { return h.RetryCount() > prev })
		last = h.RetryCount()
	}
}

func TestLateResponseAfterRetries(t *testing.T) {
	rec := &sendRecorder{}
	h := New(rec.send, fast()...)
	_ = h.Start()

	waitFor(t, 2*time.Second, func() bool { return h.RetryCount() >= 2 })

	if err := h.Handle(protocol.RawMessage{Command: protocol.CommandHandshakeResp}); err != nil {
		t.Fatal(err)
	}
	if !h.Complete() {
		t.Fatal("handshake should be complete")
	}

	sent := rec.count(protocol.CommandHandshakeReq)
	time.Sleep(80 * time.Millisecond)
	if got := rec.count(protocol.CommandHandshakeReq); got != sent {
		t.Errorf("requests kept being sent after completion: %d -> %d", sent, got)
	}
}

func TestStopCancelsRetries(t *testing.T) {
	rec := &sendRecorder{}
	h := New(rec.send, fast()...)
	_ = h.Start()

	waitFor(t, time.Second, func() bool { return h.RetryCount() >= 1 })
	h.Stop()
	h.Stop()

	if h.State() != Idle {
		t.Errorf("State() = %s, want idle", h.State())
	}

	sent := rec.count(protocol.CommandHandshakeReq)
	time.Sleep(100 * time.Millisecond)
	if got := rec.count(protocol.CommandHandshakeReq); got != sent {
		t.Errorf("requests sent after Stop: %d -> %d", sent, got)
	}
}

func TestSendErrorsDoNotStopRetries(t *testing.T) {
	rec := &sendRecorder{err: errors.New("port unplugged")}
	h := New(rec.send, fast()...)

	if err := h.Start(); err == nil {
		t.Error("Start() should report the first send error")
	}
	defer h.Stop()

	waitFor(t, 2*time.Second, func() bool { return rec.count(protocol.CommandHandshakeReq) >= 3 })
}

func TestPeerRequestIsAnswered(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *Handshake)
	}{
		{"idle", func(h *Handshake) {}},
		{"awaiting", func(h *Handshake) { _ = h.Start() }},
		{"complete", func(h *Handshake) {
			_ = h.Start()
			_ = h.Handle(protocol.RawMessage{Command: protocol.CommandHandshakeResp})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &sendRecorder{}
			h := New(rec.send, WithResponseTimeout(time.Hour))
			tt.setup(h)
			defer h.Stop()

			before := h.State()
			if err := h.Handle(protocol.RawMessage{Command: protocol.CommandHandshakeReq}); err != nil {
				t.Fatal(err)
			}
			if got := rec.count(protocol.CommandHandshakeResp); got != 1 {
				t.Errorf("sent %d responses, want 1", got)
			}
			if h.State() != before {
				t.Errorf("state changed from %s to %s", before, h.State())
			}
		})
	}
}

func TestStartWhenCompleteIsNoop(t *testing.T) {
	rec := &sendRecorder{}
	h := New(rec.send, WithResponseTimeout(time.Hour))
	_ = h.Start()
	_ = h.Handle(protocol.RawMessage{Command: protocol.CommandHandshakeResp})

	if err := h.Start(); err != nil {
		t.Fatal(err)
	}
	if got := rec.count(protocol.CommandHandshakeReq); got != 1 {
		t.Errorf("sent %d requests, want 1", got)
	}
	if !h.Complete() {
		t.Error("handshake should still be complete")
	}
}

func TestUnsolicitedResponseIgnored(t *testing.T) {
	called := false
	h := New((&sendRecorder{}).send, WithOnComplete(func() { called = true }))

	if err := h.Handle(protocol.RawMessage{Command: protocol.CommandHandshakeResp}); err != nil {
		t.Fatal(err)
	}
	if h.State() != Idle || called {
		t.Errorf("idle handshake reacted to a response: state=%s called=%v", h.State(), called)
	}
}

func TestStopAfterCompleteResets(t *testing.T) {
	h := New((&sendRecorder{}).send, WithResponseTimeout(time.Hour))
	_ = h.Start()
	_ = h.Handle(protocol.RawMessage{Command: protocol.CommandHandshakeResp})
	h.Stop()
	if h.Complete() {
		t.Error("Complete() should be false after Stop")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Idle:             "idle",
		AwaitingResponse: "awaiting_response",
		Complete:         "complete",
		State(42):        "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
