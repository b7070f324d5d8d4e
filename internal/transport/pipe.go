package transport

import (
	"sync"
)

// pipeBuffer is the number of chunks an endpoint can hold before Send blocks.
const pipeBuffer = 1024

// PipeEnd is one side of an in-memory transport pair.
type PipeEnd struct {
	name  string
	inbox chan []byte
	peer  *PipeEnd

	mu       sync.Mutex
	open     bool
	done     chan struct{}
	callback DataCallback
}

// Pipe returns two connected endpoints. Bytes sent on one are delivered to
// the other's callback once that side is open.
func Pipe() (*PipeEnd, *PipeEnd) {
	a := &PipeEnd{name: "pipe-a", inbox: make(chan []byte, pipeBuffer)}
	b := &PipeEnd{name: "pipe-b", inbox: make(chan []byte, pipeBuffer)}
	a.peer = b
	b.peer = a
	return a, b
}

// Open starts delivering chunks to the callback.
func (p *PipeEnd) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		return nil
	}
	p.open = true
	p.done = make(chan struct{})
	go p.readLoop(p.done)
	return nil
}

// Close stops delivery. Chunks already queued stay queued for the next Open.
func (p *PipeEnd) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return nil
	}
	p.open = false
	close(p.done)
	return nil
}

// Send queues a copy of data on the peer.
func (p *PipeEnd) Send(data []byte) error {
	p.mu.Lock()
	open, done := p.open, p.done
	p.mu.Unlock()

	if !open {
		return newError("send", p.name, ErrNotOpen)
	}

	chunk := make([]byte, len(data))
	copy(chunk, data)

	select {
	case p.peer.inbox <- chunk:
		return nil
	case <-done:
		return newError("send", p.name, ErrNotOpen)
	}
}

// OnDataReceived sets the chunk callback.
func (p *PipeEnd) OnDataReceived(cb DataCallback) {
	p.mu.Lock()
	p.callback = cb
	p.mu.Unlock()
}

// IsOpen reports whether the endpoint is open.
func (p *PipeEnd) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// ListAvailablePorts returns the endpoint's own name.
func (p *PipeEnd) ListAvailablePorts() ([]string, error) {
	return []string{p.name}, nil
}

func (p *PipeEnd) readLoop(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case chunk := <-p.inbox:
			p.mu.Lock()
			cb := p.callback
			p.mu.Unlock()
			if cb != nil {
				cb(chunk)
			}
		}
	}
}
