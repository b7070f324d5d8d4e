// Package transport moves raw bytes between the host and an instrument.
//
// Three implementations share the Transport interface:
//
//   - Serial talks to a local serial port through github.com/tarm/serial.
//   - WebSocket connects to a remote bridge (see package bridge) and carries
//     byte chunks as binary WebSocket messages.
//   - Pipe returns two connected in-memory endpoints, used by tests and by
//     the instrument simulator.
//
// Every implementation delivers received chunks on a single reader goroutine
// through the callback given to OnDataReceived. Chunks have arbitrary
// boundaries; reassembly into frames is the job of package protocol.
//
// Physical-layer failures are reported as *Error values carrying the failed
// operation and the port name:
//
//	if err := t.Open(); err != nil {
//	    var terr *transport.Error
//	    if errors.As(err, &terr) {
//	        fmt.Println("could not", terr.Op, terr.Port)
//	    }
//	}
package transport
