// Package comm ties a transport, the frame parser, the handshake and the
// handler registry together.
//
// Typical use:
//
//	m := comm.NewManager(transport.NewSerial(transport.SerialConfig{Name: "/dev/ttyUSB0"}))
//	m.RegisterHandler(protocol.CommandCheckResp, handler.NewSpectrum())
//	if err := m.Connect(); err != nil {
//	    return err
//	}
//	defer m.Disconnect()
//	_ = m.StartCheckStability()
//
// # Threading
//
// Received chunks arrive on the transport's reader goroutine. The manager
// holds a single lock while it feeds the parser, drains every complete
// message and dispatches each one, so handlers run one at a time in arrival
// order. The same lock guards the handler registry. Handlers must therefore
// not call RegisterHandler, UnregisterHandler or Disconnect themselves.
//
// Send and the Start/Stop helpers may be called from any goroutine.
package comm
