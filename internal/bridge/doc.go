// Package bridge exposes a local instrument transport to the network.
//
// The bridge opens a local transport (normally a serial port) and serves a
// single WebSocket endpoint. Bytes arriving from the instrument are sent to
// the connected client as binary messages, and binary messages from the
// client are written to the instrument unchanged. The bridge does not parse
// frames; framing, handshake and dispatch stay on the client host, which
// connects with transport.NewWebSocket.
//
// Only one client is served at a time. A second client is refused with
// HTTP 409 until the first disconnects.
//
// When Config.Advertise is set the bridge registers itself over mDNS (see
// package discovery) so hosts can find it with "ftirctl ports".
package bridge
