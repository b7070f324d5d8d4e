// Package discovery finds and announces ftirlink network bridges using mDNS.
//
// A bridge (see package bridge) exposes an instrument's serial port over a
// WebSocket endpoint and advertises itself as a "_ftirlink._tcp" service.
// Hosts browse for that service type to list remote instruments alongside
// their local serial ports.
//
// # Usage Example
//
//	bridges, err := discovery.ScanForBridges(3 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, b := range bridges {
//	    fmt.Println(b.Instance, b.URL())
//	}
//
// Advertising a bridge:
//
//	ad, err := discovery.Advertise("bench-1", 8765, "/ws", map[string]string{"port": "/dev/ttyUSB0"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ad.Shutdown()
//
// # Network Requirements
//
// Multicast must be allowed on the interface (UDP port 5353) and the bridge
// must be on the same network segment.
package discovery
