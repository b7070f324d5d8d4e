// Package handler contains the message handlers the communication manager
// dispatches decoded frames to.
//
// A Handler consumes one protocol.RawMessage and returns an error when the
// payload cannot be processed. The manager logs that error and moves on to
// the next message; a handler error never stops the receive loop.
//
// Sample-bearing handlers decode the payload as big-endian float32 values
// and fan the samples out to registered callbacks:
//
//	spectrum := handler.NewSpectrum()
//	id := spectrum.AddCallback(func(samples []float64) error {
//	    fmt.Println(len(samples), "points")
//	    return nil
//	})
//	manager.RegisterHandler(protocol.CommandCheckResp, spectrum)
//	...
//	spectrum.RemoveCallback(id)
//
// Callbacks run in registration order. A callback that fails or panics is
// logged and reported in the handler's error, and the remaining callbacks
// still run.
package handler
