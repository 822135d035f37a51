package transport

import "errors"

var (
	// ErrTransport indicates an I/O failure in the underlying frame
	// source or sink.
	ErrTransport = errors.New("transport: io failure")

	// ErrTransportSerial indicates the addressed serial device is
	// missing or misidentified.
	ErrTransportSerial = errors.New("transport: serial device unavailable")
)
