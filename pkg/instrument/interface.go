package instrument

import (
	"time"

	"go.bug.st/serial"
)

// Instrument defines the command/response session with a sensor instrument (real or simulated).
type Instrument interface {
	Connect() error
	Disconnect() error
	Query(command string) (string, error)
	IsConnected() bool
}

// Port is the byte stream the session talks over. serial.Port satisfies it.
type Port interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Opener acquires a Port for the given address.
type Opener func(address string, mode *serial.Mode) (Port, error)

// Ensure Session implements Instrument.
var _ Instrument = (*Session)(nil)

// Ensure the transports implement Port.
var (
	_ Port = (serial.Port)(nil)
	_ Port = (*Mock)(nil)
	_ Port = (*ScriptedPort)(nil)
)
