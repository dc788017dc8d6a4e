package sequence

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/itohio/potlog/pkg/datalog"
)

// Observer receives the interactive progress of a run.
type Observer interface {
	LogCreated(path string)
	Connected()
	Identified(identity string)
	IdentityMismatch(expected, received string)
	SequenceStarted(samples int, delay time.Duration)
	Acknowledged(command, ack string)
	SampleRecorded(index, total int, rec datalog.Record)
	SampleFailed(index, total int, err error)
	SequenceCompleted(summary Summary)
	Failed(err error)
	Disconnected()
}

var (
	_ Observer = Discard{}
	_ Observer = (*Console)(nil)
)

// Discard ignores every event.
type Discard struct{}

func (Discard) LogCreated(string)                       {}
func (Discard) Connected()                              {}
func (Discard) Identified(string)                       {}
func (Discard) IdentityMismatch(string, string)         {}
func (Discard) SequenceStarted(int, time.Duration)      {}
func (Discard) Acknowledged(string, string)             {}
func (Discard) SampleRecorded(int, int, datalog.Record) {}
func (Discard) SampleFailed(int, int, error)            {}
func (Discard) SequenceCompleted(Summary)               {}
func (Discard) Failed(error)                            {}
func (Discard) Disconnected()                           {}

// Console prints progress for an operator watching the terminal.
type Console struct {
	w    io.Writer
	ok   *color.Color
	warn *color.Color
	bad  *color.Color
}

// NewConsole creates a Console writing to w. Colors follow color.NoColor.
func NewConsole(w io.Writer) *Console {
	return &Console{
		w:    w,
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		bad:  color.New(color.FgRed, color.Bold),
	}
}

func (c *Console) LogCreated(path string) {
	fmt.Fprintf(c.w, "Created new log file: %s\n", path)
}

func (c *Console) Connected() {
	c.ok.Fprintln(c.w, "Connection established.")
}

func (c *Console) Identified(identity string) {
	fmt.Fprintf(c.w, "Instrument ID: %s\n", identity)
}

func (c *Console) IdentityMismatch(expected, received string) {
	c.bad.Fprintln(c.w, "Error: Connected to wrong instrument!")
	fmt.Fprintf(c.w, "Expected: %s\n", expected)
	fmt.Fprintf(c.w, "Received: %s\n", received)
}

func (c *Console) SequenceStarted(samples int, delay time.Duration) {
	fmt.Fprintf(c.w, "Starting test sequence: %d samples, %s delay...\n", samples, delay)
}

func (c *Console) Acknowledged(command, ack string) {
	fmt.Fprintf(c.w, "Display command acknowledged: %s\n", ack)
}

func (c *Console) SampleRecorded(index, total int, rec datalog.Record) {
	fmt.Fprintf(c.w, " Sample %d/%d: %s%%\n", index, total, rec.Value)
}

func (c *Console) SampleFailed(index, total int, err error) {
	if errors.Is(err, ErrNoReading) {
		c.warn.Fprintf(c.w, " Sample %d/%d: Error reading value.\n", index, total)
		return
	}
	c.warn.Fprintf(c.w, " Sample %d/%d: Error reading value: %v\n", index, total, err)
}

func (c *Console) SequenceCompleted(summary Summary) {
	c.ok.Fprintln(c.w, "Test sequence complete.")
	fmt.Fprintf(c.w, "Recorded %d of %d samples", summary.Recorded, summary.Attempted)
	if summary.Numeric > 0 {
		fmt.Fprintf(c.w, " (min %.1f%%, mean %.1f%%, max %.1f%%)", summary.Min, summary.Mean, summary.Max)
	}
	fmt.Fprintln(c.w, ".")
}

func (c *Console) Failed(err error) {
	c.bad.Fprintf(c.w, "Error: %v\n", err)
}

func (c *Console) Disconnected() {
	fmt.Fprintln(c.w, "Disconnected.")
}
