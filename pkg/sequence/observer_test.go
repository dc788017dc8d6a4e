package sequence

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/itohio/potlog/pkg/datalog"
)

func newTestConsole(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	return NewConsole(&buf), &buf
}

func TestConsole_IdentityMismatch(t *testing.T) {
	c, buf := newTestConsole(t)

	c.IdentityMismatch("ArduinoSensorKit,v1.0,SN:SK12345", "WrongDevice,v2.0")

	assert.Equal(t, "Error: Connected to wrong instrument!\n"+
		"Expected: ArduinoSensorKit,v1.0,SN:SK12345\n"+
		"Received: WrongDevice,v2.0\n", buf.String())
}

func TestConsole_Samples(t *testing.T) {
	c, buf := newTestConsole(t)

	c.SequenceStarted(3, 500*time.Millisecond)
	c.SampleRecorded(1, 3, datalog.Record{Value: "42"})
	c.SampleFailed(2, 3, ErrNoReading)
	c.SampleFailed(3, 3, errors.New("broken pipe"))

	assert.Equal(t, "Starting test sequence: 3 samples, 500ms delay...\n"+
		" Sample 1/3: 42%\n"+
		" Sample 2/3: Error reading value.\n"+
		" Sample 3/3: Error reading value: broken pipe\n", buf.String())
}

func TestConsole_SequenceCompleted(t *testing.T) {
	tests := []struct {
		name    string
		summary Summary
		want    string
	}{
		{
			name:    "numeric values",
			summary: Summary{Attempted: 3, Recorded: 3, Numeric: 3, Min: 41, Mean: 42, Max: 43},
			want:    "Test sequence complete.\nRecorded 3 of 3 samples (min 41.0%, mean 42.0%, max 43.0%).\n",
		},
		{
			name:    "nothing recorded",
			summary: Summary{Attempted: 2, Failed: 2},
			want:    "Test sequence complete.\nRecorded 0 of 2 samples.\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, buf := newTestConsole(t)
			c.SequenceCompleted(tt.summary)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestConsole_Lifecycle(t *testing.T) {
	c, buf := newTestConsole(t)

	c.LogCreated("potentiometer_log.csv")
	c.Connected()
	c.Identified("ArduinoSensorKit,v1.0,SN:SK12345")
	c.Acknowledged("DISP:MSG Logging...", "OK")
	c.Failed(errors.New("boom"))
	c.Disconnected()

	assert.Equal(t, "Created new log file: potentiometer_log.csv\n"+
		"Connection established.\n"+
		"Instrument ID: ArduinoSensorKit,v1.0,SN:SK12345\n"+
		"Display command acknowledged: OK\n"+
		"Error: boom\n"+
		"Disconnected.\n", buf.String())
}

func TestSummary_AddStats(t *testing.T) {
	var s Summary
	s.addStats([]string{"10", "abc", "20", "30.5", ""})

	assert.Equal(t, 3, s.Numeric)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 30.5, s.Max)
	assert.InDelta(t, 20.1666, s.Mean, 1e-3)
}

func TestSummary_AddStats_Empty(t *testing.T) {
	var s Summary
	s.addStats(nil)
	assert.Equal(t, Summary{}, s)
}
