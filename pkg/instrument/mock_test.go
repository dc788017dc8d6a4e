package instrument

import (
	"strconv"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/itohio/potlog/pkg/config"
)

func testMockConfig() *config.MockConfig {
	return &config.MockConfig{
		Identity:  "ArduinoSensorKit,v1.0,SN:SK12345",
		Center:    50,
		Amplitude: 40,
		Period:    10 * time.Second,
		Jitter:    2,
	}
}

func mockSession(t *testing.T, cfg *config.MockConfig, clk clock.Clock) *Session {
	t.Helper()
	s := New(testSerialConfig(), WithOpener(MockOpener(cfg, clk)))
	require.NoError(t, s.Connect())
	return s
}

func TestNewMock_NilConfig(t *testing.T) {
	dev := NewMock(nil, nil)
	assert.NotNil(t, dev)
	assert.NotNil(t, dev.cfg)
	assert.Equal(t, "ArduinoSensorKit,v1.0,SN:SK12345", dev.cfg.Identity)
	assert.Equal(t, 10*time.Second, dev.cfg.Period)
}

func TestMock_Identify(t *testing.T) {
	s := mockSession(t, testMockConfig(), clock.NewMock())

	got, err := s.Query(CmdIdentify)
	require.NoError(t, err)
	assert.Equal(t, "ArduinoSensorKit,v1.0,SN:SK12345", got)
}

func TestMock_Display(t *testing.T) {
	mock := NewMock(testMockConfig(), clock.NewMock())
	opener := func(string, *serial.Mode) (Port, error) { return mock, nil }
	s := New(testSerialConfig(), WithOpener(opener))
	require.NoError(t, s.Connect())

	got, err := s.Query(DisplayCommand("Logging..."))
	require.NoError(t, err)
	assert.Equal(t, "OK", got)
	assert.Equal(t, "Logging...", mock.Display())
}

func TestMock_UnknownCommand(t *testing.T) {
	s := mockSession(t, testMockConfig(), clock.NewMock())

	got, err := s.Query("MEAS:TEMP?")
	require.NoError(t, err)
	assert.Equal(t, "ERR", got)
}

func TestMock_MeasureRange(t *testing.T) {
	mockClock := clock.NewMock()
	s := mockSession(t, testMockConfig(), mockClock)

	for i := 0; i < 50; i++ {
		got, err := s.Query(CmdMeasure)
		require.NoError(t, err)

		value, err := strconv.Atoi(got)
		require.NoError(t, err, "reading %q should be an integer", got)
		assert.GreaterOrEqual(t, value, 0)
		assert.LessOrEqual(t, value, 100)

		mockClock.Add(333 * time.Millisecond)
	}
}

func TestMock_MeasureFollowsSine(t *testing.T) {
	cfg := testMockConfig()
	cfg.Jitter = 0
	mockClock := clock.NewMock()
	s := mockSession(t, cfg, mockClock)

	tests := []struct {
		advance time.Duration
		want    string
	}{
		{0, "50"},
		{2500 * time.Millisecond, "90"}, // quarter period
		{2500 * time.Millisecond, "50"}, // half period
		{2500 * time.Millisecond, "10"}, // three quarters
	}

	for _, tt := range tests {
		mockClock.Add(tt.advance)
		got, err := s.Query(CmdMeasure)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestMock_MeasureClamped(t *testing.T) {
	cfg := testMockConfig()
	cfg.Center = 90
	cfg.Amplitude = 50
	cfg.Jitter = 0
	mockClock := clock.NewMock()
	s := mockSession(t, cfg, mockClock)

	mockClock.Add(2500 * time.Millisecond)
	got, err := s.Query(CmdMeasure)
	require.NoError(t, err)
	assert.Equal(t, "100", got)
}

func TestMock_DropEvery(t *testing.T) {
	cfg := testMockConfig()
	cfg.DropEvery = 3
	s := mockSession(t, cfg, clock.NewMock())

	var empty []int
	for i := 1; i <= 9; i++ {
		got, err := s.Query(CmdMeasure)
		require.NoError(t, err)
		if got == "" {
			empty = append(empty, i)
		}
	}
	assert.Equal(t, []int{3, 6, 9}, empty)
}

func TestMock_Closed(t *testing.T) {
	mock := NewMock(testMockConfig(), clock.NewMock())
	require.NoError(t, mock.Close())

	_, err := mock.Write([]byte("*IDN?\n"))
	assert.Error(t, err)

	_, err = mock.Read(make([]byte, 1))
	assert.Error(t, err)
}
