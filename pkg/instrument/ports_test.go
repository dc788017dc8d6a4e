package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortInfo_Description(t *testing.T) {
	tests := []struct {
		name string
		port PortInfo
		want string
	}{
		{
			name: "plain port",
			port: PortInfo{Name: "/dev/ttyS0"},
			want: "/dev/ttyS0",
		},
		{
			name: "usb without details",
			port: PortInfo{Name: "COM3", IsUSB: true, VID: "2341", PID: "0043"},
			want: "COM3 [USB 2341:0043]",
		},
		{
			name: "usb with product and serial",
			port: PortInfo{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043", Product: "Arduino Uno", SerialNumber: "7563"},
			want: "/dev/ttyACM0 [USB 2341:0043] Arduino Uno SN:7563",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.port.Description())
		})
	}
}
