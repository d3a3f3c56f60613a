package truerng

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/Thiagojm/otp_go_cli/otp"
)

// DeviceNamePrefix is the prefix used in the device name/description to
// identify a TrueRNG serial device.
const DeviceNamePrefix = "TrueRNG"

// deviceBaudRate is the capture baud for TrueRNG models; the OS clamps it
// if the model tops out lower.
const deviceBaudRate = 3000000

// readDeadline bounds a single word draw. The device streams continuously,
// so hitting this means the port is wedged, not slow.
const readDeadline = 10 * time.Second

// Device is an open TrueRNG handle. It satisfies otp.WordSource: each
// Uint32 drains 4 fresh bytes from the hardware stream.
type Device struct {
	port serial.Port
	name string
}

// Detect returns true if a TrueRNG serial device is present on the system.
// It enumerates available serial ports and checks their friendly name or
// description for a TrueRNG prefix.
func Detect() (bool, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return false, fmt.Errorf("enumerating ports: %w", err)
	}
	for _, p := range ports {
		if isTrueRNG(p) {
			return true, nil
		}
	}
	return false, nil
}

// FindPort returns the first COM/tty port path for a detected TrueRNG
// device, e.g. "COM5" on Windows or "/dev/ttyACM0" on Linux.
func FindPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("enumerating ports: %w", err)
	}
	for _, p := range ports {
		if isTrueRNG(p) && p.Name != "" {
			return p.Name, nil
		}
	}
	return "", errors.New("TrueRNG device not found")
}

// Open locates the TrueRNG, opens its serial port, sets DTR to start the
// stream, and flushes any buffered input so the first draw is fresh.
func Open() (*Device, error) {
	portName, err := FindPort()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: deviceBaudRate,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}

	_ = port.SetDTR(true)
	_ = port.SetReadTimeout(1000 * time.Millisecond)
	// A stale input buffer would replay bytes buffered before DTR; dropping
	// it is best effort.
	_ = port.ResetInputBuffer()

	return &Device{port: port, name: portName}, nil
}

// Opener adapts Open to the otp generator contract. One handle is opened
// and closed per password.
func Opener() otp.OpenFunc {
	return func() (otp.WordSource, error) { return Open() }
}

// Uint32 reads the next 4 bytes from the hardware stream and packs them
// little-endian into one random word.
func (d *Device) Uint32() (uint32, error) {
	var buf [4]byte
	total := 0
	deadline := time.Now().Add(readDeadline)
	for total < len(buf) {
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("read timeout: got %d/%d bytes from %s", total, len(buf), d.name)
		}
		n, err := d.port.Read(buf[total:])
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", d.name, err)
		}
		total += n
		if n == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// Close releases the serial port.
func (d *Device) Close() error {
	return d.port.Close()
}

func isTrueRNG(p *enumerator.PortDetails) bool {
	if p == nil {
		return false
	}
	if p.IsUSB && hasPrefix(p.Product) {
		return true
	}
	if p.IsUSB && hasPrefix(p.SerialNumber) {
		return true
	}
	if hasPrefix(p.Name) {
		return true
	}
	if p.VID == "16D0" && (p.PID == "0AA0" || p.PID == "0AA2" || p.PID == "0AA4") { // Common TrueRNG VIDs/PIDs
		return true
	}
	return false
}

func hasPrefix(s string) bool {
	return len(s) >= len(DeviceNamePrefix) && s[:len(DeviceNamePrefix)] == DeviceNamePrefix
}
