// Package console implements the one-time-password terminal session: a
// clear-screen banner on startup, then a blocking loop that generates and
// prints a password each time the carriage-return byte arrives. The session
// runs over any io.Reader/io.Writer pair, typically stdio or a serial port
// at 115200 bps 8N1.
package console

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// asciiReturnCarriage is the only byte that triggers password generation.
// Serial terminals send CR (0x0D) for the Enter key.
const asciiReturnCarriage = 0x0D

// PortBaudRate is the terminal line speed (8N1).
const PortBaudRate = 115200

// clearScreen is the ANSI ESC sequence for clear screen and home cursor.
const clearScreen = "\x1b[2J\x1b[;H"

const screenHeader = "\r\n__________________________________________________" +
	"____________________________\r\n*\tTrue Random Number Generation" +
	"\r\n*\r\n*\tThis tool demonstrates generating a One-Time Password (OTP)" +
	"\r\n*\tusing a hardware true random number generator\r\n*\r\n*\t" +
	"Terminal Settings\tBaud Rate: 115200 bps 8N1\r\n*" +
	"\r\n__________________________________________________" +
	"____________________________\r\n\n"

const separator = "\r\n================================================" +
	"==============================\r\n"

const (
	promptFirst = "Press the Enter key to generate password\r\n"
	promptNext  = "Press the Enter key to generate new password\r\n"
)

// Session couples a terminal transport with a password generator.
type Session struct {
	// In delivers terminal input one byte at a time.
	In io.Reader
	// Out receives all terminal output.
	Out io.Writer
	// Generate produces one password per Enter keypress.
	Generate func() (string, error)
}

// Run clears the screen, prints the banner and prompt, then blocks reading
// input bytes until ctx is cancelled or In is exhausted. Only the
// carriage-return byte triggers generation; every other byte is ignored.
// A generation failure is reported on the terminal and the loop continues.
func (s *Session) Run(ctx context.Context) error {
	if _, err := fmt.Fprint(s.Out, clearScreen, screenHeader, promptFirst); err != nil {
		return fmt.Errorf("writing banner: %w", err)
	}

	var b [1]byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := s.In.Read(b[:])
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading terminal: %w", err)
		}
		if n == 0 || b[0] != asciiReturnCarriage {
			continue
		}

		pw, err := s.Generate()
		if err != nil {
			// The original silently skipped output here; an explicit line
			// keeps the operator from staring at a dead prompt.
			if _, werr := fmt.Fprintf(s.Out, "Password generation failed: %v\r\n", err); werr != nil {
				return fmt.Errorf("writing terminal: %w", werr)
			}
			continue
		}

		if _, err := fmt.Fprintf(s.Out, "One-Time Password: %s\r\n\n%s%s", pw, promptNext, separator); err != nil {
			return fmt.Errorf("writing terminal: %w", err)
		}
	}
}

// OpenPort opens a serial port configured for the terminal protocol:
// 115200 baud, 8 data bits, no parity, one stop bit.
func OpenPort(name string) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: PortBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return port, nil
}
