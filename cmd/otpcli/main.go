// otpcli runs the one-time-password terminal. Each Enter keypress draws
// raw words from the selected entropy device and prints an 8-character
// password of visible ASCII. The terminal runs on stdio by default, or on
// a serial port at 115200 8N1 with -port.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/Thiagojm/otp_go_cli/bbusb"
	"github.com/Thiagojm/otp_go_cli/console"
	"github.com/Thiagojm/otp_go_cli/naming"
	"github.com/Thiagojm/otp_go_cli/otp"
	"github.com/Thiagojm/otp_go_cli/pseudorng"
	"github.com/Thiagojm/otp_go_cli/truerng"
)

func main() {
	deviceFlag := flag.String("device", "pseudo", "entropy device: pseudo|trng|bitb")
	portFlag := flag.String("port", "", "serve the terminal over this serial port instead of stdio (e.g. COM3, /dev/ttyUSB0)")
	flag.Parse()

	var dev naming.Device
	switch *deviceFlag {
	case string(naming.DevicePseudo):
		dev = naming.DevicePseudo
	case string(naming.DeviceTrueRNG):
		dev = naming.DeviceTrueRNG
	case string(naming.DeviceBitBabbler):
		dev = naming.DeviceBitBabbler
	default:
		log.Fatalf("invalid -device: %s (allowed: pseudo, trng, bitb)", *deviceFlag)
	}

	var open otp.OpenFunc
	switch dev {
	case naming.DevicePseudo:
		open = pseudorng.Opener()
	case naming.DeviceTrueRNG:
		present, err := truerng.Detect()
		if err != nil {
			log.Fatalf("trng detect: %v", err)
		}
		if !present {
			log.Fatal("TrueRNG device not found")
		}
		open = truerng.Opener()
	case naming.DeviceBitBabbler:
		ok, devices, err := bbusb.Detect()
		if err != nil {
			log.Fatalf("bitb detect: %v", err)
		}
		if !ok {
			log.Fatal("No BitBabbler devices found (VID 0x0403 PID 0x7840)")
		}
		sess, err := bbusb.Open(0, 0)
		if err != nil {
			log.Fatalf("bitb open: %v", err)
		}
		defer sess.Close()
		if len(devices) > 0 && devices[0].FriendlyName != "" {
			log.Printf("using BitBabbler: %s", devices[0].FriendlyName)
		}
		open = sess.Opener()
	}

	session := &console.Session{
		In:       os.Stdin,
		Out:      os.Stdout,
		Generate: func() (string, error) { return otp.Generate(open) },
	}
	if *portFlag != "" {
		port, err := console.OpenPort(*portFlag)
		if err != nil {
			log.Fatalf("open terminal port: %v", err)
		}
		defer func() { _ = port.Close() }()
		session.In = port
		session.Out = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("terminal session: %v", err)
	}
}
