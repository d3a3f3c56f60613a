// otpdetect reports which entropy devices are attached: TrueRNG serial
// devices and BitBabbler FTDI devices.
package main

import (
	"fmt"
	"os"

	"github.com/Thiagojm/otp_go_cli/bbusb"
	"github.com/Thiagojm/otp_go_cli/truerng"
)

func main() {
	exitCode := 0

	present, err := truerng.Detect()
	switch {
	case err != nil:
		fmt.Fprintf(os.Stderr, "TrueRNG detect error: %v\n", err)
		exitCode = 1
	case present:
		port, perr := truerng.FindPort()
		if perr != nil {
			fmt.Println("TrueRNG: present (port unknown)")
		} else {
			fmt.Printf("TrueRNG: present on %s\n", port)
		}
	default:
		fmt.Println("TrueRNG: not found")
	}

	ok, devices, err := bbusb.Detect()
	switch {
	case err != nil:
		fmt.Fprintf(os.Stderr, "BitBabbler detect error: %v\n", err)
		exitCode = 1
	case !ok:
		fmt.Println("BitBabbler: not found (VID 0x0403 PID 0x7840)")
	default:
		fmt.Printf("BitBabbler: %d device(s)\n", len(devices))
		for i, d := range devices {
			fmt.Printf("  Device %d:\n", i+1)
			if d.FriendlyName != "" {
				fmt.Printf("    Name: %s\n", d.FriendlyName)
			}
			if d.DevicePath != "" {
				fmt.Printf("    Path: %s\n", d.DevicePath)
			}
			for _, h := range d.HardwareIDs {
				fmt.Printf("    HWID: %s\n", h)
			}
		}
	}

	os.Exit(exitCode)
}
