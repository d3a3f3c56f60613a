//go:build !windows

package bbusb

import (
	"fmt"

	"github.com/google/gousb"
)

// Detect returns whether a BitBabbler device (VID 0x0403, PID 0x7840) is
// present and a slice of device infos. On non-Windows systems it enumerates
// via libusb without claiming the device.
func Detect() (bool, []DeviceInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var results []DeviceInfo
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(ftdiVendorID) && desc.Product == gousb.ID(bbProductID)
	})
	for _, d := range devs {
		info := DeviceInfo{
			DevicePath: fmt.Sprintf("bus %03d device %03d", d.Desc.Bus, d.Desc.Address),
		}
		if product, perr := d.Product(); perr == nil && product != "" {
			info.FriendlyName = product
		}
		results = append(results, info)
		d.Close()
	}
	if err != nil && len(results) == 0 {
		return false, nil, fmt.Errorf("enumerating USB devices: %w", err)
	}
	return len(results) > 0, results, nil
}
