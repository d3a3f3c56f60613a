// Package naming builds the timestamped file names used for audit exports,
// so a result file records when it was collected, from which device, and
// how many passwords it covers.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Device represents the entropy source used to generate passwords.
// Allowed values are: "trng" (TrueRNG), "bitb" (BitBabbler), and "pseudo" (PRNG).
type Device string

const (
	DeviceTrueRNG    Device = "trng"
	DeviceBitBabbler Device = "bitb"
	DevicePseudo     Device = "pseudo"
)

// Validate checks whether d is one of the allowed device identifiers.
func (d Device) Validate() error {
	if d == DeviceTrueRNG || d == DeviceBitBabbler || d == DevicePseudo {
		return nil
	}
	return fmt.Errorf("invalid device: %q (allowed: trng, bitb, pseudo)", string(d))
}

// BuildBaseName builds the base filename using the convention:
//
//	YYYYMMDDTHHMMSS_{device}_n{count}
//
// where device is one of {trng, bitb, pseudo} and count > 0 is the number
// of passwords in the audit run. The timestamp comes from the provided
// time instant.
func BuildBaseName(now time.Time, device Device, count int) (string, error) {
	if err := device.Validate(); err != nil {
		return "", err
	}
	if count <= 0 {
		return "", errors.New("count must be > 0")
	}
	stamp := now.Format("20060102T150405")
	return fmt.Sprintf("%s_%s_n%d", stamp, string(device), count), nil
}

// WithExt appends an extension (without leading dot) to a base name.
// If ext contains a leading dot, it is preserved once. Empty ext returns base.
func WithExt(base string, ext string) string {
	if ext == "" {
		return base
	}
	return base + "." + strings.TrimPrefix(ext, ".")
}

// JoinDir builds a path joining an optional directory with the filename.
// If dir is empty, it returns name as-is.
func JoinDir(dir string, name string) string {
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// BuildAuditPath builds the full .xlsx path for an audit export inside dir
// (dir may be empty).
func BuildAuditPath(dir string, now time.Time, device Device, count int) (string, error) {
	base, err := BuildBaseName(now, device, count)
	if err != nil {
		return "", err
	}
	return JoinDir(dir, WithExt(base, "xlsx")), nil
}
