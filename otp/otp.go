package otp

import (
	"fmt"
)

const (
	// Length is the number of characters in a generated password.
	Length = 8

	// asciiMask keeps the low 7 bits of an entropy byte, range [0,127].
	asciiMask = 0x7F

	// PrintableMin and PrintableMax bound the visible ASCII range the
	// password draws from. DEL (127) and everything below '!' are excluded.
	PrintableMin = 33
	PrintableMax = 126
)

// WordSource is one open handle on an entropy device. Uint32 draws a raw
// 32-bit random word; Close releases the handle. A handle is acquired and
// released exactly once per generated password.
type WordSource interface {
	Uint32() (uint32, error)
	Close() error
}

// OpenFunc acquires a WordSource. Each device package provides one.
type OpenFunc func() (WordSource, error)

// Printable maps one raw entropy byte into the visible ASCII range
// [PrintableMin, PrintableMax]. The byte is masked to 7 bits; values below
// '!' are shifted up by 33. After masking, the only remaining out-of-range
// value is 127 (DEL), which folds down to 94 ('^'). The fold keeps the
// range invariant exact instead of leaving DEL reachable.
func Printable(v byte) byte {
	v &= asciiMask
	if v < PrintableMin {
		return v + PrintableMin
	}
	if v > PrintableMax {
		return v - PrintableMin
	}
	return v
}

// Generate produces one password of Length visible ASCII characters.
//
// It acquires a word source via open, draws one 32-bit word per 4 output
// characters (bytes taken at bit offsets 0, 8, 16 and 24), maps each byte
// through Printable, and releases the source before returning. The source
// is released on every path, including draw errors.
func Generate(open OpenFunc) (string, error) {
	src, err := open()
	if err != nil {
		return "", fmt.Errorf("entropy source init: %w", err)
	}
	defer func() { _ = src.Close() }()

	var pw [Length]byte
	for i := 0; i < Length; {
		word, err := src.Uint32()
		if err != nil {
			return "", fmt.Errorf("entropy draw: %w", err)
		}
		for shift := 0; shift < 32 && i < Length; shift += 8 {
			pw[i] = Printable(byte(word >> shift))
			i++
		}
	}
	return string(pw[:]), nil
}
