// Package pseudorng provides software word sources: a crypto/rand-backed
// source used when no hardware device is attached, and a seeded
// deterministic generator for reproducible streams in tests and offline
// analysis.
package pseudorng

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	mrand "math/rand"

	"github.com/Thiagojm/otp_go_cli/otp"
)

// Detect for pseudorng always returns true, since software RNG is always available.
func Detect() (bool, error) { return true, nil }

// Source draws 32-bit words from crypto/rand. The zero value is ready to use.
type Source struct{}

// Open returns a crypto/rand word source. It never fails; the signature
// matches the hardware device packages.
func Open() (*Source, error) { return &Source{}, nil }

// Opener adapts Open to the otp generator contract.
func Opener() otp.OpenFunc {
	return func() (otp.WordSource, error) { return Open() }
}

// Uint32 draws one word from crypto/rand.
func (s *Source) Uint32() (uint32, error) {
	var b [4]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// Close is a no-op; crypto/rand holds no per-handle state.
func (s *Source) Close() error { return nil }

// Generator is a deterministic word source that can be seeded for
// reproducible streams. It uses math/rand with a 64-bit seed; seed material
// can be derived from crypto/rand.
type Generator struct {
	r *mrand.Rand
}

// NewGenerator creates a new deterministic generator. If seed is zero, a
// random seed is drawn from crypto/rand.
func NewGenerator(seed uint64) (*Generator, error) {
	if seed == 0 {
		var s [8]byte
		if _, err := crand.Read(s[:]); err != nil {
			return nil, err
		}
		seed = binary.LittleEndian.Uint64(s[:])
	}
	return &Generator{r: mrand.New(mrand.NewSource(int64(seed)))}, nil
}

// Opener hands out the generator itself on each open. The stream position
// advances across passwords, so successive generations differ while the
// whole run stays reproducible for a given seed.
func (g *Generator) Opener() otp.OpenFunc {
	return func() (otp.WordSource, error) {
		if g == nil || g.r == nil {
			return nil, errors.New("generator is nil")
		}
		return g, nil
	}
}

// Uint32 draws the next word from the deterministic stream.
func (g *Generator) Uint32() (uint32, error) {
	if g == nil || g.r == nil {
		return 0, errors.New("generator is nil")
	}
	return g.r.Uint32(), nil
}

// Close is a no-op; the generator owns no external resources.
func (g *Generator) Close() error { return nil }
