package otp

import (
	"errors"
	"math/rand"
	"testing"
)

// fakeSource replays a fixed sequence of words and records handle lifecycle.
type fakeSource struct {
	words   []uint32
	next    int
	failAt  int // draw index that returns an error; -1 to disable
	draws   int
	closes  int
	drawErr error
}

func (f *fakeSource) Uint32() (uint32, error) {
	if f.failAt >= 0 && f.draws == f.failAt {
		f.draws++
		return 0, f.drawErr
	}
	f.draws++
	w := f.words[f.next%len(f.words)]
	f.next++
	return w, nil
}

func (f *fakeSource) Close() error {
	f.closes++
	return nil
}

func TestPrintable(t *testing.T) {
	tests := []struct {
		name string
		in   byte
		want byte
	}{
		{"zero shifts to bang", 0x00, 33},
		{"below bound shifts up", 0x20, 65},
		{"lower bound unchanged", 0x21, 33},
		{"upper bound unchanged", 0x7E, 126},
		{"DEL folds to caret", 0x7F, 94},
		{"high bit is masked", 0xA0, 65},
		{"masked DEL folds too", 0xFF, 94},
		{"mid range unchanged", 0x41, 'A'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Printable(tt.in); got != tt.want {
				t.Errorf("Printable(%#02x) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestPrintableRangeInvariant(t *testing.T) {
	for v := 0; v < 256; v++ {
		got := Printable(byte(v))
		if got < PrintableMin || got > PrintableMax {
			t.Errorf("Printable(%#02x) = %d, outside [%d,%d]", v, got, PrintableMin, PrintableMax)
		}
	}
}

func TestGenerateFromFixedWords(t *testing.T) {
	tests := []struct {
		name  string
		words []uint32
		want  string
	}{
		{
			name:  "all zero words",
			words: []uint32{0, 0},
			want:  "!!!!!!!!",
		},
		{
			name:  "bytes taken low offset first",
			words: []uint32{0x44434241, 0x48474645},
			want:  "ABCDEFGH",
		},
		{
			name:  "boundary values per byte",
			words: []uint32{0x7F7E2100, 0x7F7E2100},
			want:  "!!~^!!~^",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{words: tt.words, failAt: -1}
			got, err := Generate(func() (WordSource, error) { return src, nil })
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Generate() = %q, want %q", got, tt.want)
			}
			if src.draws != 2 {
				t.Errorf("draws = %d, want 2 (one word per 4 characters)", src.draws)
			}
		})
	}
}

func TestGenerateInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		src := &fakeSource{words: []uint32{r.Uint32(), r.Uint32()}, failAt: -1}
		pw, err := Generate(func() (WordSource, error) { return src, nil })
		if err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		if len(pw) != Length {
			t.Fatalf("len = %d, want %d", len(pw), Length)
		}
		for j := 0; j < len(pw); j++ {
			if pw[j] < PrintableMin || pw[j] > PrintableMax {
				t.Fatalf("password %q byte %d = %d, outside [%d,%d]", pw, j, pw[j], PrintableMin, PrintableMax)
			}
		}
	}
}

func TestGenerateReleasesSourceOnce(t *testing.T) {
	src := &fakeSource{words: []uint32{0xDEADBEEF}, failAt: -1}
	if _, err := Generate(func() (WordSource, error) { return src, nil }); err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}
	if src.closes != 1 {
		t.Errorf("closes = %d, want 1", src.closes)
	}
}

func TestGenerateReleasesSourceOnDrawError(t *testing.T) {
	drawErr := errors.New("device went away")
	src := &fakeSource{words: []uint32{0}, failAt: 1, drawErr: drawErr}
	pw, err := Generate(func() (WordSource, error) { return src, nil })
	if !errors.Is(err, drawErr) {
		t.Fatalf("Generate() error = %v, want wrapped %v", err, drawErr)
	}
	if pw != "" {
		t.Errorf("Generate() = %q, want empty string on error", pw)
	}
	if src.closes != 1 {
		t.Errorf("closes = %d, want 1 even after draw error", src.closes)
	}
}

func TestGenerateOpenFailure(t *testing.T) {
	openErr := errors.New("no device")
	pw, err := Generate(func() (WordSource, error) { return nil, openErr })
	if !errors.Is(err, openErr) {
		t.Fatalf("Generate() error = %v, want wrapped %v", err, openErr)
	}
	if pw != "" {
		t.Errorf("Generate() = %q, want empty string when init fails", pw)
	}
}
