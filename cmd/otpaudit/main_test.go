package main

import (
	"math"
	"testing"

	"github.com/Thiagojm/otp_go_cli/otp"
)

func TestCharWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for c := otp.PrintableMin; c <= otp.PrintableMax; c++ {
		sum += charWeight(byte(c))
	}
	if math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("weights sum to %v, want 1.0", sum)
	}
}

func TestCharWeight(t *testing.T) {
	tests := []struct {
		name string
		c    byte
		want float64
	}{
		{"bang is doubled by the low fold", '!', 2.0 / 128.0},
		{"A is the top of the low fold", 'A', 2.0 / 128.0},
		{"B falls outside the low fold", 'B', 1.0 / 128.0},
		{"caret receives the DEL fold", '^', 2.0 / 128.0},
		{"tilde is single weight", '~', 1.0 / 128.0},
		{"control bytes have no weight", 0x0A, 0},
		{"DEL has no weight", 0x7F, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := charWeight(tt.c); got != tt.want {
				t.Errorf("charWeight(%q) = %v, want %v", tt.c, got, tt.want)
			}
		})
	}
}

func TestTally(t *testing.T) {
	counts, err := tally([]string{"!!!!!!!!", "~~~~~~~~"})
	if err != nil {
		t.Fatalf("tally() unexpected error: %v", err)
	}
	if got := counts['!'-otp.PrintableMin]; got != 8 {
		t.Errorf("count('!') = %d, want 8", got)
	}
	if got := counts['~'-otp.PrintableMin]; got != 8 {
		t.Errorf("count('~') = %d, want 8", got)
	}
	if got := counts['A'-otp.PrintableMin]; got != 0 {
		t.Errorf("count('A') = %d, want 0", got)
	}
}

func TestTallyRejectsOutOfRange(t *testing.T) {
	if _, err := tally([]string{"abc\x7Fxyz!"}); err == nil {
		t.Error("tally() should reject DEL")
	}
	if _, err := tally([]string{"abcd efg"}); err == nil {
		t.Error("tally() should reject space")
	}
}

func TestBuildRowsZeroZScoreAtExpectation(t *testing.T) {
	// Construct counts that hit expectations exactly: 128 bytes distributed
	// per weight (2 each for the doubled characters, 1 for the rest).
	var counts [charSpan]int
	total := 0
	for i := 0; i < charSpan; i++ {
		c := byte(i) + otp.PrintableMin
		n := int(charWeight(c) * 128)
		counts[i] = n
		total += n
	}
	if total != 128 {
		t.Fatalf("test setup: total = %d, want 128", total)
	}
	rows := buildRows(counts, total)
	if len(rows) != charSpan {
		t.Fatalf("len(rows) = %d, want %d", len(rows), charSpan)
	}
	for _, r := range rows {
		if math.Abs(r.ZScore) > 1e-9 {
			t.Errorf("char %q: z-score = %v, want 0 at exact expectation", r.Char, r.ZScore)
		}
		if math.Abs(r.Expected-float64(r.Count)) > 1e-9 {
			t.Errorf("char %q: expected %v != count %d", r.Char, r.Expected, r.Count)
		}
	}
}
