package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func runSession(t *testing.T, input []byte, generate func() (string, error)) string {
	t.Helper()
	var out bytes.Buffer
	s := &Session{
		In:       bytes.NewReader(input),
		Out:      &out,
		Generate: generate,
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	return out.String()
}

func fixedPassword(pw string) func() (string, error) {
	return func() (string, error) { return pw, nil }
}

func TestRunPrintsBannerAndPrompt(t *testing.T) {
	out := runSession(t, nil, fixedPassword("AAAAAAAA"))
	if !strings.HasPrefix(out, clearScreen) {
		t.Error("output does not start with the clear-screen sequence")
	}
	if !strings.Contains(out, "One-Time Password (OTP)") {
		t.Error("banner missing from output")
	}
	if !strings.Contains(out, promptFirst) {
		t.Error("initial prompt missing from output")
	}
}

func TestRunGeneratesOnCarriageReturn(t *testing.T) {
	out := runSession(t, []byte{asciiReturnCarriage}, fixedPassword(`Ab3$x9!Q`))
	if !strings.Contains(out, "One-Time Password: Ab3$x9!Q\r\n\n") {
		t.Errorf("password line missing or malformed:\n%s", out)
	}
	if !strings.Contains(out, promptNext) {
		t.Error("follow-up prompt missing")
	}
	if !strings.Contains(out, separator) {
		t.Error("separator banner missing")
	}
}

func TestRunIgnoresOtherBytes(t *testing.T) {
	calls := 0
	input := []byte{'a', 'Z', 0x0A, 0x1B, 0x00, ' ', 0x7F}
	out := runSession(t, input, func() (string, error) {
		calls++
		return "XXXXXXXX", nil
	})
	if calls != 0 {
		t.Errorf("generator called %d times for non-CR input, want 0", calls)
	}
	if strings.Contains(out, "One-Time Password:") {
		t.Error("password printed without a CR trigger")
	}
}

func TestRunTriggersOncePerCarriageReturn(t *testing.T) {
	calls := 0
	input := []byte{'x', 0x0D, 0x0A, 0x0D, 'y'}
	runSession(t, input, func() (string, error) {
		calls++
		return "XXXXXXXX", nil
	})
	if calls != 2 {
		t.Errorf("generator called %d times, want 2", calls)
	}
}

func TestRunReportsGenerationFailure(t *testing.T) {
	genErr := errors.New("entropy source init: no device")
	out := runSession(t, []byte{0x0D}, func() (string, error) { return "", genErr })
	if strings.Contains(out, "One-Time Password:") {
		t.Error("password line printed despite generation failure")
	}
	if !strings.Contains(out, "Password generation failed") {
		t.Error("failure not reported on the terminal")
	}
	if !strings.Contains(out, "no device") {
		t.Error("failure cause missing from report")
	}
}

func TestRunContinuesAfterFailure(t *testing.T) {
	calls := 0
	out := runSession(t, []byte{0x0D, 0x0D}, func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "GOODPASS", nil
	})
	if calls != 2 {
		t.Fatalf("generator called %d times, want 2", calls)
	}
	if !strings.Contains(out, "One-Time Password: GOODPASS") {
		t.Error("second generation did not produce output")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Session{
		In:       bytes.NewReader([]byte{0x0D}),
		Out:      &bytes.Buffer{},
		Generate: fixedPassword("XXXXXXXX"),
	}
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
