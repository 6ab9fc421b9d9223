package display

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestConsoleInterimOverwritesInPlace(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, false)

	sink.Publish(Event{Kind: KindInterim, Text: "hel", CorrectedTime: 300 * time.Millisecond})
	sink.Publish(Event{Kind: KindInterim, Text: "hello", CorrectedTime: 600 * time.Millisecond})

	out := buf.String()
	if strings.Contains(out, "\n") {
		t.Fatalf("interim output must not emit newlines, got %q", out)
	}
	if strings.Count(out, "\r\033[K") != 2 {
		t.Fatalf("each interim should rewrite the line, got %q", out)
	}
	if !strings.Contains(out, "00:00.60  hello") {
		t.Fatalf("missing latest interim text, got %q", out)
	}
}

func TestConsoleFinalReplacesInterimAndEndsLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, false)

	sink.Publish(Event{Kind: KindInterim, Text: "hello wor", CorrectedTime: 900 * time.Millisecond})
	sink.Publish(Event{Kind: KindFinal, Text: "hello world", CorrectedTime: 1200 * time.Millisecond})

	out := buf.String()
	if !strings.HasSuffix(out, "00:01.20  hello world\n") {
		t.Fatalf("final should end its line, got %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected exactly one newline, got %q", out)
	}
}

func TestConsoleLifecycleBreaksOpenInterim(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, false)

	sink.Publish(Event{Kind: KindInterim, Text: "trailing", CorrectedTime: time.Second})
	sink.Publish(Event{Kind: KindLifecycle, Text: "new connection", CorrectedTime: 10 * time.Second})

	out := buf.String()
	if !strings.Contains(out, "trailing\n") {
		t.Fatalf("open interim line should be terminated before lifecycle output, got %q", out)
	}
	if !strings.Contains(out, "00:10.00  NEW CONNECTION\n") {
		t.Fatalf("lifecycle text should be uppercased with its offset, got %q", out)
	}
}

func TestConsoleTranslationTakesOwnLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, false)

	sink.Publish(Event{Kind: KindFinal, Text: "bonjour", CorrectedTime: 2 * time.Second})
	sink.Publish(Event{Kind: KindTranslation, Text: "hello", CorrectedTime: 2 * time.Second})

	out := buf.String()
	if !strings.Contains(out, "00:02.00  bonjour\n") || !strings.Contains(out, "00:02.00  hello\n") {
		t.Fatalf("final and translation should each take a line, got %q", out)
	}
}

func TestFormatOffset(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00.00"},
		{-time.Second, "00:00.00"},
		{1230 * time.Millisecond, "00:01.23"},
		{75 * time.Second, "01:15.00"},
		{10*time.Minute + 500*time.Millisecond, "10:00.50"},
	}
	for _, tc := range cases {
		if got := formatOffset(tc.d); got != tc.want {
			t.Errorf("formatOffset(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
