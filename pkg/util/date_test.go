package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok || got.Unix() != ts {
		t.Fatalf("unexpected unix %v ok=%v", got.Unix(), ok)
	}
	if _, ok := ParseTime("-5"); ok {
		t.Fatalf("negative unix accepted")
	}
}

func TestDefaults(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default time")
	}
	if got := ParseIntDefault("x", 7); got != 7 {
		t.Fatalf("int default = %d", got)
	}
	if got := ClampInt(500, 1, 100); got != 100 {
		t.Fatalf("clamp = %d", got)
	}
}
