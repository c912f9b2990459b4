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
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}

func TestTimeframeDuration(t *testing.T) {
    cases := map[string]time.Duration{
        "1m":  time.Minute,
        "5m":  5 * time.Minute,
        "15m": 15 * time.Minute,
        "1h":  time.Hour,
        "4h":  4 * time.Hour,
        "1d":  24 * time.Hour,
        "2h":  time.Minute,
    }
    for tf, want := range cases {
        if got := TimeframeDuration(tf); got != want {
            t.Errorf("%s: got %v want %v", tf, got, want)
        }
    }
}

func TestAlignFromTo(t *testing.T) {
    from := time.Date(2024, 10, 10, 10, 37, 12, 0, time.UTC)
    to := time.Date(2024, 10, 10, 14, 3, 0, 0, time.UTC)
    af, at := AlignFromTo(from, to, "1h")
    if af.Minute() != 0 || af.Hour() != 10 {
        t.Fatalf("unexpected aligned from %v", af)
    }
    if at.Minute() != 0 || at.Hour() != 14 {
        t.Fatalf("unexpected aligned to %v", at)
    }
}