package engine

import (
	"testing"
)

func mkBar(ts int64, o, h, l, c float64, v int64) Bar {
	return Bar{Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestValidateBarsAcceptsOrderedSeries(t *testing.T) {
	bars := []Bar{
		mkBar(0, 10, 11, 9, 10.5, 100),
		mkBar(60_000, 10.5, 12, 10, 11, 50),
	}
	if err := ValidateBars(bars); err != nil {
		t.Fatalf("ValidateBars: %v", err)
	}
}

func TestValidateBarsRejections(t *testing.T) {
	cases := []struct {
		name string
		bars []Bar
	}{
		{"duplicate timestamp", []Bar{mkBar(0, 10, 11, 9, 10, 1), mkBar(0, 10, 11, 9, 10, 1)}},
		{"descending timestamp", []Bar{mkBar(60_000, 10, 11, 9, 10, 1), mkBar(0, 10, 11, 9, 10, 1)}},
		{"negative price", []Bar{mkBar(0, -1, 11, 9, 10, 1)}},
		{"zero price", []Bar{mkBar(0, 10, 11, 9, 0, 1)}},
		{"high below low", []Bar{mkBar(0, 10, 9, 11, 10, 1)}},
		{"close above high", []Bar{mkBar(0, 10, 11, 9, 12, 1)}},
		{"negative volume", []Bar{mkBar(0, 10, 11, 9, 10, -1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateBars(tc.bars)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if ErrorCode(err) != CodeInvalidConfig {
				t.Fatalf("code = %s, want %s", ErrorCode(err), CodeInvalidConfig)
			}
		})
	}
}

func TestAggregateBarsFiveMinute(t *testing.T) {
	// Five 1m bars starting mid-bucket plus one bar in the next bucket.
	var bars []Bar
	for i := 0; i < 5; i++ {
		ts := int64(i) * 60_000
		bars = append(bars, mkBar(ts, 10+float64(i), 12+float64(i), 9+float64(i), 11+float64(i), 10))
	}
	bars = append(bars, mkBar(5*60_000, 20, 25, 19, 24, 7))

	out := AggregateBars(bars, 5)
	if len(out) != 2 {
		t.Fatalf("buckets = %d, want 2", len(out))
	}
	first := out[0]
	if first.Timestamp != 0 {
		t.Errorf("bucket timestamp = %d, want 0", first.Timestamp)
	}
	if first.Open != 10 || first.Close != 15 {
		t.Errorf("open/close = %v/%v, want 10/15", first.Open, first.Close)
	}
	if first.High != 16 || first.Low != 9 {
		t.Errorf("high/low = %v/%v, want 16/9", first.High, first.Low)
	}
	if first.Volume != 50 {
		t.Errorf("volume = %d, want 50", first.Volume)
	}
	if out[1].Volume != 7 || out[1].Open != 20 {
		t.Errorf("trailing partial bucket not preserved: %+v", out[1])
	}
}

func TestAggregateBarsIdentityForOneMinute(t *testing.T) {
	bars := []Bar{mkBar(0, 10, 11, 9, 10, 1), mkBar(60_000, 10, 11, 9, 10, 1)}
	out := AggregateBars(bars, 1)
	if len(out) != len(bars) {
		t.Fatalf("len = %d, want %d", len(out), len(bars))
	}
	out[0].Close = 999
	if bars[0].Close == 999 {
		t.Fatal("aggregation must not alias the input")
	}
}

func TestTimeframeLabel(t *testing.T) {
	cases := map[int]string{1: "1m", 5: "5m", 15: "15m", 60: "1h", 240: "4h", 1440: "1d", 90: "90m"}
	for minutes, want := range cases {
		if got := TimeframeLabel(minutes); got != want {
			t.Errorf("TimeframeLabel(%d) = %q, want %q", minutes, got, want)
		}
	}
}
