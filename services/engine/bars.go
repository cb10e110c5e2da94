package engine

import (
	"fmt"
	"time"
)

// Bar is a single OHLCV sample. Timestamps are UTC milliseconds at the open
// of the interval and must be strictly ascending within a series.
type Bar struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Time returns the bar's open time.
func (b Bar) Time() time.Time { return time.UnixMilli(b.Timestamp).UTC() }

// ValidateBars rejects series the simulator must never run against:
// unordered or duplicate timestamps, non-positive prices, inverted ranges,
// negative volume. Called once at ingestion so the hot loop can trust its
// input.
func ValidateBars(bars []Bar) error {
	var prevTs int64 = -1
	for i, b := range bars {
		if b.Timestamp <= prevTs {
			return fmt.Errorf("%w: bar %d timestamp %d not strictly ascending", ErrInvalidSeries, i, b.Timestamp)
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("%w: bar %d has non-positive price", ErrInvalidSeries, i)
		}
		if b.High < b.Low || b.High < b.Open || b.High < b.Close || b.Low > b.Open || b.Low > b.Close {
			return fmt.Errorf("%w: bar %d range does not contain open/close", ErrInvalidSeries, i)
		}
		if b.Volume < 0 {
			return fmt.Errorf("%w: bar %d has negative volume", ErrInvalidSeries, i)
		}
		prevTs = b.Timestamp
	}
	return nil
}

// AggregateBars folds a lower-timeframe series into timeframeMin-minute bars.
// Buckets are keyed by truncating the open timestamp to the timeframe
// boundary: open = first, high = max, low = min, close = last, volume = sum.
// Input must be ordered; output is ordered and includes the trailing partial
// bucket.
func AggregateBars(bars []Bar, timeframeMin int) []Bar {
	if timeframeMin <= 1 || len(bars) == 0 {
		out := make([]Bar, len(bars))
		copy(out, bars)
		return out
	}

	bucketMs := int64(timeframeMin) * 60_000
	out := make([]Bar, 0, len(bars)/timeframeMin+1)

	var cur Bar
	var curStart int64 = -1
	for _, b := range bars {
		start := b.Timestamp - b.Timestamp%bucketMs
		if start != curStart {
			if curStart >= 0 {
				out = append(out, cur)
			}
			cur = b
			cur.Timestamp = start
			curStart = start
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	if curStart >= 0 {
		out = append(out, cur)
	}
	return out
}

// TimeframeLabel renders minutes as the interval notation used by the bar
// store ("1m", "15m", "1h", "4h", "1d").
func TimeframeLabel(minutes int) string {
	switch {
	case minutes >= 1440 && minutes%1440 == 0:
		return fmt.Sprintf("%dd", minutes/1440)
	case minutes >= 60 && minutes%60 == 0:
		return fmt.Sprintf("%dh", minutes/60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
