package chartpack

import (
	"testing"

	"go.uber.org/zap"

	"futures-backtest/services/engine"
)

func sampleChart() engine.TimeframeChart {
	bars := []engine.Bar{
		{Timestamp: 0, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 250},
		{Timestamp: 60_000, Open: 100.5, High: 102, Low: 100, Close: 101.75, Volume: 310},
		{Timestamp: 120_000, Open: 101.75, High: 103, Low: 101.5, Close: 102.25, Volume: 190},
	}
	return engine.TimeframeChart{
		Timeframe: "1m",
		Bars:      bars,
		Series: []engine.ChartSeries{
			{Name: "sma_fast", Values: []float64{100.5, 101.1, 101.5}},
			{Name: "sma_slow", Values: []float64{100.5, 100.9, 101.2}},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec(zap.NewNop())
	src := sampleChart()

	data, err := codec.Encode("MNQ", src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, contractID, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if contractID != "MNQ" {
		t.Errorf("contract = %q", contractID)
	}
	if got.Timeframe != "1m" {
		t.Errorf("timeframe = %q", got.Timeframe)
	}
	if len(got.Bars) != len(src.Bars) {
		t.Fatalf("bars = %d, want %d", len(got.Bars), len(src.Bars))
	}
	for i := range src.Bars {
		if got.Bars[i] != src.Bars[i] {
			t.Errorf("bar %d = %+v, want %+v", i, got.Bars[i], src.Bars[i])
		}
	}
	if len(got.Series) != 2 {
		t.Fatalf("series = %d, want 2", len(got.Series))
	}
	for si, s := range got.Series {
		if s.Name != src.Series[si].Name {
			t.Errorf("series %d name = %q", si, s.Name)
		}
		for i, v := range s.Values {
			if v != src.Series[si].Values[i] {
				t.Errorf("series %s[%d] = %v, want %v", s.Name, i, v, src.Series[si].Values[i])
			}
		}
	}
}

func TestEncodeBundlePerTimeframe(t *testing.T) {
	codec := NewCodec(zap.NewNop())
	one := sampleChart()
	five := sampleChart()
	five.Timeframe = "5m"

	out, err := codec.EncodeBundle(&engine.ChartBundle{
		ContractID: "MNQ",
		Timeframes: []engine.TimeframeChart{one, five},
	})
	if err != nil {
		t.Fatalf("EncodeBundle: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("encoded timeframes = %d, want 2", len(out))
	}
	for _, tf := range []string{"1m", "5m"} {
		if len(out[tf]) == 0 {
			t.Errorf("timeframe %s missing or empty", tf)
		}
	}
}

func TestEncodeRejectsMisalignedSeries(t *testing.T) {
	codec := NewCodec(zap.NewNop())
	tc := sampleChart()
	tc.Series[0].Values = tc.Series[0].Values[:2]
	if _, err := codec.Encode("MNQ", tc); err == nil {
		t.Fatal("misaligned series must be rejected")
	}
}

func TestEncodeRejectsEmptyChart(t *testing.T) {
	codec := NewCodec(zap.NewNop())
	if _, err := codec.Encode("MNQ", engine.TimeframeChart{Timeframe: "1m"}); err == nil {
		t.Fatal("empty chart must be rejected")
	}
}
