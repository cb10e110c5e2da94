// Package chartpack serializes chart bundles to Apache Arrow IPC so the
// charting frontend can consume candles and indicator overlays as columnar
// batches instead of JSON.
package chartpack

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"go.uber.org/zap"

	"futures-backtest/services/engine"
)

const (
	metaTimeframe = "timeframe"
	metaContract  = "contract_id"
)

// candleFieldCount is the number of leading non-indicator columns.
const candleFieldCount = 6

type Codec struct {
	alloc  memory.Allocator
	logger *zap.Logger
}

func NewCodec(logger *zap.Logger) *Codec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Codec{alloc: memory.NewGoAllocator(), logger: logger}
}

// Encode writes one timeframe's chart as a single-record Arrow IPC stream.
// The schema is dynamic: six candle columns followed by one float64 column
// per indicator series, with the timeframe carried in schema metadata.
func (c *Codec) Encode(contractID string, tc engine.TimeframeChart) ([]byte, error) {
	if len(tc.Bars) == 0 {
		return nil, fmt.Errorf("no bars to encode for timeframe %s", tc.Timeframe)
	}
	for _, s := range tc.Series {
		if len(s.Values) != len(tc.Bars) {
			return nil, fmt.Errorf("series %s has %d values for %d bars", s.Name, len(s.Values), len(tc.Bars))
		}
	}

	fields := []arrow.Field{
		{Name: "timestamp", Type: arrow.PrimitiveTypes.Int64},
		{Name: "open", Type: arrow.PrimitiveTypes.Float64},
		{Name: "high", Type: arrow.PrimitiveTypes.Float64},
		{Name: "low", Type: arrow.PrimitiveTypes.Float64},
		{Name: "close", Type: arrow.PrimitiveTypes.Float64},
		{Name: "volume", Type: arrow.PrimitiveTypes.Int64},
	}
	for _, s := range tc.Series {
		fields = append(fields, arrow.Field{Name: s.Name, Type: arrow.PrimitiveTypes.Float64})
	}
	meta := arrow.NewMetadata(
		[]string{metaTimeframe, metaContract},
		[]string{tc.Timeframe, contractID},
	)
	schema := arrow.NewSchema(fields, &meta)

	n := len(tc.Bars)
	timestamps := make([]int64, n)
	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]int64, n)
	for i, b := range tc.Bars {
		timestamps[i] = b.Timestamp
		opens[i] = b.Open
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	cols := make([]arrow.Array, 0, len(fields))
	release := func() {
		for _, col := range cols {
			col.Release()
		}
	}
	defer release()

	tsBuilder := array.NewInt64Builder(c.alloc)
	tsBuilder.AppendValues(timestamps, nil)
	cols = append(cols, tsBuilder.NewInt64Array())

	for _, vals := range [][]float64{opens, highs, lows, closes} {
		b := array.NewFloat64Builder(c.alloc)
		b.AppendValues(vals, nil)
		cols = append(cols, b.NewFloat64Array())
	}

	volBuilder := array.NewInt64Builder(c.alloc)
	volBuilder.AppendValues(volumes, nil)
	cols = append(cols, volBuilder.NewInt64Array())

	for _, s := range tc.Series {
		b := array.NewFloat64Builder(c.alloc)
		b.AppendValues(s.Values, nil)
		cols = append(cols, b.NewFloat64Array())
	}

	record := array.NewRecord(schema, cols, int64(n))
	defer record.Release()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(c.alloc))
	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("write arrow record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close arrow writer: %w", err)
	}

	c.logger.Debug("encoded chart timeframe",
		zap.String("timeframe", tc.Timeframe),
		zap.Int("bars", n),
		zap.Int("series", len(tc.Series)),
	)
	return buf.Bytes(), nil
}

// EncodeBundle encodes every timeframe of a bundle, keyed by its label.
func (c *Codec) EncodeBundle(bundle *engine.ChartBundle) (map[string][]byte, error) {
	out := make(map[string][]byte, len(bundle.Timeframes))
	for _, tc := range bundle.Timeframes {
		data, err := c.Encode(bundle.ContractID, tc)
		if err != nil {
			return nil, err
		}
		out[tc.Timeframe] = data
	}
	return out, nil
}

// Decode reads an IPC stream written by Encode back into a timeframe chart.
func (c *Codec) Decode(data []byte) (engine.TimeframeChart, string, error) {
	reader, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(c.alloc))
	if err != nil {
		return engine.TimeframeChart{}, "", fmt.Errorf("open arrow reader: %w", err)
	}
	defer reader.Release()

	if !reader.Next() {
		return engine.TimeframeChart{}, "", fmt.Errorf("arrow stream has no record")
	}
	record := reader.Record()
	schema := reader.Schema()

	var tc engine.TimeframeChart
	var contractID string
	md := schema.Metadata()
	if i := md.FindKey(metaTimeframe); i >= 0 {
		tc.Timeframe = md.Values()[i]
	}
	if i := md.FindKey(metaContract); i >= 0 {
		contractID = md.Values()[i]
	}

	if record.NumCols() < candleFieldCount {
		return engine.TimeframeChart{}, "", fmt.Errorf("record has %d columns, want at least %d", record.NumCols(), candleFieldCount)
	}
	timestamps := record.Column(0).(*array.Int64).Int64Values()
	opens := record.Column(1).(*array.Float64).Float64Values()
	highs := record.Column(2).(*array.Float64).Float64Values()
	lows := record.Column(3).(*array.Float64).Float64Values()
	closes := record.Column(4).(*array.Float64).Float64Values()
	volumes := record.Column(5).(*array.Int64).Int64Values()

	tc.Bars = make([]engine.Bar, len(timestamps))
	for i := range timestamps {
		tc.Bars[i] = engine.Bar{
			Timestamp: timestamps[i],
			Open:      opens[i],
			High:      highs[i],
			Low:       lows[i],
			Close:     closes[i],
			Volume:    volumes[i],
		}
	}

	for col := candleFieldCount; col < int(record.NumCols()); col++ {
		values := record.Column(col).(*array.Float64).Float64Values()
		copied := make([]float64, len(values))
		copy(copied, values)
		tc.Series = append(tc.Series, engine.ChartSeries{
			Name:   schema.Field(col).Name,
			Values: copied,
		})
	}
	return tc, contractID, nil
}
