package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Alias1177/volregime/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Columns is a column-major window: column name -> slice of values.
// Accepted slice types are []float64, []int64, []string, []time.Time and []any.
type Columns map[string]any

// Rows is a row-major window with a header naming each position
type Rows struct {
	Header []string
	Data   [][]any
}

// Records is a row-major window of named fields
type Records []map[string]any

var aliases = map[string]string{
	"open":        "open",
	"o":           "open",
	"high":        "high",
	"h":           "high",
	"low":         "low",
	"l":           "low",
	"close":       "close",
	"c":           "close",
	"volume":      "volume",
	"vol":         "volume",
	"v":           "volume",
	"tick_volume": "volume",
	"timestamp":   "time",
	"time":        "time",
	"datetime":    "time",
	"date":        "time",
	"t":           "time",
}

// row is one bar before validation
type row struct {
	t          time.Time
	hasTime    bool
	o, h, l, c float64
	v          float64
	hasVolume  bool
}

// Window converts any accepted window shape into ascending, validated candles.
// It returns nil when fewer than two valid rows remain or a required OHLC
// column is missing; it never panics on malformed input.
// end anchors a synthesized time axis when the input carries no timestamps.
func Window(raw any, tf models.Timeframe, end time.Time) (candles []models.Candle) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("component", "normalize").Interface("panic", r).Msg("Malformed window rejected")
			candles = nil
		}
	}()

	var rows []row
	var ok bool
	switch in := raw.(type) {
	case nil:
		return nil
	case []models.Candle:
		rows, ok = fromCandles(in), true
	case Columns:
		rows, ok = fromColumns(in)
	case map[string]any:
		rows, ok = fromColumns(Columns(in))
	case map[string][]float64:
		cols := make(Columns, len(in))
		for k, v := range in {
			cols[k] = v
		}
		rows, ok = fromColumns(cols)
	case Rows:
		rows, ok = fromRows(in)
	case *Rows:
		if in == nil {
			return nil
		}
		rows, ok = fromRows(*in)
	case Records:
		rows, ok = fromRecords(in)
	case []map[string]any:
		rows, ok = fromRecords(Records(in))
	case [][]float64:
		data := make([][]any, len(in))
		for i, r := range in {
			data[i] = make([]any, len(r))
			for j, v := range r {
				data[i][j] = v
			}
		}
		rows, ok = fromArrays(data)
	case [][]any:
		rows, ok = fromArrays(in)
	default:
		log.Debug().Str("component", "normalize").Str("type", fmt.Sprintf("%T", raw)).Msg("Unsupported window shape")
		return nil
	}
	if !ok {
		return nil
	}
	return finish(rows, tf, end)
}

func fromCandles(in []models.Candle) []row {
	rows := make([]row, len(in))
	for i, c := range in {
		rows[i] = row{
			t: c.Timestamp, hasTime: !c.Timestamp.IsZero(),
			o: c.Open, h: c.High, l: c.Low, c: c.Close,
			v: c.Volume, hasVolume: c.HasVolume || c.Volume > 0,
		}
	}
	return rows
}

func fromColumns(in Columns) ([]row, bool) {
	cols := make(map[string][]any, len(in))
	for name, values := range in {
		key, known := aliases[strings.ToLower(strings.TrimSpace(name))]
		if !known {
			continue
		}
		cols[key] = toSlice(values)
	}
	for _, req := range []string{"open", "high", "low", "close"} {
		if _, ok := cols[req]; !ok {
			return nil, false
		}
	}

	n := len(cols["close"])
	for _, req := range []string{"open", "high", "low"} {
		if len(cols[req]) < n {
			n = len(cols[req])
		}
	}

	rows := make([]row, 0, n)
	for i := 0; i < n; i++ {
		fields := make(map[string]any, len(cols))
		for k, vals := range cols {
			if i < len(vals) {
				fields[k] = vals[i]
			}
		}
		if r, ok := parseRow(fields); ok {
			rows = append(rows, r)
		}
	}
	return rows, true
}

func fromRows(in Rows) ([]row, bool) {
	index := make(map[string]int, len(in.Header))
	for i, name := range in.Header {
		if key, known := aliases[strings.ToLower(strings.TrimSpace(name))]; known {
			index[key] = i
		}
	}
	for _, req := range []string{"open", "high", "low", "close"} {
		if _, ok := index[req]; !ok {
			return nil, false
		}
	}

	rows := make([]row, 0, len(in.Data))
	for _, data := range in.Data {
		fields := make(map[string]any, len(index))
		for key, pos := range index {
			if pos < len(data) {
				fields[key] = data[pos]
			}
		}
		if r, ok := parseRow(fields); ok {
			rows = append(rows, r)
		}
	}
	return rows, true
}

func fromRecords(in Records) ([]row, bool) {
	rows := make([]row, 0, len(in))
	seenOHLC := false
	for _, rec := range in {
		fields := make(map[string]any, len(rec))
		for name, v := range rec {
			if key, known := aliases[strings.ToLower(strings.TrimSpace(name))]; known {
				fields[key] = v
			}
		}
		if hasOHLC(fields) {
			seenOHLC = true
		}
		if r, ok := parseRow(fields); ok {
			rows = append(rows, r)
		}
	}
	return rows, seenOHLC
}

// fromArrays reads headerless rows: [o,h,l,c], [o,h,l,c,v] or [t,o,h,l,c,v]
func fromArrays(in [][]any) ([]row, bool) {
	rows := make([]row, 0, len(in))
	for _, data := range in {
		var fields map[string]any
		switch len(data) {
		case 4:
			fields = map[string]any{"open": data[0], "high": data[1], "low": data[2], "close": data[3]}
		case 5:
			fields = map[string]any{"open": data[0], "high": data[1], "low": data[2], "close": data[3], "volume": data[4]}
		case 6:
			fields = map[string]any{"time": data[0], "open": data[1], "high": data[2], "low": data[3], "close": data[4], "volume": data[5]}
		default:
			return nil, false
		}
		if r, ok := parseRow(fields); ok {
			rows = append(rows, r)
		}
	}
	return rows, true
}

func hasOHLC(fields map[string]any) bool {
	for _, req := range []string{"open", "high", "low", "close"} {
		if _, ok := fields[req]; !ok {
			return false
		}
	}
	return true
}

func parseRow(fields map[string]any) (row, bool) {
	var r row
	var ok bool
	if r.o, ok = toFloat(fields["open"]); !ok {
		return r, false
	}
	if r.h, ok = toFloat(fields["high"]); !ok {
		return r, false
	}
	if r.l, ok = toFloat(fields["low"]); !ok {
		return r, false
	}
	if r.c, ok = toFloat(fields["close"]); !ok {
		return r, false
	}
	if v, ok := toFloat(fields["volume"]); ok && v >= 0 {
		r.v, r.hasVolume = v, true
	}
	if t, ok := toTime(fields["time"]); ok {
		r.t, r.hasTime = t, true
	}
	return r, true
}

// finish validates rows, fixes the time axis and orders bars ascending
func finish(rows []row, tf models.Timeframe, end time.Time) []models.Candle {
	valid := rows[:0]
	dropped := 0
	for _, r := range rows {
		if !consistent(r) {
			dropped++
			continue
		}
		valid = append(valid, r)
	}
	if dropped > 0 {
		log.Debug().Str("component", "normalize").Int("dropped", dropped).Msg("Dropped inconsistent rows")
	}
	if len(valid) < 2 {
		return nil
	}

	timed := true
	for _, r := range valid {
		if !r.hasTime {
			timed = false
			break
		}
	}
	if !timed {
		step := tf.Duration()
		if step <= 0 {
			step = time.Minute
		}
		if end.IsZero() {
			end = time.Now().UTC().Truncate(step)
		}
		for i := range valid {
			valid[i].t = end.Add(-time.Duration(len(valid)-1-i) * step)
		}
	}

	sort.SliceStable(valid, func(i, j int) bool { return valid[i].t.Before(valid[j].t) })

	candles := make([]models.Candle, 0, len(valid))
	for _, r := range valid {
		c := models.Candle{
			Timestamp: r.t.UTC(),
			Open:      r.o,
			High:      r.h,
			Low:       r.l,
			Close:     r.c,
			Volume:    r.v,
			HasVolume: r.hasVolume,
		}
		// duplicate timestamps: the later row wins
		if n := len(candles); n > 0 && candles[n-1].Timestamp.Equal(c.Timestamp) {
			candles[n-1] = c
			continue
		}
		candles = append(candles, c)
	}
	if len(candles) < 2 {
		return nil
	}
	return candles
}

func consistent(r row) bool {
	for _, v := range []float64{r.o, r.h, r.l, r.c} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if r.h < r.l {
		return false
	}
	return r.h >= math.Max(r.o, r.c) && r.l <= math.Min(r.o, r.c)
}

func toSlice(values any) []any {
	switch vs := values.(type) {
	case []any:
		return vs
	case []float64:
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = v
		}
		return out
	case []int64:
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = v
		}
		return out
	case []int:
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = v
		}
		return out
	case []string:
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = v
		}
		return out
	case []time.Time:
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = v
		}
		return out
	case []*float64:
		out := make([]any, len(vs))
		for i, v := range vs {
			if v != nil {
				out[i] = *v
			}
		}
		return out
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case *float64:
		if x == nil {
			return 0, false
		}
		f = *x
	case decimal.Decimal:
		f = x.InexactFloat64()
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return 0, false
		}
		f = d.InexactFloat64()
	case string:
		s := strings.TrimSpace(x)
		if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "none") || strings.EqualFold(s, "null") {
			return 0, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, false
		}
		f = d.InexactFloat64()
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return *x, true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return fromUnix(n)
		}
		return time.Time{}, false
	}
	if n, ok := toFloat(v); ok {
		return fromUnix(n)
	}
	return time.Time{}, false
}

// fromUnix accepts seconds or milliseconds since the epoch
func fromUnix(n float64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	return time.Unix(int64(n), 0).UTC(), true
}
