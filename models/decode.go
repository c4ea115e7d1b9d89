package models

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"loan-sync/store"
)

// Millis is a Unix timestamp in milliseconds. Stores hand it back as
// numbers, numeric strings or timestamps; all of them decode to Millis.
type Millis int64

// NowMillis returns t as Millis.
func NowMillis(t time.Time) Millis {
	return Millis(t.UnixMilli())
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = ParseMillis(s)
		return nil
	}
	*m = ParseMillis(json.Number(data))
	return nil
}

// ParseMillis coerces v to Millis. Values that cannot be read as a number
// or a timestamp yield 0.
func ParseMillis(v any) Millis {
	switch x := v.(type) {
	case nil:
		return 0
	case Millis:
		return x
	case int:
		return Millis(x)
	case int32:
		return Millis(x)
	case int64:
		return Millis(x)
	case uint32:
		return Millis(x)
	case uint64:
		return Millis(x)
	case float32:
		return floatMillis(float64(x))
	case float64:
		return floatMillis(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return Millis(n)
		}
		if f, err := x.Float64(); err == nil {
			return floatMillis(f)
		}
		return 0
	case time.Time:
		if x.IsZero() {
			return 0
		}
		return NowMillis(x)
	case []byte:
		return ParseMillis(string(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Millis(n)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatMillis(f)
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return NowMillis(t)
			}
		}
	}
	return 0
}

func floatMillis(f float64) Millis {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return Millis(math.Trunc(f))
}

var (
	millisType = reflect.TypeOf(Millis(0))
	timeType   = reflect.TypeOf(time.Time{})
)

// millisHook routes every value headed for a Millis field through ParseMillis.
func millisHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != millisType {
		return data, nil
	}
	return int64(ParseMillis(data)), nil
}

// timeStringHook formats driver timestamps landing in text fields.
func timeStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from != timeType || to.Kind() != reflect.String {
		return data, nil
	}
	t := data.(time.Time)
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02"), nil
	}
	return t.Format(time.RFC3339Nano), nil
}

// decodeRecord fills a storage row struct from an untyped store record.
// Decoding is weakly typed so numeric strings, 0/1 booleans and the like
// from any driver land in the same fields.
func decodeRecord(rec store.Record, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(millisHook, timeStringHook),
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(rec))
}

// encodeRecord turns a storage row struct into a store record. Every column
// is written: a nil pointer becomes null and clears the stored value.
func encodeRecord(row any) store.Record {
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &out})
	if err != nil {
		return store.Record{}
	}
	if err := dec.Decode(row); err != nil {
		return store.Record{}
	}
	rec := make(store.Record, len(out))
	for k, v := range out {
		rec[k] = plain(v)
	}
	return rec
}

// plain unwraps named types and pointers so every driver gets builtin values.
func plain(v any) any {
	switch x := v.(type) {
	case Millis:
		return int64(x)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case *float64:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}
