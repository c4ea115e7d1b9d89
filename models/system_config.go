package models

import (
	"encoding/json"
	"strconv"
	"strings"

	"loan-sync/store"
)

const (
	ConfigKeyBudget     = "budget"
	ConfigKeyRankProfit = "rankProfit"

	DefaultBudget     float64 = 30000000
	DefaultRankProfit float64 = 0
)

// ConfigRow is one key/value row of system_config.
type ConfigRow struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func DecodeConfigRow(rec store.Record) (ConfigRow, error) {
	var row ConfigRow
	err := decodeRecord(rec, &row)
	return row, err
}

func (r ConfigRow) Record() store.Record {
	return store.Record{"key": r.Key, "value": r.Value}
}

// ConfigValue returns the numeric value stored under key, or fallback when
// the row is missing or its value is null or not a number.
func ConfigValue(rows []ConfigRow, key string, fallback float64) float64 {
	for _, row := range rows {
		if row.Key != key {
			continue
		}
		if f, ok := toFloat(row.Value); ok {
			return f
		}
		return fallback
	}
	return fallback
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case []byte:
		return toFloat(string(x))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// Snapshot is the full state the client pulls from GET /api/data.
type Snapshot struct {
	Users         []User         `json:"users"`
	Loans         []Loan         `json:"loans"`
	Notifications []Notification `json:"notifications"`
	Budget        float64        `json:"budget"`
	RankProfit    float64        `json:"rankProfit"`
}

// ConnectionStatus answers GET /api/supabase-status.
type ConnectionStatus struct {
	Connected bool    `json:"connected"`
	Error     *string `json:"error"`
}
