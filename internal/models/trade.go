package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// AnalysisResult is the payload returned by the analysis service.
// It is replaced wholesale on every run and never patched.
type AnalysisResult struct {
	TradePatterns      *TradePatterns `json:"tradePatterns"`
	PersonalizedAdvice string         `json:"personalizedAdvice"`
}

// TradePatterns holds the per-trade rows and the cluster statistics.
//
// Clusters is keyed statistic name -> cluster key -> value, e.g.
// {"duration": {"0": 41.5, "1": 3.2}, "count": {"0": 12, "1": 30}}.
// ClusterLabels, when the service sends it, names each cluster key.
type TradePatterns struct {
	TradeData     []TradeRecord                 `json:"tradeData"`
	Clusters      map[string]map[string]float64 `json:"clusters"`
	ClusterLabels map[string]string             `json:"clusterLabels,omitempty"`
}

// TradeRecord is one buy/sell pair.
type TradeRecord struct {
	TradeID  TradeID          `json:"tradeId"`
	Symbol   string           `json:"symbol,omitempty"`
	Actions  Actions          `json:"actions"`
	BuyDate  string           `json:"buyDate"`
	SellDate string           `json:"sellDate"`
	Duration *float64         `json:"duration,omitempty"`
	Profit   *decimal.Decimal `json:"profit,omitempty"`
}

// TradeID accepts both JSON numbers and strings.
type TradeID string

func (id *TradeID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = TradeID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = TradeID(n.String())
		return nil
	}
	if string(data) == "null" {
		*id = ""
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into trade id", string(data))
}

func (id TradeID) String() string {
	return string(id)
}

// Actions is the action summary of a trade. The service sends either a
// single string ("Buy -> Sell") or a list of action names.
type Actions string

func (a *Actions) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = Actions(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = Actions(strings.Join(list, ", "))
		return nil
	}
	if string(data) == "null" {
		*a = ""
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into trade actions", string(data))
}

// Label is the display label used on charts, "Trade {id}".
func (t TradeRecord) Label() string {
	return "Trade " + t.TradeID.String()
}

// DurationOrZero returns the duration or 0 when the service omitted it.
func (t TradeRecord) DurationOrZero() float64 {
	if t.Duration == nil {
		return 0
	}
	return *t.Duration
}

// Float returns a pointer to v, convenient for building records.
func Float(v float64) *float64 {
	return &v
}

// Decimal parses s into a decimal pointer and panics on malformed input.
// Intended for literals and tests.
func Decimal(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// IntID formats an integer trade id.
func IntID(n int) TradeID {
	return TradeID(strconv.Itoa(n))
}
