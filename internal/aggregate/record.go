package aggregate

import (
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"

	"outcomeeval/internal/metrics"
)

// Float is a metric value that encodes NaN and infinities as JSON null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) { return []byte("null"), nil }
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil { return err }
	*f = Float(v)
	return nil
}

func floats(vs []float64) []Float {
	out := make([]Float, len(vs))
	for i, v := range vs { out[i] = Float(v) }
	return out
}

// ScalarEntry is encoded as [per-fold validation values, test value].
type ScalarEntry struct {
	Val  []Float
	Test Float
}

func (e ScalarEntry) MarshalJSON() ([]byte, error) { return json.Marshal([]interface{}{e.Val, e.Test}) }

func (e *ScalarEntry) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil { return err }
	if len(raw) != 2 { return fmt.Errorf("metric entry: want [val, test], got %d elements", len(raw)) }
	if err := json.Unmarshal(raw[0], &e.Val); err != nil { return err }
	return json.Unmarshal(raw[1], &e.Test)
}

// ConfusionEntry is encoded as [per-fold matrices, test matrix], each matrix
// a nested list of counts.
type ConfusionEntry struct {
	Val  []metrics.Confusion
	Test metrics.Confusion
}

func (e ConfusionEntry) MarshalJSON() ([]byte, error) {
	val := make([][][]int, len(e.Val))
	for i, c := range e.Val { val[i] = c }
	return json.Marshal([]interface{}{val, [][]int(e.Test)})
}

func (e *ConfusionEntry) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil { return err }
	if len(raw) != 2 { return fmt.Errorf("confusion entry: want [val, test], got %d elements", len(raw)) }
	var val [][][]int
	if err := json.Unmarshal(raw[0], &val); err != nil { return err }
	e.Val = make([]metrics.Confusion, len(val))
	for i, c := range val { e.Val[i] = c }
	var test [][]int
	if err := json.Unmarshal(raw[1], &test); err != nil { return err }
	e.Test = test
	return nil
}

// Record is the per-label raw metric dump: {metric: {model: [val, test]}}.
type Record struct {
	Scalars   map[string]map[string]ScalarEntry
	Confusion map[string]ConfusionEntry
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Scalars)+1)
	for m, byModel := range r.Scalars { out[m] = byModel }
	if r.Confusion != nil { out[metrics.ConfusionMatrix] = r.Confusion }
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil { return err }
	r.Scalars = map[string]map[string]ScalarEntry{}
	for m, v := range raw {
		if m == metrics.ConfusionMatrix {
			if err := json.Unmarshal(v, &r.Confusion); err != nil { return fmt.Errorf("%s: %w", m, err) }
			continue
		}
		var byModel map[string]ScalarEntry
		if err := json.Unmarshal(v, &byModel); err != nil { return fmt.Errorf("%s: %w", m, err) }
		r.Scalars[m] = byModel
	}
	return nil
}

// Models returns the model IDs present for metric m.
func (r Record) Models(m string) []string {
	var out []string
	if m == metrics.ConfusionMatrix {
		for id := range r.Confusion { out = append(out, id) }
		return out
	}
	for id := range r.Scalars[m] { out = append(out, id) }
	return out
}
