/*
Copyright 2025 The ShardQL Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package queryengine

import (
	"encoding/json"
	"strings"

	"github.com/bytedance/sonic"
)

// aggregatorKind is the aggregation function an AggregateNode kernel
// performs, parsed case-insensitively from the plan's aggregate names.
type aggregatorKind int

const (
	aggregatorCount aggregatorKind = iota
	aggregatorSum
	aggregatorAverage
	aggregatorMin
	aggregatorMax
)

func parseAggregatorKind(name string) (aggregatorKind, error) {
	switch {
	case strings.EqualFold(name, "count"):
		return aggregatorCount, nil
	case strings.EqualFold(name, "sum"):
		return aggregatorSum, nil
	case strings.EqualFold(name, "average"):
		return aggregatorAverage, nil
	case strings.EqualFold(name, "min"):
		return aggregatorMin, nil
	case strings.EqualFold(name, "max"):
		return aggregatorMax, nil
	default:
		return 0, Newf(ErrUnsupportedQueryPlan, "unknown aggregator: %s", name)
	}
}

// aggregatorState is the incremental fold for one aggregate position
// across every partition's contributions (§4.5).
type aggregatorState struct {
	kind aggregatorKind

	count uint64
	sum   float64

	hasMinMax bool
	minmax    ClauseValue
}

func newAggregatorState(kind aggregatorKind) *aggregatorState {
	return &aggregatorState{kind: kind}
}

// minMaxCandidate is the object-form per-partition Min/Max sub-result.
// Either "min" or "max" is present depending on which kernel produced it.
type minMaxCandidate struct {
	Min   *json.RawMessage `json:"min"`
	Max   *json.RawMessage `json:"max"`
	Count uint64           `json:"count"`
}

// averageCandidate is the per-partition Average sub-result.
type averageCandidate struct {
	Sum   float64 `json:"sum"`
	Count uint64  `json:"count"`
}

// feed folds one partition's raw sub-result into the kernel's running
// state.
func (a *aggregatorState) feed(raw json.RawMessage) error {
	switch a.kind {
	case aggregatorCount:
		v, err := ClauseValueFromRaw(raw)
		if err != nil {
			return err
		}
		if v.Kind != ClauseNumber || !v.IsInt {
			return NewError(ErrInvalidGatewayResponse, "count aggregate requires an integral value")
		}
		a.sum += float64(v.Int)
		return nil

	case aggregatorSum:
		v, err := ClauseValueFromRaw(raw)
		if err != nil {
			return err
		}
		if v.Kind != ClauseNumber {
			return NewError(ErrInvalidGatewayResponse, "sum aggregate requires a numeric value")
		}
		a.sum += v.AsFloat()
		return nil

	case aggregatorAverage:
		var c averageCandidate
		if err := sonic.Unmarshal(raw, &c); err != nil {
			return Wrap(ErrDeserializationError, err, "decoding average sub-result")
		}
		a.sum += c.Sum
		a.count += c.Count
		return nil

	case aggregatorMin:
		return a.feedMinMax(raw, -1)

	case aggregatorMax:
		return a.feedMinMax(raw, 1)

	default:
		return NewError(ErrInternalError, "aggregator has unknown kind")
	}
}

// feedMinMax implements the Min/Max kernel rule from §4.5: the
// per-partition input is either a bare scalar, or an object carrying the
// candidate value alongside a count that, when zero, means "ignore this
// partition". preferredSign is -1 for Min (keep the candidate when it
// compares Less than the current best) or 1 for Max (Greater).
func (a *aggregatorState) feedMinMax(raw json.RawMessage, preferredSign int) error {
	candidate, ok, err := extractMinMaxCandidate(raw)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if !a.hasMinMax {
		a.hasMinMax = true
		a.minmax = candidate
		return nil
	}

	cmp, err := CompareClauseValues(candidate, a.minmax)
	if err != nil {
		return err
	}
	if (preferredSign < 0 && cmp < 0) || (preferredSign > 0 && cmp > 0) {
		a.minmax = candidate
	}
	return nil
}

// extractMinMaxCandidate returns the candidate clause value and whether it
// should be considered at all (false when the object form's count is 0).
func extractMinMaxCandidate(raw json.RawMessage) (ClauseValue, bool, error) {
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var c minMaxCandidate
		if err := sonic.Unmarshal(raw, &c); err != nil {
			return ClauseValue{}, false, Wrap(ErrDeserializationError, err, "decoding min/max sub-result")
		}
		if c.Count == 0 {
			return ClauseValue{}, false, nil
		}
		inner := c.Min
		if inner == nil {
			inner = c.Max
		}
		if inner == nil {
			return ClauseValue{}, false, NewError(ErrInvalidGatewayResponse, "min/max sub-result missing value")
		}
		v, err := ClauseValueFromRaw(*inner)
		if err != nil {
			return ClauseValue{}, false, err
		}
		return v, true, nil
	}

	v, err := ClauseValueFromRaw(raw)
	if err != nil {
		return ClauseValue{}, false, err
	}
	return v, true, nil
}

// finalize produces the kernel's terminal ClauseValue (§4.5).
func (a *aggregatorState) finalize() (ClauseValue, error) {
	switch a.kind {
	case aggregatorCount, aggregatorSum:
		return floatToClauseValue(a.sum)

	case aggregatorAverage:
		if a.count == 0 {
			return FloatValue(0), nil
		}
		return floatToClauseValue(a.sum / float64(a.count))

	case aggregatorMin, aggregatorMax:
		if !a.hasMinMax {
			return NullValue(), nil
		}
		return a.minmax, nil

	default:
		return ClauseValue{}, NewError(ErrInternalError, "aggregator has unknown kind")
	}
}

func floatToClauseValue(f float64) (ClauseValue, error) {
	if i := int64(f); float64(i) == f {
		return IntValue(i), nil
	}
	return FloatValue(f), nil
}
