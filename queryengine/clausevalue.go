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
	"math"
	"strings"

	"github.com/bytedance/sonic"
)

// ClauseKind is the type tag of a ClauseValue. Ordinal 3 is intentionally
// unused to keep room between Bool and Number for compatibility with the
// backend wire format; do not renumber these.
type ClauseKind int

const (
	ClauseUndefined ClauseKind = 0
	ClauseNull      ClauseKind = 1
	ClauseBool      ClauseKind = 2
	// 3 intentionally skipped.
	ClauseNumber ClauseKind = 4
	ClauseString ClauseKind = 5
)

// ClauseValue is the polymorphic, comparable value extracted from ORDER BY /
// GROUP BY clause positions in a backend response. It is a tagged variant,
// not an interface, since every use site needs the concrete Kind to decide
// how to compare or finalize it.
type ClauseValue struct {
	Kind ClauseKind

	Bool bool
	Str  string

	// Number representation: an integral value is held in Int with
	// IsInt set, falling back to Float for non-integral or overflowing
	// values.
	Int   int64
	Float float64
	IsInt bool
}

// UndefinedValue builds the clause value the backend emits by omitting the
// "item" key entirely.
func UndefinedValue() ClauseValue { return ClauseValue{Kind: ClauseUndefined} }

// NullValue builds the clause value for a present-but-null item.
func NullValue() ClauseValue { return ClauseValue{Kind: ClauseNull} }

// BoolValue wraps a boolean clause value.
func BoolValue(b bool) ClauseValue { return ClauseValue{Kind: ClauseBool, Bool: b} }

// IntValue wraps an exact 64-bit integer clause value.
func IntValue(i int64) ClauseValue { return ClauseValue{Kind: ClauseNumber, Int: i, IsInt: true} }

// FloatValue wraps a floating-point clause value.
func FloatValue(f float64) ClauseValue { return ClauseValue{Kind: ClauseNumber, Float: f} }

// StringValue wraps a string clause value.
func StringValue(s string) ClauseValue { return ClauseValue{Kind: ClauseString, Str: s} }

// AsFloat returns the numeric value as a float64, converting from the
// integer representation if needed. Only valid when Kind == ClauseNumber.
func (v ClauseValue) AsFloat() float64 {
	if v.IsInt {
		return float64(v.Int)
	}
	return v.Float
}

// CompareClauseValues implements the cross-type total order from §4.1:
// values of different kinds compare by type ordinal; values of the same
// kind compare by their concrete representation. Returns -1, 0, or 1 in
// the style of the standard library's cmp.Compare, or an *Error when the
// comparison is not well-defined (non-finite floats).
func CompareClauseValues(a, b ClauseValue) (int, error) {
	if a.Kind != b.Kind {
		return intCompare(int(a.Kind), int(b.Kind)), nil
	}

	switch a.Kind {
	case ClauseUndefined, ClauseNull:
		return 0, nil

	case ClauseBool:
		return boolCompare(a.Bool, b.Bool), nil

	case ClauseString:
		return strings.Compare(a.Str, b.Str), nil

	case ClauseNumber:
		return compareNumbers(a, b)

	default:
		return 0, NewError(ErrInternalError, "clause value has unknown kind")
	}
}

func compareNumbers(a, b ClauseValue) (int, error) {
	if a.IsInt && b.IsInt {
		return intCompare64(a.Int, b.Int), nil
	}
	af, bf := a.AsFloat(), b.AsFloat()
	if math.IsNaN(af) || math.IsNaN(bf) || math.IsInf(af, 0) || math.IsInf(bf, 0) {
		return 0, NewError(ErrInvalidGatewayResponse, "non-finite number in order-by comparison")
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

func intCompare(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func intCompare64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

// ClauseValueFromRaw decodes a raw JSON token into a ClauseValue. It is
// used by the result-shape parser for order-by/aggregate clause items.
// The caller maps missing keys to UndefinedValue itself and never calls
// this function for them, so it only ever sees a present value.
func ClauseValueFromRaw(raw []byte) (ClauseValue, error) {
	var v any
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return ClauseValue{}, Wrap(ErrDeserializationError, err, "decoding clause value")
	}
	return clauseValueFromAny(v)
}

func clauseValueFromAny(v any) (ClauseValue, error) {
	switch t := v.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case float64:
		if i := int64(t); float64(i) == t {
			return IntValue(i), nil
		}
		return FloatValue(t), nil
	default:
		return ClauseValue{}, NewError(ErrInvalidGatewayResponse, "non-primitive value in order-by column")
	}
}
