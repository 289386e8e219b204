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

import "encoding/json"

// ResultShape tags which of the three wrapping modes (§4.7) a backend
// response, and the QueryResult values parsed from it, use.
type ResultShape int

const (
	// ShapeRawPayload is used by Unordered and ReadMany: documents are
	// opaque payloads with no clause items attached.
	ShapeRawPayload ResultShape = iota
	// ShapeOrderBy is used by Streaming and NonStreaming ORDER BY.
	ShapeOrderBy
	// ShapeAggregate is used when the plan carries aggregates.
	ShapeAggregate
)

func (s ResultShape) String() string {
	switch s {
	case ShapeOrderBy:
		return "OrderBy"
	case ShapeAggregate:
		return "Aggregate"
	default:
		return "RawPayload"
	}
}

// QueryResult is the tagged union described in §3. It is a plain struct
// with a discriminant rather than an interface, following this codebase's
// preference for sum types over dynamic dispatch in the hot pull path.
type QueryResult struct {
	Shape ResultShape

	// Payload is the opaque document bytes. Every shape carries one
	// except ShapeAggregate: neither a parsed aggregate document nor a
	// finalized Aggregate item has one.
	Payload json.RawMessage

	// OrderByItems is populated for ShapeOrderBy.
	OrderByItems []ClauseValue

	// AggregateItems holds one raw per-aggregate sub-result per declared
	// aggregate name, in declared order, for ShapeAggregate documents
	// still flowing downstream of the producer (i.e. before the Aggregate
	// node has finalized them).
	AggregateItems []json.RawMessage

	// Aggregate holds the finalized value for a synthetic item emitted
	// by the Aggregate pipeline node once its kernel is done folding.
	Aggregate *ClauseValue
}

// RawPayloadResult builds a bare-payload QueryResult (Unordered, ReadMany).
func RawPayloadResult(payload json.RawMessage) QueryResult {
	return QueryResult{Shape: ShapeRawPayload, Payload: payload}
}

// OrderByResult builds an ORDER BY QueryResult.
func OrderByResult(items []ClauseValue, payload json.RawMessage) QueryResult {
	return QueryResult{Shape: ShapeOrderBy, OrderByItems: items, Payload: payload}
}

// FinalAggregateResult builds the synthetic item the Aggregate node emits
// once its downstream input has been fully folded.
func FinalAggregateResult(v ClauseValue) QueryResult {
	return QueryResult{Shape: ShapeAggregate, Aggregate: &v}
}

// Bytes materializes the opaque bytes handed back across the embedding
// boundary for this item (§4.6 run()'s items output). RawPayload/OrderBy
// shapes return their Payload unchanged; a finalized Aggregate item is
// marshaled to a bare JSON scalar.
func (r QueryResult) Bytes() ([]byte, error) {
	if r.Aggregate != nil {
		return marshalClauseValue(*r.Aggregate)
	}
	return r.Payload, nil
}

func marshalClauseValue(v ClauseValue) ([]byte, error) {
	switch v.Kind {
	case ClauseUndefined, ClauseNull:
		return []byte("null"), nil
	case ClauseBool:
		if v.Bool {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case ClauseString:
		return json.Marshal(v.Str)
	case ClauseNumber:
		if v.IsInt {
			return json.Marshal(v.Int)
		}
		return json.Marshal(v.Float)
	default:
		return nil, NewError(ErrInternalError, "cannot marshal clause value of unknown kind")
	}
}

// DataRequest describes a request for additional per-partition data (§3).
type DataRequest struct {
	RequestID           uint64
	PartitionKeyRangeID string
	Continuation        *string
	OverrideQuery       *string
	IsQueryPlanRequest  bool
}

// ProduceResult is what a producer's ProduceItem returns on each pull:
// either a buffered item, or no item yet, plus whether the producer
// considers itself fully drained.
type ProduceResult struct {
	Value      *QueryResult
	Terminated bool
}

// NoResult is the sentinel ProduceResult for "nothing buffered yet, not
// terminated".
var NoResult = ProduceResult{}
