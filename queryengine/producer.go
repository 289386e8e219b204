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

	"github.com/bytedance/sonic"
)

// ItemProducer is the merge-strategy contract every producer in §4.4
// implements: issue requests for more data, ingest a response, and yield
// buffered items one at a time.
type ItemProducer interface {
	// Requests returns the DataRequests the producer currently wants
	// fulfilled. An empty slice while ProduceItem has not reported
	// Terminated is legal (e.g. all in-flight requests already issued this
	// turn).
	Requests() []DataRequest

	// ProvideData ingests one backend response for the named partition
	// and request id.
	ProvideData(requestID uint64, pkrangeID string, data []byte, continuation *string) error

	// ProduceItem yields the next buffered item, if any.
	ProduceItem() (ProduceResult, error)
}

// documentsEnvelope is the common wrapper every per-partition response
// uses regardless of result shape (§4.7, §6).
type documentsEnvelope struct {
	Documents []json.RawMessage `json:"Documents"`
}

// aggregateDocument is the single document inside a ShapeAggregate
// response, carrying one raw sub-result per declared aggregate name.
type aggregateDocument struct {
	Items []json.RawMessage `json:"items"`
}

// parseRawPayloadDocuments implements the RawPayload result shape (§4.7):
// each element of Documents becomes one bare-payload QueryResult.
func parseRawPayloadDocuments(data []byte) ([]QueryResult, error) {
	var env documentsEnvelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, Wrap(ErrDeserializationError, err, "decoding raw payload documents")
	}
	results := make([]QueryResult, len(env.Documents))
	for i, doc := range env.Documents {
		results[i] = RawPayloadResult(doc)
	}
	return results, nil
}

// parseOrderByDocuments implements the OrderBy result shape (§4.7).
func parseOrderByDocuments(data []byte) ([]QueryResult, error) {
	var env documentsEnvelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, Wrap(ErrDeserializationError, err, "decoding order-by documents")
	}
	results := make([]QueryResult, len(env.Documents))
	for i, raw := range env.Documents {
		var doc struct {
			OrderByItems []map[string]json.RawMessage `json:"orderByItems"`
			Payload      json.RawMessage               `json:"payload"`
		}
		if err := sonic.Unmarshal(raw, &doc); err != nil {
			return nil, Wrap(ErrDeserializationError, err, "decoding order-by document")
		}

		items := make([]ClauseValue, len(doc.OrderByItems))
		for j, m := range doc.OrderByItems {
			itemRaw, present := m["item"]
			switch {
			case !present:
				items[j] = UndefinedValue()
			case string(itemRaw) == "null":
				items[j] = NullValue()
			default:
				v, err := ClauseValueFromRaw(itemRaw)
				if err != nil {
					return nil, err
				}
				items[j] = v
			}
		}
		results[i] = OrderByResult(items, doc.Payload)
	}
	return results, nil
}

// parseAggregateDocuments implements the Aggregate result shape (§4.7):
// each document carries one raw sub-result per aggregate name and becomes
// one Aggregate-shape QueryResult.
func parseAggregateDocuments(data []byte) ([]QueryResult, error) {
	var env documentsEnvelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, Wrap(ErrDeserializationError, err, "decoding aggregate documents")
	}
	results := make([]QueryResult, len(env.Documents))
	for i, raw := range env.Documents {
		var doc aggregateDocument
		if err := sonic.Unmarshal(raw, &doc); err != nil {
			return nil, Wrap(ErrDeserializationError, err, "decoding aggregate document")
		}
		results[i] = QueryResult{Shape: ShapeAggregate, AggregateItems: doc.Items}
	}
	return results, nil
}

// parseDocuments dispatches to the shape-specific parser.
func parseDocuments(shape ResultShape, data []byte) ([]QueryResult, error) {
	switch shape {
	case ShapeOrderBy:
		return parseOrderByDocuments(data)
	case ShapeAggregate:
		return parseAggregateDocuments(data)
	default:
		return parseRawPayloadDocuments(data)
	}
}
