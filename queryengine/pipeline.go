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

import "strings"

// PipelineConfig is the engine-native form of a query plan's construction
// inputs (§3, §6): every field has already been translated out of the
// gateway's wire JSON by the caller (normally package plan), so this type
// carries no JSON tags and queryengine never needs to parse plan documents
// itself.
type PipelineConfig struct {
	OrderBy []SortDirection

	Top    *uint64
	Offset *uint64
	Limit  *uint64

	Aggregates []string

	HasSelectValue         bool
	IsDistinct             bool
	HasGroupBy             bool
	HasNonStreamingOrderBy bool

	// RewrittenQuery is the plan's rewritten query text, or empty if the
	// plan carried none. When non-empty, it is used (after placeholder
	// substitution) as the query Pipeline.Query() reports.
	RewrittenQuery string

	// HybridSearchQueryInfo, if present, selects the HybridSearch producer
	// strategy regardless of OrderBy/HasNonStreamingOrderBy.
	HybridSearchQueryInfo *HybridSearchQueryInfo
}

// PipelineResult is one turn's output from Pipeline.Run (§3, §6).
type PipelineResult struct {
	// Items are opaque bytes ready to hand back across the embedding
	// boundary, in emission order.
	Items [][]byte
	// Requests are the DataRequests the host must fulfill before the next
	// turn can make further progress.
	Requests []DataRequest
	// Terminated is true once the pipeline has nothing further to emit.
	// Invariant: Terminated implies Requests is empty.
	Terminated bool
}

// Pipeline is the cross-partition query coordination state machine (§4.6):
// it owns exactly one producer and its post-producer node chain, and
// implements the pull-driven embedding contract (§6). It is not safe for
// concurrent use; callers needing that must serialize access externally.
type Pipeline struct {
	query       string
	resultShape ResultShape
	nodes       []Node
	producer    ItemProducer
	terminated  bool
}

// NewPipeline constructs a Pipeline for a standard (non-ReadMany) query
// plan, applying the construction rules of §4.6: partition filtering,
// UnsupportedQueryPlan rejection, producer strategy selection, and
// outside-in node chain assembly.
func NewPipeline(query string, cfg PipelineConfig, ranges []PartitionKeyRange, queryRanges []QueryRange) (*Pipeline, error) {
	if cfg.HasSelectValue {
		return nil, NewError(ErrUnsupportedQueryPlan, "SELECT VALUE is not supported")
	}
	if cfg.IsDistinct {
		return nil, NewError(ErrUnsupportedQueryPlan, "DISTINCT is not supported")
	}
	if cfg.HasGroupBy {
		return nil, NewError(ErrUnsupportedQueryPlan, "GROUP BY is not supported")
	}

	filtered := FilterPartitions(SortPartitions(ranges), queryRanges)
	filteredRanges := make([]PartitionKeyRange, len(filtered))
	for i, p := range filtered {
		filteredRanges[i] = p.Range
	}

	shape := ShapeRawPayload
	var producer ItemProducer
	switch {
	case cfg.HybridSearchQueryInfo != nil:
		producer = NewHybridSearchProducer(filteredRanges, *cfg.HybridSearchQueryInfo)
	case len(cfg.OrderBy) == 0:
		producer = NewUnorderedProducer(filteredRanges)
	case cfg.HasNonStreamingOrderBy:
		producer = NewNonStreamingOrderByProducer(filteredRanges, NewSorting(cfg.OrderBy))
		shape = ShapeOrderBy
	default:
		producer = NewStreamingOrderByProducer(filteredRanges, NewSorting(cfg.OrderBy))
		shape = ShapeOrderBy
	}

	var nodes []Node
	if cfg.Limit != nil {
		nodes = append(nodes, NewLimitNode(*cfg.Limit))
	}
	if cfg.Top != nil {
		nodes = append(nodes, NewLimitNode(*cfg.Top))
	}
	if cfg.Offset != nil {
		nodes = append(nodes, NewOffsetNode(*cfg.Offset))
	}
	if len(cfg.Aggregates) > 0 {
		aggNode, err := NewAggregateNode(cfg.Aggregates)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, aggNode)
		shape = ShapeAggregate
	}

	return &Pipeline{
		query:       rewriteDisplayQuery(query, cfg.RewrittenQuery),
		resultShape: shape,
		nodes:       nodes,
		producer:    producer,
	}, nil
}

// NewReadManyPipeline constructs a Pipeline driving the ReadMany producer
// (§4.4.4). This strategy is not selected through plan construction: the
// host supplies the (index, id, pk) chunks directly, bypassing query-plan
// semantics entirely, so there is no node chain and the result shape is
// always RawPayload.
func NewReadManyPipeline(query string, chunks []ReadManyChunk) *Pipeline {
	return &Pipeline{
		query:       query,
		resultShape: ShapeRawPayload,
		producer:    NewReadManyProducer(chunks),
	}
}

// rewriteDisplayQuery implements the query() rewriting rule of §4.6: when
// the plan carries a non-empty rewritten query, the
// formattableorderbyquery-filter placeholder is substituted with "true"
// and that becomes the displayed query; otherwise the original query text
// is used unchanged.
func rewriteDisplayQuery(query, rewrittenQuery string) string {
	if rewrittenQuery == "" {
		return query
	}
	return strings.ReplaceAll(rewrittenQuery, formattableOrderByPlaceholder, "true")
}

// Query returns the (possibly rewritten) query text the host should display
// or log, per §6's `query()` operation.
func (p *Pipeline) Query() string { return p.query }

// ResultShape reports which of the three wrapping modes (§4.7) the host
// must use when parsing backend response bytes before handing them to
// ProvideData.
func (p *Pipeline) ResultShape() ResultShape { return p.resultShape }

// Run executes one turn of the pull protocol (§4.6): it drains the node
// chain until it terminates, returns a no-result, or has streamed as many
// items as it wants this turn, then asks the producer for outstanding
// requests.
func (p *Pipeline) Run() (PipelineResult, error) {
	if p.terminated {
		return PipelineResult{Terminated: true}, nil
	}

	var items [][]byte
	slice := NewPipelineSlice(p.nodes, p.producer)
	for {
		result, err := slice.Run()
		if err != nil {
			return PipelineResult{}, err
		}
		if result.Value != nil {
			b, err := result.Value.Bytes()
			if err != nil {
				return PipelineResult{}, err
			}
			items = append(items, b)
		}
		if result.Terminated {
			p.terminated = true
			return PipelineResult{Items: items, Terminated: true}, nil
		}
		if result.Value == nil {
			break
		}
	}

	requests := p.producer.Requests()
	if len(requests) == 0 && len(items) == 0 {
		p.terminated = true
		return PipelineResult{Terminated: true}, nil
	}
	return PipelineResult{Items: items, Requests: requests}, nil
}

// ProvideData routes one backend response to the pipeline's producer (§4.6).
func (p *Pipeline) ProvideData(requestID uint64, pkrangeID string, data []byte, continuation *string) error {
	return p.producer.ProvideData(requestID, pkrangeID, data, continuation)
}
