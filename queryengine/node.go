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

// NodeResult is what a pipeline node (or the producer, at the bottom of
// the chain) returns on each pull.
type NodeResult struct {
	// Value is the produced item, if any. If nil, it does NOT imply the
	// pipeline has terminated: it may just mean more data is needed
	// before an item can be produced.
	Value *QueryResult

	// Terminated indicates the pipeline should stop after yielding Value
	// (if any).
	Terminated bool
}

// EarlyTerminate is returned by a node that wants the pipeline to stop
// immediately, yielding nothing further.
var EarlyTerminate = NodeResult{Terminated: true}

// NodeNoResult is returned when a node has nothing to yield this pull, but
// the pipeline is not done.
var NodeNoResult = NodeResult{}

func itemResult(v QueryResult, terminated bool) NodeResult {
	return NodeResult{Value: &v, Terminated: terminated}
}

// Node is one stage of the query pipeline's post-producer operator chain
// (§4.5). Implementations are Limit, Offset, and Aggregate.
type Node interface {
	// NextItem pulls the next result from this node, given the rest of
	// the chain (everything downstream of this node, terminating in the
	// producer).
	NextItem(rest *PipelineSlice) (NodeResult, error)
}

// PipelineSlice represents the remaining nodes plus the producer at the
// end of the chain. It exists so nodes don't need to manage slicing the
// node list themselves.
type PipelineSlice struct {
	nodes    []Node
	producer ItemProducer
}

// NewPipelineSlice builds a slice over the full node chain and producer.
func NewPipelineSlice(nodes []Node, producer ItemProducer) *PipelineSlice {
	return &PipelineSlice{nodes: nodes, producer: producer}
}

// Run pulls the next item from the first node in the slice, or from the
// producer if the slice is empty.
func (s *PipelineSlice) Run() (NodeResult, error) {
	if len(s.nodes) == 0 {
		result, err := s.producer.ProduceItem()
		if err != nil {
			return NodeResult{}, err
		}
		return NodeResult{Value: result.Value, Terminated: result.Terminated}, nil
	}
	node := s.nodes[0]
	rest := &PipelineSlice{nodes: s.nodes[1:], producer: s.producer}
	return node.NextItem(rest)
}

// LimitNode caps the number of items that can pass through it. Used for
// both LIMIT and TOP clauses (§4.5).
type LimitNode struct {
	remaining uint64
}

// NewLimitNode builds a LimitNode allowing at most n items through.
func NewLimitNode(n uint64) *LimitNode {
	return &LimitNode{remaining: n}
}

func (n *LimitNode) NextItem(rest *PipelineSlice) (NodeResult, error) {
	if n.remaining == 0 {
		return EarlyTerminate, nil
	}
	result, err := rest.Run()
	if err != nil {
		return NodeResult{}, err
	}
	if result.Value == nil {
		return result, nil
	}
	n.remaining--
	return itemResult(*result.Value, result.Terminated || n.remaining == 0), nil
}

// OffsetNode discards the first m items that pass through it, then
// becomes a pass-through (§4.5).
type OffsetNode struct {
	remaining uint64
}

// NewOffsetNode builds an OffsetNode that discards the first m items.
func NewOffsetNode(m uint64) *OffsetNode {
	return &OffsetNode{remaining: m}
}

func (n *OffsetNode) NextItem(rest *PipelineSlice) (NodeResult, error) {
	for n.remaining > 0 {
		result, err := rest.Run()
		if err != nil {
			return NodeResult{}, err
		}
		if result.Value == nil {
			return result, nil
		}
		n.remaining--
	}
	return rest.Run()
}

// AggregateNode folds downstream items through one kernel per declared
// aggregate name, emitting one finalized item per name once downstream
// terminates (§4.5).
type AggregateNode struct {
	kernels    []*aggregatorState
	count      int
	finalizing bool
	done       bool
}

// NewAggregateNode builds an AggregateNode from the plan's aggregate names.
func NewAggregateNode(names []string) (*AggregateNode, error) {
	kernels := make([]*aggregatorState, len(names))
	for i, name := range names {
		kind, err := parseAggregatorKind(name)
		if err != nil {
			return nil, err
		}
		kernels[i] = newAggregatorState(kind)
	}
	return &AggregateNode{kernels: kernels, count: len(kernels)}, nil
}

func (n *AggregateNode) NextItem(rest *PipelineSlice) (NodeResult, error) {
	if n.done {
		return EarlyTerminate, nil
	}
	if n.finalizing {
		return n.emitNext()
	}

	for {
		result, err := rest.Run()
		if err != nil {
			return NodeResult{}, err
		}
		if result.Value != nil {
			if err := n.feed(*result.Value); err != nil {
				return NodeResult{}, err
			}
		}
		if result.Terminated {
			n.finalizing = true
			return n.emitNext()
		}
		if result.Value == nil {
			return NodeNoResult, nil
		}
	}
}

func (n *AggregateNode) feed(item QueryResult) error {
	if len(item.AggregateItems) != n.count {
		return NewError(ErrInvalidGatewayResponse, "aggregate document has wrong number of positions")
	}
	for i, raw := range item.AggregateItems {
		if err := n.kernels[i].feed(raw); err != nil {
			return err
		}
	}
	return nil
}

// emitNext pops and finalizes the next pending kernel, one per call.
func (n *AggregateNode) emitNext() (NodeResult, error) {
	if len(n.kernels) == 0 {
		n.done = true
		return EarlyTerminate, nil
	}
	v, err := n.kernels[0].finalize()
	if err != nil {
		n.done = true
		return NodeResult{}, err
	}
	n.kernels = n.kernels[1:]
	terminated := len(n.kernels) == 0
	n.done = terminated
	return itemResult(FinalAggregateResult(v), terminated), nil
}
