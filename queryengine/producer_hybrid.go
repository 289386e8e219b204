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

// hybridPhase is the hybrid-search producer's finite-state phase (§4.4.5).
type hybridPhase int

const (
	hybridIssuingGlobalStatisticsQuery hybridPhase = iota
	hybridAwaitingGlobalStatistics
	hybridComponentQueries
	hybridResultProduction
)

// HybridSearchProducer implements the hybrid-search merge strategy: an
// optional global-statistics round used to rewrite every component query's
// placeholders, followed by independently paginated component queries
// fused by Reciprocal Rank Fusion (§4.4.5).
type HybridSearchProducer struct {
	phase hybridPhase

	globalStatisticsQuery string
	pkrangeIDs            []string
	components            []*hybridComponentState
	weights               []float64
	skip, take            uint64

	aggregatedStats          *globalStatistics
	remainingStatsPartitions int

	collector           *hybridCollector
	remainingComponents int

	results []QueryResult
}

// NewHybridSearchProducer builds a HybridSearchProducer from the plan's
// hybrid search query info.
func NewHybridSearchProducer(ranges []PartitionKeyRange, info HybridSearchQueryInfo) *HybridSearchProducer {
	pkrangeIDs := make([]string, len(ranges))
	for i, r := range ranges {
		pkrangeIDs[i] = r.ID
	}

	components := make([]*hybridComponentState, len(info.ComponentQueryInfos))
	for i, c := range info.ComponentQueryInfos {
		components[i] = newHybridComponentState(uint32(i), c, info.weightFor(i), pkrangeIDs)
	}

	p := &HybridSearchProducer{
		globalStatisticsQuery: info.GlobalStatisticsQuery,
		pkrangeIDs:            pkrangeIDs,
		components:            components,
		weights:               info.ComponentWeights,
		skip:                  info.Skip,
		take:                  info.Take,
	}

	if info.RequiresGlobalStatistics {
		p.phase = hybridIssuingGlobalStatisticsQuery
	} else {
		p.phase = hybridComponentQueries
		p.collector = newHybridCollector(len(components))
		p.remainingComponents = len(components)
	}
	return p
}

func (p *HybridSearchProducer) Requests() []DataRequest {
	switch p.phase {
	case hybridIssuingGlobalStatisticsQuery:
		requests := make([]DataRequest, len(p.pkrangeIDs))
		for i, id := range p.pkrangeIDs {
			query := p.globalStatisticsQuery
			requests[i] = DataRequest{
				RequestID:           uint64(globalStatisticsRequestID),
				PartitionKeyRangeID: id,
				OverrideQuery:       &query,
				IsQueryPlanRequest:  true,
			}
		}
		p.phase = hybridAwaitingGlobalStatistics
		p.remainingStatsPartitions = len(p.pkrangeIDs)
		return requests

	case hybridComponentQueries:
		var requests []DataRequest
		for _, c := range p.components {
			requests = append(requests, c.requests()...)
		}
		return requests

	default:
		return nil
	}
}

func (p *HybridSearchProducer) ProvideData(requestID uint64, pkrangeID string, data []byte, continuation *string) error {
	reqID := hybridRequestID(requestID)

	switch p.phase {
	case hybridIssuingGlobalStatisticsQuery:
		return NewError(ErrInternalError, "provide_data called before requests were issued")

	case hybridAwaitingGlobalStatistics:
		if reqID != globalStatisticsRequestID {
			return NewError(ErrInvalidGatewayResponse, "expected global statistics query response")
		}
		stats, err := parseGlobalStatistics(data)
		if err != nil {
			return err
		}
		if p.aggregatedStats == nil {
			p.aggregatedStats = &stats
		} else {
			merged, err := p.aggregatedStats.aggregateWith(stats)
			if err != nil {
				return err
			}
			p.aggregatedStats = &merged
		}
		p.remainingStatsPartitions--
		if p.remainingStatsPartitions == 0 {
			for _, c := range p.components {
				if err := p.aggregatedStats.rewriteComponentQuery(&c.info); err != nil {
					return err
				}
			}
			p.phase = hybridComponentQueries
			p.collector = newHybridCollector(len(p.components))
			p.remainingComponents = len(p.components)
		}
		return nil

	case hybridComponentQueries:
		queryIndex, ok := reqID.queryIndex()
		if !ok {
			return NewError(ErrInvalidGatewayResponse, "expected component query request ID")
		}
		if int(queryIndex) >= len(p.components) {
			return Newf(ErrInvalidGatewayResponse, "invalid component query index in request ID: %d", queryIndex)
		}
		component := p.components[queryIndex]
		if err := component.updatePartitionState(pkrangeID, continuation); err != nil {
			return err
		}
		if err := p.collector.provideData(queryIndex, data); err != nil {
			return err
		}
		if component.complete() {
			p.remainingComponents--
		}
		if p.remainingComponents == 0 {
			results, err := p.collector.computeFinalResults(p.skip, p.take, func(i int) float64 {
				if i < len(p.weights) {
					return p.weights[i]
				}
				return 1.0
			})
			if err != nil {
				return err
			}
			p.results = results
			p.collector = nil
			p.phase = hybridResultProduction
		}
		return nil

	default:
		return NewError(ErrInternalError, "provide_data called after result production began")
	}
}

func (p *HybridSearchProducer) ProduceItem() (ProduceResult, error) {
	if p.phase != hybridResultProduction {
		return NoResult, nil
	}
	if len(p.results) == 0 {
		return ProduceResult{Terminated: true}, nil
	}
	value := p.results[0]
	p.results = p.results[1:]
	return ProduceResult{Value: &value, Terminated: len(p.results) == 0}, nil
}
