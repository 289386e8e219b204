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

import "sort"

// NonStreamingOrderByProducer merges partitions that each return results in
// only a LOCAL sort order (§4.4): nothing can be yielded until every
// partition is fully exhausted, at which point the buffered set is sorted
// once and drained.
type NonStreamingOrderByProducer struct {
	partitions []Partition
	sorting    Sorting
	items      []QueryResult
	sorted     bool
}

// NewNonStreamingOrderByProducer builds a NonStreamingOrderByProducer.
func NewNonStreamingOrderByProducer(ranges []PartitionKeyRange, sorting Sorting) *NonStreamingOrderByProducer {
	return &NonStreamingOrderByProducer{
		partitions: SortPartitions(ranges),
		sorting:    sorting,
	}
}

func (p *NonStreamingOrderByProducer) Requests() []DataRequest {
	var requests []DataRequest
	for i := range p.partitions {
		req := p.partitions[i].Request()
		if req == nil {
			continue
		}
		req.RequestID = uint64(p.partitions[i].Index)
		requests = append(requests, *req)
	}
	return requests
}

func (p *NonStreamingOrderByProducer) ProvideData(requestID uint64, pkrangeID string, data []byte, continuation *string) error {
	partition, err := p.findPartition(pkrangeID)
	if err != nil {
		return err
	}
	results, err := parseDocuments(ShapeOrderBy, data)
	if err != nil {
		return err
	}
	p.items = append(p.items, results...)
	partition.State.Update(continuation)
	return nil
}

func (p *NonStreamingOrderByProducer) findPartition(pkrangeID string) (*Partition, error) {
	for i := range p.partitions {
		if p.partitions[i].Range.ID == pkrangeID {
			return &p.partitions[i], nil
		}
	}
	return nil, Newf(ErrUnknownPartitionKeyRange, "unknown partition key range ID: %s", pkrangeID)
}

func (p *NonStreamingOrderByProducer) allDone() bool {
	for i := range p.partitions {
		if !p.partitions[i].State.Done() {
			return false
		}
	}
	return true
}

func (p *NonStreamingOrderByProducer) ProduceItem() (ProduceResult, error) {
	if !p.allDone() {
		return NoResult, nil
	}
	if !p.sorted {
		var sortErr error
		sort.SliceStable(p.items, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			cmp, err := p.sorting.CompareResults(&p.items[i], &p.items[j])
			if err != nil {
				sortErr = err
				return false
			}
			return cmp == LeftBeforeRight
		})
		if sortErr != nil {
			return ProduceResult{}, sortErr
		}
		p.sorted = true
	}

	if len(p.items) == 0 {
		return ProduceResult{Terminated: true}, nil
	}
	value := p.items[0]
	p.items = p.items[1:]
	return ProduceResult{Value: &value, Terminated: len(p.items) == 0}, nil
}
