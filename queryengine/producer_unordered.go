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

// UnorderedProducer merges partitions by exhausting them one at a time in
// partition-key-range order (§4.4). It is used for queries without an
// ORDER BY clause.
type UnorderedProducer struct {
	partitions      []Partition
	currentIndex    int
	currentPkrangeID string
	items           []QueryResult
}

// NewUnorderedProducer builds an UnorderedProducer over the given ranges.
func NewUnorderedProducer(ranges []PartitionKeyRange) *UnorderedProducer {
	partitions := SortPartitions(ranges)
	p := &UnorderedProducer{partitions: partitions}
	if len(partitions) > 0 {
		p.currentPkrangeID = partitions[0].Range.ID
	}
	return p
}

func (p *UnorderedProducer) Requests() []DataRequest {
	var requests []DataRequest
	for len(requests) == 0 {
		if p.currentIndex >= len(p.partitions) {
			return nil
		}
		partition := &p.partitions[p.currentIndex]
		req := partition.Request()
		if req != nil {
			req.RequestID = uint64(partition.Index)
			requests = append(requests, *req)
			continue
		}
		p.currentIndex++
		if p.currentIndex < len(p.partitions) {
			p.currentPkrangeID = p.partitions[p.currentIndex].Range.ID
		} else {
			p.currentPkrangeID = ""
		}
	}
	return requests
}

func (p *UnorderedProducer) ProvideData(requestID uint64, pkrangeID string, data []byte, continuation *string) error {
	if p.currentIndex >= len(p.partitions) {
		return Newf(ErrInternalError, "provided data for partition key range ID: %s, but all partitions are exhausted", pkrangeID)
	}
	if p.currentPkrangeID != pkrangeID {
		return Newf(ErrInternalError, "provided data for partition key range ID: %s, but current partition is: %s", pkrangeID, p.currentPkrangeID)
	}

	results, err := parseDocuments(ShapeRawPayload, data)
	if err != nil {
		return err
	}
	p.items = append(p.items, results...)

	partition, err := p.findPartition(pkrangeID)
	if err != nil {
		return err
	}
	partition.State.Update(continuation)
	return nil
}

func (p *UnorderedProducer) findPartition(pkrangeID string) (*Partition, error) {
	for i := range p.partitions {
		if p.partitions[i].Range.ID == pkrangeID {
			return &p.partitions[i], nil
		}
	}
	return nil, Newf(ErrUnknownPartitionKeyRange, "unknown partition key range ID: %s", pkrangeID)
}

func (p *UnorderedProducer) ProduceItem() (ProduceResult, error) {
	if len(p.items) == 0 {
		terminated := p.currentIndex == len(p.partitions)-1 &&
			len(p.partitions) > 0 &&
			p.partitions[p.currentIndex].State.Done()
		return ProduceResult{Terminated: terminated}, nil
	}
	value := p.items[0]
	p.items = p.items[1:]
	terminated := len(p.items) == 0 &&
		p.currentIndex == len(p.partitions)-1 &&
		len(p.partitions) > 0 &&
		p.partitions[p.currentIndex].State.Done()
	return ProduceResult{Value: &value, Terminated: terminated}, nil
}
