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

// StreamingOrderByProducer merges partitions that each return their own
// results in the query's global sort order (§4.4). It can yield items
// without waiting for every partition to finish, but must stall until
// every partition has produced at least one page, since an unseen
// partition might hold an item that sorts ahead of anything buffered.
type StreamingOrderByProducer struct {
	partitions []Partition
	sorting    Sorting
	buffers    [][]QueryResult
}

// NewStreamingOrderByProducer builds a StreamingOrderByProducer.
func NewStreamingOrderByProducer(ranges []PartitionKeyRange, sorting Sorting) *StreamingOrderByProducer {
	partitions := SortPartitions(ranges)
	return &StreamingOrderByProducer{
		partitions: partitions,
		sorting:    sorting,
		buffers:    make([][]QueryResult, len(partitions)),
	}
}

func (p *StreamingOrderByProducer) Requests() []DataRequest {
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

func (p *StreamingOrderByProducer) ProvideData(requestID uint64, pkrangeID string, data []byte, continuation *string) error {
	partition, err := p.findPartition(pkrangeID)
	if err != nil {
		return err
	}
	results, err := parseDocuments(ShapeOrderBy, data)
	if err != nil {
		return err
	}
	p.buffers[partition.Index] = append(p.buffers[partition.Index], results...)
	partition.State.Update(continuation)
	return nil
}

func (p *StreamingOrderByProducer) findPartition(pkrangeID string) (*Partition, error) {
	for i := range p.partitions {
		if p.partitions[i].Range.ID == pkrangeID {
			return &p.partitions[i], nil
		}
	}
	return nil, Newf(ErrUnknownPartitionKeyRange, "unknown partition key range ID: %s", pkrangeID)
}

func (p *StreamingOrderByProducer) ProduceItem() (ProduceResult, error) {
	currentIndex := -1

	for i := range p.partitions {
		partition := &p.partitions[i]
		buffer := p.buffers[i]

		if !partition.State.Started() {
			return NoResult, nil
		}
		if partition.State.Done() && len(buffer) == 0 {
			continue
		}

		if currentIndex == -1 {
			currentIndex = i
			continue
		}

		var currentHead, candidateHead *QueryResult
		if len(p.buffers[currentIndex]) > 0 {
			currentHead = &p.buffers[currentIndex][0]
		}
		if len(buffer) > 0 {
			candidateHead = &buffer[0]
		}
		cmp, err := p.sorting.CompareResults(currentHead, candidateHead)
		if err != nil {
			return ProduceResult{}, err
		}
		switch cmp {
		case RightBeforeLeft:
			currentIndex = i
		case SortEqual:
			if i < currentIndex {
				currentIndex = i
			}
		}
	}

	if currentIndex == -1 {
		return ProduceResult{Terminated: true}, nil
	}
	buffer := p.buffers[currentIndex]
	if len(buffer) == 0 {
		return NoResult, nil
	}
	value := buffer[0]
	p.buffers[currentIndex] = buffer[1:]
	terminated := true
	for i := range p.partitions {
		if !p.partitions[i].State.Done() || len(p.buffers[i]) > 0 {
			terminated = false
			break
		}
	}
	return ProduceResult{Value: &value, Terminated: terminated}, nil
}
