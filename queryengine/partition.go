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

// PartitionKeyRange is a single physical shard's routing range, as
// advertised by the host. Ranges are half-open: [MinInclusive, MaxExclusive).
type PartitionKeyRange struct {
	ID           string `json:"id"`
	MinInclusive string `json:"minInclusive"`
	MaxExclusive string `json:"maxExclusive"`
}

// PaginationKind is the tag of a PaginationState.
type PaginationKind int

const (
	PaginationInitial PaginationKind = iota
	PaginationContinuing
	PaginationDone
)

// PaginationState is the per-partition pagination cursor (§4.2). Transitions
// are monotonic: Initial -> Continuing -> ... -> Continuing -> Done, or
// Initial -> Done directly. There is no regression.
type PaginationState struct {
	Kind          PaginationKind
	Token         string
	NextPageIndex uint32
}

// Update advances the state given the continuation token the backend
// returned: Some(token) moves to Continuing, None moves to the terminal
// Done state.
func (p *PaginationState) Update(continuation *string) {
	if continuation == nil {
		p.Kind = PaginationDone
		return
	}
	p.NextPageIndex++
	p.Kind = PaginationContinuing
	p.Token = *continuation
}

// Started reports whether this partition has produced at least one page.
func (p PaginationState) Started() bool { return p.Kind != PaginationInitial }

// Done reports whether this partition has no more pages to fetch.
func (p PaginationState) Done() bool { return p.Kind == PaginationDone }

// Partition pairs a PartitionKeyRange with its pagination cursor and its
// position in the range-sorted partition list (used as a stable merge
// tiebreak in Streaming ORDER BY).
type Partition struct {
	Index int
	Range PartitionKeyRange
	State PaginationState
}

// Request derives the DataRequest this partition currently wants, or nil
// if it is Done.
func (p *Partition) Request() *DataRequest {
	if p.State.Done() {
		return nil
	}
	req := &DataRequest{PartitionKeyRangeID: p.Range.ID}
	if p.State.Kind == PaginationContinuing {
		token := p.State.Token
		req.Continuation = &token
	}
	return req
}

// SortPartitions orders partitions by their range's MinInclusive, the
// canonical cross-partition tiebreak (§3), and assigns stable Index values
// matching that order.
func SortPartitions(ranges []PartitionKeyRange) []Partition {
	sorted := make([]PartitionKeyRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinInclusive < sorted[j].MinInclusive
	})
	partitions := make([]Partition, len(sorted))
	for i, r := range sorted {
		partitions[i] = Partition{Index: i, Range: r, State: PaginationState{}}
	}
	return partitions
}

// QueryRange is one entry of the query plan's queryRanges: the set of
// hashed-key intervals the query actually needs to visit.
type QueryRange struct {
	Min            string `json:"min"`
	Max            string `json:"max"`
	IsMinInclusive bool   `json:"isMinInclusive"`
	IsMaxInclusive bool   `json:"isMaxInclusive"`
}

// FilterPartitions keeps only the partitions that overlap at least one
// entry of ranges (§4.6). An empty ranges means "keep all".
//
// The partition's own lower bound is always inclusive (it is a physical
// shard boundary), so only the query range's max-inclusivity flag changes
// the comparison operator used; the min-inclusivity flag folds into the
// same strict-less-than test under the assumption that partition and query
// boundaries share one dense, contiguous keyspace.
func FilterPartitions(partitions []Partition, ranges []QueryRange) []Partition {
	if len(ranges) == 0 {
		return partitions
	}
	kept := make([]Partition, 0, len(partitions))
	for _, p := range partitions {
		for _, r := range ranges {
			if partitionOverlapsRange(p.Range, r) {
				kept = append(kept, p)
				break
			}
		}
	}
	return kept
}

func partitionOverlapsRange(p PartitionKeyRange, r QueryRange) bool {
	minOK := p.MaxExclusive > r.Min
	var maxOK bool
	if r.IsMaxInclusive {
		maxOK = p.MinInclusive <= r.Max
	} else {
		maxOK = p.MinInclusive < r.Max
	}
	return minOK && maxOK
}
