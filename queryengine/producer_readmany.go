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
	"fmt"
	"sort"
	"strings"
)

// ReadManyItem is one (index, id, pk) triple the host wants fetched by
// point-read-equivalent query (§4.4.4).
type ReadManyItem struct {
	Index int
	ID    string
	PK    string
}

// ReadManyChunk maps a partition key range ID to the items to fetch from
// it in one query chunk.
type ReadManyChunk map[string][]ReadManyItem

type readManyChunkState struct {
	pkrangeID string
	query     string
	state     PaginationState
}

func (s *readManyChunkState) request() *DataRequest {
	if s.state.Done() {
		return nil
	}
	req := &DataRequest{PartitionKeyRangeID: s.pkrangeID, OverrideQuery: &s.query}
	if s.state.Kind == PaginationContinuing {
		token := s.state.Token
		req.Continuation = &token
	}
	return req
}

// ReadManyProducer implements the ReadMany merge strategy (§4.4.4): a
// sequence of query chunks, each synthesized into one equality-OR query
// per partition and drained FIFO-style, one chunk at a time.
type ReadManyProducer struct {
	chunks       []ReadManyChunk
	chunkStates  [][]*readManyChunkState
	currentChunk int
	currentPos   int
	items        []QueryResult
}

// NewReadManyProducer builds a ReadManyProducer from the host's query
// chunks, synthesizing one query per partition per chunk.
func NewReadManyProducer(chunks []ReadManyChunk) *ReadManyProducer {
	states := make([][]*readManyChunkState, len(chunks))
	for i, chunk := range chunks {
		pkrangeIDs := make([]string, 0, len(chunk))
		for id := range chunk {
			pkrangeIDs = append(pkrangeIDs, id)
		}
		sort.Strings(pkrangeIDs)

		chunkStates := make([]*readManyChunkState, 0, len(pkrangeIDs))
		for _, id := range pkrangeIDs {
			chunkStates = append(chunkStates, &readManyChunkState{
				pkrangeID: id,
				query:     synthesizeReadManyQuery(chunk[id]),
			})
		}
		states[i] = chunkStates
	}
	return &ReadManyProducer{chunks: chunks, chunkStates: states}
}

// synthesizeReadManyQuery builds the SELECT * FROM c WHERE (c.id=... AND
// c.pk=...) OR ... query for one partition's items, ordered ascending by
// each triple's original index (§4.4.4, resolving the spec's unspecified
// exact formatting).
func synthesizeReadManyQuery(items []ReadManyItem) string {
	sorted := make([]ReadManyItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	clauses := make([]string, len(sorted))
	for i, item := range sorted {
		clauses[i] = fmt.Sprintf("(c.id=%s AND c.pk=%s)", jsonStringLiteral(item.ID), jsonStringLiteral(item.PK))
	}
	return "SELECT * FROM c WHERE " + strings.Join(clauses, " OR ")
}

func jsonStringLiteral(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (p *ReadManyProducer) currentChunkStates() []*readManyChunkState {
	if p.currentChunk >= len(p.chunkStates) {
		return nil
	}
	return p.chunkStates[p.currentChunk]
}

func (p *ReadManyProducer) Requests() []DataRequest {
	var requests []DataRequest
	for len(requests) == 0 {
		states := p.currentChunkStates()
		if states == nil {
			return nil
		}
		if p.currentPos >= len(states) {
			p.currentChunk++
			p.currentPos = 0
			continue
		}
		state := states[p.currentPos]
		req := state.request()
		if req == nil {
			p.currentPos++
			continue
		}
		req.RequestID = uint64(p.currentChunk)<<32 | uint64(p.currentPos)
		requests = append(requests, *req)
	}
	return requests
}

func (p *ReadManyProducer) ProvideData(requestID uint64, pkrangeID string, data []byte, continuation *string) error {
	chunkIndex := int(requestID >> 32)
	pos := int(requestID & 0xFFFFFFFF)
	if chunkIndex < 0 || chunkIndex >= len(p.chunkStates) {
		return Newf(ErrInternalError, "read-many request id names unknown chunk %d", chunkIndex)
	}
	states := p.chunkStates[chunkIndex]
	if pos < 0 || pos >= len(states) {
		return Newf(ErrInternalError, "read-many request id names unknown chunk position %d", pos)
	}
	state := states[pos]
	if state.pkrangeID != pkrangeID {
		return Newf(ErrInternalError, "provided data for partition key range ID: %s, but request named: %s", pkrangeID, state.pkrangeID)
	}

	results, err := parseDocuments(ShapeRawPayload, data)
	if err != nil {
		return err
	}
	p.items = append(p.items, results...)
	state.state.Update(continuation)
	return nil
}

func (p *ReadManyProducer) allDone() bool {
	if len(p.chunkStates) == 0 {
		return true
	}
	last := p.chunkStates[len(p.chunkStates)-1]
	for _, s := range last {
		if !s.state.Done() {
			return false
		}
	}
	return p.currentChunk >= len(p.chunkStates)-1
}

func (p *ReadManyProducer) ProduceItem() (ProduceResult, error) {
	if len(p.items) == 0 {
		return ProduceResult{Terminated: p.allDone()}, nil
	}
	value := p.items[0]
	p.items = p.items[1:]
	return ProduceResult{Value: &value, Terminated: len(p.items) == 0 && p.allDone()}, nil
}
