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

import "github.com/bytedance/sonic"

// hybridComponentState tracks one component query's independent pagination
// across every partition (§4.4.5).
type hybridComponentState struct {
	queryIndex        uint32
	info              ComponentQueryInfo
	weight            float64
	partitions        []string
	states            map[string]*PaginationState
	remainingPartitions int
}

func newHybridComponentState(index uint32, info ComponentQueryInfo, weight float64, pkrangeIDs []string) *hybridComponentState {
	states := make(map[string]*PaginationState, len(pkrangeIDs))
	partitions := make([]string, len(pkrangeIDs))
	copy(partitions, pkrangeIDs)
	for _, id := range pkrangeIDs {
		states[id] = &PaginationState{}
	}
	return &hybridComponentState{
		queryIndex:          index,
		info:                info,
		weight:              weight,
		partitions:          partitions,
		states:              states,
		remainingPartitions: len(pkrangeIDs),
	}
}

func (c *hybridComponentState) requests() []DataRequest {
	var requests []DataRequest
	for _, pkrangeID := range c.partitions {
		state := c.states[pkrangeID]
		if state.Done() {
			continue
		}
		query := c.info.RewrittenQuery
		req := DataRequest{
			RequestID:           uint64(componentRequestID(c.queryIndex, state.NextPageIndex)),
			PartitionKeyRangeID: pkrangeID,
			OverrideQuery:       &query,
			IsQueryPlanRequest:  true,
		}
		if state.Kind == PaginationContinuing {
			token := state.Token
			req.Continuation = &token
		}
		requests = append(requests, req)
	}
	return requests
}

func (c *hybridComponentState) complete() bool {
	return c.remainingPartitions == 0
}

func (c *hybridComponentState) updatePartitionState(pkrangeID string, continuation *string) error {
	state, ok := c.states[pkrangeID]
	if !ok {
		return Newf(ErrInvalidGatewayResponse, "received response for unknown partition key range ID: %s", pkrangeID)
	}
	if state.Done() {
		return nil
	}
	state.Update(continuation)
	if state.Done() {
		c.remainingPartitions--
	}
	return nil
}

// parseComponentQueryResults decodes one page of component-query documents.
func parseComponentQueryResults(data []byte) ([]componentQueryResult, error) {
	var env struct {
		Documents []componentQueryResult `json:"Documents"`
	}
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, Wrap(ErrDeserializationError, err, "decoding component query documents")
	}
	return env.Documents, nil
}
