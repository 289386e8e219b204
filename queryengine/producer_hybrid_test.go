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
	"strings"
	"testing"
)

func componentResultJSON(rid string, scores []float64, payload string) string {
	return fmt.Sprintf(`{"_rid":%q,"payload":{"componentScores":%s,"payload":%s}}`,
		rid, scoresJSON(scores), payload)
}

func scoresJSON(scores []float64) string {
	data, err := json.Marshal(scores)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func componentResultsEnvelope(results ...string) []byte {
	return []byte(fmt.Sprintf(`{"Documents":[%s]}`, joinComma(results)))
}

func joinComma(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += it
	}
	return out
}

func TestHybridSearchProducerSingletonComponentSkipsFusion(t *testing.T) {
	info := HybridSearchQueryInfo{
		RequiresGlobalStatistics: false,
		ComponentQueryInfos:      []ComponentQueryInfo{{RewrittenQuery: "SELECT * FROM c"}},
		Skip:                     0,
		Take:                     10,
	}
	producer := NewHybridSearchProducer([]PartitionKeyRange{
		{ID: "p0", MinInclusive: "00", MaxExclusive: "FF"},
	}, info)

	requests := producer.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	req := requests[0]
	if req.PartitionKeyRangeID != "p0" || !req.IsQueryPlanRequest {
		t.Fatalf("unexpected request: %+v", req)
	}

	data := componentResultsEnvelope(
		componentResultJSON("rid1", []float64{0.5}, `{"title":"first"}`),
		componentResultJSON("rid2", []float64{0.9}, `{"title":"second"}`),
	)
	if err := producer.ProvideData(req.RequestID, "p0", data, nil); err != nil {
		t.Fatalf("ProvideData: %v", err)
	}

	var got []string
	for {
		result, err := producer.ProduceItem()
		if err != nil {
			t.Fatalf("ProduceItem: %v", err)
		}
		if result.Value == nil {
			break
		}
		got = append(got, string(result.Value.Payload))
	}
	want := []string{`{"title":"first"}`, `{"title":"second"}`}
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestHybridSearchProducerFusesMultipleComponentsByRRF(t *testing.T) {
	info := HybridSearchQueryInfo{
		RequiresGlobalStatistics: false,
		ComponentQueryInfos: []ComponentQueryInfo{
			{RewrittenQuery: "SELECT * FROM c WHERE CONTAINS(c.text, 'foo')"},
			{RewrittenQuery: "SELECT * FROM c ORDER BY VectorDistance(c.v, @v)"},
		},
		ComponentWeights: []float64{1.0, 1.0},
		Skip:             0,
		Take:             10,
	}
	producer := NewHybridSearchProducer([]PartitionKeyRange{
		{ID: "p0", MinInclusive: "00", MaxExclusive: "FF"},
	}, info)

	requests := producer.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	// Component 0 ranks rid2 first, rid1 second.
	// Component 1 ranks rid1 first, rid2 second.
	// Both contribute symmetric RRF scores, so the tiebreak is ascending rid.
	for _, req := range requests {
		idx, hasIdx := hybridRequestID(req.RequestID).queryIndex()
		if !hasIdx {
			t.Fatalf("request id should name a component index")
		}
		var data []byte
		switch idx {
		case 0:
			data = componentResultsEnvelope(
				componentResultJSON("rid1", []float64{0.2, 0.9}, `{"title":"one"}`),
				componentResultJSON("rid2", []float64{0.8, 0.1}, `{"title":"two"}`),
			)
		case 1:
			data = componentResultsEnvelope(
				componentResultJSON("rid1", []float64{0.2, 0.9}, `{"title":"one"}`),
				componentResultJSON("rid2", []float64{0.8, 0.1}, `{"title":"two"}`),
			)
		default:
			t.Fatalf("unexpected component index %d", idx)
		}
		if err := producer.ProvideData(req.RequestID, "p0", data, nil); err != nil {
			t.Fatalf("ProvideData component %d: %v", idx, err)
		}
	}

	var got []string
	for {
		result, err := producer.ProduceItem()
		if err != nil {
			t.Fatalf("ProduceItem: %v", err)
		}
		if result.Value == nil {
			break
		}
		got = append(got, string(result.Value.Payload))
	}
	// Both rid1 and rid2 rank #1 in one component and #2 in the other, so
	// their RRF scores tie; the tiebreak is ascending _rid.
	want := []string{`{"title":"one"}`, `{"title":"two"}`}
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestHybridSearchProducerRewritesQueriesFromGlobalStatistics(t *testing.T) {
	info := HybridSearchQueryInfo{
		RequiresGlobalStatistics: true,
		GlobalStatisticsQuery:    "SELECT COUNT(1) AS documentCount FROM c",
		ComponentQueryInfos: []ComponentQueryInfo{
			{RewrittenQuery: "SELECT TOP 10 * FROM c WHERE {documentdb-formattableorderbyquery-filter} ORDER BY BM25(c.text, {documentdb-formattablehybridsearchquery-totaldocumentcount}, {documentdb-formattablehybridsearchquery-totalwordcount-0}, {documentdb-formattablehybridsearchquery-hitcountsarray-0})"},
		},
		Skip: 0,
		Take: 10,
	}
	producer := NewHybridSearchProducer([]PartitionKeyRange{
		{ID: "p0", MinInclusive: "00", MaxExclusive: "99"},
		{ID: "p1", MinInclusive: "99", MaxExclusive: "FF"},
	}, info)

	requests := producer.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected 2 global statistics requests, got %d", len(requests))
	}
	for _, req := range requests {
		if hybridRequestID(req.RequestID) != globalStatisticsRequestID {
			t.Fatalf("expected global statistics sentinel request id, got %d", req.RequestID)
		}
		stats := fmt.Sprintf(`{"Documents":[{"documentCount":%d,"fullTextStatistics":[{"totalWordCount":%d,"hitCounts":[%d,%d]}]}]}`,
			5, 20, 3, 7)
		if err := producer.ProvideData(req.RequestID, req.PartitionKeyRangeID, []byte(stats), nil); err != nil {
			t.Fatalf("ProvideData global stats: %v", err)
		}
	}

	// Statistics from both partitions should have been aggregated additively:
	// documentCount 10, totalWordCount 40, hitCounts [6, 14].
	componentRequests := producer.Requests()
	if len(componentRequests) != 2 {
		t.Fatalf("expected 2 component requests after statistics round, got %d", len(componentRequests))
	}
	for _, req := range componentRequests {
		if req.OverrideQuery == nil {
			t.Fatalf("expected rewritten override query")
		}
		q := *req.OverrideQuery
		if strings.Contains(q, "{documentdb-formattableorderbyquery-filter}") ||
			strings.Contains(q, "{documentdb-formattablehybridsearchquery-totaldocumentcount}") ||
			strings.Contains(q, "totalwordcount-0}") ||
			strings.Contains(q, "hitcountsarray-0}") {
			t.Fatalf("query still contains unrewritten placeholders: %s", q)
		}
		if !strings.Contains(q, "ORDER BY BM25(c.text, 10, 40, [6,14])") {
			t.Fatalf("query missing expected rewritten statistics: %s", q)
		}
		if !strings.Contains(q, "WHERE true ORDER BY") {
			t.Fatalf("query missing rewritten order-by filter: %s", q)
		}
	}
}
