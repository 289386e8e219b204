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
	"fmt"
	"testing"
)

// drainPipeline runs a Pipeline to completion, answering every DataRequest
// via respond, and returns the concatenated item stream across all turns.
func drainPipeline(t *testing.T, p *Pipeline, respond func(req DataRequest) ([]byte, *string)) []string {
	t.Helper()
	var got []string
	for turn := 0; turn < 1000; turn++ {
		result, err := p.Run()
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		for _, item := range result.Items {
			got = append(got, string(item))
		}
		if result.Terminated {
			if len(result.Requests) != 0 {
				t.Fatalf("terminated result carried requests: %+v", result.Requests)
			}
			return got
		}
		if len(result.Requests) == 0 {
			t.Fatalf("no requests and not terminated on turn %d", turn)
		}
		for _, req := range result.Requests {
			data, cont := respond(req)
			if err := p.ProvideData(req.RequestID, req.PartitionKeyRangeID, data, cont); err != nil {
				t.Fatalf("ProvideData: %v", err)
			}
		}
	}
	t.Fatalf("pipeline did not terminate within 1000 turns")
	return nil
}

func TestPipelineUnorderedTwoPartitions(t *testing.T) {
	ranges := []PartitionKeyRange{
		{ID: "partition0", MinInclusive: "00", MaxExclusive: "99"},
		{ID: "partition1", MinInclusive: "99", MaxExclusive: "FF"},
	}
	pipeline, err := NewPipeline("SELECT * FROM c", PipelineConfig{}, ranges, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if pipeline.ResultShape() != ShapeRawPayload {
		t.Fatalf("expected RawPayload result shape, got %v", pipeline.ResultShape())
	}

	served := map[string]bool{}
	got := drainPipeline(t, pipeline, func(req DataRequest) ([]byte, *string) {
		if served[req.PartitionKeyRangeID] {
			t.Fatalf("partition %s served twice", req.PartitionKeyRangeID)
		}
		served[req.PartitionKeyRangeID] = true
		items := make([]string, 6)
		for i := range items {
			items[i] = unorderedItemPayload(req.PartitionKeyRangeID, fmt.Sprintf("item%d", i))
		}
		return rawPayloadDocumentsJSON(items), nil
	})

	var want []string
	for _, pk := range []string{"partition0", "partition1"} {
		for i := 0; i < 6; i++ {
			want = append(want, unorderedItemPayload(pk, fmt.Sprintf("item%d", i)))
		}
	}
	assertItemsEqual(t, got, want)
}

func streamingOrderByPipeline(t *testing.T, cfg PipelineConfig) (*Pipeline, map[string][]fakeOrderByPage) {
	t.Helper()
	pages, _ := streamingFixturePartitions()
	ranges := []PartitionKeyRange{
		{ID: "partition0", MinInclusive: "00", MaxExclusive: "99"},
		{ID: "partition1", MinInclusive: "99", MaxExclusive: "FF"},
	}
	cfg.OrderBy = []SortDirection{Ascending, Descending}
	pipeline, err := NewPipeline("SELECT * FROM c ORDER BY c.a, c.b DESC", cfg, ranges, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return pipeline, pages
}

func respondFromOrderByPages(t *testing.T, pages map[string][]fakeOrderByPage) func(req DataRequest) ([]byte, *string) {
	t.Helper()
	return func(req DataRequest) ([]byte, *string) {
		queue := pages[req.PartitionKeyRangeID]
		var page fakeOrderByPage
		if len(queue) > 0 {
			page = queue[0]
			pages[req.PartitionKeyRangeID] = queue[1:]
		}
		var nextToken *string
		if rest := pages[req.PartitionKeyRangeID]; len(rest) > 0 {
			nextToken = rest[0].continuation
		}
		return orderByDocumentsJSON(page.items), nextToken
	}
}

func TestPipelineStreamingOrderBy(t *testing.T) {
	pipeline, pages := streamingOrderByPipeline(t, PipelineConfig{})
	if pipeline.ResultShape() != ShapeOrderBy {
		t.Fatalf("expected OrderBy result shape, got %v", pipeline.ResultShape())
	}

	_, want := streamingFixturePartitions()
	got := drainPipeline(t, pipeline, respondFromOrderByPages(t, pages))
	assertItemsEqual(t, got, want)
}

func TestPipelineTopSix(t *testing.T) {
	top := uint64(6)
	pipeline, pages := streamingOrderByPipeline(t, PipelineConfig{Top: &top})

	_, all := streamingFixturePartitions()
	want := all[:6]
	got := drainPipeline(t, pipeline, respondFromOrderByPages(t, pages))
	assertItemsEqual(t, got, want)
}

func TestPipelineOffsetThenLimitThree(t *testing.T) {
	offset, limit := uint64(3), uint64(3)
	pipeline, pages := streamingOrderByPipeline(t, PipelineConfig{Offset: &offset, Limit: &limit})

	_, all := streamingFixturePartitions()
	want := all[3:6]
	got := drainPipeline(t, pipeline, respondFromOrderByPages(t, pages))
	assertItemsEqual(t, got, want)
}

func TestPipelineQueryRangeFilterSelectsSinglePartition(t *testing.T) {
	ranges := []PartitionKeyRange{
		{ID: "partition0", MinInclusive: "00000000", MaxExclusive: "40000000"},
		{ID: "partition1", MinInclusive: "40000000", MaxExclusive: "80000000"},
		{ID: "partition2", MinInclusive: "80000000", MaxExclusive: "C0000000"},
		{ID: "partition3", MinInclusive: "C0000000", MaxExclusive: "FFFFFFFF"},
	}
	queryRanges := []QueryRange{
		{Min: "40000000", Max: "7FFFFFFC", IsMinInclusive: true, IsMaxInclusive: true},
	}
	pipeline, err := NewPipeline("SELECT * FROM c", PipelineConfig{}, ranges, queryRanges)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	visited := map[string]bool{}
	got := drainPipeline(t, pipeline, func(req DataRequest) ([]byte, *string) {
		visited[req.PartitionKeyRangeID] = true
		items := []string{
			unorderedItemPayload(req.PartitionKeyRangeID, "item0"),
			unorderedItemPayload(req.PartitionKeyRangeID, "item1"),
			unorderedItemPayload(req.PartitionKeyRangeID, "item2"),
		}
		return rawPayloadDocumentsJSON(items), nil
	})

	if len(visited) != 1 || !visited["partition1"] {
		t.Fatalf("expected only partition1 to be visited, got %+v", visited)
	}
	want := []string{
		unorderedItemPayload("partition1", "item0"),
		unorderedItemPayload("partition1", "item1"),
		unorderedItemPayload("partition1", "item2"),
	}
	assertItemsEqual(t, got, want)
}

func TestPipelineRejectsSelectValue(t *testing.T) {
	ranges := []PartitionKeyRange{{ID: "p0", MinInclusive: "00", MaxExclusive: "FF"}}
	_, err := NewPipeline("SELECT VALUE c.id FROM c", PipelineConfig{HasSelectValue: true}, ranges, nil)
	if KindOf(err) != ErrUnsupportedQueryPlan {
		t.Fatalf("expected ErrUnsupportedQueryPlan, got %v", err)
	}
}

func TestPipelineRejectsDistinct(t *testing.T) {
	ranges := []PartitionKeyRange{{ID: "p0", MinInclusive: "00", MaxExclusive: "FF"}}
	_, err := NewPipeline("SELECT DISTINCT * FROM c", PipelineConfig{IsDistinct: true}, ranges, nil)
	if KindOf(err) != ErrUnsupportedQueryPlan {
		t.Fatalf("expected ErrUnsupportedQueryPlan, got %v", err)
	}
}

func TestPipelineRejectsGroupBy(t *testing.T) {
	ranges := []PartitionKeyRange{{ID: "p0", MinInclusive: "00", MaxExclusive: "FF"}}
	_, err := NewPipeline("SELECT c.category FROM c GROUP BY c.category", PipelineConfig{HasGroupBy: true}, ranges, nil)
	if KindOf(err) != ErrUnsupportedQueryPlan {
		t.Fatalf("expected ErrUnsupportedQueryPlan, got %v", err)
	}
}

func TestPipelineQueryRewriting(t *testing.T) {
	ranges := []PartitionKeyRange{{ID: "p0", MinInclusive: "00", MaxExclusive: "FF"}}
	cfg := PipelineConfig{
		RewrittenQuery: "SELECT * FROM c WHERE {documentdb-formattableorderbyquery-filter}",
	}
	pipeline, err := NewPipeline("SELECT * FROM c", cfg, ranges, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	want := "SELECT * FROM c WHERE true"
	if pipeline.Query() != want {
		t.Fatalf("Query() = %q, want %q", pipeline.Query(), want)
	}
}

func TestPipelineIdempotentRunWithoutProvideData(t *testing.T) {
	ranges := []PartitionKeyRange{{ID: "p0", MinInclusive: "00", MaxExclusive: "FF"}}
	pipeline, err := NewPipeline("SELECT * FROM c", PipelineConfig{}, ranges, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	first, err := pipeline.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := pipeline.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(second.Items) != 0 {
		t.Fatalf("expected no new items from a repeated Run, got %v", second.Items)
	}
	if len(first.Requests) != len(second.Requests) {
		t.Fatalf("expected identical pending requests, got %+v vs %+v", first.Requests, second.Requests)
	}
}

func assertItemsEqual(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d:\ngot:  %v\nwant: %v", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d = %s, want %s", i, got[i], want[i])
		}
	}
}
