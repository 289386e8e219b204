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

package plan

import (
	"testing"

	"github.com/shardql/queryengine/queryengine"
)

func TestParseBasicOrderByPlan(t *testing.T) {
	data := []byte(`{
		"queryInfo": {
			"orderBy": ["Ascending", "Descending"],
			"top": 10,
			"aggregates": [],
			"distinctType": "None",
			"rewrittenQuery": "SELECT * FROM c WHERE {documentdb-formattableorderbyquery-filter}",
			"hasSelectValue": false,
			"hasNonStreamingOrderBy": false
		},
		"queryRanges": [
			{"min": "00", "max": "FF", "isMinInclusive": true, "isMaxInclusive": false}
		]
	}`)

	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.OrderBy) != 2 || p.OrderBy[0] != queryengine.Ascending || p.OrderBy[1] != queryengine.Descending {
		t.Fatalf("unexpected order-by directions: %+v", p.OrderBy)
	}
	if p.Top == nil || *p.Top != 10 {
		t.Fatalf("unexpected top: %+v", p.Top)
	}
	if p.IsDistinct() {
		t.Fatalf("expected distinctType \"None\" to not be distinct")
	}
	if p.HasGroupBy() {
		t.Fatalf("expected no group by")
	}
	if len(p.QueryRanges) != 1 || p.QueryRanges[0].Min != "00" {
		t.Fatalf("unexpected query ranges: %+v", p.QueryRanges)
	}

	cfg := p.ToPipelineConfig()
	if cfg.HasSelectValue || cfg.IsDistinct || cfg.HasGroupBy {
		t.Fatalf("unexpected rejection flags in config: %+v", cfg)
	}
}

func TestParseRejectsUnknownOrderByDirection(t *testing.T) {
	data := []byte(`{"queryInfo": {"orderBy": ["Sideways"]}}`)
	_, err := Parse(data)
	if queryengine.KindOf(err) != queryengine.ErrInvalidGatewayResponse {
		t.Fatalf("expected ErrInvalidGatewayResponse, got %v", err)
	}
}

func TestParseDetectsDistinctAndGroupBy(t *testing.T) {
	data := []byte(`{
		"queryInfo": {
			"distinctType": "Unordered",
			"groupByExpressions": ["c.category"]
		}
	}`)
	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.IsDistinct() {
		t.Fatalf("expected distinctType \"Unordered\" to be distinct")
	}
	if !p.HasGroupBy() {
		t.Fatalf("expected group by expressions to be detected")
	}
}

func TestParseHybridSearchQueryInfo(t *testing.T) {
	data := []byte(`{
		"queryInfo": {},
		"hybridSearchQueryInfo": {
			"globalStatisticsQuery": "SELECT COUNT(1) AS documentCount FROM c",
			"componentQueryInfos": [
				{"rewrittenQuery": "SELECT * FROM c WHERE CONTAINS(c.text, 'foo')", "orderByExpressions": []}
			],
			"componentWeights": [1.0],
			"requiresGlobalStatistics": true,
			"skip": 5,
			"take": 20
		}
	}`)
	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.HybridSearchQueryInfo == nil {
		t.Fatalf("expected hybrid search query info to be parsed")
	}
	info := p.HybridSearchQueryInfo
	if !info.RequiresGlobalStatistics {
		t.Fatalf("expected RequiresGlobalStatistics to be true")
	}
	if len(info.ComponentQueryInfos) != 1 {
		t.Fatalf("expected 1 component query info, got %d", len(info.ComponentQueryInfos))
	}
	if info.Skip != 5 || info.Take != 20 {
		t.Fatalf("unexpected skip/take: %d/%d", info.Skip, info.Take)
	}
}

func TestParseHybridSearchDefaultsTakeToUnbounded(t *testing.T) {
	data := []byte(`{
		"queryInfo": {},
		"hybridSearchQueryInfo": {
			"requiresGlobalStatistics": false,
			"componentQueryInfos": [{"rewrittenQuery": "SELECT * FROM c"}]
		}
	}`)
	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.HybridSearchQueryInfo.Take == 0 {
		t.Fatalf("expected an unbounded take default, got 0")
	}
}

func TestParsePartitionRanges(t *testing.T) {
	data := []byte(`{"PartitionKeyRanges": [
		{"id": "0", "minInclusive": "", "maxExclusive": "FF"},
		{"id": "1", "minInclusive": "FF", "maxExclusive": "FFFFFFFF"}
	]}`)
	ranges, err := ParsePartitionRanges(data)
	if err != nil {
		t.Fatalf("ParsePartitionRanges: %v", err)
	}
	if len(ranges) != 2 || ranges[0].ID != "0" || ranges[1].ID != "1" {
		t.Fatalf("unexpected ranges: %+v", ranges)
	}
}
