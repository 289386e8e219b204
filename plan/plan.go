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

// Package plan decodes the gateway's query-plan and partition-range JSON
// documents (§6) into the types queryengine's pipeline constructor consumes.
// It is the only place in this module that understands those wire shapes;
// queryengine itself never imports encoding/json for plan documents.
package plan

import (
	"strings"

	"github.com/bytedance/sonic"

	"github.com/shardql/queryengine/queryengine"
)

// wireQueryPlan mirrors the gateway's queryInfo JSON exactly (§6).
type wireQueryPlan struct {
	QueryInfo   wireQueryInfo         `json:"queryInfo"`
	QueryRanges []wireQueryRange      `json:"queryRanges"`
	HybridInfo  *wireHybridSearchInfo `json:"hybridSearchQueryInfo"`
}

type wireQueryInfo struct {
	OrderBy                     []string          `json:"orderBy"`
	OrderByExpressions          []string          `json:"orderByExpressions"`
	Top                         *uint64           `json:"top"`
	Offset                      *uint64           `json:"offset"`
	Limit                       *uint64           `json:"limit"`
	Aggregates                  []string          `json:"aggregates"`
	DistinctType                string            `json:"distinctType"`
	GroupByExpressions          []string          `json:"groupByExpressions"`
	GroupByAliases              []string          `json:"groupByAliases"`
	GroupByAliasToAggregateType map[string]string `json:"groupByAliasToAggregateType"`
	RewrittenQuery              string            `json:"rewrittenQuery"`
	HasSelectValue              bool              `json:"hasSelectValue"`
	HasNonStreamingOrderBy      bool              `json:"hasNonStreamingOrderBy"`
}

type wireQueryRange struct {
	Min            string `json:"min"`
	Max            string `json:"max"`
	IsMinInclusive bool   `json:"isMinInclusive"`
	IsMaxInclusive bool   `json:"isMaxInclusive"`
}

type wireHybridSearchInfo struct {
	GlobalStatisticsQuery    string                   `json:"globalStatisticsQuery"`
	ComponentQueryInfos      []wireComponentQueryInfo `json:"componentQueryInfos"`
	ComponentWeights         []float64                `json:"componentWeights"`
	RequiresGlobalStatistics bool                     `json:"requiresGlobalStatistics"`
	Skip                     *uint64                  `json:"skip"`
	Take                     *uint64                  `json:"take"`
}

type wireComponentQueryInfo struct {
	RewrittenQuery     string   `json:"rewrittenQuery"`
	OrderByExpressions []string `json:"orderByExpressions"`
}

// wirePartitionRanges mirrors the partition-range JSON document (§6).
type wirePartitionRanges struct {
	PartitionKeyRanges []queryengine.PartitionKeyRange `json:"PartitionKeyRanges"`
}

// QueryPlan is the parsed, engine-ready form of the gateway's query plan.
// Every field has already been translated into the types queryengine's
// pipeline construction consumes directly.
type QueryPlan struct {
	OrderBy                []queryengine.SortDirection
	Top                    *uint64
	Offset                 *uint64
	Limit                  *uint64
	Aggregates             []string
	DistinctType           string
	GroupByExpressions     []string
	RewrittenQuery         string
	HasSelectValue         bool
	HasNonStreamingOrderBy bool

	QueryRanges []queryengine.QueryRange

	HybridSearchQueryInfo *queryengine.HybridSearchQueryInfo
}

// HasGroupBy reports whether the plan names any GROUP BY surface — rejected
// at pipeline construction as UnsupportedQueryPlan (§4.6).
func (p *QueryPlan) HasGroupBy() bool {
	return len(p.GroupByExpressions) > 0
}

// IsDistinct reports whether the plan requests DISTINCT semantics —
// rejected at pipeline construction as UnsupportedQueryPlan (§4.6).
func (p *QueryPlan) IsDistinct() bool {
	return p.DistinctType != "" && !strings.EqualFold(p.DistinctType, "None")
}

// ToPipelineConfig translates this parsed plan into the engine-native
// configuration queryengine.NewPipeline consumes.
func (p *QueryPlan) ToPipelineConfig() queryengine.PipelineConfig {
	return queryengine.PipelineConfig{
		OrderBy:                p.OrderBy,
		Top:                    p.Top,
		Offset:                 p.Offset,
		Limit:                  p.Limit,
		Aggregates:             p.Aggregates,
		HasSelectValue:         p.HasSelectValue,
		IsDistinct:             p.IsDistinct(),
		HasGroupBy:             p.HasGroupBy(),
		HasNonStreamingOrderBy: p.HasNonStreamingOrderBy,
		RewrittenQuery:         p.RewrittenQuery,
		HybridSearchQueryInfo:  p.HybridSearchQueryInfo,
	}
}

// Parse decodes a query-plan JSON document into engine-ready form.
func Parse(data []byte) (*QueryPlan, error) {
	var wire wireQueryPlan
	if err := sonic.Unmarshal(data, &wire); err != nil {
		return nil, queryengine.Wrap(queryengine.ErrDeserializationError, err, "decoding query plan")
	}

	directions, err := parseDirections(wire.QueryInfo.OrderBy)
	if err != nil {
		return nil, err
	}

	ranges := make([]queryengine.QueryRange, len(wire.QueryRanges))
	for i, r := range wire.QueryRanges {
		ranges[i] = queryengine.QueryRange{
			Min:            r.Min,
			Max:            r.Max,
			IsMinInclusive: r.IsMinInclusive,
			IsMaxInclusive: r.IsMaxInclusive,
		}
	}

	plan := &QueryPlan{
		OrderBy:                directions,
		Top:                    wire.QueryInfo.Top,
		Offset:                 wire.QueryInfo.Offset,
		Limit:                  wire.QueryInfo.Limit,
		Aggregates:             wire.QueryInfo.Aggregates,
		DistinctType:           wire.QueryInfo.DistinctType,
		GroupByExpressions:     wire.QueryInfo.GroupByExpressions,
		RewrittenQuery:         wire.QueryInfo.RewrittenQuery,
		HasSelectValue:         wire.QueryInfo.HasSelectValue,
		HasNonStreamingOrderBy: wire.QueryInfo.HasNonStreamingOrderBy,
		QueryRanges:            ranges,
	}

	if wire.HybridInfo != nil {
		plan.HybridSearchQueryInfo = toEngineHybridInfo(wire.HybridInfo)
	}

	return plan, nil
}

func parseDirections(raw []string) ([]queryengine.SortDirection, error) {
	directions := make([]queryengine.SortDirection, len(raw))
	for i, s := range raw {
		switch {
		case strings.EqualFold(s, "Ascending"):
			directions[i] = queryengine.Ascending
		case strings.EqualFold(s, "Descending"):
			directions[i] = queryengine.Descending
		default:
			return nil, queryengine.Newf(queryengine.ErrInvalidGatewayResponse, "unknown order-by direction: %s", s)
		}
	}
	return directions, nil
}

func toEngineHybridInfo(wire *wireHybridSearchInfo) *queryengine.HybridSearchQueryInfo {
	components := make([]queryengine.ComponentQueryInfo, len(wire.ComponentQueryInfos))
	for i, c := range wire.ComponentQueryInfos {
		components[i] = queryengine.ComponentQueryInfo{
			RewrittenQuery:     c.RewrittenQuery,
			OrderByExpressions: append([]string(nil), c.OrderByExpressions...),
		}
	}

	var skip, take uint64
	if wire.Skip != nil {
		skip = *wire.Skip
	}
	if wire.Take != nil {
		take = *wire.Take
	} else {
		take = ^uint64(0)
	}

	return &queryengine.HybridSearchQueryInfo{
		RequiresGlobalStatistics: wire.RequiresGlobalStatistics,
		GlobalStatisticsQuery:    wire.GlobalStatisticsQuery,
		ComponentQueryInfos:      components,
		ComponentWeights:         wire.ComponentWeights,
		Skip:                     skip,
		Take:                     take,
	}
}

// ParsePartitionRanges decodes the partition-range JSON document (§6).
func ParsePartitionRanges(data []byte) ([]queryengine.PartitionKeyRange, error) {
	var wire wirePartitionRanges
	if err := sonic.Unmarshal(data, &wire); err != nil {
		return nil, queryengine.Wrap(queryengine.ErrDeserializationError, err, "decoding partition ranges")
	}
	return wire.PartitionKeyRanges, nil
}
