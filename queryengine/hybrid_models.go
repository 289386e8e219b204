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
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// hybridRequestID correlates an incoming ProvideData call to the hybrid
// search phase that issued it. The high 32 bits carry the component query
// index; the low 32 bits carry a 1-based page number, with the all-zero
// value reserved as the global-statistics sentinel (§4.4.5).
type hybridRequestID uint64

const globalStatisticsRequestID hybridRequestID = 0

func componentRequestID(queryIndex uint32, pageNumber uint32) hybridRequestID {
	return hybridRequestID(uint64(queryIndex)<<32 | uint64(pageNumber+1))
}

// queryIndex returns the component index this id names, or false if it is
// the global-statistics sentinel.
func (id hybridRequestID) queryIndex() (uint32, bool) {
	if id == globalStatisticsRequestID {
		return 0, false
	}
	return uint32(id >> 32), true
}

// ComponentQueryInfo is one full-text-search component of a hybrid search
// plan, carrying the query text and ORDER BY expressions that get rewritten
// once global statistics are known.
type ComponentQueryInfo struct {
	RewrittenQuery     string
	OrderByExpressions []string
}

// HybridSearchQueryInfo is the hybrid-search-specific portion of a query
// plan (§4.4.5).
type HybridSearchQueryInfo struct {
	RequiresGlobalStatistics bool
	GlobalStatisticsQuery    string
	ComponentQueryInfos      []ComponentQueryInfo
	ComponentWeights         []float64
	Skip                     uint64
	Take                     uint64
}

func (q HybridSearchQueryInfo) weightFor(i int) float64 {
	if i < len(q.ComponentWeights) {
		return q.ComponentWeights[i]
	}
	return 1.0
}

// fullTextStatistics is one component's per-partition full-text statistics.
type fullTextStatistics struct {
	TotalWordCount uint64   `json:"totalWordCount"`
	HitCounts      []uint64 `json:"hitCounts"`
}

// globalStatistics is the singleton document a global-statistics query
// response carries, aggregated additively across partitions.
type globalStatistics struct {
	DocumentCount      uint64               `json:"documentCount"`
	FullTextStatistics []fullTextStatistics `json:"fullTextStatistics"`
}

type globalStatisticsEnvelope struct {
	Documents []globalStatistics `json:"Documents"`
}

func parseGlobalStatistics(data []byte) (globalStatistics, error) {
	var env globalStatisticsEnvelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return globalStatistics{}, Wrap(ErrDeserializationError, err, "decoding global statistics result")
	}
	if len(env.Documents) != 1 {
		return globalStatistics{}, NewError(ErrInvalidGatewayResponse, "global statistics query should have only one item")
	}
	return env.Documents[0], nil
}

func (g globalStatistics) aggregateWith(other globalStatistics) (globalStatistics, error) {
	if len(g.FullTextStatistics) != len(other.FullTextStatistics) {
		return globalStatistics{}, NewError(ErrInvalidGatewayResponse, "mismatched full text statistics length during aggregation")
	}
	merged := globalStatistics{
		DocumentCount:      g.DocumentCount + other.DocumentCount,
		FullTextStatistics: make([]fullTextStatistics, len(g.FullTextStatistics)),
	}
	for i, a := range g.FullTextStatistics {
		b := other.FullTextStatistics[i]
		if len(a.HitCounts) != len(b.HitCounts) {
			return globalStatistics{}, NewError(ErrInvalidGatewayResponse, "mismatched hit counts length during aggregation")
		}
		hits := make([]uint64, len(a.HitCounts))
		for j := range a.HitCounts {
			hits[j] = a.HitCounts[j] + b.HitCounts[j]
		}
		merged.FullTextStatistics[i] = fullTextStatistics{
			TotalWordCount: a.TotalWordCount + b.TotalWordCount,
			HitCounts:      hits,
		}
	}
	return merged, nil
}

// rewriteComponentQuery applies applyToQueryTemplate to every placeholder
// site of a component query (§4.4.5).
func (g globalStatistics) rewriteComponentQuery(q *ComponentQueryInfo) error {
	for i, expr := range q.OrderByExpressions {
		rewritten, err := g.applyToQueryTemplate(expr)
		if err != nil {
			return err
		}
		q.OrderByExpressions[i] = rewritten
	}
	rewritten, err := g.applyToQueryTemplate(q.RewrittenQuery)
	if err != nil {
		return err
	}
	q.RewrittenQuery = rewritten
	return nil
}

const (
	totalDocumentCountPlaceholder = "{documentdb-formattablehybridsearchquery-totaldocumentcount}"
	formattableOrderByPlaceholder = "{documentdb-formattableorderbyquery-filter}"
)

// applyToQueryTemplate substitutes the global-statistics placeholders into
// one query string (§4.4.5).
func (g globalStatistics) applyToQueryTemplate(query string) (string, error) {
	if query == "" {
		return "", nil
	}

	rewritten := query
	for i, stats := range g.FullTextStatistics {
		wordCountPlaceholder := "{documentdb-formattablehybridsearchquery-totalwordcount-" + strconv.Itoa(i) + "}"
		hitCountsPlaceholder := "{documentdb-formattablehybridsearchquery-hitcountsarray-" + strconv.Itoa(i) + "}"

		hitCounts := make([]string, len(stats.HitCounts))
		for j, c := range stats.HitCounts {
			hitCounts[j] = strconv.FormatUint(c, 10)
		}

		rewritten = strings.ReplaceAll(rewritten, wordCountPlaceholder, strconv.FormatUint(stats.TotalWordCount, 10))
		rewritten = strings.ReplaceAll(rewritten, hitCountsPlaceholder, "["+strings.Join(hitCounts, ",")+"]")
	}

	rewritten = strings.ReplaceAll(rewritten, totalDocumentCountPlaceholder, strconv.FormatUint(g.DocumentCount, 10))
	rewritten = strings.ReplaceAll(rewritten, formattableOrderByPlaceholder, "true")
	return rewritten, nil
}

// componentQueryResult is one fused-search candidate document as returned
// by a component query (§4.4.5).
type componentQueryResult struct {
	RID     string                `json:"_rid"`
	Payload componentQueryPayload `json:"payload"`
}

type componentQueryPayload struct {
	ComponentScores []float64       `json:"componentScores"`
	UserPayload     json.RawMessage `json:"payload"`
}
