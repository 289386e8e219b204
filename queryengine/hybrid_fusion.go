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

// rrfConstant is the standard Reciprocal Rank Fusion smoothing constant
// (§4.4.5).
const rrfConstant = 60.0

// hybridCollector accumulates component query results across pages, one
// arrival-ordered list per component, keyed by _rid for dedup.
type hybridCollector struct {
	singleton    bool
	perComponent [][]componentQueryResult
	payloads     map[string]componentQueryPayload
}

func newHybridCollector(componentCount int) *hybridCollector {
	return &hybridCollector{
		singleton:    componentCount == 1,
		perComponent: make([][]componentQueryResult, componentCount),
		payloads:     make(map[string]componentQueryPayload),
	}
}

func (c *hybridCollector) provideData(queryIndex uint32, data []byte) error {
	results, err := parseComponentQueryResults(data)
	if err != nil {
		return err
	}
	for _, r := range results {
		if _, seen := c.payloads[r.RID]; !seen {
			c.payloads[r.RID] = r.Payload
		}
	}
	c.perComponent[queryIndex] = append(c.perComponent[queryIndex], results...)
	return nil
}

// computeFinalResults applies RRF fusion (or the singleton shortcut) and
// pagination, returning the final ordered deque of raw payload results
// (§4.4.5).
func (c *hybridCollector) computeFinalResults(skip, take uint64, weightFor func(int) float64) ([]QueryResult, error) {
	var ordered []string

	if c.singleton {
		seen := make(map[string]bool, len(c.perComponent[0]))
		for _, r := range c.perComponent[0] {
			if seen[r.RID] {
				continue
			}
			seen[r.RID] = true
			ordered = append(ordered, r.RID)
		}
	} else {
		scores := make(map[string]float64)
		var all []componentQueryResult
		seen := make(map[string]bool)
		for _, items := range c.perComponent {
			for _, r := range items {
				if !seen[r.RID] {
					seen[r.RID] = true
					all = append(all, r)
				}
			}
		}
		for k := range c.perComponent {
			ranked := make([]componentQueryResult, len(all))
			copy(ranked, all)
			sort.SliceStable(ranked, func(i, j int) bool {
				return ranked[i].Payload.ComponentScores[k] > ranked[j].Payload.ComponentScores[k]
			})
			weight := weightFor(k)
			for rank, item := range ranked {
				scores[item.RID] += weight / (rrfConstant + float64(rank+1))
			}
		}

		ordered = make([]string, 0, len(scores))
		for rid := range scores {
			ordered = append(ordered, rid)
		}
		sort.Slice(ordered, func(i, j int) bool {
			si, sj := scores[ordered[i]], scores[ordered[j]]
			if si != sj {
				return si > sj
			}
			return ordered[i] < ordered[j]
		})
	}

	if skip >= uint64(len(ordered)) {
		return nil, nil
	}
	ordered = ordered[skip:]
	if take < uint64(len(ordered)) {
		ordered = ordered[:take]
	}

	results := make([]QueryResult, len(ordered))
	for i, rid := range ordered {
		payload, ok := c.payloads[rid]
		if !ok {
			return nil, Newf(ErrInternalError, "missing payload for fused result %s", rid)
		}
		results[i] = RawPayloadResult(payload.UserPayload)
	}
	return results, nil
}
