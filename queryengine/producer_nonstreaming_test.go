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

import "testing"

func TestNonStreamingOrderByProducerBuffersAllResultsBeforeOrdering(t *testing.T) {
	// Same logical items as the streaming fixture, but each partition
	// returns them in reverse (only locally, not globally, sorted).
	pages := map[string][]fakeOrderByPage{
		"partition0": {
			{continuation: nil, items: []orderByFixtureItem{
				{"partition0", "item2", []string{"6", `"zzzz"`}},
				{"partition0", "item1", []string{"2", `"yyyy"`}},
				{"partition0", "item0", []string{"1", `"aaaa"`}},
			}},
			{continuation: strPtr("p0c0"), items: nil},
		},
		"partition1": {
			{continuation: nil, items: []orderByFixtureItem{
				{"partition1", "item5", []string{"9", `"zzzz"`}},
				{"partition1", "item4", []string{"8", `"zzzz"`}},
				{"partition1", "item3", []string{"7", `"zzzz"`}},
				{"partition1", "item2", []string{"3", `"zzzz"`}},
				{"partition1", "item1", []string{"2", `"bbbb"`}},
				{"partition1", "item0", []string{"1", `"zzzz"`}},
			}},
		},
	}
	want := []string{
		unorderedItemPayload("partition1", "item0"),
		unorderedItemPayload("partition0", "item0"),
		unorderedItemPayload("partition0", "item1"),
		unorderedItemPayload("partition1", "item1"),
		unorderedItemPayload("partition1", "item2"),
		unorderedItemPayload("partition0", "item2"),
		unorderedItemPayload("partition1", "item3"),
		unorderedItemPayload("partition1", "item4"),
		unorderedItemPayload("partition1", "item5"),
	}

	sorting := NewSorting([]SortDirection{Ascending, Descending})
	producer := NewNonStreamingOrderByProducer([]PartitionKeyRange{
		{ID: "partition0", MinInclusive: "00", MaxExclusive: "99"},
		{ID: "partition1", MinInclusive: "99", MaxExclusive: "FF"},
	}, sorting)

	got := runOrderByProducer(t, producer, pages)

	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d:\ngot:  %v\nwant: %v", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d = %s, want %s", i, got[i], want[i])
		}
	}
}
