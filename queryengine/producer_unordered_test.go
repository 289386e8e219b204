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
	"testing"
)

// fakePage is one backend response page: a continuation token (nil when the
// partition will be exhausted after this page) and its raw payload items.
type fakePage struct {
	continuation *string
	items        []string
}

func strPtr(s string) *string { return &s }

func rawPayloadDocumentsJSON(items []string) []byte {
	docs := make([]json.RawMessage, len(items))
	for i, it := range items {
		docs[i] = json.RawMessage(it)
	}
	env := struct {
		Documents []json.RawMessage `json:"Documents"`
	}{Documents: docs}
	data, err := json.Marshal(env)
	if err != nil {
		panic(err)
	}
	return data
}

func unorderedItemPayload(pkrangeID, id string) string {
	return fmt.Sprintf(`{"id":%q,"pk":%q,"title":"%s / %s"}`, id, pkrangeID, pkrangeID, id)
}

// runUnorderedProducer drains the producer against a fixed set of pages per
// partition, mirroring the reference engine's test harness.
func runUnorderedProducer(t *testing.T, producer ItemProducer, pages map[string][]fakePage) []string {
	t.Helper()
	var out []string
	for {
		requests := producer.Requests()
		if len(requests) == 0 {
			return out
		}
		for _, req := range requests {
			queue := pages[req.PartitionKeyRangeID]
			if len(queue) == 0 {
				t.Fatalf("unexpected request for exhausted partition %s", req.PartitionKeyRangeID)
			}
			page := queue[0]
			pages[req.PartitionKeyRangeID] = queue[1:]

			if (req.Continuation == nil) != (page.continuation == nil) {
				t.Fatalf("continuation mismatch for %s: got %v, want %v", req.PartitionKeyRangeID, req.Continuation, page.continuation)
			}

			var nextToken *string
			if rest := pages[req.PartitionKeyRangeID]; len(rest) > 0 {
				nextToken = rest[0].continuation
			}
			data := rawPayloadDocumentsJSON(page.items)
			if err := producer.ProvideData(req.RequestID, req.PartitionKeyRangeID, data, nextToken); err != nil {
				t.Fatalf("ProvideData: %v", err)
			}
		}

		for {
			result, err := producer.ProduceItem()
			if err != nil {
				t.Fatalf("ProduceItem: %v", err)
			}
			if result.Value == nil {
				break
			}
			out = append(out, string(result.Value.Payload))
		}
	}
}

func TestUnorderedProducerOrdersByPartitionKeyMinimum(t *testing.T) {
	page := func(pkrangeID string, startID, count int, continuation *string) fakePage {
		items := make([]string, count)
		for i := 0; i < count; i++ {
			items[i] = unorderedItemPayload(pkrangeID, fmt.Sprintf("item%d", startID+i))
		}
		return fakePage{continuation: continuation, items: items}
	}

	pages := map[string][]fakePage{
		"partition0": {
			page("partition0", 0, 5, nil),
			page("partition0", 5, 5, strPtr("p0c0")),
		},
		"partition1": {
			page("partition1", 0, 5, nil),
			page("partition1", 5, 5, strPtr("p1c0")),
		},
	}

	producer := NewUnorderedProducer([]PartitionKeyRange{
		{ID: "partition0", MinInclusive: "00", MaxExclusive: "99"},
		{ID: "partition1", MinInclusive: "99", MaxExclusive: "FF"},
	})

	got := runUnorderedProducer(t, producer, pages)

	var want []string
	for _, pk := range []string{"partition0", "partition1"} {
		for i := 0; i < 10; i++ {
			want = append(want, unorderedItemPayload(pk, fmt.Sprintf("item%d", i)))
		}
	}
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestUnorderedProducerUnknownPartition(t *testing.T) {
	producer := NewUnorderedProducer([]PartitionKeyRange{{ID: "p0", MinInclusive: "00", MaxExclusive: "FF"}})
	err := producer.ProvideData(0, "p1", rawPayloadDocumentsJSON(nil), nil)
	if KindOf(err) != ErrInternalError {
		t.Fatalf("ProvideData for wrong partition: got kind %v, want ErrInternalError", KindOf(err))
	}
}
