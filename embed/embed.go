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

// Package embed implements the stable, cross-language pipeline embedding
// contract (§6): opaque uint64 handles over a Pipeline, backed by a
// registry guarded by a single mutex. This is the one intentional piece of
// shared mutable state in the module (§5, §9) — the query coordination
// core itself (package queryengine) stays free of it.
package embed

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/shardql/queryengine/plan"
	"github.com/shardql/queryengine/queryengine"
)

// Handle is an opaque identifier for a live Pipeline, returned by Create
// and CreateReadMany and consumed by every other operation in this
// package.
type Handle uint64

type entry struct {
	pipeline    *queryengine.Pipeline
	correlation uuid.UUID
}

var (
	mu      sync.RWMutex
	handles = map[Handle]*entry{}
	nextID  uint64
)

func register(p *queryengine.Pipeline) Handle {
	id := Handle(atomic.AddUint64(&nextID, 1))
	mu.Lock()
	handles[id] = &entry{pipeline: p, correlation: uuid.New()}
	mu.Unlock()
	return id
}

func lookup(h Handle) (*entry, error) {
	mu.RLock()
	e, ok := handles[h]
	mu.RUnlock()
	if !ok {
		return nil, queryengine.NewError(queryengine.ErrArgumentNull, "unknown pipeline handle")
	}
	return e, nil
}

// Create builds a Pipeline from the gateway's query-plan and
// partition-ranges JSON documents (§6) and registers it under a fresh
// handle.
func Create(query string, planJSON, partitionRangesJSON []byte) (Handle, error) {
	if query == "" {
		return 0, queryengine.NewError(queryengine.ErrArgumentNull, "query must not be empty")
	}
	if len(planJSON) == 0 || len(partitionRangesJSON) == 0 {
		return 0, queryengine.NewError(queryengine.ErrArgumentNull, "plan_json and partition_ranges_json must not be empty")
	}

	parsedPlan, err := plan.Parse(planJSON)
	if err != nil {
		return 0, err
	}
	ranges, err := plan.ParsePartitionRanges(partitionRangesJSON)
	if err != nil {
		return 0, err
	}

	pipeline, err := queryengine.NewPipeline(query, parsedPlan.ToPipelineConfig(), ranges, parsedPlan.QueryRanges)
	if err != nil {
		return 0, err
	}
	return register(pipeline), nil
}

// CreateReadMany builds a Pipeline driving the ReadMany producer (§4.4.4)
// from host-supplied (index, id, pk) chunks. ReadMany bypasses query-plan
// JSON entirely, so this sits alongside rather than inside Create; it
// extends the stable cross-language contract of §6 rather than replacing
// any part of it.
func CreateReadMany(query string, chunks []queryengine.ReadManyChunk) Handle {
	return register(queryengine.NewReadManyPipeline(query, chunks))
}

// Query returns the (possibly rewritten) query text for a handle, per §6's
// `query()` operation.
func Query(h Handle) (string, error) {
	e, err := lookup(h)
	if err != nil {
		return "", err
	}
	return e.pipeline.Query(), nil
}

// ResultShape reports which of the three wrapping modes (§4.7) the host
// must use when parsing backend response bytes.
func ResultShape(h Handle) (queryengine.ResultShape, error) {
	e, err := lookup(h)
	if err != nil {
		return 0, err
	}
	return e.pipeline.ResultShape(), nil
}

// Run executes one turn of the pull protocol for the given handle (§6).
func Run(h Handle) (queryengine.PipelineResult, error) {
	e, err := lookup(h)
	if err != nil {
		return queryengine.PipelineResult{}, err
	}
	return e.pipeline.Run()
}

// ProvideData routes one backend response to the handle's pipeline (§6).
func ProvideData(h Handle, requestID uint64, pkrangeID string, data []byte, continuation *string) error {
	e, err := lookup(h)
	if err != nil {
		return err
	}
	return e.pipeline.ProvideData(requestID, pkrangeID, data, continuation)
}

// Correlation returns the log-correlation UUID minted for this handle at
// Create time, for the embedding surface's structured-logging fields
// (§10/§11) — a UUID reads better than a bare integer handle across log
// lines gathered from multiple hosts embedding this core.
func Correlation(h Handle) (uuid.UUID, error) {
	e, err := lookup(h)
	if err != nil {
		return uuid.UUID{}, err
	}
	return e.correlation, nil
}

// Free releases a handle. Freeing an unknown or already-freed handle is a
// no-op, matching the embedding contract's "free is idempotent" shape for
// hosts that may race a teardown against an in-flight call.
func Free(h Handle) {
	mu.Lock()
	delete(handles, h)
	mu.Unlock()
}

// Len reports the number of live handles, for the embedding surface's
// live-handles gauge (§10/§11).
func Len() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(handles)
}
