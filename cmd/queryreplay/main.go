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

// Command queryreplay is a development tool: it drives a query
// coordination pipeline turn-by-turn against a fixture directory instead
// of a live backend, the way a host SDK would against a real Cosmos-like
// gateway. It is not part of the embedding surface itself (§1 places a
// host's CLI/bindings out of scope) — it exists so engineers can exercise
// the pipeline state machine by hand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shardql/queryengine/queryengine"
)

var version = queryengine.Version

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "queryreplay",
	Short:   "Replay fixture-driven cross-partition query turns",
	Version: version,
	Long: `queryreplay drives the query coordination core against a fixture
directory of canned per-partition responses, one protocol turn at a time,
printing the items and outstanding requests each turn produces.`,
}

func init() {
	rootCmd.AddCommand(runCmd)
}
