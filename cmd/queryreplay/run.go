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

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/shardql/queryengine/embed"
	"github.com/shardql/queryengine/internal/obs"
)

var (
	configPath  string
	fixtureDir  string
	turnDelay   time.Duration
	strict      bool
	printConfig bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay one fixture directory turn-by-turn",
	Long: `Run replays a fixture directory against the query coordination core.

Examples:
  queryreplay run --fixtures testdata/streaming_orderby
  queryreplay run --config queryreplay.yaml --turn-delay 500ms
`,
	RunE: runReplay,
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file")
	runCmd.Flags().StringVarP(&fixtureDir, "fixtures", "f", "", "Fixture directory (overrides config)")
	runCmd.Flags().DurationVar(&turnDelay, "turn-delay", 0, "Pause between turns (overrides config)")
	runCmd.Flags().BoolVar(&strict, "strict", false, "Validate plan.json/ranges.json against their JSON schemas first")
	runCmd.Flags().BoolVar(&printConfig, "print-config", false, "Print the effective configuration (as YAML) before replaying")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg := defaultConfig()
	if configPath != "" {
		loaded, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if fixtureDir != "" {
		cfg.FixtureDir = fixtureDir
	}
	if turnDelay != 0 {
		cfg.TurnDelay = turnDelay
	}
	if strict {
		cfg.Strict = true
	}
	if cfg.FixtureDir == "" {
		return fmt.Errorf("no fixture directory specified (use --fixtures or a config file)")
	}

	if printConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling effective config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}

	logger := obs.NewLogger(&cfg.Logging)
	defer logger.Sync()

	fx, err := loadFixture(cfg.FixtureDir)
	if err != nil {
		return fmt.Errorf("loading fixture %s: %w", cfg.FixtureDir, err)
	}

	if cfg.Strict {
		if result, err := obs.QueryPlanSchema.Validate(fx.planJSON); err != nil {
			return fmt.Errorf("validating plan.json: %w", err)
		} else if !result.Valid {
			return fmt.Errorf("plan.json failed schema validation: %+v", result.Errors)
		}
		if result, err := obs.PartitionRangesSchema.Validate(fx.rangesJSON); err != nil {
			return fmt.Errorf("validating ranges.json: %w", err)
		} else if !result.Valid {
			return fmt.Errorf("ranges.json failed schema validation: %+v", result.Errors)
		}
	}

	h, err := embed.Create(fx.query, fx.planJSON, fx.rangesJSON)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer embed.Free(h)

	correlation, _ := embed.Correlation(h)
	query, _ := embed.Query(h)
	shape, _ := embed.ResultShape(h)
	logger.Info("pipeline created",
		zap.String("correlation", correlation.String()),
		zap.String("query", query),
		zap.String("resultShape", shape.String()),
	)

	var limiter *rate.Limiter
	if cfg.TurnDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.TurnDelay), 1)
	}

	ctx := context.Background()
	turn := 0
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		result, err := embed.Run(h)
		if err != nil {
			return fmt.Errorf("run (turn %d): %w", turn, err)
		}
		for _, item := range result.Items {
			fmt.Println(string(item))
		}
		logger.Info("turn complete",
			zap.Int("turn", turn),
			zap.Int("items", len(result.Items)),
			zap.Int("requests", len(result.Requests)),
			zap.Bool("terminated", result.Terminated),
		)
		if result.Terminated {
			return nil
		}

		for _, req := range result.Requests {
			data, continuation, err := fx.nextPage(req.PartitionKeyRangeID)
			if err != nil {
				return fmt.Errorf("serving page for %s: %w", req.PartitionKeyRangeID, err)
			}
			if err := embed.ProvideData(h, req.RequestID, req.PartitionKeyRangeID, data, continuation); err != nil {
				return fmt.Errorf("provide_data for %s: %w", req.PartitionKeyRangeID, err)
			}
		}
		turn++
	}
}

// fixture is one replay directory's loaded state.
type fixture struct {
	query      string
	planJSON   []byte
	rangesJSON []byte

	responsesDir string
	served       map[string]int
}

func loadFixture(dir string) (*fixture, error) {
	query, err := os.ReadFile(filepath.Join(dir, "query.txt"))
	if err != nil {
		return nil, err
	}
	planJSON, err := os.ReadFile(filepath.Join(dir, "plan.json"))
	if err != nil {
		return nil, err
	}
	rangesJSON, err := os.ReadFile(filepath.Join(dir, "ranges.json"))
	if err != nil {
		return nil, err
	}
	return &fixture{
		query:        strings.TrimSpace(string(query)),
		planJSON:     planJSON,
		rangesJSON:   rangesJSON,
		responsesDir: filepath.Join(dir, "responses"),
		served:       map[string]int{},
	}, nil
}

// nextPage returns the next canned response page for pkrangeID, reading
// responses/<pkrangeID>/<n>.json in order. A continuation token (the next
// page's index, as a string) is returned whenever a further page file
// exists, matching the protocol's "non-nil continuation means more data"
// contract.
func (fx *fixture) nextPage(pkrangeID string) ([]byte, *string, error) {
	n := fx.served[pkrangeID]
	path := filepath.Join(fx.responsesDir, pkrangeID, strconv.Itoa(n)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("no fixture page %d for partition %s: %w", n, pkrangeID, err)
	}
	fx.served[pkrangeID] = n + 1

	var continuation *string
	nextPath := filepath.Join(fx.responsesDir, pkrangeID, strconv.Itoa(n+1)+".json")
	if _, err := os.Stat(nextPath); err == nil {
		tok := strconv.Itoa(n + 1)
		continuation = &tok
	}
	return data, continuation, nil
}
