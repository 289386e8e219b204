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
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/shardql/queryengine/internal/obs"
)

// Config is queryreplay's file-based configuration, following evalaf's
// viper+YAML configuration idiom (evalaf/eval/config.go).
type Config struct {
	// FixtureDir holds query.txt, plan.json, ranges.json, and a
	// responses/ directory of canned per-partition pages.
	FixtureDir string `yaml:"fixtureDir" mapstructure:"fixtureDir"`

	// Logging selects the replay loop's log style/level.
	Logging obs.LogConfig `yaml:"logging" mapstructure:"logging"`

	// Strict validates plan.json/ranges.json against their JSON schemas
	// before handing them to embed.Create.
	Strict bool `yaml:"strict" mapstructure:"strict"`

	// TurnDelay paces the replay loop between run()/provide_data() turns,
	// for eyeballing turn-by-turn output at a human-readable cadence.
	TurnDelay time.Duration `yaml:"turnDelay" mapstructure:"turnDelay"`
}

// defaultConfig mirrors libaf/logging.NewLogger's own defaulting: terminal
// style, info level, no artificial delay.
func defaultConfig() Config {
	return Config{
		Logging: obs.LogConfig{Style: obs.StyleTerminal, Level: "info"},
	}
}

// LoadConfig reads a YAML configuration file via viper, falling back to
// defaultConfig's values for anything the file omits.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}
