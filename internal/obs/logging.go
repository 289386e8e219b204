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

// Package obs carries the engineering concerns the query coordination core
// itself deliberately stays free of (§5, §10): structured logging, metrics,
// and boundary validation for the embedding surface and the queryreplay CLI.
package obs

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Style selects the zap core/encoder NewLogger builds.
type Style string

const (
	StyleNoop     Style = "noop"
	StyleJSON     Style = "json"
	StyleTerminal Style = "terminal"
	StyleLogfmt   Style = "logfmt"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Style Style  `yaml:"style" json:"style"`
	Level string `yaml:"level" json:"level"`
}

// NewLogger creates a zap logger based on the LogConfig settings. If config
// is nil or has empty values, defaults to terminal style at info level,
// mirroring libaf/logging.NewLogger's defaulting behavior.
func NewLogger(c *LogConfig) *zap.Logger {
	var err error
	var logger *zap.Logger

	style := StyleTerminal
	level := zapcore.InfoLevel

	if c != nil {
		if c.Style != "" {
			style = c.Style
		}
		if c.Level != "" {
			if lvl, parseErr := zapcore.ParseLevel(c.Level); parseErr == nil {
				level = lvl
			}
		}
	}

	switch style {
	case StyleNoop:
		logger = zap.NewNop()
	case StyleJSON:
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		logger, err = cfg.Build(zap.AddCaller())
	case StyleTerminal:
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		logger, err = cfg.Build(zap.AddCaller())
	case StyleLogfmt:
		encoderConfig := zapcore.EncoderConfig{
			TimeKey:    "ts",
			LevelKey:   "lvl",
			NameKey:    "logger",
			CallerKey:  "caller",
			MessageKey: "msg",
			LineEnding: zapcore.DefaultLineEnding,
		}
		core := zapcore.NewCore(
			NewLogfmtEncoder(encoderConfig),
			zapcore.AddSync(os.Stderr),
			level,
		)
		logger = zap.New(core, zap.AddCaller())
	default:
		log.Fatalf("invalid logging style %q: must be one of: terminal, json, logfmt, noop", style)
	}

	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	return logger
}
