/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger provides JSON structured logging using zerolog
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel resolves the zerolog level for c. Debug wins over Level.
func (c *Config) ParseLevel() (zerolog.Level, error) {
	if c.Debug {
		return zerolog.DebugLevel, nil
	}

	if c.Level == "" {
		return zerolog.InfoLevel, nil
	}

	return zerolog.ParseLevel(c.Level)
}

// Writer returns the destination named by c.Output.
func (c *Config) Writer() io.Writer {
	if c.Output == "stderr" {
		return os.Stderr
	}

	return os.Stdout
}

// Init configures the process-wide zerolog logger, used for messages
// that are not tied to a component.
func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := config.ParseLevel()
	if err != nil {
		return err
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	log.Logger = zerolog.New(config.Writer()).
		Level(level).
		With().
		Timestamp().
		Logger()

	return nil
}
