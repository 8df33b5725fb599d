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

// Package udev looks up hardware vendor metadata with udevadm.
package udev

//go:generate mockgen -destination=mock_runner.go -package=udev github.com/carverauto/netmirror/pkg/udev Runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/netmirror/pkg/logger"
)

var (
	// ErrNoMetadata is returned when udevadm reports neither vendor nor model.
	ErrNoMetadata = errors.New("no vendor metadata")
	// ErrCommandFailed wraps a non-zero exit of the lookup command.
	ErrCommandFailed = errors.New("udev command failed")
	errRunnerRequired = errors.New("udev runner is required")
)

const (
	vendorKey = "ID_VENDOR_FROM_DATABASE"
	modelKey  = "ID_MODEL_FROM_DATABASE"

	defaultCommand = "udevadm"
	defaultTimeout = 5 * time.Second
)

// Info is the vendor metadata of one device.
type Info struct {
	Vendor string `json:"vendor,omitempty"`
	Model  string `json:"model,omitempty"`
}

// Runner executes a command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Resolver runs "udevadm info <path>" and extracts vendor and model.
type Resolver struct {
	runner  Runner
	command string
	timeout time.Duration
	logger  logger.Logger
}

// Config configures a Resolver.
type Config struct {
	Command string
	Timeout time.Duration
	Logger  logger.Logger
}

// NewResolver creates a Resolver that executes through runner.
func NewResolver(runner Runner, cfg Config) (*Resolver, error) {
	if runner == nil {
		return nil, errRunnerRequired
	}

	if cfg.Command == "" {
		cfg.Command = defaultCommand
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}

	return &Resolver{
		runner:  runner,
		command: cfg.Command,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}, nil
}

// Lookup returns the vendor metadata for sysfsPath. Output without either
// key yields ErrNoMetadata.
func (r *Resolver) Lookup(ctx context.Context, sysfsPath string) (Info, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.runner.Run(ctx, r.command, "info", sysfsPath)
	if err != nil {
		return Info{}, fmt.Errorf("lookup %s: %w", sysfsPath, err)
	}

	info := Parse(out)
	if info == (Info{}) {
		return Info{}, fmt.Errorf("%w: %s", ErrNoMetadata, sysfsPath)
	}

	r.logger.Debug().
		Str("path", sysfsPath).
		Str("vendor", info.Vendor).
		Str("model", info.Model).
		Msg("Resolved vendor metadata")

	return info, nil
}

// Parse extracts vendor and model from udevadm's "E: KEY=value" lines.
func Parse(out []byte) Info {
	var info Info

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimPrefix(scanner.Text(), "E: "), "=")
		if !ok {
			continue
		}

		switch key {
		case vendorKey:
			info.Vendor = value
		case modelKey:
			info.Model = value
		}
	}

	return info
}
