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

// Package models holds configuration and wire types shared across netmirror.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carverauto/netmirror/pkg/logger"
)

const (
	DefaultReleaseGrace  = Duration(10 * time.Second)
	DefaultUdevCommand   = "udevadm"
	DefaultUdevTimeout   = Duration(5 * time.Second)
	DefaultSSHPort       = 22
	DefaultSubjectPrefix = "netmirror.devices"
	DefaultStream        = "NETMIRROR"
	DefaultExportEvery   = Duration(15 * time.Second)
	SystemBusAddress     = "system"
)

var (
	errInvalidDuration      = errors.New("invalid duration")
	errTargetsRequired      = errors.New("at least one target is required")
	errTargetNameRequired   = errors.New("target name is required")
	errDuplicateTarget      = errors.New("duplicate target name")
	errNATSURLRequired      = errors.New("nats.url is required when enabled")
	errMetricsEndpoint      = errors.New("metrics.endpoint is required when enabled")
	errSSHUserRequired      = errors.New("udev.ssh.user is required when udev.ssh.host is set")
	errNegativeReleaseGrace = errors.New("release_grace must be non-negative")
	errNATSTLSIncomplete    = errors.New("nats.tls needs ca_file, cert_file and key_file")
)

// Duration is a time.Duration that decodes from "10s" style strings or
// integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var n int64
	if err := node.Decode(&n); err == nil {
		*d = Duration(time.Duration(n))

		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return errInvalidDuration
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidDuration, err)
	}

	*d = Duration(dur)

	return nil
}

// MirrorConfig is the netmirror daemon configuration.
type MirrorConfig struct {
	Targets      []TargetConfig `json:"targets" yaml:"targets"`
	ReleaseGrace Duration       `json:"release_grace" yaml:"release_grace"`
	Udev         UdevConfig     `json:"udev" yaml:"udev"`
	NATS         NATSConfig     `json:"nats" yaml:"nats"`
	Logging      *logger.Config `json:"logging" yaml:"logging"`
	Metrics      MetricsConfig  `json:"metrics" yaml:"metrics"`
}

// TargetConfig names one NetworkManager instance to mirror. Address is
// "system" for the local system bus or a D-Bus address such as
// "unix:path=/run/dbus/system_bus_socket" or "tcp:host=nm1,port=55556".
type TargetConfig struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
}

// UdevConfig controls vendor metadata lookups. With SSH.Host set the
// command runs on that host instead of locally.
type UdevConfig struct {
	Enabled bool      `json:"enabled" yaml:"enabled"`
	Command string    `json:"command" yaml:"command"`
	Timeout Duration  `json:"timeout" yaml:"timeout"`
	SSH     SSHConfig `json:"ssh" yaml:"ssh"`
}

type SSHConfig struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port" yaml:"port"`
	User       string `json:"user" yaml:"user"`
	KeyFile    string `json:"key_file" yaml:"key_file"`
	KnownHosts string `json:"known_hosts" yaml:"known_hosts"`
}

type NATSConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	URL           string `json:"url" yaml:"url"`
	Stream        string `json:"stream" yaml:"stream"`
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix"`
	Domain        string `json:"domain,omitempty" yaml:"domain,omitempty"`
	// TLS enables mutual TLS towards the NATS server.
	TLS *TLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
}

type TLSConfig struct {
	CAFile     string `json:"ca_file" yaml:"ca_file"`
	CertFile   string `json:"cert_file" yaml:"cert_file"`
	KeyFile    string `json:"key_file" yaml:"key_file"`
	ServerName string `json:"server_name,omitempty" yaml:"server_name,omitempty"`
}

type MetricsConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Endpoint       string   `json:"endpoint" yaml:"endpoint"`
	Insecure       bool     `json:"insecure" yaml:"insecure"`
	ExportInterval Duration `json:"export_interval" yaml:"export_interval"`
}

// ApplyDefaults fills unset optional fields.
func (c *MirrorConfig) ApplyDefaults() {
	if c.ReleaseGrace == 0 {
		c.ReleaseGrace = DefaultReleaseGrace
	}

	for i := range c.Targets {
		if c.Targets[i].Address == "" {
			c.Targets[i].Address = SystemBusAddress
		}
	}

	if c.Udev.Command == "" {
		c.Udev.Command = DefaultUdevCommand
	}

	if c.Udev.Timeout == 0 {
		c.Udev.Timeout = DefaultUdevTimeout
	}

	if c.Udev.SSH.Host != "" && c.Udev.SSH.Port == 0 {
		c.Udev.SSH.Port = DefaultSSHPort
	}

	if c.NATS.Stream == "" {
		c.NATS.Stream = DefaultStream
	}

	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = DefaultSubjectPrefix
	}

	if c.Metrics.ExportInterval == 0 {
		c.Metrics.ExportInterval = DefaultExportEvery
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}
}

// Validate applies defaults and checks required fields.
func (c *MirrorConfig) Validate() error {
	c.ApplyDefaults()

	if len(c.Targets) == 0 {
		return errTargetsRequired
	}

	seen := make(map[string]struct{}, len(c.Targets))

	for _, t := range c.Targets {
		if t.Name == "" {
			return errTargetNameRequired
		}

		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("%w: %s", errDuplicateTarget, t.Name)
		}

		seen[t.Name] = struct{}{}
	}

	if c.ReleaseGrace < 0 {
		return errNegativeReleaseGrace
	}

	if c.Udev.SSH.Host != "" && c.Udev.SSH.User == "" {
		return errSSHUserRequired
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return errNATSURLRequired
	}

	if tls := c.NATS.TLS; c.NATS.Enabled && tls != nil && (tls.CAFile == "" || tls.CertFile == "" || tls.KeyFile == "") {
		return errNATSTLSIncomplete
	}

	if c.Metrics.Enabled && c.Metrics.Endpoint == "" {
		return errMetricsEndpoint
	}

	return nil
}

// Target returns the configuration for the named target.
func (c *MirrorConfig) Target(name string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}

	return TargetConfig{}, false
}
