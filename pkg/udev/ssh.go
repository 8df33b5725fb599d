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

package udev

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/carverauto/netmirror/pkg/models"
)

var (
	errSSHHostRequired = errors.New("ssh host is required")
	errSSHUserRequired = errors.New("ssh user is required")
	errSSHKeyRequired  = errors.New("ssh key_file is required")
	errKnownHosts      = errors.New("ssh known_hosts is required")
)

const defaultDialTimeout = 10 * time.Second

// SSHRunner runs commands on a remote host over SSH, one session per
// call. Host keys are verified against a known_hosts file.
type SSHRunner struct {
	addr   string
	config *ssh.ClientConfig
}

// NewSSHRunner builds an SSHRunner from cfg using key authentication.
func NewSSHRunner(cfg models.SSHConfig) (*SSHRunner, error) {
	if cfg.Host == "" {
		return nil, errSSHHostRequired
	}

	if cfg.User == "" {
		return nil, errSSHUserRequired
	}

	if cfg.KeyFile == "" {
		return nil, errSSHKeyRequired
	}

	if cfg.KnownHosts == "" {
		return nil, errKnownHosts
	}

	keyData, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	hostKeyCallback, err := knownhosts.New(cfg.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}

	port := cfg.Port
	if port == 0 {
		port = models.DefaultSSHPort
	}

	return &SSHRunner{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		config: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         defaultDialTimeout,
		},
	}, nil
}

// Run implements Runner.
func (r *SSHRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	client, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}

	done := make(chan result, 1)

	go func() {
		out, err := session.Output(commandLine(name, args))
		done <- result{out: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			var exitErr *ssh.ExitError
			if errors.As(res.err, &exitErr) {
				return nil, fmt.Errorf("%w: %s exited %d on %s", ErrCommandFailed, name, exitErr.ExitStatus(), r.addr)
			}

			return nil, fmt.Errorf("command failed: %w", res.err)
		}

		return res.out, nil
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)

		return nil, ctx.Err()
	}
}

func (r *SSHRunner) connect(ctx context.Context) (*ssh.Client, error) {
	dialer := &net.Dialer{Timeout: r.config.Timeout}

	conn, err := dialer.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, r.addr, r.config)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// commandLine quotes name and args for the remote shell.
func commandLine(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuote(name))

	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}

	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r == '/' || r == '-' || r == '_' || r == '.' || r == ':' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
