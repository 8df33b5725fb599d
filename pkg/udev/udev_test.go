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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/netmirror/pkg/logger"
	"github.com/carverauto/netmirror/pkg/models"
)

var errTestRunner = errors.New("connection refused")

const udevOutput = `P: /devices/pci0000:00/0000:00:1f.6/net/eth0
E: DEVPATH=/devices/pci0000:00/0000:00:1f.6/net/eth0
E: ID_MODEL_FROM_DATABASE=Ethernet Connection I219-LM
E: ID_VENDOR_FROM_DATABASE=Intel Corporation
E: INTERFACE=eth0
`

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		out  string
		want Info
	}{
		{
			name: "both keys",
			out:  udevOutput,
			want: Info{Vendor: "Intel Corporation", Model: "Ethernet Connection I219-LM"},
		},
		{
			name: "vendor only",
			out:  "E: ID_VENDOR_FROM_DATABASE=Realtek\n",
			want: Info{Vendor: "Realtek"},
		},
		{
			name: "value containing equals",
			out:  "E: ID_MODEL_FROM_DATABASE=RTL8111/8168 (rev=15)\n",
			want: Info{Model: "RTL8111/8168 (rev=15)"},
		},
		{
			name: "unrelated output",
			out:  "Unknown device, --name=, --path=, or absolute path in /dev/ or /sys expected.\n",
			want: Info{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Parse([]byte(tt.out)))
		})
	}
}

func TestResolverLookup(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := NewMockRunner(ctrl)

	runner.EXPECT().
		Run(gomock.Any(), "/usr/bin/udevadm", "info", "/sys/devices/pci0000:00/0000:00:1f.6/net/eth0").
		Return([]byte(udevOutput), nil)

	resolver, err := NewResolver(runner, Config{Command: "/usr/bin/udevadm", Logger: logger.NewTestLogger()})
	require.NoError(t, err)

	info, err := resolver.Lookup(context.Background(), "/sys/devices/pci0000:00/0000:00:1f.6/net/eth0")
	require.NoError(t, err)
	assert.Equal(t, "Intel Corporation", info.Vendor)
	assert.Equal(t, "Ethernet Connection I219-LM", info.Model)
}

func TestResolverLookupNoMetadata(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := NewMockRunner(ctrl)

	runner.EXPECT().Run(gomock.Any(), defaultCommand, "info", "/sys/virtual").Return([]byte("E: INTERFACE=lo\n"), nil)

	resolver, err := NewResolver(runner, Config{})
	require.NoError(t, err)

	_, err = resolver.Lookup(context.Background(), "/sys/virtual")
	require.ErrorIs(t, err, ErrNoMetadata)
}

func TestResolverLookupRunnerError(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := NewMockRunner(ctrl)

	runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errTestRunner)

	resolver, err := NewResolver(runner, Config{})
	require.NoError(t, err)

	_, err = resolver.Lookup(context.Background(), "/sys/x")
	require.ErrorIs(t, err, errTestRunner)
}

func TestNewResolverRequiresRunner(t *testing.T) {
	_, err := NewResolver(nil, Config{})
	require.ErrorIs(t, err, errRunnerRequired)
}

func TestLocalRunnerExitStatus(t *testing.T) {
	_, err := LocalRunner{}.Run(context.Background(), "sh", "-c", "exit 3")
	require.ErrorIs(t, err, ErrCommandFailed)

	out, err := LocalRunner{}.Run(context.Background(), "sh", "-c", "echo E: ID_VENDOR_FROM_DATABASE=Acme")
	require.NoError(t, err)
	assert.Equal(t, Info{Vendor: "Acme"}, Parse(out))
}

func TestShellQuote(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "udevadm info /sys/class/net/eth0", commandLine("udevadm", []string{"info", "/sys/class/net/eth0"}))
	assert.Equal(t, `'a b'`, shellQuote("a b"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, `''`, shellQuote(""))
	assert.Equal(t, `'$(reboot)'`, shellQuote("$(reboot)"))
}

func TestNewSSHRunnerValidation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	badKey := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(badKey, []byte("not a key"), 0o600))

	tests := []struct {
		name    string
		cfg     models.SSHConfig
		wantErr error
	}{
		{name: "no host", cfg: models.SSHConfig{}, wantErr: errSSHHostRequired},
		{name: "no user", cfg: models.SSHConfig{Host: "nm1"}, wantErr: errSSHUserRequired},
		{name: "no key", cfg: models.SSHConfig{Host: "nm1", User: "ops"}, wantErr: errSSHKeyRequired},
		{
			name:    "no known hosts",
			cfg:     models.SSHConfig{Host: "nm1", User: "ops", KeyFile: badKey},
			wantErr: errKnownHosts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewSSHRunner(tt.cfg)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := NewSSHRunner(models.SSHConfig{Host: "nm1", User: "ops", KeyFile: badKey, KnownHosts: "/nonexistent"})
	require.Error(t, err)
}
