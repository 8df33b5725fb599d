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
	"os/exec"
	"strings"
)

// LocalRunner runs commands on this host.
type LocalRunner struct{}

// Run implements Runner.
func (LocalRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s exited %d: %s", ErrCommandFailed, name, exitErr.ExitCode(),
				strings.TrimSpace(string(exitErr.Stderr)))
		}

		return nil, err
	}

	return out, nil
}
