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

package nm

import (
	"github.com/carverauto/netmirror/pkg/logger"
)

// ErrorReporter is the process-wide sink for unexpected remote failures.
type ErrorReporter interface {
	ReportUnexpected(target string, err error)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(target string, err error)

// ReportUnexpected implements ErrorReporter.
func (f ReporterFunc) ReportUnexpected(target string, err error) {
	f(target, err)
}

// LogReporter logs unexpected failures at error level.
type LogReporter struct {
	logger logger.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(log logger.Logger) *LogReporter {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &LogReporter{logger: log}
}

// ReportUnexpected implements ErrorReporter.
func (r *LogReporter) ReportUnexpected(target string, err error) {
	if err == nil {
		return
	}

	r.logger.Error().Err(err).Str("target", target).Msg("Unexpected error from NetworkManager")
}
