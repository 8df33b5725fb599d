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

package lifecycle

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/netmirror/pkg/logger"
)

func TestCreateComponentLogger(t *testing.T) {
	log, err := CreateComponentLogger("nm", &logger.Config{Level: "warn"})
	require.NoError(t, err)

	impl, ok := log.(*LoggerImpl)
	require.True(t, ok)
	assert.Equal(t, zerolog.WarnLevel, impl.logger.GetLevel())

	log.SetDebug(true)
	assert.Equal(t, zerolog.DebugLevel, impl.logger.GetLevel())
}

func TestInitializeLogger(t *testing.T) {
	require.NoError(t, InitializeLogger(&logger.Config{Level: "error"}))
	assert.Equal(t, zerolog.ErrorLevel, zlog.Logger.GetLevel())

	require.Error(t, InitializeLogger(&logger.Config{Level: "loud"}))
	assert.Equal(t, zerolog.ErrorLevel, zlog.Logger.GetLevel(), "failed init keeps the previous logger")
}

func TestCreateLoggerInvalidLevel(t *testing.T) {
	_, err := CreateLogger(&logger.Config{Level: "loud"})
	assert.Error(t, err)
}

func TestWithShutdownSignalsCancel(t *testing.T) {
	ctx, cancel := WithShutdownSignals(context.Background(), logger.NewTestLogger())
	cancel()

	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
