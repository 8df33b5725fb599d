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
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var (
	metricReaderOnce sync.Once
	metricReader     *sdkmetric.ManualReader
)

// collectMetrics installs a manual reader as the global meter provider on
// first use. Instruments created earlier are delegated to it.
func collectMetrics(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()

	metricReaderOnce.Do(func() {
		metricReader = sdkmetric.NewManualReader()
		otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader)))
	})

	var rm metricdata.ResourceMetrics
	require.NoError(t, metricReader.Collect(context.Background(), &rm))

	return rm
}

// counterValue sums the counter name for target.
func counterValue(t *testing.T, name, target string) int64 {
	t.Helper()

	var total int64

	for _, sm := range collectMetrics(t).ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}

			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}

			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("target"); ok && v.AsString() == target {
					total += dp.Value
				}
			}
		}
	}

	return total
}
