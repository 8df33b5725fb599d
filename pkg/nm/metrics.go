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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/carverauto/netmirror/pkg/nm"

	metricMergesName        = "nm_attribute_merges_total"
	metricNotificationsName = "nm_change_notifications_total"
	metricFailuresName      = "nm_remote_failures_total"
	metricStaleName         = "nm_stale_completions_total"
)

//nolint:gochecknoglobals // instruments are shared by every engine
var (
	engineMetricsOnce sync.Once
	engineMetrics     struct {
		merges        metric.Int64Counter
		notifications metric.Int64Counter
		failures      metric.Int64Counter
		stale         metric.Int64Counter
	}
)

func initEngineMetrics() {
	meter := otel.Meter(meterName)

	var err error

	engineMetrics.merges, err = meter.Int64Counter(
		metricMergesName,
		metric.WithDescription("Attribute merges applied to mirrored objects"),
	)
	if err != nil {
		otel.Handle(err)
	}

	engineMetrics.notifications, err = meter.Int64Counter(
		metricNotificationsName,
		metric.WithDescription("Coalesced model-changed notifications delivered to subscribers"),
	)
	if err != nil {
		otel.Handle(err)
	}

	engineMetrics.failures, err = meter.Int64Counter(
		metricFailuresName,
		metric.WithDescription("Remote calls that failed"),
	)
	if err != nil {
		otel.Handle(err)
	}

	engineMetrics.stale, err = meter.Int64Counter(
		metricStaleName,
		metric.WithDescription("Asynchronous completions discarded because their target was gone"),
	)
	if err != nil {
		otel.Handle(err)
	}
}

func addMetric(c metric.Int64Counter, target string) {
	if c == nil {
		return
	}

	c.Add(context.Background(), 1, metric.WithAttributes(attribute.String("target", target)))
}

func recordMerge(target string) {
	engineMetricsOnce.Do(initEngineMetrics)
	addMetric(engineMetrics.merges, target)
}

func recordNotification(target string) {
	engineMetricsOnce.Do(initEngineMetrics)
	addMetric(engineMetrics.notifications, target)
}

func recordFailure(target string) {
	engineMetricsOnce.Do(initEngineMetrics)
	addMetric(engineMetrics.failures, target)
}

func recordStale(target string) {
	engineMetricsOnce.Do(initEngineMetrics)
	addMetric(engineMetrics.stale, target)
}
