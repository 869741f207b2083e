package core

import "context"

const metricPrefix = "ghapp."

// OperationCounter names the counter bumped once per manager operation.
func OperationCounter(operation string) string {
	return metricPrefix + normalizeOperation(operation) + ".total"
}

// OperationDuration names the latency histogram of a manager operation.
func OperationDuration(operation string) string {
	return metricPrefix + normalizeOperation(operation) + ".duration_ms"
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
