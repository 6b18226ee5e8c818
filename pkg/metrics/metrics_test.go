package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecorderIsNoOp(t *testing.T) {
	var recorder *PrometheusRecorder

	assert.NotPanics(t, func() {
		recorder.ObserveFeature("developer", "success", time.Second)
		recorder.ObserveBuild("success", 3, time.Minute)
		recorder.IncRepair("recovered")
		recorder.ObserveTokens("architect", 1200)
	})
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewPrometheusRecorder(reg)
	require.NotNil(t, recorder)

	recorder.ObserveFeature("developer", "success", 2*time.Second)
	recorder.ObserveFeature("developer", "success", 3*time.Second)
	recorder.ObserveFeature("tester", "error", time.Second)
	recorder.ObserveBuild("partial", 3, time.Minute)
	recorder.IncRepair("recovered")
	recorder.IncRepair("failed")
	recorder.ObserveTokens("architect", 1200)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["pipeline_features_total"])
	assert.True(t, names["pipeline_builds_total"])
	assert.True(t, names["pipeline_repairs_total"])
	assert.True(t, names["pipeline_prompt_tokens_total"])
}

func TestPrometheusRecorder_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewPrometheusRecorder(reg)

	recorder.IncRepair("recovered")
	recorder.IncRepair("recovered")
	recorder.IncRepair("failed")

	assert.InDelta(t, 2, testutil.ToFloat64(recorder.repairsTotal.WithLabelValues("recovered")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(recorder.repairsTotal.WithLabelValues("failed")), 0.001)
}
