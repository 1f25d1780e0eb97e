package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miampf/schnuffel/hosterr"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.GetPrometheusRegistry())

	families, err := r.GetPrometheusRegistry().Gather()
	require.NoError(t, err)
	// gauges and unlabelled histograms are exported before any observation
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "schnuffel_plugin_running_instances")
	assert.Contains(t, names, "schnuffel_plugin_load_duration_seconds")
}

func TestRecordLoad(t *testing.T) {
	r := NewRegistry()
	r.RecordLoad(nil, 10*time.Millisecond)
	r.RecordLoad(hosterr.New("host.Load", hosterr.KindLoad, hosterr.CodeContractMismatch, ""), time.Millisecond)
	r.RecordLoad(hosterr.New("host.Load", hosterr.KindLoad, hosterr.CodeContractMismatch, ""), time.Millisecond)

	assert.Equal(t, 1.0, counterValue(t, r.LoadsTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, 2.0, counterValue(t, r.LoadsTotal.WithLabelValues("CONTRACT_MISMATCH")))

	var m dto.Metric
	require.NoError(t, r.LoadDuration.Write(&m))
	assert.Equal(t, uint64(3), m.GetHistogram().GetSampleCount())
}

func TestRecordStartStop(t *testing.T) {
	r := NewRegistry()
	r.RecordStart(nil)
	r.RecordStart(nil)
	r.RecordStart(errors.New("boom"))
	r.RecordStop()

	var m dto.Metric
	require.NoError(t, r.RunningInstances.Write(&m))
	assert.Equal(t, 1.0, m.GetGauge().GetValue())
	assert.Equal(t, 1.0, counterValue(t, r.StartsTotal.WithLabelValues(ResultError)))
}

func TestRecordExecution(t *testing.T) {
	r := NewRegistry()
	r.RecordExecution("exec_on_node", nil, time.Millisecond)
	r.RecordExecution("exec_on_node", hosterr.New("sandbox.Call", hosterr.KindExecution, hosterr.CodeTrap, ""), time.Millisecond)
	r.RecordExecution("exec_on_graph", nil, time.Millisecond)

	assert.Equal(t, 1.0, counterValue(t, r.ExecutionsTotal.WithLabelValues("exec_on_node", "TRAP")))
	assert.Equal(t, 1.0, counterValue(t, r.ExecutionsTotal.WithLabelValues("exec_on_graph", ResultOK)))
}

func TestRecord_FailuresWithoutCode(t *testing.T) {
	r := NewRegistry()
	r.RecordLoad(hosterr.New("host.SetConfigField", hosterr.KindUnknownField, "", "no field"), time.Millisecond)
	r.RecordLoad(errors.New("plain failure"), time.Millisecond)
	r.RecordExecution("exec_on_node", hosterr.New("sandbox.Call", hosterr.KindInternal, "", "no export"), time.Millisecond)

	assert.Equal(t, 0.0, counterValue(t, r.LoadsTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, counterValue(t, r.LoadsTotal.WithLabelValues(string(hosterr.KindUnknownField))))
	assert.Equal(t, 1.0, counterValue(t, r.LoadsTotal.WithLabelValues(ResultError)))
	assert.Equal(t, 0.0, counterValue(t, r.ExecutionsTotal.WithLabelValues("exec_on_node", ResultOK)))
	assert.Equal(t, 1.0, counterValue(t, r.ExecutionsTotal.WithLabelValues("exec_on_node", string(hosterr.KindInternal))))
}

func TestRecordConfigChange(t *testing.T) {
	r := NewRegistry()
	r.RecordConfigChange(nil)
	r.RecordConfigChange(errors.New("unknown"))

	assert.Equal(t, 1.0, counterValue(t, r.ConfigChanges.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, counterValue(t, r.ConfigChanges.WithLabelValues(ResultError)))
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RecordLoad(nil, time.Second)
		r.RecordStart(nil)
		r.RecordStop()
		r.RecordExecution("exec_on_node", nil, time.Second)
		r.RecordConfigChange(nil)
	})
	assert.Nil(t, r.GetPrometheusRegistry())
}
