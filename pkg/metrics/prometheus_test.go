package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordOperation(OpSubscribe, ResultAccepted)
	p.RecordOperation(OpSubscribe, ResultAccepted)
	p.RecordOperation(OpSubscribe, ResultUnknownTag)
	p.SetActiveIntervals(3)
	p.SetSubscriptions(12)
	p.SetPending(2)
	p.RecordDispatch(time.Second, 4, nil)
	p.RecordDispatch(time.Second, 4, errors.New("cache down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(p.operations.WithLabelValues(OpSubscribe, ResultAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.operations.WithLabelValues(OpSubscribe, ResultUnknownTag)))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.activeIntervals))
	assert.Equal(t, 12.0, testutil.ToFloat64(p.subscriptions))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.dispatches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.dispatches.WithLabelValues("error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_scheduler_active_intervals")
	assert.Contains(t, names, "test_dispatcher_batch_size")
}

func TestOrNop(t *testing.T) {
	assert.IsType(t, &Nop{}, OrNop(nil))

	p := NewPrometheus(prometheus.NewRegistry(), "")
	assert.Same(t, p, OrNop(p))
}
