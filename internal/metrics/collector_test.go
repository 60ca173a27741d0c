package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Operations(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObserveOperation("apply", nil, time.Millisecond)
	c.ObserveOperation("apply", nil, time.Millisecond)
	c.ObserveOperation("apply", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("apply", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("apply", StatusError)))
}

func TestCollector_Replace(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordReplace("live", 5, 0)
	c.RecordReplace("live", 4, 2)

	assert.Equal(t, 4.0, testutil.ToFloat64(c.graphNodes.WithLabelValues("live")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.skippedRows.WithLabelValues("live")))
}

func TestCollector_Requests(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObserveRequest("GET", "/health", 200, time.Millisecond)
	c.ObserveRequest("PUT", "/graph", 422, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/health", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("PUT", "/graph", "4xx")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveOperation("reset", nil, time.Second)
		c.RecordReplace("sandbox", 1, 1)
		c.ObserveRequest("GET", "/", 500, time.Second)
	})
}

func TestNewCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	assert.Panics(t, func() { NewCollector(reg) })
}
