package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	ok, failed int
}

func (c *countingObserver) ObserveJob(taskType string, err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

func TestTrackerRecordsDurationAndOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	observer := &countingObserver{}
	m := NewMetrics(registry, observer)

	require.NoError(t, m.Track("mail:send").End(nil))
	boom := errors.New("boom")
	assert.Equal(t, boom, m.Track("mail:send").End(boom))

	assert.Equal(t, 1, observer.ok)
	assert.Equal(t, 1, observer.failed)
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	err := errors.New("kept")
	assert.Equal(t, err, m.Track("x").End(err))
}
