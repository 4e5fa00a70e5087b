package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxerrors "github.com/km-arc/go-appcontext/framework/errors"
)

func TestNilMetricsIsNoop(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	require.Nil(t, m)

	m.Lookup("ctx", "name", nil)
	m.Published("ctx", 2)
	m.Refreshed("ctx", time.Second, nil)
	m.MessageMiss("ctx")
	m.Activated()
	m.Deactivated()
}

func TestLookupResults(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.Lookup("root", "name", nil)
	m.Lookup("root", "name", nil)
	m.Lookup("root", "name", fmt.Errorf("wrapped: %w", ctxerrors.ErrNotFound))
	m.Lookup("root", "type", ctxerrors.ErrAmbiguous)
	m.Lookup("root", "type", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.lookups.WithLabelValues("root", "name", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("root", "name", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("root", "type", "ambiguous")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("root", "type", "error")))
}

func TestPublishedAndRefreshed(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.Published("child", 0)
	m.Published("child", 3)
	m.Refreshed("child", 10*time.Millisecond, nil)
	m.Refreshed("child", time.Millisecond, errors.New("bad definition"))
	m.MessageMiss("child")
	m.Activated()
	m.Activated()
	m.Deactivated()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.publishes.WithLabelValues("child")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.listenerFailures.WithLabelValues("child")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("child", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("child", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messageMisses.WithLabelValues("child")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeContexts))
	assert.Equal(t, 1, testutil.CollectAndCount(m.refreshDuration))
}

func TestNewReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	require.NoError(t, err)
	b, err := New(reg)
	require.NoError(t, err)

	a.Published("root", 0)
	b.Published("root", 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(a.publishes.WithLabelValues("root")))
}
