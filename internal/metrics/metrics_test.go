package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

func TestMetrics_RecordPublish(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordPublish(domain.PublishOutcome{Result: domain.Sent})
	m.RecordPublish(domain.PublishOutcome{Result: domain.Sent})
	m.RecordPublish(domain.PublishOutcome{Result: domain.Failed, Err: errors.New("boom")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.publishTotal.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishTotal.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.publishTotal.WithLabelValues("suppressed_cooldown")))
}

func TestMetrics_RecordFileChange(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordFileChange(&domain.FileState{Identity: "k1", DisplayName: "Mockup"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fileActive))

	m.RecordFileChange(nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.fileActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fileChangesTotal))
}

func TestMetrics_SetConnectionState(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetConnectionState(domain.Connecting)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionState))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connectsTotal))

	m.SetConnectionState(domain.Connected)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectsTotal))

	m.SetConnectionState(domain.Disconnected)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connectionState))
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestServe_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordPublish(domain.PublishOutcome{Result: domain.Sent})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, reg, zap.NewNop()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `figpresence_publish_total{result="sent"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
