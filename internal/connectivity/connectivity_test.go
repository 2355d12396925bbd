package connectivity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vytor/kotoflash/internal/connectivity"
)

func TestManual_FiresOncePerTransition(t *testing.T) {
	sig := connectivity.NewManual(false)

	var onlines, offlines int
	sig.OnOnline(func() { onlines++ })
	sig.OnOffline(func() { offlines++ })

	sig.Set(false)
	sig.Set(true)
	sig.Set(true)
	sig.Set(false)
	sig.Set(false)
	sig.Set(true)

	assert.Equal(t, 2, onlines)
	assert.Equal(t, 1, offlines)
	assert.True(t, sig.Online())
}

func TestMonitor_TracksServerHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	mon := connectivity.NewMonitor(srv.URL, 10*time.Millisecond)
	var onlines, offlines atomic.Int32
	mon.OnOnline(func() { onlines.Add(1) })
	mon.OnOffline(func() { offlines.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mon.Run(ctx) }()

	assert.Eventually(t, mon.Online, time.Second, 5*time.Millisecond)

	healthy.Store(false)
	assert.Eventually(t, func() bool { return !mon.Online() }, time.Second, 5*time.Millisecond)

	healthy.Store(true)
	assert.Eventually(t, mon.Online, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return onlines.Load() == 2 && offlines.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMonitor_ProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	mon := connectivity.NewMonitor(url, time.Second)
	assert.False(t, mon.Probe(context.Background()))
}
