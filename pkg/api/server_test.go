package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/hyperagent/pkg/logger"
)

func TestNewHTTPServer(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080
	_, h := newTestStack(t, cfg)

	server := NewHTTPServer(cfg, logger.Nop(), h)
	require.NotNil(t, server)
	require.NotNil(t, server.server)
	assert.Equal(t, "localhost:8080", server.server.Addr)
	assert.Equal(t, cfg.Server.HTTP.MaxHeaderBytes, server.server.MaxHeaderBytes)
	assert.NotNil(t, server.Handler())
}

func TestHTTPServer_StartAndShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 18080
	_, h := newTestStack(t, cfg)

	server := NewHTTPServer(cfg, logger.Nop(), h)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get("http://localhost:18080/health")
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Error("Start() did not return after shutdown")
	}
}
