package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goclaw/hyperagent/config"
	"github.com/goclaw/hyperagent/pkg/engine"
	"github.com/goclaw/hyperagent/pkg/logger"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Vector.Dimension = 1024
	cfg.Runner.Enabled = false
	cfg.Memory.DecayInterval = 0

	eng, err := engine.New(cfg, logger.Nop(), nil)
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = eng.Stop(ctx)
	})
	return eng
}

func seedGraph(t *testing.T, eng *engine.Engine) {
	t.Helper()
	for _, tr := range [][3]string{
		{"jupiter", "is_a", "planet"},
		{"jupiter", "has_moon", "io"},
		{"jupiter", "has_moon", "europa"},
	} {
		_, err := eng.Graph().AssertLabels(tr[0], tr[1], tr[2], 0.9)
		require.NoError(t, err)
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}
