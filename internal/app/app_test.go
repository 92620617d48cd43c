package app

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/tool-batch-server/internal/dsl"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAppServesRoutesAndShutsDown(t *testing.T) {
	cfg := dsl.ServerConfig{HTTP: dsl.HTTPConfig{Listen: "127.0.0.1:0", Path: "/mcp"}}
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("mcp")) })
	hook := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })

	application, err := New(context.Background(), cfg, mcpHandler, map[string]http.Handler{"/executor/webhook": hook, "": hook}, nil, time.Second)
	require.NoError(t, err)
	base := "http://" + application.Addr()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	assert.Eventually(t, func() bool {
		code, _ := get(t, base+"/readyz")
		return code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	code, body := get(t, base+"/mcp")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "mcp", body)
	code, _ = get(t, base+"/executor/webhook")
	assert.Equal(t, http.StatusAccepted, code)
	code, body = get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not shut down")
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	cfg := dsl.ServerConfig{HTTP: dsl.HTTPConfig{Listen: "127.0.0.1:0", Path: "/mcp"}}
	_, err := New(context.Background(), cfg, nil, nil, nil, 0)
	assert.ErrorContains(t, err, "handler is nil")

	ok := http.NotFoundHandler()
	_, err = New(context.Background(), cfg, ok, map[string]http.Handler{"/mcp": ok}, nil, 0)
	assert.ErrorContains(t, err, "conflicts")
}
