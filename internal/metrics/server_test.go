package metrics

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestServer_healthAndMetrics(t *testing.T) {
	srv := NewServer("127.0.0.1:0")
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	OperationsTotal.WithLabelValues("CP", "write", "ok").Inc()

	code, body := get(t, "http://"+srv.Addr()+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)

	code, body = get(t, "http://"+srv.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "capkv_")
	assert.Contains(t, body, `variant="CP"`)
}

func TestServer_badAddress(t *testing.T) {
	srv := NewServer("not-an-address")
	require.Error(t, srv.Start())
	assert.Equal(t, "not-an-address", srv.Addr())
}
