package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getHealth(t *testing.T, h http.Handler) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthHandler(t *testing.T) {
	t.Run("nil probes report ok", func(t *testing.T) {
		code, body := getHealth(t, NewHealthHandler(Probes{}))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("broker down degrades", func(t *testing.T) {
		code, body := getHealth(t, NewHealthHandler(Probes{
			BrokerConnected: func() bool { return false },
			StorePing:       func(context.Context) error { return nil },
		}))
		assert.Equal(t, http.StatusOK, code, "health is informational, never an error status")
		assert.Equal(t, "degraded", body["status"])
		assert.Equal(t, false, body["mqtt_connected"])
	})

	t.Run("everything down", func(t *testing.T) {
		_, body := getHealth(t, NewHealthHandler(Probes{
			BrokerConnected: func() bool { return false },
			StorePing:       func(context.Context) error { return errors.New("dead") },
		}))
		assert.Equal(t, "down", body["status"])
	})

	t.Run("recent sink error degrades", func(t *testing.T) {
		_, body := getHealth(t, NewHealthHandler(Probes{
			SinkErrorAge: func() time.Duration { return time.Second },
		}))
		assert.Equal(t, "degraded", body["status"])
	})
}

func TestReadyHandler(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewReadyHandler(Probes{
			BrokerConnected: func() bool { return true },
			StorePing:       func(context.Context) error { return nil },
		}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("store failure means not ready", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewReadyHandler(Probes{
			StorePing: func(context.Context) error { return errors.New("dead") },
		}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
