package http

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aukilabs/kenaz/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

type statsProvider scene.Stats

func (p statsProvider) Stats() scene.Stats {
	return scene.Stats(p)
}

type entityLister []scene.Entity

func (l entityLister) Entities() []scene.Entity {
	return l
}

func TestHandleHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReadyCheck(t *testing.T) {
	ready := false
	h := HandleReadyCheck(func() bool { return ready })

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready = true
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleVersion(t *testing.T) {
	w := httptest.NewRecorder()
	HandleVersion("v1.2.3")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "v1.2.3", w.Body.String())
}

func TestHandleStats(t *testing.T) {
	stats := scene.Stats{
		UUID:     "ted",
		Frame:    42,
		Entities: 100,
		Visible:  21,
		Workers:  4,
		Camera:   scene.DefaultCamera(),
	}
	h := HandleStats(statsProvider(stats))

	t.Run("get", func(t *testing.T) {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var res scene.Stats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Equal(t, stats, res)
	})

	t.Run("post", func(t *testing.T) {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/stats", nil))
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestHandleEntities(t *testing.T) {
	entities := []scene.Entity{
		{ID: 1, Position: mgl32.Vec3{1, 2, 3}, Radius: 1, LayerMask: 1, Enabled: true},
		{ID: 2, Velocity: mgl32.Vec3{0, 1, 0}, Radius: 2},
	}

	w := httptest.NewRecorder()
	HandleEntities(entityLister(entities))(w, httptest.NewRequest(http.MethodGet, "/entities", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res []scene.Entity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, entities, res)
}

func TestHandleWithCORS(t *testing.T) {
	var called bool
	h := HandleWithCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/stats", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.False(t, called)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.True(t, called)
}

func TestListenAndServeError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	err = ListenAndServe(context.Background(),
		&http.Server{Addr: l.Addr().String()},
	)
	require.Error(t, err)
}

func TestMetricsPathFormatter(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   string
	}{
		{statusCode: http.StatusOK, expected: "/stats"},
		{statusCode: http.StatusInternalServerError, expected: "/stats"},
		{statusCode: http.StatusMovedPermanently},
		{statusCode: http.StatusBadRequest},
		{statusCode: http.StatusNotFound},
		{statusCode: http.StatusMethodNotAllowed},
	}

	for _, test := range tests {
		t.Run(http.StatusText(test.statusCode), func(t *testing.T) {
			require.Equal(t, test.expected, MetricsPathFormatter(test.statusCode, "/stats"))
		})
	}
}

func TestListenAndServe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	var mux http.ServeMux
	mux.HandleFunc("/health", HandleHealthCheck)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- ListenAndServe(ctx, &http.Server{Addr: addr, Handler: &mux})
	}()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, time.Second*2, time.Millisecond*10)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(time.Second * 2):
		t.Fatal("server did not stop")
	}
}
