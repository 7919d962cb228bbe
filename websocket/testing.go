package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// NewTestingEnv starts a test server serving the given feed and returns a
// function that connects clients to it. Logs are redirected to the test logs
// until the returned close function is called.
func NewTestingEnv(t *testing.T, f *Feed) (connect func(clientID string) *websocket.Conn, close func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(f.Server(ctx))

	var conns []*websocket.Conn

	connect = func(clientID string) *websocket.Conn {
		config, err := websocket.NewConfig(
			strings.ReplaceAll(server.URL, "http://", "ws://"),
			"http://localhost",
		)
		if err != nil {
			t.Fatalf("error initializing web socket: %s", err)
		}

		config.Header.Set("User-Agent", "ted")
		if clientID != "" {
			config.Header.Set(ClientIDHeader, clientID)
		}

		conn, err := websocket.DialConfig(config)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}

		mutex.Lock()
		conns = append(conns, conn)
		mutex.Unlock()
		return conn
	}

	return connect, func() {
		mutex.Lock()
		for _, conn := range conns {
			conn.Close()
		}
		mutex.Unlock()

		cancel()
		server.Close()

		mutex.Lock()
		logger = nil
		mutex.Unlock()
	}
}
