package websocket

import (
	"testing"
	"time"

	"github.com/aukilabs/kenaz/culling"
	"github.com/aukilabs/kenaz/featureflag"
	"github.com/aukilabs/kenaz/jobs"
	"github.com/aukilabs/kenaz/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

type testMsg struct {
	Type       string        `json:"type"`
	Frame      uint64        `json:"frame"`
	Visible    []uint32      `json:"visible"`
	Async      bool          `json:"async"`
	Entities   int           `json:"entities"`
	DurationMS float64       `json:"duration_ms"`
	Camera     *scene.Camera `json:"camera"`
	Stats      *scene.Stats  `json:"stats"`
	ErrorType  string        `json:"error_type"`
	Error      string        `json:"error"`
}

func newTestScene(t *testing.T) *scene.Scene {
	manager := jobs.NewManager(2)
	t.Cleanup(manager.Close)

	system, err := culling.New(manager, culling.WithName(t.Name()))
	require.NoError(t, err)
	t.Cleanup(system.Close)

	return scene.New(system, scene.Options{
		Seed:         42,
		FeatureFlags: featureflag.New([]string{string(featureflag.FlagDisableEntityMotion)}),
	})
}

func newTestFeed(t *testing.T, queueSize int) (*scene.Scene, *Feed, func(string) *websocket.Conn) {
	s := newTestScene(t)
	f := NewFeed(s, queueSize)
	t.Cleanup(f.Close)

	connect, close := NewTestingEnv(t, f)
	t.Cleanup(close)
	return s, f, connect
}

func connectAndWait(t *testing.T, f *Feed, connect func(string) *websocket.Conn, clientID string) *websocket.Conn {
	count := f.ClientCount()
	conn := connect(clientID)
	require.Eventually(t, func() bool {
		return f.ClientCount() == count+1
	}, time.Second, time.Millisecond)
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) testMsg {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second*2)))

	var data []byte
	require.NoError(t, websocket.Message.Receive(conn, &data))

	var msg testMsg
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, websocket.Message.Send(conn, string(data)))
}

func TestFeedStreamsFrames(t *testing.T) {
	s, f, connect := newTestFeed(t, 0)
	visible := s.AddEntity(scene.EntityOptions{Position: mgl32.Vec3{10, 0, 0}, Radius: 1})
	s.AddEntity(scene.EntityOptions{Position: mgl32.Vec3{-10, 0, 0}, Radius: 1})

	clientA := connectAndWait(t, f, connect, "client-a")
	clientB := connectAndWait(t, f, connect, "client-b")

	s.Step()
	s.Step()

	for _, conn := range []*websocket.Conn{clientA, clientB} {
		msg := receive(t, conn)
		require.Equal(t, msgTypeFrame, msg.Type)
		require.Equal(t, uint64(1), msg.Frame)
		require.Equal(t, []uint32{visible}, msg.Visible)
		require.Equal(t, 2, msg.Entities)
		require.True(t, msg.Async)

		msg = receive(t, conn)
		require.Equal(t, uint64(2), msg.Frame)
	}
}

func TestFeedCameraMessage(t *testing.T) {
	s, f, connect := newTestFeed(t, 0)
	conn := connectAndWait(t, f, connect, "")

	camera := scene.DefaultCamera()
	camera.Position = mgl32.Vec3{1, 2, 3}
	camera.Direction = mgl32.Vec3{0, 0, -1}
	camera.Far = 42

	send(t, conn, cameraMsg{Type: msgTypeCamera, Camera: &camera})

	msg := receive(t, conn)
	require.Equal(t, msgTypeCamera, msg.Type)
	require.Equal(t, &camera, msg.Camera)
	require.Equal(t, camera, s.Camera())
}

func TestFeedBadRequests(t *testing.T) {
	s, f, connect := newTestFeed(t, 0)
	conn := connectAndWait(t, f, connect, "")

	invalidCamera := scene.DefaultCamera()
	invalidCamera.FOV = 0

	requests := []struct {
		name string
		data string
	}{
		{name: "invalid json", data: "{nope"},
		{name: "unknown type", data: `{"type":"teleport"}`},
		{name: "camera without camera", data: `{"type":"camera"}`},
	}

	for _, req := range requests {
		t.Run(req.name, func(t *testing.T) {
			require.NoError(t, websocket.Message.Send(conn, req.data))

			msg := receive(t, conn)
			require.Equal(t, msgTypeError, msg.Type)
			require.Equal(t, ErrTypeBadRequest, msg.ErrorType)
			require.NotEmpty(t, msg.Error)
		})
	}

	t.Run("invalid camera", func(t *testing.T) {
		send(t, conn, cameraMsg{Type: msgTypeCamera, Camera: &invalidCamera})

		msg := receive(t, conn)
		require.Equal(t, msgTypeError, msg.Type)
		require.Equal(t, ErrTypeBadRequest, msg.ErrorType)
		require.Equal(t, scene.DefaultCamera(), s.Camera())
	})

	t.Run("connection survives bad requests", func(t *testing.T) {
		send(t, conn, typedMsg{Type: msgTypePing})
		require.Equal(t, msgTypePong, receive(t, conn).Type)
	})
}

func TestFeedStatsMessage(t *testing.T) {
	s, f, connect := newTestFeed(t, 0)
	s.Populate(10)
	conn := connectAndWait(t, f, connect, "")

	send(t, conn, typedMsg{Type: msgTypeStats})

	msg := receive(t, conn)
	require.Equal(t, msgTypeStats, msg.Type)
	require.NotNil(t, msg.Stats)
	require.Equal(t, s.UUID, msg.Stats.UUID)
	require.Equal(t, 10, msg.Stats.Entities)
	require.Equal(t, 2, msg.Stats.Workers)
}

func TestFeedDuplicateClientID(t *testing.T) {
	_, f, connect := newTestFeed(t, 0)
	connectAndWait(t, f, connect, "client-a")

	duplicate := connect("client-a")
	require.NoError(t, duplicate.SetReadDeadline(time.Now().Add(time.Second*2)))

	var data []byte
	require.Error(t, websocket.Message.Receive(duplicate, &data))
	require.Equal(t, 1, f.ClientCount())
}

func TestFeedClientDisconnect(t *testing.T) {
	_, f, connect := newTestFeed(t, 0)
	conn := connectAndWait(t, f, connect, "")

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return f.ClientCount() == 0
	}, time.Second, time.Millisecond)
}

func TestFeedBroadcastDropsFramesOfSlowClients(t *testing.T) {
	s := newTestScene(t)
	f := NewFeed(s, 2)
	defer f.Close()

	slow := &client{
		id:       "slow",
		sendChan: make(chan []byte, 2),
		msgs:     make(map[string]int),
	}
	require.True(t, f.addClient(slow))
	require.False(t, f.addClient(slow))

	for i := 0; i < 5; i++ {
		s.Step()
	}

	require.Len(t, slow.sendChan, 2)
	require.Equal(t, 3, slow.dropped)

	var msg testMsg
	require.NoError(t, json.Unmarshal(<-slow.sendChan, &msg))
	require.Equal(t, uint64(1), msg.Frame)
	require.NotNil(t, msg.Visible)

	f.removeClient(slow)
	s.Step()
	require.Len(t, slow.sendChan, 1)
}

func TestFeedClose(t *testing.T) {
	s := newTestScene(t)
	f := NewFeed(s, 1)

	c := &client{id: "a", sendChan: make(chan []byte, 1), msgs: make(map[string]int)}
	require.True(t, f.addClient(c))

	f.Close()
	s.Step()
	require.Empty(t, c.sendChan)
}

func TestClientIDFromRequest(t *testing.T) {
	require.NotEmpty(t, clientIDFromRequest(nil))
	require.NotEqual(t, clientIDFromRequest(nil), clientIDFromRequest(nil))
}
