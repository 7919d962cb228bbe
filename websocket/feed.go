package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/scene"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	// ClientIDHeader is the request header a client can use to identify itself.
	// Clients without one get a random id.
	ClientIDHeader = "X-Kenaz-Client-ID"

	defaultQueueSize = 16
	replyTimeout     = time.Second * 5
)

// Feed streams the frames of a scene to WebSocket clients.
//
// Frames are queued per client and dropped when a client queue is full, so a
// slow client never delays the scene loop.
type Feed struct {
	scene        *scene.Scene
	queueSize    int
	cancelFrames func()

	mutex   sync.RWMutex
	clients map[string]*client
}

type client struct {
	id       string
	sendChan chan []byte

	mutex   sync.Mutex
	sent    int
	dropped int
	msgs    map[string]int
}

// NewFeed creates a feed that subscribes to the frames of the given scene.
// queueSize is the number of frames queued per client, defaulted when not
// positive.
func NewFeed(s *scene.Scene, queueSize int) *Feed {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	f := &Feed{
		scene:     s,
		queueSize: queueSize,
		clients:   make(map[string]*client),
	}
	f.cancelFrames = s.HandleFrame(f.broadcast)
	return f
}

// Close unsubscribes the feed from the scene frames.
func (f *Feed) Close() {
	f.cancelFrames()
}

// ClientCount returns the number of connected clients.
func (f *Feed) ClientCount() int {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	return len(f.clients)
}

// Server returns a WebSocket server that serves the feed until the given
// context is canceled.
func (f *Feed) Server(ctx context.Context) websocket.Server {
	return websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()
			f.Handle(ctx, conn)
		},
	}
}

// Handle serves the feed on the given connection until the client disconnects
// or the context is canceled.
func (f *Feed) Handle(ctx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &client{
		id:       clientIDFromRequest(conn.Request()),
		sendChan: make(chan []byte, f.queueSize),
		msgs:     make(map[string]int),
	}
	if !f.addClient(c) {
		logs.WithClientID(c.id).Warn(errors.New("client is already connected"))
		return
	}
	defer f.removeClient(c)

	logs.WithClientID(c.id).
		WithTag("user_agent", conn.Request().UserAgent()).
		WithTag("remote_addr", conn.Request().RemoteAddr).
		Info("new client is connected")

	disconnectChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		f.startSending(ctx, conn, c, disconnectChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		f.startReceiving(ctx, conn, c, disconnectChan)
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()

	case err = <-disconnectChan:
	}

	// Unblocks the receiving goroutine.
	cancel()
	conn.Close()
	wg.Wait()

	f.logDisconnect(c, err)
}

func (f *Feed) addClient(c *client) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if _, ok := f.clients[c.id]; ok {
		return false
	}
	f.clients[c.id] = c
	instrumentConnectedClients(len(f.clients))
	return true
}

func (f *Feed) removeClient(c *client) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	delete(f.clients, c.id)
	instrumentConnectedClients(len(f.clients))
}

func (f *Feed) broadcast(frame scene.Frame) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if len(f.clients) == 0 {
		return
	}

	data, err := json.Marshal(newFrameMsg(frame))
	if err != nil {
		logs.WithTag("frame", frame.Number).
			Error(errors.New("encoding frame failed").Wrap(err))
		return
	}

	for _, c := range f.clients {
		select {
		case c.sendChan <- data:

		default:
			c.mutex.Lock()
			c.dropped++
			c.mutex.Unlock()
			instrumentDroppedFrame()
		}
	}
}

func (f *Feed) startSending(ctx context.Context, conn *websocket.Conn, c *client, disconnectChan chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return

		case data := <-c.sendChan:
			if err := websocket.Message.Send(conn, string(data)); err != nil {
				disconnectChan <- errors.New("sending message failed").Wrap(err)
				return
			}

			c.mutex.Lock()
			c.sent++
			c.mutex.Unlock()
			instrumentSentMsg()
		}
	}
}

func (f *Feed) startReceiving(ctx context.Context, conn *websocket.Conn, c *client, disconnectChan chan<- error) {
	for ctx.Err() == nil {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			disconnectChan <- err
			return
		}

		reply := f.handleMessage(c, data)
		if reply == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return

		case c.sendChan <- reply:

		case <-time.After(replyTimeout):
			disconnectChan <- errors.New("sending reply timed out").
				WithTag("timeout", replyTimeout)
			return
		}
	}
}

func (f *Feed) handleMessage(c *client, data []byte) []byte {
	var msg inboundMsg
	var reply any
	var err error

	if err = json.Unmarshal(data, &msg); err != nil {
		err = errors.New("decoding message failed").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	} else {
		reply, err = f.dispatch(msg)
	}

	c.countMsg(msg.Type)
	instrumentReceivedMsg(msg.Type, err)

	if err != nil {
		logs.WithClientID(c.id).
			WithTag("msg_type", msg.Type).
			Debug(err)
		reply = newErrorMsg(err)
	} else {
		logs.WithClientID(c.id).
			WithTag("msg_type", msg.Type).
			Debug("message received")
	}

	res, err := json.Marshal(reply)
	if err != nil {
		logs.WithClientID(c.id).Error(errors.New("encoding reply failed").Wrap(err))
		return nil
	}
	return res
}

func (f *Feed) dispatch(msg inboundMsg) (any, error) {
	switch msg.Type {
	case msgTypePing:
		return typedMsg{Type: msgTypePong}, nil

	case msgTypeCamera:
		if msg.Camera == nil {
			return nil, errors.New("camera message without camera").
				WithType(ErrTypeBadRequest)
		}

		if err := f.scene.SetCamera(*msg.Camera); err != nil {
			return nil, errors.New("setting camera failed").
				WithType(ErrTypeBadRequest).
				Wrap(err)
		}

		c := f.scene.Camera()
		return cameraMsg{Type: msgTypeCamera, Camera: &c}, nil

	case msgTypeStats:
		return statsMsg{Type: msgTypeStats, Stats: f.scene.Stats()}, nil

	default:
		return nil, errors.New("unknown message type").
			WithType(ErrTypeBadRequest).
			WithTag("msg_type", msg.Type)
	}
}

func (f *Feed) logDisconnect(c *client, err error) {
	c.mutex.Lock()
	entry := logs.WithClientID(c.id).
		WithTag("sent_frames", c.sent).
		WithTag("dropped_frames", c.dropped)
	for msgType, count := range c.msgs {
		entry = entry.WithTag("received_"+msgType, count)
	}
	c.mutex.Unlock()

	if err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled) {
		entry.Info("client disconnected")
		return
	}
	entry.Warn(errors.New("client disconnected").Wrap(err))
}

func (c *client) countMsg(msgType string) {
	switch msgType {
	case msgTypePing, msgTypeCamera, msgTypeStats:

	default:
		msgType = "unknown"
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.msgs[msgType]++
}

func clientIDFromRequest(r *http.Request) string {
	if r != nil {
		if id := r.Header.Get(ClientIDHeader); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
