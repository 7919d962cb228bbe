package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
	msgTypeLabel = "msg_type"
)

var (
	feedConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_connected_clients",
		Help: "The number of clients connected to the visibility feed.",
	})

	feedSentMsgs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_sent_frames",
		Help: "The number of messages sent to visibility feed clients.",
	})

	feedDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_dropped_frames",
		Help: "The number of frames dropped because a client queue was full.",
	})

	feedReceivedMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_received_msgs",
		Help: "The number of messages received from visibility feed clients.",
	}, []string{
		msgTypeLabel,
	})

	feedReceiveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_receive_errors",
		Help: "The errors that occured while handling a client message.",
	}, []string{
		msgTypeLabel,
		errTypeLabel,
	})
)

func instrumentConnectedClients(count int) {
	feedConnectedClients.Set(float64(count))
}

func instrumentSentMsg() {
	feedSentMsgs.Inc()
}

func instrumentDroppedFrame() {
	feedDroppedFrames.Inc()
}

func instrumentReceivedMsg(msgType string, err error) {
	switch msgType {
	case msgTypePing, msgTypeCamera, msgTypeStats:

	default:
		msgType = "unknown"
	}

	feedReceivedMsgs.
		With(prometheus.Labels{msgTypeLabel: msgType}).
		Inc()

	if err != nil {
		feedReceiveErrors.
			With(prometheus.Labels{
				msgTypeLabel: msgType,
				errTypeLabel: errors.Type(err),
			}).
			Inc()
	}
}
