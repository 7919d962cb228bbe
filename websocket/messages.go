package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/scene"
)

const (
	ErrTypeBadRequest = "feed_bad_request"

	msgTypeFrame  = "frame"
	msgTypeCamera = "camera"
	msgTypeStats  = "stats"
	msgTypePing   = "ping"
	msgTypePong   = "pong"
	msgTypeError  = "error"
)

type inboundMsg struct {
	Type   string        `json:"type"`
	Camera *scene.Camera `json:"camera,omitempty"`
}

type typedMsg struct {
	Type string `json:"type"`
}

type frameMsg struct {
	Type       string   `json:"type"`
	Frame      uint64   `json:"frame"`
	Visible    []uint32 `json:"visible"`
	Async      bool     `json:"async"`
	Entities   int      `json:"entities"`
	DurationMS float64  `json:"duration_ms"`
}

func newFrameMsg(f scene.Frame) frameMsg {
	visible := f.Visible
	if visible == nil {
		visible = []uint32{}
	}

	return frameMsg{
		Type:       msgTypeFrame,
		Frame:      f.Number,
		Visible:    visible,
		Async:      f.Async,
		Entities:   f.Entities,
		DurationMS: float64(f.Duration.Microseconds()) / 1000,
	}
}

type cameraMsg struct {
	Type   string        `json:"type"`
	Camera *scene.Camera `json:"camera"`
}

type statsMsg struct {
	Type  string      `json:"type"`
	Stats scene.Stats `json:"stats"`
}

type errorMsg struct {
	Type      string `json:"type"`
	ErrorType string `json:"error_type"`
	Error     string `json:"error"`
}

func newErrorMsg(err error) errorMsg {
	return errorMsg{
		Type:      msgTypeError,
		ErrorType: errors.Type(err),
		Error:     err.Error(),
	}
}
