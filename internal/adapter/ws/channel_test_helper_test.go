package ws

import (
	"context"
	"encoding/json"

	"github.com/coder/websocket"
)

// recordingWriter captures the last frame written instead of touching a
// real connection, letting tests assert on the Control-Message Handler's
// (C14) output.
type recordingWriter struct {
	dst *Message
}

func (w *recordingWriter) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	*w.dst = msg
	return nil
}

func newRecordingChannelForTest(dst *Message) *Channel {
	return &Channel{ws: &recordingWriter{dst: dst}, sessionID: "test"}
}
