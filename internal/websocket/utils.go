package websocket

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// ErrMalformedFrame is returned by ReadFrame for a frame that is not a JSON
// object. The connection stays usable.
var ErrMalformedFrame = errors.New("malformed frame")

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, code, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// ReadFrame reads one text frame and peeks at its action. The raw frame is
// returned for decoding into the action's request type.
func ReadFrame(conn *websocket.Conn) (Action, []byte, error) {
	conn.SetReadDeadline(time.Now().Add(readWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}

	var env RequestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", data, ErrMalformedFrame
	}
	return env.Action, data, nil
}
