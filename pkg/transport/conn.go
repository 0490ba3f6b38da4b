package transport

import "time"

// Conn is the transport's view of a client connection: exactly the subset
// of *websocket.Conn it needs. *github.com/gorilla/websocket.Conn already
// satisfies this interface, so production callers pass one directly;
// tests pass a fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}
