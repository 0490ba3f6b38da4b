package transport

import (
	"sync"
	"sync/atomic"

	"github.com/landkeeper/engine/pkg/protocol"
)

// State is a session's position in the inbound state machine.
type State uint32

const (
	StateConnected State = iota
	StateJoining
	StateJoined
	StateLeaving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// maxDroppedBeforeClose bounds how many outbound frames a slow consumer may
// miss before the Adapter closes it outright. Slow consumers are dropped or
// stalled individually; the Keeper itself is never blocked by one.
const maxDroppedBeforeClose = 64

// Session is one connected client bound (or binding) to a Land.
type Session struct {
	ID       string
	PlayerID string
	LandID   string

	conn Conn

	state   atomic.Uint32
	dropped atomic.Uint32
	closed  chan struct{}

	outbound chan []byte

	// Slots is this session's dynamic-key slot table, private to the
	// connection's lifetime.
	Slots *protocol.SlotTable

	mu sync.Mutex // guards Close's idempotence
}

func newSession(id string, conn Conn, outboundBuffer int) *Session {
	s := &Session{
		ID:       id,
		conn:     conn,
		closed:   make(chan struct{}),
		outbound: make(chan []byte, outboundBuffer),
		Slots:    protocol.NewSlotTable(),
	}
	s.state.Store(uint32(StateConnected))
	return s
}

// State returns the session's current position in the join state machine.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(next State) { s.state.Store(uint32(next)) }

// compareAndSetState performs the state transition iff the session is
// currently in from, returning whether the transition happened.
func (s *Session) compareAndSetState(from, to State) bool {
	return s.state.CompareAndSwap(uint32(from), uint32(to))
}

// TrySend enqueues a frame for delivery without blocking. If the session's
// outbound buffer is full the frame is dropped and the drop is counted;
// repeated drops eventually close the connection as a slow consumer.
func (s *Session) TrySend(frame []byte) (sent bool, shouldClose bool) {
	select {
	case s.outbound <- frame:
		return true, false
	default:
		n := s.dropped.Add(1)
		return false, n >= maxDroppedBeforeClose
	}
}

// Closed reports whether the session's underlying connection has been torn down.
func (s *Session) Closed() <-chan struct{} { return s.closed }

// Close tears down the session's connection exactly once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return nil
	default:
	}
	close(s.closed)
	return s.conn.Close()
}
