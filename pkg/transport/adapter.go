package transport

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/landkeeper/engine/pkg/keeper"
	"github.com/landkeeper/engine/pkg/landerr"
	"github.com/landkeeper/engine/pkg/protocol"
	"github.com/landkeeper/engine/pkg/statetree"
	"github.com/landkeeper/engine/pkg/syncengine"
)

// DefaultJoinTimeout is the default join handshake timeout.
const DefaultJoinTimeout = 10 * time.Second

// DefaultOutboundBuffer bounds how many unwritten frames a session may queue
// before TrySend starts dropping them.
const DefaultOutboundBuffer = 128

// DefaultWriteTimeout bounds a single write to the underlying connection.
const DefaultWriteTimeout = 10 * time.Second

// Config configures one Adapter, which owns every session bound to one Land.
type Config struct {
	LandID             string
	JoinTimeout        time.Duration
	OutboundBufferSize int
	WriteTimeout       time.Duration
}

// JoinRequest is the normalized form of an inbound Join message, passed to
// the JoinGate for authorization.
type JoinRequest struct {
	RequestID string
	PlayerID  string
	DeviceID  string
	Metadata  map[string]any
}

// JoinGate authorizes a join attempt. A nil Gate on the Adapter allows
// every join.
type JoinGate interface {
	CanJoin(ctx context.Context, req JoinRequest) (bool, error)
}

// JoinGateFunc adapts a plain function to a JoinGate.
type JoinGateFunc func(ctx context.Context, req JoinRequest) (bool, error)

func (f JoinGateFunc) CanJoin(ctx context.Context, req JoinRequest) (bool, error) { return f(ctx, req) }

// KeeperInbox is the Adapter's view of the Land's Keeper: just enough to
// enqueue items. *keeper.Keeper satisfies this directly.
type KeeperInbox interface {
	EnqueueLifecycle(kind keeper.LifecycleKind, playerID, sessionID string) error
	EnqueueAction(typeID, playerID, sessionID string, payload any, reply chan keeper.Response) error
	EnqueueClientEvent(typeID, playerID, sessionID string, payload any) error
}

// Adapter owns the sessions bound to one Land. It implements
// keeper.OutboundRouter, so a Keeper can request a flush without knowing
// anything about WebSockets.
type Adapter struct {
	cfg    Config
	gate   JoinGate
	inbox  KeeperInbox
	engine *syncengine.Engine
	paths  *protocol.PathTable
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	byPlayer map[string]*Session

	nextID atomic.Uint64
}

// NewAdapter constructs an Adapter for one Land. paths is the land type's
// schema-wide static path table (shared, built once at registration); it
// may be nil, in which case no path is hashed and every patch carries its
// path segment by segment, compressed through the session's SlotTable.
func NewAdapter(cfg Config, gate JoinGate, inbox KeeperInbox, engine *syncengine.Engine, paths *protocol.PathTable, logger *slog.Logger) *Adapter {
	if cfg.JoinTimeout == 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}
	if cfg.OutboundBufferSize == 0 {
		cfg.OutboundBufferSize = DefaultOutboundBuffer
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		cfg:      cfg,
		gate:     gate,
		inbox:    inbox,
		engine:   engine,
		paths:    paths,
		logger:   logger,
		sessions: make(map[string]*Session),
		byPlayer: make(map[string]*Session),
	}
}

// Accept registers a newly connected socket and starts its outbound write
// pump. The caller is responsible for running ReadPump (typically on the
// goroutine that owns the HTTP upgrade).
func (a *Adapter) Accept(conn Conn) *Session {
	id := a.newSessionID()
	s := newSession(id, conn, a.cfg.OutboundBufferSize)
	s.LandID = a.cfg.LandID

	a.mu.Lock()
	a.sessions[id] = s
	a.mu.Unlock()

	go a.writePump(s)
	return s
}

func (a *Adapter) newSessionID() string {
	n := a.nextID.Add(1)
	return a.cfg.LandID + "#" + strconv.FormatUint(n, 10)
}

// ReadPump blocks reading frames off s until a read from the connection
// fails, dispatching each frame by opcode; a frame that fails to decode is
// logged and skipped. Grounded on
// pkg/server/websocket.go's ReadLoop.
func (a *Adapter) ReadPump(s *Session) {
	defer a.handleDisconnect(s)

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			a.logger.Warn("frame decode error", "session", s.ID, "error", err)
			continue
		}

		switch frame.Opcode {
		case protocol.OpJoin:
			a.handleJoin(s, frame.Payload)
		case protocol.OpAction:
			a.handleAction(s, frame.Payload)
		case protocol.OpClientEvent:
			a.handleClientEvent(s, frame.Payload)
		default:
			a.logger.Warn("unexpected opcode from client", "session", s.ID, "opcode", frame.Opcode)
		}
	}
}

func (a *Adapter) handleJoin(s *Session, payload []byte) {
	var join protocol.Join
	if err := protocol.Decode(payload, &join); err != nil {
		a.sendJoinError(s, "", landerr.CodeInvalidFrame, "malformed join frame")
		return
	}

	switch s.State() {
	case StateJoining:
		a.sendJoinError(s, join.RequestID, landerr.CodeAlreadyJoining, "join already in progress")
		return
	case StateJoined:
		a.sendJoinError(s, join.RequestID, landerr.CodeAlreadyJoined, "session already joined")
		return
	case StateConnected:
		// proceeds below
	default:
		return
	}
	if !s.compareAndSetState(StateConnected, StateJoining) {
		a.sendJoinError(s, join.RequestID, landerr.CodeAlreadyJoining, "join already in progress")
		return
	}

	s.PlayerID = join.PlayerID

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.JoinTimeout)
	defer cancel()

	allow, err := true, error(nil)
	if a.gate != nil {
		allow, err = a.gate.CanJoin(ctx, JoinRequest{
			RequestID: join.RequestID,
			PlayerID:  join.PlayerID,
			DeviceID:  join.DeviceID,
			Metadata:  join.Metadata,
		})
	}
	if err != nil || !allow {
		s.setState(StateClosed)
		a.sendJoinError(s, join.RequestID, landerr.CodeJoinDenied, "join denied")
		a.closeSession(s)
		return
	}

	a.mu.Lock()
	if existing, ok := a.byPlayer[join.PlayerID]; ok && existing.ID != s.ID {
		a.evictLocked(existing)
	}
	a.byPlayer[join.PlayerID] = s
	a.mu.Unlock()

	s.setState(StateJoined)
	if err := a.inbox.EnqueueLifecycle(keeper.LifecycleJoined, join.PlayerID, s.ID); err != nil {
		a.logger.Error("enqueue joined lifecycle failed", "session", s.ID, "error", err)
	}
	a.sendJoinAck(s, join.RequestID, join.LandID)
}

// evictLocked closes an existing session bound to a player that is rejoining
// from a new connection. The Keeper is not notified of a leave: business
// logic must observe a continuous presence across the reconnect.
func (a *Adapter) evictLocked(existing *Session) {
	existing.setState(StateClosed)
	delete(a.sessions, existing.ID)
	go existing.Close()
}

func (a *Adapter) handleAction(s *Session, payload []byte) {
	if s.State() != StateJoined {
		return
	}
	var action protocol.Action
	if err := protocol.Decode(payload, &action); err != nil {
		a.logger.Warn("action decode error", "session", s.ID, "error", err)
		return
	}

	reply := make(chan keeper.Response, 1)
	if err := a.inbox.EnqueueAction(action.TypeID, s.PlayerID, s.ID, action.Payload, reply); err != nil {
		a.sendActionResponse(s, action.RequestID, keeper.Response{Err: err})
		return
	}
	go func() {
		resp := <-reply
		a.sendActionResponse(s, action.RequestID, resp)
	}()
}

func (a *Adapter) handleClientEvent(s *Session, payload []byte) {
	if s.State() != StateJoined {
		return
	}
	var event protocol.ClientEvent
	if err := protocol.Decode(payload, &event); err != nil {
		a.logger.Warn("client event decode error", "session", s.ID, "error", err)
		return
	}
	if err := a.inbox.EnqueueClientEvent(event.TypeID, s.PlayerID, s.ID, event.Payload); err != nil {
		a.logger.Warn("enqueue client event failed", "session", s.ID, "error", err)
	}
}

func (a *Adapter) handleDisconnect(s *Session) {
	wasJoined := s.State() == StateJoined
	s.setState(StateLeaving)

	a.mu.Lock()
	delete(a.sessions, s.ID)
	if cur, ok := a.byPlayer[s.PlayerID]; ok && cur.ID == s.ID {
		delete(a.byPlayer, s.PlayerID)
	}
	a.mu.Unlock()

	a.engine.Forget(s.ID)

	if wasJoined {
		if err := a.inbox.EnqueueLifecycle(keeper.LifecycleLeft, s.PlayerID, s.ID); err != nil {
			a.logger.Error("enqueue left lifecycle failed", "session", s.ID, "error", err)
		}
	}
	s.setState(StateClosed)
	s.Close()
}

func (a *Adapter) closeSession(s *Session) {
	a.mu.Lock()
	delete(a.sessions, s.ID)
	a.mu.Unlock()
	s.Close()
}

// Flush implements keeper.OutboundRouter: for every joined session, it
// projects the snapshot, diffs against the session's cache (or sends a
// first sync), and writes the targeted server events alongside it.
func (a *Adapter) Flush(snap statetree.Snapshot, events []keeper.ServerEvent) {
	a.mu.Lock()
	sessions := make([]*Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		if s.State() == StateJoined {
			sessions = append(sessions, s)
		}
	}
	a.mu.Unlock()

	for _, s := range sessions {
		a.flushSession(s, snap, events)
	}
}

func (a *Adapter) flushSession(s *Session, snap statetree.Snapshot, events []keeper.ServerEvent) {
	recipient := statetree.Recipient{SessionID: s.ID, PlayerID: s.PlayerID, LandID: a.cfg.LandID}

	var stateFrame []byte
	if !a.engine.HasCache(s.ID) {
		full := a.engine.FirstSyncFor(snap, recipient)
		snapshotBytes, err := protocol.Encode(statetree.NodeValue(full.View).ToNative())
		if err != nil {
			a.logger.Error("encode first sync failed", "session", s.ID, "error", err)
			return
		}
		stateFrame, err = protocol.EncodeMessageFrame(protocol.OpStateUpdateFirst, 0, protocol.StateUpdateFirst{
			TickID: full.TickID, Snapshot: snapshotBytes,
		})
		if err != nil {
			a.logger.Error("encode first sync frame failed", "session", s.ID, "error", err)
			return
		}
	} else {
		patches := a.engine.DiffSince(snap, recipient)
		if len(patches) > 0 {
			wire := protocol.EncodePatches(patches, a.paths, s.Slots)
			var err error
			stateFrame, err = protocol.EncodeMessageFrame(protocol.OpStateUpdateDiff, 0, protocol.StateUpdateDiff{
				TickID: snap.TickID, Patches: wire,
			})
			if err != nil {
				a.logger.Error("encode diff frame failed", "session", s.ID, "error", err)
				return
			}
		}
	}
	if stateFrame != nil {
		a.send(s, stateFrame)
	}

	for _, ev := range events {
		if !ev.Target.Matches(s.PlayerID, s.ID) {
			continue
		}
		payloadBytes, err := protocol.Encode(ev.Payload)
		if err != nil {
			a.logger.Error("encode server event payload failed", "session", s.ID, "error", err)
			continue
		}
		frame, err := protocol.EncodeMessageFrame(protocol.OpServerEvent, 0, protocol.ServerEvent{
			TypeID: ev.TypeID, Payload: payloadBytes,
		})
		if err != nil {
			a.logger.Error("encode server event frame failed", "session", s.ID, "error", err)
			continue
		}
		a.send(s, frame)
	}
}

func (a *Adapter) send(s *Session, frame []byte) {
	_, shouldClose := s.TrySend(frame)
	if shouldClose {
		a.logger.Warn("closing slow consumer", "session", s.ID, "code", landerr.CodeSlowConsumer)
		a.closeSession(s)
	}
}

func (a *Adapter) writePump(s *Session) {
	for {
		select {
		case frame, ok := <-s.outbound:
			if !ok {
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				a.logger.Warn("write failed, closing session", "session", s.ID, "error", err)
				s.Close()
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (a *Adapter) sendJoinAck(s *Session, requestID, landID string) {
	frame, err := protocol.EncodeMessageFrame(protocol.OpJoinAck, 0, protocol.JoinAck{
		RequestID: requestID, OK: true, LandID: landID, PlayerID: s.PlayerID,
	})
	if err != nil {
		a.logger.Error("encode join ack failed", "session", s.ID, "error", err)
		return
	}
	a.send(s, frame)
}

func (a *Adapter) sendJoinError(s *Session, requestID string, code landerr.Code, message string) {
	frame, err := protocol.EncodeMessageFrame(protocol.OpJoinError, 0, protocol.JoinError{
		RequestID: requestID, Code: string(code), Message: message,
	})
	if err != nil {
		a.logger.Error("encode join error failed", "session", s.ID, "error", err)
		return
	}
	a.send(s, frame)
}

func (a *Adapter) sendActionResponse(s *Session, requestID string, resp keeper.Response) {
	msg := protocol.ActionResponse{RequestID: requestID, OK: resp.Err == nil}
	if resp.Err != nil {
		msg.Message = resp.Err.Error()
		if se, ok := resp.Err.(*landerr.StructuredError); ok {
			msg.Code = string(se.Code)
		} else {
			msg.Code = string(landerr.CodeInternal)
		}
	}
	frame, err := protocol.EncodeMessageFrame(protocol.OpActionResponse, 0, msg)
	if err != nil {
		a.logger.Error("encode action response failed", "session", s.ID, "error", err)
		return
	}
	a.send(s, frame)
}
