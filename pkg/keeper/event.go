package keeper

// EventTarget selects the recipients of a server-emitted event: all
// sessions, one player, one session, or a predicate.
type EventTarget struct {
	All       bool
	PlayerID  string
	SessionID string
	Predicate func(playerID, sessionID string) bool
}

// TargetAll addresses every session currently bound to the Land.
func TargetAll() EventTarget { return EventTarget{All: true} }

// TargetPlayer addresses the session bound to a specific PlayerID, if any.
func TargetPlayer(playerID string) EventTarget { return EventTarget{PlayerID: playerID} }

// TargetSession addresses a single session by its server-assigned ID.
func TargetSession(sessionID string) EventTarget { return EventTarget{SessionID: sessionID} }

// TargetWhere addresses every session for which pred returns true.
func TargetWhere(pred func(playerID, sessionID string) bool) EventTarget {
	return EventTarget{Predicate: pred}
}

// Matches reports whether the target includes the given recipient.
func (t EventTarget) Matches(playerID, sessionID string) bool {
	switch {
	case t.All:
		return true
	case t.PlayerID != "":
		return t.PlayerID == playerID
	case t.SessionID != "":
		return t.SessionID == sessionID
	case t.Predicate != nil:
		return t.Predicate(playerID, sessionID)
	default:
		return false
	}
}

// ServerEvent is a handler-emitted, out-of-band event with an explicit
// recipient target, buffered for the tick and flushed alongside state
// diffs.
type ServerEvent struct {
	Target  EventTarget
	TypeID  string
	Payload any
}

// EventSink accumulates the server events emitted during one handler
// invocation, passed to handlers through HandlerContext.
type EventSink struct {
	events []ServerEvent
}

// Emit appends an event to the sink.
func (s *EventSink) Emit(target EventTarget, typeID string, payload any) {
	s.events = append(s.events, ServerEvent{Target: target, TypeID: typeID, Payload: payload})
}
