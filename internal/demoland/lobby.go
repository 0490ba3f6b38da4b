// Package demoland registers the "lobby" land type used by landkeeperd's
// serve command and exercised by landreplay's verify command: a small
// shared score counter with a chat-style broadcast log, just complex
// enough to push every layer of the engine (action handling, lifecycle
// events, resolver-free transitions, recording) without pulling in any
// domain-specific rules.
package demoland

import (
	"fmt"
	"reflect"

	"github.com/landkeeper/engine/pkg/keeper"
	"github.com/landkeeper/engine/pkg/protocol"
	"github.com/landkeeper/engine/pkg/statetree"
)

// LandType is the land type string routed by pkg/land.Router.
const LandType = "lobby"

// registered reports whether RegisterSchema has already run, so a process
// that constructs more than one lobby land doesn't double-register the
// global statetree schema.
var registered bool

// RegisterSchema installs the lobby node schema. Safe to call more than
// once; only the first call takes effect.
func RegisterSchema() {
	if registered {
		return
	}
	if _, err := statetree.RegisterSchema(LandType, []statetree.FieldSchema{
		{Name: "score", Policy: statetree.PolicyBroadcast},
		{Name: "lastMessage", Policy: statetree.PolicyBroadcast},
		{Name: "playerCount", Policy: statetree.PolicyBroadcast},
	}); err != nil {
		panic(fmt.Sprintf("demoland: register schema: %v", err))
	}
	registered = true
}

// BuildPathTable interns every lobby field path, for the PathTable an
// Adapter needs to translate diff paths into wire hashes.
func BuildPathTable() *protocol.PathTable {
	t := protocol.NewPathTable()
	for _, field := range []string{"score", "lastMessage", "playerCount"} {
		t.Register([]string{field})
	}
	return t
}

// NewTree builds a fresh lobby tree at its zero state.
func NewTree() *statetree.Tree {
	root := statetree.NewNode(LandType, map[string]statetree.Value{
		"score":       statetree.Int(0),
		"lastMessage": statetree.String(""),
		"playerCount": statetree.Int(0),
	})
	return statetree.NewTree(root)
}

// BumpScoreTypeID is the action TypeID that increments score by the payload's
// "amount" field (defaulting to 1 when absent or non-numeric).
const BumpScoreTypeID = "bumpScore"

// SayTypeID is the client-event TypeID that overwrites lastMessage and
// broadcasts it back out as a server event.
const SayTypeID = "say"

// SaidEventTypeID is the server event emitted in response to a SayTypeID item.
const SaidEventTypeID = "said"

// RegisterHandlers binds the lobby's action and lifecycle handlers onto k.
func RegisterHandlers(k *keeper.Keeper) {
	k.RegisterHandler(keeper.HandlerRegistration{
		TypeID: BumpScoreTypeID,
		Handle: func(w *statetree.Working, payload any, ctx keeper.HandlerContext) error {
			amount := int64(1)
			if m, ok := payload.(map[string]any); ok {
				switch raw := m["amount"].(type) {
				case float64:
					amount = int64(raw)
				case float32:
					amount = int64(raw)
				case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
					amount = reflect.ValueOf(raw).Convert(reflect.TypeOf(int64(0))).Int()
				}
			}
			cur, _ := w.Root().Get("score")
			n, _ := cur.AsInt()
			w.SetField("score", statetree.Int(n+amount))
			return nil
		},
	})

	k.RegisterHandler(keeper.HandlerRegistration{
		TypeID: SayTypeID,
		Handle: func(w *statetree.Working, payload any, ctx keeper.HandlerContext) error {
			text, _ := payload.(string)
			if m, ok := payload.(map[string]any); ok {
				text, _ = m["text"].(string)
			}
			w.SetField("lastMessage", statetree.String(text))
			ctx.Events.Emit(keeper.TargetAll(), SaidEventTypeID, map[string]string{
				"playerId": ctx.PlayerID,
				"text":     text,
			})
			return nil
		},
	})

	k.SetLifecycleHandler(func(w *statetree.Working, kind keeper.LifecycleKind, playerID string, ctx keeper.HandlerContext) error {
		cur, _ := w.Root().Get("playerCount")
		n, _ := cur.AsInt()
		switch kind {
		case keeper.LifecycleJoined:
			w.SetField("playerCount", statetree.Int(n+1))
		case keeper.LifecycleLeft:
			if n > 0 {
				w.SetField("playerCount", statetree.Int(n-1))
			}
		}
		return nil
	})
}
