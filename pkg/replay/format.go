package replay

import (
	"encoding/json"
	"sort"

	"github.com/landkeeper/engine/pkg/keeper"
	"github.com/landkeeper/engine/pkg/resolver"
)

// Metadata describes the run a Document was recorded from: the identity of
// the Land, its initial state hash, and the configuration digest a
// Verifier can compare against its own build to catch "replaying under a
// different ruleset" before it ever produces a mismatched tick.
type Metadata struct {
	LandID           string `json:"landId"`
	LandType         string `json:"landType"`
	CreatedAt        string `json:"createdAt"` // RFC3339
	InitialStateHash string `json:"initialStateHash"`
	LandConfig       string `json:"landConfig"` // configuration digest
	Version          string `json:"version"`    // engine version
}

// Document is the full re-evaluation record: metadata plus every tick's
// frame, in tick order.
type Document struct {
	Metadata Metadata      `json:"metadata"`
	Frames   []FrameRecord `json:"frames"`
}

// TargetRecord is the JSON-safe projection of keeper.EventTarget. Predicate
// targets have no serializable form (Predicate is a func value), so a
// predicate-targeted event is recorded by Kind alone; replay reconstructs
// the event for hashing purposes but cannot reproduce its original
// delivery set, which is a transport-layer concern and does not affect
// state hash verification.
type TargetRecord struct {
	Kind      string `json:"kind"` // "all", "player", "session", "predicate", "none"
	PlayerID  string `json:"playerId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

func targetRecord(t keeper.EventTarget) TargetRecord {
	switch {
	case t.All:
		return TargetRecord{Kind: "all"}
	case t.PlayerID != "":
		return TargetRecord{Kind: "player", PlayerID: t.PlayerID}
	case t.SessionID != "":
		return TargetRecord{Kind: "session", SessionID: t.SessionID}
	case t.Predicate != nil:
		return TargetRecord{Kind: "predicate"}
	default:
		return TargetRecord{Kind: "none"}
	}
}

func (t TargetRecord) toTarget() keeper.EventTarget {
	switch t.Kind {
	case "all":
		return keeper.TargetAll()
	case "player":
		return keeper.TargetPlayer(t.PlayerID)
	case "session":
		return keeper.TargetSession(t.SessionID)
	default:
		// A predicate target with no recorded predicate matches nothing on
		// replay; it still counts toward the tick's event log and hash.
		return keeper.EventTarget{}
	}
}

// ServerEventRecord is the JSON-safe projection of keeper.ServerEvent.
type ServerEventRecord struct {
	Target  TargetRecord    `json:"target"`
	TypeID  string          `json:"typeId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func serverEventRecord(ev keeper.ServerEvent) (ServerEventRecord, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return ServerEventRecord{}, err
	}
	return ServerEventRecord{Target: targetRecord(ev.Target), TypeID: ev.TypeID, Payload: payload}, nil
}

// ResolverOutputRecord is the JSON-safe projection of resolver.Result.
type ResolverOutputRecord struct {
	Value json.RawMessage `json:"value,omitempty"`
	Err   string          `json:"err,omitempty"`
}

// ItemRecord is the JSON-safe projection of keeper.RecordedItem.
type ItemRecord struct {
	TypeID          string                          `json:"typeId,omitempty"`
	Lifecycle       string                          `json:"lifecycle,omitempty"`
	PlayerID        string                          `json:"playerId,omitempty"`
	SessionID       string                          `json:"sessionId,omitempty"`
	Sequence        uint64                          `json:"sequence"`
	ResolvedAtTick  uint64                          `json:"resolvedAtTick"`
	Payload         json.RawMessage                 `json:"payload,omitempty"`
	ResolverOutputs map[string]ResolverOutputRecord `json:"resolverOutputs,omitempty"`
	Err             string                          `json:"err,omitempty"`
}

func itemRecord(ri keeper.RecordedItem) (ItemRecord, error) {
	payload, err := json.Marshal(ri.Payload)
	if err != nil {
		return ItemRecord{}, err
	}
	ir := ItemRecord{
		TypeID:         ri.TypeID,
		PlayerID:       ri.PlayerID,
		SessionID:      ri.SessionID,
		Sequence:       ri.Sequence,
		ResolvedAtTick: ri.ResolvedAtTick,
		Payload:        payload,
	}
	if ri.Err != nil {
		ir.Err = ri.Err.Error()
	}
	if len(ri.ResolverOutputs) > 0 {
		ir.ResolverOutputs = make(map[string]ResolverOutputRecord, len(ri.ResolverOutputs))
		for name, r := range ri.ResolverOutputs {
			value, err := json.Marshal(r.Value)
			if err != nil {
				return ItemRecord{}, err
			}
			rec := ResolverOutputRecord{Value: value}
			if r.Err != nil {
				rec.Err = r.Err.Error()
			}
			ir.ResolverOutputs[name] = rec
		}
	}
	return ir, nil
}

// FrameRecord is the JSON-safe projection of keeper.RecordingFrame.
type FrameRecord struct {
	TickID          uint64              `json:"tickId"`
	Actions         []ItemRecord        `json:"actions,omitempty"`
	ClientEvents    []ItemRecord        `json:"clientEvents,omitempty"`
	LifecycleEvents []ItemRecord        `json:"lifecycleEvents,omitempty"`
	ServerEvents    []ServerEventRecord `json:"serverEvents,omitempty"`
	StateHash       string              `json:"stateHash"`
}

// NewFrameRecord converts one live tick's RecordingFrame into its JSON-safe
// form, for a Recorder to buffer and a Sink to persist.
func NewFrameRecord(frame keeper.RecordingFrame) (FrameRecord, error) {
	fr := FrameRecord{TickID: frame.TickID, StateHash: frame.StateHash}
	for _, ri := range frame.Actions {
		rec, err := itemRecord(ri)
		if err != nil {
			return FrameRecord{}, err
		}
		fr.Actions = append(fr.Actions, rec)
	}
	for _, ri := range frame.ClientEvents {
		rec, err := itemRecord(ri)
		if err != nil {
			return FrameRecord{}, err
		}
		fr.ClientEvents = append(fr.ClientEvents, rec)
	}
	for _, ri := range frame.LifecycleEvents {
		rec, err := itemRecord(ri)
		if err != nil {
			return FrameRecord{}, err
		}
		rec.Lifecycle = ri.Lifecycle.String()
		fr.LifecycleEvents = append(fr.LifecycleEvents, rec)
	}
	for _, ev := range frame.ServerEvents {
		rec, err := serverEventRecord(ev)
		if err != nil {
			return FrameRecord{}, err
		}
		fr.ServerEvents = append(fr.ServerEvents, rec)
	}
	return fr, nil
}

// Items reconstructs the frame's pending items in their original
// (ResolvedAtTick, Sequence) execution order, for ActionSource/Verifier to
// feed back into a Keeper via EnqueueReplayed.
func (fr FrameRecord) Items() ([]*keeper.Item, error) {
	all := make([]*keeper.Item, 0, len(fr.Actions)+len(fr.ClientEvents)+len(fr.LifecycleEvents))

	add := func(kind keeper.ItemKind, recs []ItemRecord) error {
		for _, rec := range recs {
			it := &keeper.Item{
				Kind:           kind,
				TypeID:         rec.TypeID,
				PlayerID:       rec.PlayerID,
				SessionID:      rec.SessionID,
				Sequence:       rec.Sequence,
				ResolvedAtTick: rec.ResolvedAtTick,
			}
			if kind == keeper.ItemLifecycle {
				lk, ok := keeper.ParseLifecycleKind(rec.Lifecycle)
				if !ok {
					lk = keeper.LifecycleJoined
				}
				it.Lifecycle = lk
			}
			if len(rec.Payload) > 0 && string(rec.Payload) != "null" {
				var payload any
				if err := json.Unmarshal(rec.Payload, &payload); err != nil {
					return err
				}
				it.Payload = payload
			}
			if len(rec.ResolverOutputs) > 0 {
				names := make([]string, 0, len(rec.ResolverOutputs))
				for name := range rec.ResolverOutputs {
					names = append(names, name)
				}
				it.SetReplayedResolverNames(names)
			}
			all = append(all, it)
		}
		return nil
	}

	if err := add(keeper.ItemAction, fr.Actions); err != nil {
		return nil, err
	}
	if err := add(keeper.ItemClientEvent, fr.ClientEvents); err != nil {
		return nil, err
	}
	if err := add(keeper.ItemLifecycle, fr.LifecycleEvents); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Sequence < all[j].Sequence })
	return all, nil
}

// Outputs reconstructs the frame's resolver outputs, merged across every
// item that declared one, for SetReplayOutputs.
func (fr FrameRecord) Outputs() (resolver.OutputMap, error) {
	out := make(resolver.OutputMap)
	merge := func(recs []ItemRecord) error {
		for _, rec := range recs {
			for name, r := range rec.ResolverOutputs {
				if _, ok := out[name]; ok {
					continue
				}
				var value any
				if len(r.Value) > 0 && string(r.Value) != "null" {
					if err := json.Unmarshal(r.Value, &value); err != nil {
						return err
					}
				}
				result := resolver.Result{Value: value}
				if r.Err != "" {
					result.Err = replayedResolverError(r.Err)
				}
				out[name] = result
			}
		}
		return nil
	}
	if err := merge(fr.Actions); err != nil {
		return nil, err
	}
	if err := merge(fr.ClientEvents); err != nil {
		return nil, err
	}
	// Always non-nil, even when empty: RunTick uses nil specifically to mean
	// "not replaying, compute outputs live", so an empty recorded output set
	// must still be a distinct, non-nil value.
	return out, nil
}

// replayedResolverError wraps a recorded resolver error message. The
// original error's type is lost to JSON; only Failed()'s non-nil check and
// the message matter during replay.
type replayedResolverError string

func (e replayedResolverError) Error() string { return string(e) }
