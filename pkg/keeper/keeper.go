package keeper

import (
	"container/heap"
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/landkeeper/engine/pkg/landerr"
	"github.com/landkeeper/engine/pkg/resolver"
	"github.com/landkeeper/engine/pkg/statetree"
)

// DefaultGracePeriod is used when Config.GracePeriod is zero.
const DefaultGracePeriod = 30 * time.Second

// DefaultQueueCapacity is used when Config.QueueCapacity is zero.
const DefaultQueueCapacity = 4096

// Config configures one LandKeeper instance.
type Config struct {
	LandID        string
	GracePeriod   time.Duration
	QueueCapacity int
}

// OutboundRouter is the Keeper's view of its TransportAdapter: a sync flush
// request carrying the tick's snapshot and the server events emitted during
// it. Implemented by pkg/transport.Adapter.
type OutboundRouter interface {
	Flush(snap statetree.Snapshot, events []ServerEvent)
}

// StateHasher produces the deterministic per-tick state hash used by
// re-evaluation. Implemented by pkg/replay using xxhash over the
// canonical wire encoding of the broadcast+serverOnly projection.
type StateHasher interface {
	Hash(root *statetree.Node) string
}

// RecordingSink receives one RecordingFrame per tick, for later re-evaluation
// against a recorded history. Implemented by pkg/replay.Recorder, which
// buffers frames and hands them to a file, SQL or Redis replay.Sink.
type RecordingSink interface {
	RecordFrame(frame RecordingFrame) error
}

// RecordedItem is the per-item slice of a RecordingFrame.
type RecordedItem struct {
	TypeID         string
	Lifecycle      LifecycleKind
	PlayerID       string
	SessionID      string
	Sequence       uint64
	ResolvedAtTick uint64
	Payload        any
	ResolverOutputs map[string]resolver.Result
	Err            error
}

// RecordingFrame is the per-tick bundle recorded for re-evaluation.
type RecordingFrame struct {
	TickID          uint64
	Actions         []RecordedItem
	ClientEvents    []RecordedItem
	LifecycleEvents []RecordedItem
	ServerEvents    []ServerEvent
	StateHash       string
}

// Keeper is the per-Land runtime. It is not safe for concurrent
// RunTick calls: exactly one goroutine must drive a given Keeper's ticks, a
// single-writer actor with many Keepers running in parallel across Lands.
// Enqueue is safe to call from any goroutine.
type Keeper struct {
	cfg    Config
	tree   *statetree.Tree
	logger *slog.Logger

	outbound OutboundRouter
	sink     RecordingSink
	hasher   StateHasher

	handlers  map[string]HandlerRegistration
	lifecycle LifecycleHandler

	mu            sync.Mutex
	queue         itemQueue
	nextSeq       uint64
	activePlayers map[string]struct{}
	graceTimer    *time.Timer
	finalizers    []func()

	replayOutputs resolver.OutputMap // set by SetReplayOutputs, consumed by the next RunTick

	tick    atomic.Uint64
	stopped atomic.Bool
	failed  atomic.Bool

	errMu     sync.Mutex
	failedErr error
}

// New constructs a Keeper over tree, initially idle until items are
// enqueued and RunTick is driven by the caller (typically pkg/land's
// LandRealm tick loop).
func New(cfg Config, tree *statetree.Tree, outbound OutboundRouter, logger *slog.Logger) *Keeper {
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Keeper{
		cfg:           cfg,
		tree:          tree,
		outbound:      outbound,
		logger:        logger,
		handlers:      make(map[string]HandlerRegistration),
		activePlayers: make(map[string]struct{}),
	}
}

// RegisterHandler binds an action or client event TypeID to its resolver
// dependencies and transition handler. Not safe to call concurrently with
// RunTick; register all handlers before the Keeper starts processing.
func (k *Keeper) RegisterHandler(reg HandlerRegistration) {
	k.handlers[reg.TypeID] = reg
}

// SetLifecycleHandler installs the handler invoked for joined/left/initialized items.
func (k *Keeper) SetLifecycleHandler(h LifecycleHandler) { k.lifecycle = h }

// RegisteredTypeIDs returns the TypeIDs of every action/client event handler
// registered on this Keeper, for callers (such as a schema endpoint) that
// need to enumerate them without reaching into Keeper internals.
func (k *Keeper) RegisteredTypeIDs() []string {
	ids := make([]string, 0, len(k.handlers))
	for id := range k.handlers {
		ids = append(ids, id)
	}
	return ids
}

// SetOutboundRouter installs the Keeper's OutboundRouter after construction,
// for callers that must build the Keeper before its Adapter exists (the
// Adapter's KeeperInbox dependency is the Keeper itself, so the two can't be
// constructed in a single expression).
func (k *Keeper) SetOutboundRouter(outbound OutboundRouter) { k.outbound = outbound }

// SetRecordingSink installs the sink that receives one RecordingFrame per tick.
func (k *Keeper) SetRecordingSink(sink RecordingSink) { k.sink = sink }

// SetStateHasher installs the hasher used to compute each tick's state hash
// for re-evaluation. Optional: a nil hasher simply leaves RecordingFrame.StateHash empty.
func (k *Keeper) SetStateHasher(h StateHasher) { k.hasher = h }

// OnFinalize registers a callback run once, when the Keeper stops.
func (k *Keeper) OnFinalize(fn func()) {
	k.mu.Lock()
	k.finalizers = append(k.finalizers, fn)
	k.mu.Unlock()
}

// LandID returns the Land this Keeper serves.
func (k *Keeper) LandID() string { return k.cfg.LandID }

// IsStopped reports whether the Keeper has finalized.
func (k *Keeper) IsStopped() bool { return k.stopped.Load() }

// IsFailed reports whether the Keeper crashed on an engine invariant
// violation. A failed Keeper should be stopped and its Land removed
// by the Manager; it does not process further ticks meaningfully.
func (k *Keeper) IsFailed() bool { return k.failed.Load() }

// FailureError returns the error that crashed the Keeper, or nil.
func (k *Keeper) FailureError() error {
	k.errMu.Lock()
	defer k.errMu.Unlock()
	return k.failedErr
}

// Enqueue admits a new PendingItem, assigning its Sequence and
// ResolvedAtTick. delayTicks schedules the item for a future tick relative
// to the Keeper's current tick counter; zero means "the next tick that
// runs". Enqueue is non-blocking and safe from any goroutine.
func (k *Keeper) Enqueue(it *Item, delayTicks uint64) error {
	if k.stopped.Load() {
		return landerr.ErrKeeperStopped
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.queue) >= k.cfg.QueueCapacity {
		return landerr.ErrQueueFull
	}
	it.Sequence = k.nextSeq
	k.nextSeq++
	it.ResolvedAtTick = k.tick.Load() + delayTicks
	heap.Push(&k.queue, it)
	return nil
}

// EnqueueAction admits an action item for the given registered TypeID.
func (k *Keeper) EnqueueAction(typeID, playerID, sessionID string, payload any, reply chan Response) error {
	return k.Enqueue(&Item{
		Kind:      ItemAction,
		TypeID:    typeID,
		PlayerID:  playerID,
		SessionID: sessionID,
		Payload:   payload,
		Reply:     reply,
	}, 0)
}

// EnqueueClientEvent admits a client event item for the given registered TypeID.
func (k *Keeper) EnqueueClientEvent(typeID, playerID, sessionID string, payload any) error {
	return k.Enqueue(&Item{
		Kind:      ItemClientEvent,
		TypeID:    typeID,
		PlayerID:  playerID,
		SessionID: sessionID,
		Payload:   payload,
	}, 0)
}

// EnqueueLifecycle admits a joined/left/initialized lifecycle item.
func (k *Keeper) EnqueueLifecycle(kind LifecycleKind, playerID, sessionID string) error {
	return k.Enqueue(&Item{
		Kind:      ItemLifecycle,
		Lifecycle: kind,
		PlayerID:  playerID,
		SessionID: sessionID,
	}, 0)
}

// EnqueueReplayed admits an item that already carries a recorded Sequence
// and ResolvedAtTick, bypassing Enqueue's own sequencing. Used by
// pkg/replay to feed a recorded document back in its original order.
func (k *Keeper) EnqueueReplayed(it *Item) error {
	if k.stopped.Load() {
		return landerr.ErrKeeperStopped
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	heap.Push(&k.queue, it)
	return nil
}

// SetReplayOutputs substitutes the resolver outputs for the next RunTick
// instead of actually invoking resolvers, and is consumed (cleared) by that
// RunTick. Re-evaluation replays recorded outputs rather than re-running
// resolvers, which may depend on non-deterministic external state.
func (k *Keeper) SetReplayOutputs(outputs resolver.OutputMap) {
	k.replayOutputs = outputs
}

// CurrentSnapshot returns the tree's current snapshot, for callers (such as
// a re-evaluation Verifier) that need to hash state between ticks.
func (k *Keeper) CurrentSnapshot() statetree.Snapshot { return k.tree.CurrentSnapshot() }

// RunTick drains due items and advances the Land by one tick. The
// caller must guarantee RunTick is never invoked concurrently for the same
// Keeper. Returns a non-nil error only when the Keeper crashed on an
// invariant violation; ordinary handler/resolver failures are surfaced to
// their originators instead, not returned here.
func (k *Keeper) RunTick(ctx context.Context) error {
	if k.stopped.Load() {
		return landerr.ErrKeeperStopped
	}
	tick := k.tick.Add(1)

	k.mu.Lock()
	var due []*Item
	for len(k.queue) > 0 && k.queue[0].ResolvedAtTick <= tick {
		due = append(due, heap.Pop(&k.queue).(*Item))
	}
	k.mu.Unlock()

	sink := &EventSink{}
	frame := RecordingFrame{TickID: tick}

	if len(due) > 0 {
		outputs := k.replayOutputs
		if outputs == nil {
			outputs = resolver.RunBatch(ctx, resolver.Dedup(k.collectResolvers(due)))
		}
		k.runDue(due, tick, outputs, sink, &frame)
	}
	k.replayOutputs = nil

	snap := k.tree.CurrentSnapshot()
	if k.outbound != nil {
		k.outbound.Flush(snap, sink.events)
	}
	frame.ServerEvents = sink.events
	if k.hasher != nil {
		frame.StateHash = k.hasher.Hash(snap.Root)
	}
	if k.sink != nil {
		if err := k.sink.RecordFrame(frame); err != nil {
			k.logger.Error("record frame failed", "land", k.cfg.LandID, "tick", tick, "error", err)
		}
	}

	if k.failed.Load() {
		return k.FailureError()
	}
	return nil
}

func (k *Keeper) collectResolvers(due []*Item) []resolver.Resolver {
	var out []resolver.Resolver
	for _, it := range due {
		if it.Kind != ItemAction && it.Kind != ItemClientEvent {
			continue
		}
		reg, ok := k.handlers[it.TypeID]
		if !ok || reg.Resolvers == nil {
			continue
		}
		rs := reg.Resolvers(it.Payload)
		for _, r := range rs {
			it.resolvers = append(it.resolvers, r.Name())
		}
		out = append(out, rs...)
	}
	return out
}

func (k *Keeper) runDue(due []*Item, tick uint64, outputs resolver.OutputMap, sink *EventSink, frame *RecordingFrame) {
	for _, it := range due {
		if k.failed.Load() {
			k.fail(it, sink, landerr.ErrInvariantViolation)
			k.recordItem(frame, it, outputs)
			continue
		}
		switch it.Kind {
		case ItemLifecycle:
			k.processLifecycle(it, tick, sink)
		default:
			k.processHandled(it, tick, outputs, sink)
		}
		k.recordItem(frame, it, outputs)
	}
}

func (k *Keeper) processHandled(it *Item, tick uint64, outputs resolver.OutputMap, sink *EventSink) {
	reg, ok := k.handlers[it.TypeID]
	if !ok {
		k.fail(it, sink, landerr.New(landerr.CodeActionNotRegistered, "no handler registered for "+it.TypeID, nil))
		return
	}
	if anyResolverFailed(it.resolvers, outputs) {
		k.fail(it, sink, landerr.New(landerr.CodeResolverFailed, "a resolver declared by this item failed", nil))
		return
	}

	w := k.tree.Begin()
	ctx := HandlerContext{Outputs: outputs, PlayerID: it.PlayerID, SessionID: it.SessionID, TickID: tick, Logger: k.logger, Events: sink}
	if err := k.safeHandle(reg.Handle, w, it.Payload, ctx, it.TypeID); err != nil {
		k.fail(it, sink, err)
		return
	}
	k.tree.Commit(w, tick)
	k.succeed(it)
}

func (k *Keeper) processLifecycle(it *Item, tick uint64, sink *EventSink) {
	if k.lifecycle != nil {
		w := k.tree.Begin()
		ctx := HandlerContext{PlayerID: it.PlayerID, SessionID: it.SessionID, TickID: tick, Logger: k.logger, Events: sink}
		if err := k.safeLifecycle(it, w, ctx, tick); err != nil {
			it.err = err
			k.logger.Error("lifecycle handler failed", "land", k.cfg.LandID, "kind", it.Lifecycle, "player", it.PlayerID, "error", err)
		} else {
			k.tree.Commit(w, tick)
		}
	}

	k.mu.Lock()
	switch it.Lifecycle {
	case LifecycleJoined:
		k.activePlayers[it.PlayerID] = struct{}{}
		k.disarmGraceLocked()
	case LifecycleLeft:
		delete(k.activePlayers, it.PlayerID)
	}
	empty := len(k.activePlayers) == 0
	k.mu.Unlock()

	if it.Lifecycle == LifecycleLeft && empty {
		k.armGrace()
	}
}

func (k *Keeper) safeHandle(h Handler, w *statetree.Working, payload any, ctx HandlerContext, typeID string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			pe := &landerr.HandlerPanic{LandID: k.cfg.LandID, TypeID: typeID, Recovered: p, Stack: debug.Stack()}
			k.crash(pe)
			err = pe
		}
	}()
	return h(w, payload, ctx)
}

func (k *Keeper) safeLifecycle(it *Item, w *statetree.Working, ctx HandlerContext, tick uint64) (err error) {
	defer func() {
		if p := recover(); p != nil {
			pe := &landerr.HandlerPanic{LandID: k.cfg.LandID, TypeID: "lifecycle:" + it.Lifecycle.String(), Recovered: p, Stack: debug.Stack()}
			k.crash(pe)
			err = pe
		}
	}()
	return k.lifecycle(w, it.Lifecycle, it.PlayerID, ctx)
}

func (k *Keeper) crash(err error) {
	if k.failed.CompareAndSwap(false, true) {
		k.errMu.Lock()
		k.failedErr = err
		k.errMu.Unlock()
		k.logger.Error("keeper invariant violation, aborting", "land", k.cfg.LandID, "error", err)
	}
}

func anyResolverFailed(names []string, outputs resolver.OutputMap) bool {
	for _, n := range names {
		if outputs.Failed(n) {
			return true
		}
	}
	return false
}

func (k *Keeper) fail(it *Item, sink *EventSink, err error) {
	it.err = err
	switch {
	case it.Reply != nil:
		select {
		case it.Reply <- Response{Err: err}:
		default:
		}
	case it.Kind == ItemClientEvent:
		sink.Emit(TargetSession(it.SessionID), "event_error", err)
	}
}

func (k *Keeper) succeed(it *Item) {
	if it.Reply != nil {
		select {
		case it.Reply <- Response{}:
		default:
		}
	}
}

func (k *Keeper) recordItem(frame *RecordingFrame, it *Item, outputs resolver.OutputMap) {
	ri := RecordedItem{
		TypeID:         it.TypeID,
		Lifecycle:      it.Lifecycle,
		PlayerID:       it.PlayerID,
		SessionID:      it.SessionID,
		Sequence:       it.Sequence,
		ResolvedAtTick: it.ResolvedAtTick,
		Payload:        it.Payload,
		Err:            it.err,
	}
	if outputs != nil && len(it.resolvers) > 0 {
		ri.ResolverOutputs = make(map[string]resolver.Result, len(it.resolvers))
		for _, name := range it.resolvers {
			if r, ok := outputs.Get(name); ok {
				ri.ResolverOutputs[name] = r
			}
		}
	}
	switch it.Kind {
	case ItemAction:
		frame.Actions = append(frame.Actions, ri)
	case ItemClientEvent:
		frame.ClientEvents = append(frame.ClientEvents, ri)
	case ItemLifecycle:
		frame.LifecycleEvents = append(frame.LifecycleEvents, ri)
	}
}

func (k *Keeper) armGrace() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.graceTimer != nil || k.stopped.Load() {
		return
	}
	k.graceTimer = time.AfterFunc(k.cfg.GracePeriod, func() {
		k.mu.Lock()
		stillEmpty := len(k.activePlayers) == 0
		k.graceTimer = nil
		k.mu.Unlock()
		if stillEmpty {
			k.Stop()
		}
	})
}

func (k *Keeper) disarmGraceLocked() {
	if k.graceTimer != nil {
		k.graceTimer.Stop()
		k.graceTimer = nil
	}
}

// Stop finalizes the Keeper: runs OnFinalize callbacks and closes the
// recording sink if it implements io.Closer. Idempotent.
func (k *Keeper) Stop() {
	if !k.stopped.CompareAndSwap(false, true) {
		return
	}
	k.mu.Lock()
	k.disarmGraceLocked()
	finalizers := k.finalizers
	k.mu.Unlock()

	for _, fn := range finalizers {
		fn()
	}
	if closer, ok := k.sink.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			k.logger.Error("recording sink close failed", "land", k.cfg.LandID, "error", err)
		}
	}
}
