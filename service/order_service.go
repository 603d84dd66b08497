package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"cross/domain/history"
	"cross/domain/orderbook"
	"cross/infra/memory"
	"cross/infra/metrics"
	"cross/infra/sequence"
	entrywal "cross/infra/wal/entry"
	"cross/snapshot"
)

var (
	// ErrStopped is returned once Run has exited.
	ErrStopped      = errors.New("order service stopped")
	ErrNoHistory    = errors.New("price history is not configured")
	ErrInvalidMonth = errors.New("month must be between 1 and 12")
)

// History is the append-only order and execution store.
type History interface {
	Record(ctx context.Context, e history.Entry) error
	PriceHistory(ctx context.Context, year int, month time.Month) ([]history.DayPrice, error)
}

// Notifier delivers a command's effects to the owners it touched.
type Notifier interface {
	Notify(ctx context.Context, res *Result) error
}

type opKind uint8

const (
	opLimit opKind = iota + 1
	opMarket
	opStop
	opCancel
	opDepth
	opCapture
)

func (o opKind) String() string {
	switch o {
	case opLimit:
		return "limit"
	case opMarket:
		return "market"
	case opStop:
		return "stop"
	case opCancel:
		return "cancel"
	case opDepth:
		return "depth"
	case opCapture:
		return "snapshot"
	default:
		return "unknown"
	}
}

type command struct {
	op     opKind
	req    orderbook.Request
	id     uint64
	levels int
	reply  chan outcome
}

type outcome struct {
	res   *Result
	depth orderbook.Depth
	snap  *snapshot.Snapshot
	err   error
}

// OrderService owns the engine and the stop monitor. Everything that
// reads or writes them goes through the inbox consumed by Run.
type OrderService struct {
	engine *orderbook.MatchingEngine
	stops  *orderbook.StopMonitor
	seq    *sequence.Sequencer

	journal  Journal
	history  History
	notifier Notifier

	inbox        chan *command
	done         chan struct{}
	commands     *memory.Pool[command]
	replyTimeout time.Duration
	now          func() time.Time

	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*OrderService)

func WithJournal(j Journal) Option { return func(s *OrderService) { s.journal = j } }

func WithHistory(h History) Option { return func(s *OrderService) { s.history = h } }

func WithNotifier(n Notifier) Option { return func(s *OrderService) { s.notifier = n } }

func WithLogger(l *slog.Logger) Option { return func(s *OrderService) { s.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *OrderService) { s.metrics = m } }

func WithInboxSize(n int) Option { return func(s *OrderService) { s.inbox = make(chan *command, n) } }

// WithReplyTimeout bounds how long a caller waits for the sequencer when
// its context carries no deadline.
func WithReplyTimeout(d time.Duration) Option { return func(s *OrderService) { s.replyTimeout = d } }

func WithClock(now func() time.Time) Option { return func(s *OrderService) { s.now = now } }

func NewOrderService(
	engine *orderbook.MatchingEngine,
	stops *orderbook.StopMonitor,
	seq *sequence.Sequencer,
	opts ...Option,
) *OrderService {
	s := &OrderService{
		engine: engine,
		stops:  stops,
		seq:    seq,
		inbox:  make(chan *command, 1024),
		done:   make(chan struct{}),
		commands: memory.NewPool(
			func() *command { return &command{reply: make(chan outcome, 1)} },
			func(c *command) { *c = command{reply: c.reply} },
		),
		now: time.Now,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "sequencer")
	return s
}

//
// ──────────────────────────────────────────────────────────
// Sequencer
// ──────────────────────────────────────────────────────────
//

// Run applies commands one at a time until ctx is done. It must be
// started exactly once, after Recover.
func (s *OrderService) Run(ctx context.Context) error {
	defer close(s.done)
	s.log.Info("sequencer started", "seq", s.seq.Current(), "last_order_id", s.engine.LastID())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sequencer stopped", "seq", s.seq.Current())
			return nil
		case cmd := <-s.inbox:
			s.metrics.SetInboxDepth(len(s.inbox))
			cmd.reply <- s.apply(cmd)
		}
	}
}

func (s *OrderService) apply(cmd *command) (out outcome) {
	started := time.Now()
	defer s.metrics.ObserveCommand(cmd.op.String(), started)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("invariant violated", "op", cmd.op.String(), "order_id", cmd.id,
				"owner", cmd.req.Owner, "side", cmd.req.Side.String(), "size", cmd.req.Size,
				"price", cmd.req.Price, "panic", r)
			panic(r)
		}
	}()

	switch cmd.op {
	case opDepth:
		return outcome{depth: s.engine.Ladder().Depth(cmd.levels)}
	case opCapture:
		return outcome{snap: snapshot.Capture(s.seq.Current(), s.engine, s.stops)}
	case opLimit, opMarket, opStop:
		if err := cmd.req.Validate(); err != nil {
			return outcome{err: err}
		}
	}

	at := s.now().UTC()
	seq := s.seq.Next()
	if s.journal != nil {
		var payload []byte
		if cmd.op == opCancel {
			payload = encodeCancel(cmd.id)
		} else {
			payload = encodeRequest(cmd.req)
		}
		if err := s.journal.Append(entrywal.NewRecord(recordTypeOf(cmd.op), seq, at, payload)); err != nil {
			s.log.Error("journal append failed, command rejected", "seq", seq, "op", cmd.op.String(), "err", err)
			return outcome{err: errors.Wrapf(err, "journal seq %d", seq)}
		}
	}

	res, err := s.execute(seq, at, cmd.op, cmd.req, cmd.id)
	return outcome{res: res, err: err}
}

// execute applies one mutation and evaluates stops. It is shared by the
// live loop and WAL replay, so it must depend on nothing but its inputs
// and the book.
func (s *OrderService) execute(seq uint64, at time.Time, op opKind, req orderbook.Request, id uint64) (*Result, error) {
	req.At = at
	res := &Result{Seq: seq, At: at}

	switch op {
	case opLimit:
		rep, err := s.engine.PlaceLimit(req)
		if err != nil {
			return nil, err
		}
		res.Order, res.Fills, res.Touched = rep.Order, rep.Fills, rep.Touched

	case opMarket:
		rep, err := s.engine.PlaceMarket(req)
		if err != nil {
			return nil, err
		}
		res.Order, res.Fills, res.Touched = rep.Order, rep.Fills, rep.Touched

	case opStop:
		o, err := s.engine.NewStop(req)
		if err != nil {
			return nil, err
		}
		s.stops.Add(o)
		snap := o.Snapshot()
		res.Order = &snap

	case opCancel:
		o, err := s.engine.Cancel(id)
		if errors.Is(err, orderbook.ErrOrderNotFound) {
			stop, ok := s.stops.Cancel(id)
			if !ok {
				return nil, err
			}
			o, err = stop, nil
		}
		if err != nil {
			return nil, err
		}
		res.Order = &o

	default:
		return nil, errors.Newf("op %s is not a mutation", op)
	}

	res.Triggered = s.stops.Evaluate(s.engine, at)
	return res, nil
}

// do hands cmd to the sequencer and waits for its outcome.
func (s *OrderService) do(ctx context.Context, cmd *command) (outcome, error) {
	if err := ctx.Err(); err != nil {
		s.commands.Put(cmd)
		return outcome{}, err
	}
	if _, ok := ctx.Deadline(); !ok && s.replyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.replyTimeout)
		defer cancel()
	}

	select {
	case <-s.done:
		s.commands.Put(cmd)
		return outcome{}, ErrStopped
	case <-ctx.Done():
		s.commands.Put(cmd)
		return outcome{}, ctx.Err()
	case s.inbox <- cmd:
	}

	select {
	case out := <-cmd.reply:
		s.commands.Put(cmd)
		return out, nil
	case <-s.done:
		select {
		case out := <-cmd.reply:
			s.commands.Put(cmd)
			return out, nil
		default:
			return outcome{}, ErrStopped
		}
	case <-ctx.Done():
		// The command is already sequenced; finish its side effects
		// without the caller.
		go s.abandon(ctx, cmd)
		return outcome{}, ctx.Err()
	}
}

// abandon finishes a command whose caller stopped waiting. A command still
// queued when Run exits never gets a reply and is dropped.
func (s *OrderService) abandon(ctx context.Context, cmd *command) {
	var out outcome
	select {
	case out = <-cmd.reply:
	case <-s.done:
		select {
		case out = <-cmd.reply:
		default:
			s.log.Warn("sequencer stopped before abandoned command ran", "op", cmd.op.String())
			return
		}
	}
	op, req := cmd.op, cmd.req
	s.commands.Put(cmd)
	if op == opCancel && (out.err == nil || errors.Is(out.err, orderbook.ErrOrderNotFound)) {
		s.metrics.Cancel(out.err == nil)
	}
	if out.err != nil || out.res == nil {
		return
	}
	s.accounted(op, req, out.res)
	s.publish(context.WithoutCancel(ctx), out.res)
}

func (s *OrderService) mutate(ctx context.Context, op opKind, req orderbook.Request, id uint64) (*Result, error) {
	cmd := s.commands.Get()
	cmd.op, cmd.req, cmd.id = op, req, id

	out, err := s.do(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if out.err != nil {
		return nil, out.err
	}
	s.accounted(op, req, out.res)
	s.publish(context.WithoutCancel(ctx), out.res)
	return out.res, nil
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// SubmitLimit matches a limit order and rests any remainder.
func (s *OrderService) SubmitLimit(ctx context.Context, owner string, side orderbook.Side, size, price int64) (*Result, error) {
	return s.mutate(ctx, opLimit, orderbook.Request{Owner: owner, Side: side, Kind: orderbook.Limit, Size: size, Price: price}, 0)
}

// SubmitMarket executes against resting liquidity. Result.Order is nil
// when the opposite side is empty.
func (s *OrderService) SubmitMarket(ctx context.Context, owner string, side orderbook.Side, size int64) (*Result, error) {
	return s.mutate(ctx, opMarket, orderbook.Request{Owner: owner, Side: side, Kind: orderbook.Market, Size: size}, 0)
}

// SubmitStop registers a stop order. A stop whose condition already holds
// triggers within the same command.
func (s *OrderService) SubmitStop(ctx context.Context, owner string, side orderbook.Side, size, price int64) (*Result, error) {
	return s.mutate(ctx, opStop, orderbook.Request{Owner: owner, Side: side, Kind: orderbook.Stop, Size: size, Price: price}, 0)
}

// Cancel removes a resting order or a pending stop. Unknown, filled and
// already canceled ids return orderbook.ErrOrderNotFound.
func (s *OrderService) Cancel(ctx context.Context, id uint64) (*Result, error) {
	res, err := s.mutate(ctx, opCancel, orderbook.Request{}, id)
	if err == nil || errors.Is(err, orderbook.ErrOrderNotFound) {
		s.metrics.Cancel(err == nil)
	}
	return res, err
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Depth returns the top levels of each side as of one point in the
// command sequence; levels <= 0 means all.
func (s *OrderService) Depth(ctx context.Context, levels int) (orderbook.Depth, error) {
	cmd := s.commands.Get()
	cmd.op, cmd.levels = opDepth, levels
	out, err := s.do(ctx, cmd)
	if err != nil {
		return orderbook.Depth{}, err
	}
	return out.depth, nil
}

// Snapshot captures the book and pending stops between two commands.
func (s *OrderService) Snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	cmd := s.commands.Get()
	cmd.op = opCapture
	out, err := s.do(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return out.snap, nil
}

// PriceHistory folds persisted executions of month into daily prices.
// Year 0 folds that month across every year.
func (s *OrderService) PriceHistory(ctx context.Context, year int, month time.Month) ([]history.DayPrice, error) {
	if month < time.January || month > time.December {
		return nil, errors.Wrapf(ErrInvalidMonth, "month %d", month)
	}
	if s.history == nil {
		return nil, ErrNoHistory
	}
	return s.history.PriceHistory(ctx, year, month)
}

//
// ──────────────────────────────────────────────────────────
// Side effects
// ──────────────────────────────────────────────────────────
//

func (s *OrderService) publish(ctx context.Context, res *Result) {
	if s.history != nil {
		if entry := res.historyEntry(); !entry.Empty() {
			if err := s.history.Record(ctx, entry); err != nil {
				s.warn(res, "history", err)
			}
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, res); err != nil {
			s.warn(res, "notifier", err)
		}
	}
}

func (s *OrderService) warn(res *Result, sink string, err error) {
	s.log.Warn("sink failed", "sink", sink, "seq", res.Seq, "err", err)
	s.metrics.Warn(sink)
	res.Warnings = append(res.Warnings, sink+": "+err.Error())
}

func (s *OrderService) accounted(op opKind, req orderbook.Request, res *Result) {
	if s.metrics == nil {
		return
	}
	if op != opCancel && res.Order != nil {
		s.metrics.OrderAccepted(req.Kind.String(), req.Side.String())
	}
	for _, f := range res.AllFills() {
		s.metrics.Traded(f.Size)
	}
	for range res.Triggered {
		s.metrics.StopTriggered()
	}
}
