package app

import (
	"context"
	"errors"
	"time"

	"quiz-battle-service/internal/domain"
)

var (
	ErrDriverStopped      = errors.New("battle driver stopped")
	ErrSubscriptionClosed = errors.New("battle subscription closed")
)

const viewBufferSize = 16

// TickerFunc starts a periodic clock and returns its channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

// RealTicker is a TickerFunc backed by time.Ticker.
func RealTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type driverActionKind int

const (
	driverAccept driverActionKind = iota
	driverDecline
	driverAnswer
	driverNext
	driverComplete
)

type driverAction struct {
	kind   driverActionKind
	option int
	reply  chan actionReply
}

type actionReply struct {
	verdict Verdict
	err     error
}

type writeResult struct {
	kind   driverActionKind
	battle domain.Battle
	err    error
	reply  chan actionReply
}

// Driver is one participant's event loop over a battle. Store snapshots, clock ticks, local
// actions and finished writes are all handled on the Run goroutine.
type Driver struct {
	svc      *BattleService
	battleID string
	viewerID string
	session  *Session
	ticker   TickerFunc

	updates     <-chan domain.Battle
	unsubscribe func()

	actions chan driverAction
	results chan writeResult
	views   chan View
	done    chan struct{}
}

// Open subscribes the viewer to a battle. ctx bounds the subscription; Run must be called to
// process it.
func (s *BattleService) Open(ctx context.Context, battleID, viewerID string, ticker TickerFunc) (*Driver, error) {
	updates, cancel, err := s.Subscribe(ctx, battleID, viewerID)
	if err != nil {
		return nil, err
	}
	if ticker == nil {
		ticker = RealTicker
	}
	return &Driver{
		svc:         s,
		battleID:    battleID,
		viewerID:    viewerID,
		session:     NewSession(viewerID, s.opts.Duration),
		ticker:      ticker,
		updates:     updates,
		unsubscribe: cancel,
		actions:     make(chan driverAction),
		results:     make(chan writeResult, 2),
		views:       make(chan View, viewBufferSize),
		done:        make(chan struct{}),
	}, nil
}

// Views streams a View after every state change. The channel is closed when Run returns.
// A slow reader loses the oldest views.
func (d *Driver) Views() <-chan View {
	return d.views
}

// Run processes events until ctx is done, the subscription closes or the viewer declines.
func (d *Driver) Run(ctx context.Context) error {
	defer close(d.views)
	defer close(d.done)
	defer d.unsubscribe()

	log := d.svc.logger.With().Str("battle_id", d.battleID).Str("user_id", d.viewerID).Logger()

	var (
		tickC     <-chan time.Time
		stopTick  func()
		writing   bool
		retry     bool
		accepting bool
	)
	defer func() {
		if stopTick != nil {
			stopTick()
		}
	}()

	complete := func(cmd *CompleteCommand) {
		if cmd == nil || writing {
			return
		}
		writing = true
		retry = false
		go func() {
			b, err := d.svc.Complete(ctx, cmd.BattleID, cmd.ViewerID, cmd.Score)
			select {
			case d.results <- writeResult{kind: driverComplete, battle: b, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case b, ok := <-d.updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return ErrSubscriptionClosed
			}
			cmd, err := d.session.Observe(b, d.svc.now())
			if err != nil {
				log.Warn().Err(err).Msg("ignoring battle snapshot")
				d.session.SetError(err)
			}
			complete(cmd)

		case <-tickC:
			if cmd := d.session.Tick(); cmd != nil {
				complete(cmd)
			} else if retry && !writing {
				complete(d.session.PendingCompletion())
			}

		case a := <-d.actions:
			switch a.kind {
			case driverAccept:
				if err := d.session.CanAccept(); err != nil || accepting {
					if err == nil {
						err = domain.ErrInvalidTransition
					}
					a.reply <- actionReply{err: err}
					continue
				}
				accepting = true
				go func(reply chan actionReply) {
					b, err := d.svc.Accept(ctx, d.battleID, d.viewerID)
					select {
					case d.results <- writeResult{kind: driverAccept, battle: b, err: err, reply: reply}:
					case <-ctx.Done():
					}
				}(a.reply)
				continue

			case driverDecline:
				err := d.session.Decline()
				a.reply <- actionReply{err: err}
				if err == nil {
					log.Info().Msg("battle declined")
					d.publish()
					return nil
				}

			case driverAnswer:
				v, cmd, err := d.session.Answer(a.option)
				a.reply <- actionReply{verdict: v, err: err}
				complete(cmd)

			case driverNext:
				a.reply <- actionReply{err: d.session.Next()}
			}

		case r := <-d.results:
			if r.kind == driverAccept {
				accepting = false
				r.reply <- actionReply{err: r.err}
			} else {
				writing = false
				retry = r.err != nil
			}
			if r.err != nil {
				log.Warn().Err(r.err).Msg("battle write failed")
				d.session.SetError(r.err)
				break
			}
			d.session.SetError(nil)
			if cmd, err := d.session.Observe(r.battle, d.svc.now()); err == nil {
				complete(cmd)
			}
		}

		switch need := d.session.NeedsClock(); {
		case need && tickC == nil:
			tickC, stopTick = d.ticker(time.Second)
		case !need && tickC != nil:
			stopTick()
			tickC, stopTick = nil, nil
		}
		d.publish()
	}
}

func (d *Driver) publish() {
	v := d.session.View()
	select {
	case d.views <- v:
		return
	default:
	}
	select {
	case <-d.views:
	default:
	}
	select {
	case d.views <- v:
	default:
	}
}

// Accept waits until the accept write has finished.
func (d *Driver) Accept(ctx context.Context) error {
	return d.do(ctx, driverAction{kind: driverAccept}).err
}

// Decline stops the driver for this viewer without touching the shared record.
func (d *Driver) Decline(ctx context.Context) error {
	return d.do(ctx, driverAction{kind: driverDecline}).err
}

func (d *Driver) Answer(ctx context.Context, option int) (Verdict, error) {
	r := d.do(ctx, driverAction{kind: driverAnswer, option: option})
	return r.verdict, r.err
}

func (d *Driver) Next(ctx context.Context) error {
	return d.do(ctx, driverAction{kind: driverNext}).err
}

func (d *Driver) do(ctx context.Context, a driverAction) actionReply {
	a.reply = make(chan actionReply, 1)
	select {
	case d.actions <- a:
	case <-ctx.Done():
		return actionReply{err: ctx.Err()}
	case <-d.done:
		return actionReply{err: ErrDriverStopped}
	}
	select {
	case r := <-a.reply:
		return r
	case <-ctx.Done():
		return actionReply{err: ctx.Err()}
	case <-d.done:
		select {
		case r := <-a.reply:
			return r
		default:
			return actionReply{err: ErrDriverStopped}
		}
	}
}
