package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mind-engage/iqscore/internal/handoff"
	"github.com/mind-engage/iqscore/internal/metrics"
	"github.com/mind-engage/iqscore/internal/questions"
)

var (
	ErrFinished   = errors.New("quiz finished")
	ErrNotRunning = errors.New("quiz not running")
)

// Persister stores attempt progress. session.Store satisfies it.
type Persister interface {
	SaveProgress(ctx context.Context, id string, currentQuestion int, answers []questions.Answer) error
	SaveCompletion(ctx context.Context, id string, correct, iq, percentile int, answers []questions.Answer) error
}

// Handoff receives the results of a completed attempt exactly once.
type Handoff interface {
	Put(ctx context.Context, r handoff.Results) error
}

type Options struct {
	TickInterval      time.Duration
	TransitionDelay   time.Duration // <= 0 advances immediately
	SyncTimeout       time.Duration
	CompletionTimeout time.Duration
	IdleTimeout       time.Duration

	// Ticks replaces the internal ticker when set.
	Ticks <-chan time.Time
	Clock Clock
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = 5 * time.Second
	}
	if o.CompletionTimeout <= 0 {
		o.CompletionTimeout = 10 * time.Second
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 30 * time.Minute
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

type cmdKind int

const (
	cmdView cmdKind = iota
	cmdSubmit
	cmdExtend
	cmdAcknowledge
)

type command struct {
	kind   cmdKind
	answer json.RawMessage
	reply  chan Reply
}

// Reply is the driver's answer to a command.
type Reply struct {
	View     View
	Accepted bool
	Answer   *questions.Answer
	Err      error
}

// Driver runs one Session on its own goroutine and is its only mutator.
type Driver struct {
	id      string
	sess    *Session
	persist Persister
	handoff Handoff
	opts    Options

	cmds    chan command
	done    chan struct{}
	pending sync.WaitGroup // progress writes in flight

	final     View
	completed bool
}

// NewDriver prepares a driver; prior answers resume an interrupted attempt.
func NewDriver(id string, bank *questions.Bank, engagement questions.Engagement, prior []questions.Answer, p Persister, h Handoff, opts Options) *Driver {
	opts = opts.withDefaults()
	return &Driver{
		id:      id,
		sess:    ResumeSession(bank, engagement, opts.Clock, prior),
		persist: p,
		handoff: h,
		opts:    opts,
		cmds:    make(chan command),
		done:    make(chan struct{}),
	}
}

func (d *Driver) ID() string { return d.id }

// Done is closed when Run returns.
func (d *Driver) Done() <-chan struct{} { return d.done }

// Completed reports whether the attempt reached its result. Valid after Done.
func (d *Driver) Completed() bool {
	<-d.done
	return d.completed
}

// Run serves ticks and commands until the attempt completes, sits idle for
// IdleTimeout, or ctx is cancelled. It returns once outstanding progress
// writes have finished, each bounded by SyncTimeout.
func (d *Driver) Run(ctx context.Context) {
	metrics.QuizStarted()
	defer func() {
		d.final = d.sess.View()
		metrics.QuizStopped(d.completed)
		close(d.done)
		d.pending.Wait()
	}()

	ticks := d.opts.Ticks
	if ticks == nil {
		t := time.NewTicker(d.opts.TickInterval)
		defer t.Stop()
		ticks = t.C
	}
	idle := time.NewTimer(d.opts.IdleTimeout)
	defer idle.Stop()

	var transition <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
			log.Printf("quiz %s: idle for %s, stopping", d.id, d.opts.IdleTimeout)
			return
		case <-ticks:
			if d.sess.Tick() {
				d.resolved(ctx)
				transition = d.afterResolve(ctx)
				if d.sess.Phase() == Complete {
					return
				}
			}
		case <-transition:
			transition = nil
			if d.advance(ctx) {
				return
			}
		case c := <-d.cmds:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.opts.IdleTimeout)

			r := d.handle(ctx, c)
			if r.Accepted && c.kind == cmdSubmit {
				transition = d.afterResolve(ctx)
			}
			r.View = d.sess.View()
			c.reply <- r
			if d.sess.Phase() == Complete {
				return
			}
		}
	}
}

func (d *Driver) handle(ctx context.Context, c command) Reply {
	switch c.kind {
	case cmdSubmit:
		if d.sess.Phase() != AwaitingAnswer {
			return Reply{}
		}
		q := d.sess.bank.Question(d.sess.Index())
		resp, err := questions.DecodeResponse(q.AnswerType(), c.answer)
		if err != nil {
			return Reply{Err: err}
		}
		a, ok := d.sess.Submit(resp)
		if !ok {
			return Reply{}
		}
		d.resolved(ctx)
		return Reply{Accepted: true, Answer: &a}
	case cmdExtend:
		ok := d.sess.Extend()
		if ok {
			metrics.Extended()
		}
		return Reply{Accepted: ok}
	case cmdAcknowledge:
		return Reply{Accepted: d.sess.Acknowledge()}
	default:
		return Reply{Accepted: true}
	}
}

// resolved fans out the progress write for the question just answered.
func (d *Driver) resolved(ctx context.Context) {
	answers := d.sess.Answers()
	last := answers[len(answers)-1]
	metrics.Answer(last.Correct, last.TimedOut())
	if d.persist == nil {
		return
	}
	next := len(answers)
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.SyncTimeout)
		defer cancel()
		timer := metrics.SyncTimer("progress")
		defer timer.ObserveDuration()
		if err := d.persist.SaveProgress(sctx, d.id, next, answers); err != nil {
			metrics.SyncFailed("progress")
			log.Printf("quiz %s: save progress at %d: %v", d.id, next, err)
		}
	}()
}

// afterResolve schedules Advance, or runs it now when there is no delay.
func (d *Driver) afterResolve(ctx context.Context) <-chan time.Time {
	if d.opts.TransitionDelay > 0 {
		return time.After(d.opts.TransitionDelay)
	}
	d.advance(ctx)
	return nil
}

// advance reports whether the attempt is complete.
func (d *Driver) advance(ctx context.Context) bool {
	if d.sess.Advance() != Complete {
		return false
	}
	d.complete(ctx)
	return true
}

func (d *Driver) complete(ctx context.Context) {
	out, _ := d.sess.Outcome()
	d.completed = true
	metrics.Score(out.IQ)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.CompletionTimeout)
	defer cancel()
	if d.persist != nil {
		timer := metrics.SyncTimer("completion")
		err := d.persist.SaveCompletion(cctx, d.id, out.Correct, out.IQ, out.Percentile, out.Answers)
		timer.ObserveDuration()
		if err != nil {
			metrics.SyncFailed("completion")
			log.Printf("quiz %s: save completion: %v", d.id, err)
		}
	}
	if d.handoff != nil {
		err := d.handoff.Put(cctx, handoff.Results{
			SessionID:   d.id,
			Score:       out.Correct,
			Total:       out.Total,
			IQScore:     out.IQ,
			Percentile:  out.Percentile,
			Answers:     out.Answers,
			CompletedAt: d.opts.Clock().UTC(),
		})
		if err != nil {
			metrics.SyncFailed("handoff")
			log.Printf("quiz %s: handoff: %v", d.id, err)
		}
	}
}

func (d *Driver) do(ctx context.Context, c command) (Reply, error) {
	c.reply = make(chan Reply, 1)
	select {
	case d.cmds <- c:
	case <-d.done:
		return Reply{View: d.final}, ErrFinished
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
	select {
	case r := <-c.reply:
		return r, r.Err
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// View returns the current snapshot, or the final one after the driver stopped.
func (d *Driver) View(ctx context.Context) (View, error) {
	r, err := d.do(ctx, command{kind: cmdView})
	if errors.Is(err, ErrFinished) {
		return r.View, nil
	}
	return r.View, err
}

// Submit sends a raw JSON answer for the current question. A payload of the
// wrong shape returns questions.ErrBadResponse; a submission outside
// AwaitingAnswer is not accepted and changes nothing.
func (d *Driver) Submit(ctx context.Context, answer json.RawMessage) (Reply, error) {
	r, err := d.do(ctx, command{kind: cmdSubmit, answer: answer})
	if err != nil && !errors.Is(err, ErrFinished) && !errors.Is(err, questions.ErrBadResponse) {
		return r, fmt.Errorf("submit: %w", err)
	}
	return r, err
}

func (d *Driver) Extend(ctx context.Context) (Reply, error) {
	return d.do(ctx, command{kind: cmdExtend})
}

func (d *Driver) Acknowledge(ctx context.Context) (Reply, error) {
	return d.do(ctx, command{kind: cmdAcknowledge})
}
