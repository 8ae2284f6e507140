// Package pool implements the bounded-queue parallel dispatcher of
// spec.md § 4.2: N long-lived workers each read framed requests off
// their own channel, run them, and write framed replies back. The
// submitter enforces backpressure on the pending queue and reaps
// worker failures on every dispatch cycle.
//
// Workers here are goroutines rather than OS processes — spec.md § 9
// explicitly allows this substitution provided per-worker isolation
// and the bounded-queue/no-ordering-guarantee contract are preserved.
// A worker's crash-equivalent is a recovered panic, translated into
// the same WorkerDiedError the OS-process model would raise from a
// SIGCHLD handler.
package pool

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-multierror"

	"github.com/mshroom/RecordManager/internal/channel"
	"github.com/mshroom/RecordManager/internal/record"
)

// DefaultQueueBound is the pending-queue bound spec.md § 3 names as
// the default for a pool's FIFO request queue.
const DefaultQueueBound = 8

const (
	backpressureSleep = 2 * time.Millisecond
	pollWait          = 5 * time.Millisecond
)

// RunFunc is the work function every worker in a pool executes for
// each request it is handed.
type RunFunc[Req, Reply any] func(Req) Reply

// InitFunc runs once per worker before it starts serving requests. A
// non-nil error is treated as an immediate worker death.
type InitFunc func() error

type replyEnvelope[Reply any] struct {
	R Reply `json:"r"`
}

type workerDeath struct {
	slot int
	code int
}

type slot[Req, Reply any] struct {
	id       string
	ch       *channel.Channel
	active   bool
	exitCode *int
}

// Pool is a bounded-queue worker pool as described in spec.md § 4.2.
type Pool[Req, Reply any] struct {
	id         string
	run        RunFunc[Req, Reply]
	queueBound int

	pending []Req
	results []Reply
	slots   []*slot[Req, Reply]
	deaths  chan workerDeath
}

// New spawns a pool of `workers` goroutines, each executing `init`
// once (if non-nil) then looping on `run`. workers == 0 produces the
// degenerate synchronous pool: AddRequest runs the request inline.
func New[Req, Reply any](id string, workers, queueBound int, run RunFunc[Req, Reply], init InitFunc) *Pool[Req, Reply] {
	if queueBound <= 0 {
		queueBound = DefaultQueueBound
	}
	p := &Pool[Req, Reply]{
		id:         id,
		run:        run,
		queueBound: queueBound,
		slots:      make([]*slot[Req, Reply], workers),
		deaths:     make(chan workerDeath, workers+1),
	}
	for i := 0; i < workers; i++ {
		p.startWorker(i, init)
	}
	return p
}

func (p *Pool[Req, Reply]) startWorker(idx int, init InitFunc) {
	parentSide, workerSide := channel.Pipe()
	p.slots[idx] = &slot[Req, Reply]{id: fmt.Sprintf("%s-w%d", p.id, idx), ch: parentSide}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				select {
				case p.deaths <- workerDeath{slot: idx, code: 2}:
				default:
				}
			}
		}()

		if init != nil {
			if err := init(); err != nil {
				panic(err)
			}
		}

		for {
			frame, err := workerSide.ReadBlocking()
			if err != nil {
				// Parent closed its side during teardown; not a failure.
				return
			}

			var args [1]Req
			if err := sonic.Unmarshal(frame, &args); err != nil {
				panic(err)
			}

			reply := p.run(args[0])

			out, err := sonic.Marshal(replyEnvelope[Reply]{R: reply})
			if err != nil {
				panic(err)
			}
			if err := workerSide.Write(out); err != nil {
				return
			}
		}
	}()
}

// AddRequest submits one item of work. With zero workers it runs
// synchronously; otherwise it blocks while the pending queue is at
// its bound, then enqueues and dispatches.
func (p *Pool[Req, Reply]) AddRequest(item Req) error {
	if len(p.slots) == 0 {
		p.results = append(p.results, p.run(item))
		return nil
	}

	for len(p.pending) >= p.queueBound {
		if err := p.handleRequests(); err != nil {
			return err
		}
		time.Sleep(backpressureSleep)
	}

	p.pending = append(p.pending, item)
	return p.handleRequests()
}

// handleRequests reaps worker deaths, dispatches pending work to idle
// slots, and polls active slots for replies. It must only be called
// from the submitter goroutine.
func (p *Pool[Req, Reply]) handleRequests() error {
	p.reapDeaths()
	for _, s := range p.slots {
		if s.exitCode != nil {
			return &record.WorkerDiedError{WorkerID: s.id, Code: *s.exitCode}
		}
	}

	for len(p.pending) > 0 {
		idle := p.findIdleSlot()
		if idle == nil {
			break
		}
		req := p.pending[0]
		p.pending = p.pending[1:]

		payload, err := sonic.Marshal([1]Req{req})
		if err != nil {
			return err
		}
		if err := idle.ch.Write(payload); err != nil {
			return err
		}
		idle.active = true
	}

	for _, s := range p.slots {
		if !s.active || s.exitCode != nil {
			continue
		}
		frame, err := s.ch.ReadNonBlocking(pollWait)
		if err != nil {
			return err
		}
		if frame == nil {
			continue
		}
		var env replyEnvelope[Reply]
		if err := sonic.Unmarshal(frame, &env); err != nil {
			return err
		}
		p.results = append(p.results, env.R)
		s.active = false
	}

	return nil
}

func (p *Pool[Req, Reply]) reapDeaths() {
	for {
		select {
		case d := <-p.deaths:
			code := d.code
			p.slots[d.slot].exitCode = &code
		default:
			return
		}
	}
}

func (p *Pool[Req, Reply]) findIdleSlot() *slot[Req, Reply] {
	for _, s := range p.slots {
		if !s.active && s.exitCode == nil {
			return s
		}
	}
	return nil
}

// IsActive returns true iff any worker slot currently has a request
// in flight. (spec.md § 9 calls out a field-name typo in the source
// that made the equivalent method always return false; this
// implementation reads the pool's own slot state and does not
// reproduce that bug.)
func (p *Pool[Req, Reply]) IsActive() bool {
	for _, s := range p.slots {
		if s.active {
			return true
		}
	}
	return false
}

// Results returns everything collected so far. Order is not
// guaranteed to match submission order.
func (p *Pool[Req, Reply]) Results() []Reply {
	return p.results
}

// WaitUntilDone blocks (soft cancellation) until every pending
// request has been dispatched and every active worker has replied.
func (p *Pool[Req, Reply]) WaitUntilDone() error {
	for len(p.pending) > 0 || p.IsActive() {
		if err := p.handleRequests(); err != nil {
			return err
		}
		if len(p.pending) > 0 || p.IsActive() {
			time.Sleep(backpressureSleep)
		}
	}
	return nil
}

// Destroy is hard cancellation: pending work is dropped and every
// worker channel is closed, abandoning any in-flight request.
func (p *Pool[Req, Reply]) Destroy() error {
	p.pending = nil
	var merr *multierror.Error
	for _, s := range p.slots {
		if err := s.ch.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}
