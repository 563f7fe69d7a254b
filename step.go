package newton

import (
	"sync"
	"sync/atomic"

	"github.com/germangb/newton-go/errors"
)

// Step controller states.
const (
	stateIdle int32 = iota
	stateStepping
)

// stepController owns the Idle/Stepping state machine and the write side
// of the world gate. One long-lived worker goroutine, started lazily on
// the first step, runs every solve so native thread-affine state stays on
// one OS thread.
//
// Gate discipline: begin acquires the write lock on the caller's
// goroutine once all readers drain; the worker releases it after the
// solve and the destroy-queue drain. Accessors take the read side with
// TryRLock and fail fast while a step is in flight.
type stepController struct {
	gate  *sync.RWMutex
	state atomic.Int32

	mu     sync.Mutex
	ticket *stepTicket
	jobs   chan stepJob
	once   sync.Once

	qmu   sync.Mutex
	queue []func()
}

type stepTicket struct {
	done chan struct{}
	err  error
}

type stepJob struct {
	run    func() error
	ticket *stepTicket
}

func newStepController(gate *sync.RWMutex) *stepController {
	return &stepController{gate: gate}
}

// begin transitions Idle→Stepping, drains readers and hands run to the
// worker. alive is re-checked under the gate so a racing teardown cannot
// let a step touch a destroyed world.
func (s *stepController) begin(alive func() bool, run func() error) error {
	if !s.state.CompareAndSwap(stateIdle, stateStepping) {
		return errors.AlreadyStepping()
	}

	s.gate.Lock()
	if !alive() {
		s.gate.Unlock()
		s.state.Store(stateIdle)
		return errors.WorldGone("world.begin_step")
	}

	t := &stepTicket{done: make(chan struct{})}
	s.mu.Lock()
	s.ticket = t
	s.once.Do(func() {
		s.jobs = make(chan stepJob, 1)
		go s.worker()
	})
	jobs := s.jobs
	s.mu.Unlock()

	jobs <- stepJob{run: run, ticket: t}
	return nil
}

func (s *stepController) worker() {
	for job := range s.jobs {
		job.ticket.err = job.run()
		s.finish()
		close(job.ticket.done)
	}
}

// finish drains queued destroys and flips back to Idle. The state flip
// happens under qmu so an enqueue that observed Stepping is always
// drained here, never stranded for a later step.
func (s *stepController) finish() {
	s.qmu.Lock()
	for len(s.queue) > 0 {
		q := s.queue
		s.queue = nil
		s.qmu.Unlock()
		for _, fn := range q {
			fn()
		}
		s.qmu.Lock()
	}
	s.state.Store(stateIdle)
	s.qmu.Unlock()
	s.gate.Unlock()
}

// enqueueIfStepping appends fn to the in-flight step's destroy queue.
// It reports false when no step is in flight.
func (s *stepController) enqueueIfStepping(fn func()) bool {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if s.state.Load() != stateStepping {
		return false
	}
	s.queue = append(s.queue, fn)
	return true
}

// join blocks until the most recent step completes and returns its error.
// It returns nil immediately when no step was ever begun.
func (s *stepController) join() error {
	s.mu.Lock()
	t := s.ticket
	s.mu.Unlock()
	if t == nil {
		return nil
	}
	<-t.done
	return t.err
}

// poll reports whether the controller is Idle.
func (s *stepController) poll() bool {
	return s.state.Load() == stateIdle
}

// shutdown stops the worker. The caller must have joined any in-flight
// step first.
func (s *stepController) shutdown() {
	s.mu.Lock()
	if s.jobs != nil {
		close(s.jobs)
		s.jobs = nil
	}
	s.mu.Unlock()
}