package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"camscout/internal/interrupt"
)

// State is the dispatcher lifecycle state
type State int32

const (
	StateInit State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "init"
	}
}

// Stages selects which parts of the pipeline run. The zero value enables
// every stage.
type Stages struct {
	Discover  bool
	Attack    bool
	Thumbnail bool
	Validate  bool
}

func (s Stages) normalize() Stages {
	if !s.Discover && !s.Attack && !s.Thumbnail && !s.Validate {
		return Stages{Discover: true, Attack: true, Thumbnail: true, Validate: true}
	}
	return s
}

// Discovers reports whether the discovery stage will run
func (s Stages) Discovers() bool {
	return s.normalize().Discover
}

// Dispatcher runs a queue of tasks sequentially
type Dispatcher struct {
	controller *interrupt.Controller
	events     *EventBus
	logger     *zap.Logger
	queue      []Task
	state      atomic.Int32
}

// NewDispatcher creates a new dispatcher. events may be nil.
func NewDispatcher(controller *interrupt.Controller, events *EventBus, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		controller: controller,
		events:     events,
		logger:     logger.Named("dispatcher"),
	}
}

// State returns the current lifecycle state
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Tasks returns the names of the queued tasks in order
func (d *Dispatcher) Tasks() []string {
	names := make([]string, len(d.queue))
	for i, t := range d.queue {
		names[i] = t.Name()
	}
	return names
}

// Add appends tasks to the queue
func (d *Dispatcher) Add(tasks ...Task) {
	d.queue = append(d.queue, tasks...)
}

// Build queues the tasks of the enabled stages followed by the report
func (d *Dispatcher) Build(stages Stages, deps Deps) {
	stages = stages.normalize()
	logger := deps.Logger
	if logger == nil {
		logger = d.logger
	}
	named := func(task string) *zap.Logger { return logger.Named(task) }
	parse := deps.ParseReport
	if parse == nil {
		parse = defaultParser
	}

	if stages.Discover {
		state := &scanState{}
		d.Add(
			&mappingTask{scanner: deps.Scanner, runID: deps.RunID, state: state, logger: named(TaskMapping)},
			&parsingTask{parse: parse, store: deps.Store, state: state, logger: named(TaskParsing)},
		)
	}
	if stages.Attack {
		d.Add(
			&credentialAttackTask{attacker: deps.Attacker, logger: named(TaskCredentialAttack)},
			&pathAttackTask{attacker: deps.Attacker, logger: named(TaskPathAttack)},
		)
	}
	if stages.Thumbnail {
		d.Add(&thumbnailTask{
			thumbnailer: deps.Thumbnailer,
			store:       deps.Store,
			controller:  d.controller,
			logger:      named(TaskThumbnail),
		})
	}
	if stages.Validate {
		d.Add(&validationTask{
			validator:  deps.Validator,
			store:      deps.Store,
			controller: d.controller,
			logger:     named(TaskValidation),
		})
	}
	d.Add(&reportTask{store: deps.Store, path: deps.ReportPath, formats: deps.Formats, logger: named(TaskReport)})
}

// Run executes the queue. It returns nil when every task succeeded, a
// *TaskError when one failed, ErrStopped when a stop request kept tasks
// from starting and ErrForceStopped when a second request abandoned the
// running task.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(StateInit), int32(StateRunning)) {
		return errors.New("dispatcher already started")
	}
	defer func() {
		d.state.Store(int32(StateFinished))
		d.events.Publish(Event{Type: EventFinished})
	}()

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.work(taskCtx) }()

	select {
	case err := <-done:
		return err
	case <-d.controller.StopRequested():
	}

	d.logger.Info("Stop requested, waiting for the current task")
	d.events.Publish(Event{Type: EventStopping})

	select {
	case err := <-done:
		return err
	case <-d.controller.ForceStopRequested():
		d.logger.Warn("Force stop requested, abandoning the current task")
		cancel()
		return ErrForceStopped
	}
}

// work pops and runs tasks until the queue is empty, a task fails or the
// controller leaves the running state.
func (d *Dispatcher) work(ctx context.Context) error {
	for len(d.queue) > 0 {
		if !d.controller.Running() {
			d.logger.Info("Pipeline stopped", zap.Strings("skipped", d.Tasks()))
			return ErrStopped
		}

		task := d.queue[0]
		d.queue = d.queue[1:]

		d.logger.Info("Running task", zap.String("task", task.Name()))
		d.events.Publish(Event{Type: EventTaskStarted, Task: task.Name()})
		start := time.Now()

		err := task.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			var taskErr *TaskError
			if !errors.As(err, &taskErr) {
				err = &TaskError{Task: task.Name(), Err: err}
			}
			d.logger.Error("Task failed", zap.String("task", task.Name()), zap.Duration("elapsed", elapsed), zap.Error(err))
			d.events.Publish(Event{Type: EventTaskFailed, Task: task.Name(), Duration: elapsed, Err: err})
			return err
		}

		d.logger.Info("Task complete", zap.String("task", task.Name()), zap.Duration("elapsed", elapsed))
		d.events.Publish(Event{Type: EventTaskSucceeded, Task: task.Name(), Duration: elapsed})
	}
	return nil
}
