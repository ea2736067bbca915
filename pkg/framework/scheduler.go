package framework

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/golang/glog"
)

// Scheduler owns a set of tasks grouped by priority level and starts
// them together.
type Scheduler struct {
	tasks [PriorityLevels][]*Task

	errs AggregatedError
	lock sync.Mutex
}

// TaskAdder provides specific logic to add tasks to a scheduler.
type TaskAdder interface {
	AddToScheduler(*Scheduler)
}

// NewScheduler creates a Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Add adds TaskAdders.
func (s *Scheduler) Add(adders ...TaskAdder) *Scheduler {
	for _, adder := range adders {
		adder.AddToScheduler(s)
	}
	return s
}

// Spawn registers a runnable as a task at the given priority.
func (s *Scheduler) Spawn(name string, priority Priority, runnable Runnable) *Task {
	t := NewTask(name, priority, runnable)
	s.lock.Lock()
	lv := priority.Level()
	s.tasks[lv] = append(s.tasks[lv], t)
	s.lock.Unlock()
	return t
}

// Fail records a start-up failure, e.g. a primitive could not be created.
// A scheduler with failures refuses to start any task.
func (s *Scheduler) Fail(err error) {
	s.lock.Lock()
	s.errs.Add(err)
	s.lock.Unlock()
}

// Tasks returns registered tasks in start order.
func (s *Scheduler) Tasks() []*Task {
	s.lock.Lock()
	defer s.lock.Unlock()
	var tasks []*Task
	for i := 0; i < PriorityLevels; i++ {
		tasks = append(tasks, s.tasks[i]...)
	}
	return tasks
}

// Run implements Runnable. Higher priority tasks are started first.
// The first task failing cancels all the others.
func (s *Scheduler) Run(ctx context.Context) error {
	s.lock.Lock()
	err := s.errs.Aggregate()
	s.lock.Unlock()
	if err != nil {
		return fmt.Errorf("scheduler not started: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runner := NewRunnerWith(ctx)
	for _, t := range s.Tasks() {
		glog.V(2).Infof("spawn %s (%s)", t.Name(), t.Priority())
		runner.Go(&supervised{Task: t, cancel: cancel})
	}
	return runner.Wait()
}

// supervised cancels the sibling tasks when the task fails.
type supervised struct {
	*Task
	cancel context.CancelFunc
}

func (t *supervised) Run(ctx context.Context) error {
	err := t.Task.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		t.cancel()
	}
	return err
}

// RunOrFail is intended to be used in main to simply run the scheduler.
func (s *Scheduler) RunOrFail() {
	if err := s.Run(NewRunner().HandleSignals().Context); err != nil {
		log.Fatalln(err)
	}
}
