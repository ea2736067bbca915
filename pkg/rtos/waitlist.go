package rtos

import (
	"github.com/robotalks/rtos.go/pkg/framework"
)

type waiter struct {
	task     *framework.Task
	priority framework.Priority
	ready    chan struct{}
	seq      uint64
}

func newWaiter(task *framework.Task, priority framework.Priority) *waiter {
	return &waiter{task: task, priority: priority, ready: make(chan struct{}, 1)}
}

// waitList orders waiters by priority, FIFO within the same priority.
// It's not synchronized.
type waitList struct {
	items []*waiter
	seq   uint64
}

func (l *waitList) push(w *waiter) {
	l.seq++
	w.seq = l.seq
	l.items = append(l.items, w)
}

func (l *waitList) next() int {
	n := -1
	for i, w := range l.items {
		if n < 0 || w.priority > l.items[n].priority ||
			(w.priority == l.items[n].priority && w.seq < l.items[n].seq) {
			n = i
		}
	}
	return n
}

func (l *waitList) pop() *waiter {
	n := l.next()
	if n < 0 {
		return nil
	}
	w := l.items[n]
	l.items = append(l.items[:n], l.items[n+1:]...)
	return w
}

func (l *waitList) top() (framework.Priority, bool) {
	n := l.next()
	if n < 0 {
		return framework.PriorityIdle, false
	}
	return l.items[n].priority, true
}

func (l *waitList) remove(w *waiter) bool {
	for i, item := range l.items {
		if item == w {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

func (l *waitList) len() int {
	return len(l.items)
}
