// Package rtos provides the task coordination primitives.
package rtos

// Three primitives are provided, mirroring a small real-time kernel:
//
//   Mutex  - binary lock with a single owner and priority inheritance.
//   Gate   - binary, non-counting signal, raisable from interrupt context.
//   Queue  - fixed-capacity FIFO of values.
//
// Every blocking operation takes a context and a timeout. Forever disables
// the timeout; the context still cancels the wait.
//
// Only Gate.SignalFromISR and Queue.TrySendFromISR may be used from an
// interrupt handler, see package isr.
