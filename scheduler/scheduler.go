// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scheduler provides primitives for distributing indexed tasks over a
// pool of peer processes.  Tasks are issued in ascending order to whichever
// slot becomes free first, so that a slower peer simply accumulates fewer
// tasks.  The same loop drives every phase of the protocol; the phase decides
// what is dispatched along with a task and what is done with its reply.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/9rum/ensemble/communicator"
	"github.com/golang/glog"
	"google.golang.org/protobuf/proto"
)

// Idle marks a slot that is eligible for a new task.
const Idle = -1

// ErrTaskTimeout is returned when a peer does not reply within the task timeout.
var ErrTaskTimeout = errors.New("task timed out")

// DefaultTaskTimeout bounds the wait for a single reply when Options leaves
// it unset.
var DefaultTaskTimeout = 10 * time.Minute

// Phase represents a single phase of the protocol.
// All implementations must embed PhaseBase for forward compatibility.
type Phase interface {
	// Name identifies the phase in logs, metrics and errors.
	Name() string

	// Slots returns the size of the slot pool.
	Slots() int

	// Tasks returns the total number of tasks, which is also the sentinel
	// task index signaling that no more work remains.
	Tasks() int

	// Peer maps a slot to the rank of its peer process.
	Peer(slot int) int

	// Reply returns the tag of the message a peer sends back for each task.
	Reply() communicator.Tag

	// Dispatch is called once the task index has been delivered to the peer
	// and before the receive for its reply is posted.
	Dispatch(ctx context.Context, peer, task int) error

	// Consume is called with the reply for the given task.
	Consume(task int, reply proto.Message) error
}

// PhaseBase must be embedded to have forward compatible implementations.
type PhaseBase struct {
}

func (PhaseBase) Dispatch(ctx context.Context, peer, task int) error {
	return nil
}
func (PhaseBase) Consume(task int, reply proto.Message) error {
	return nil
}

// Slot represents the scheduling state of a single peer.
type Slot struct {
	// Task is the current task index, Idle or the sentinel.
	Task int

	// Pending is the outstanding receive for the reply to Task.
	Pending *communicator.Request

	since time.Time
}

// Done reports whether the slot has been released with the sentinel.
func (s Slot) Done(sentinel int) bool {
	return s.Task == sentinel
}

// Options configures a run of the schedule loop.
type Options struct {
	// TaskTimeout bounds the wait for a single reply.  Zero means
	// DefaultTaskTimeout and a negative value means no bound.
	TaskTimeout time.Duration

	// SendTimeout bounds each synchronous send.  Zero means no bound.
	SendTimeout time.Duration

	// Metrics records the scheduling activity; nil records nothing.
	Metrics *Metrics
}

// taskTimeout returns the effective bound on a single reply, zero for none.
func (o Options) taskTimeout() time.Duration {
	switch {
	case o.TaskTimeout == 0:
		return DefaultTaskTimeout
	case o.TaskTimeout < 0:
		return 0
	default:
		return o.TaskTimeout
	}
}

// SlotError describes a failure attributed to a single slot.
type SlotError struct {
	Phase string
	Slot  int
	Peer  int
	Task  int
	Err   error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("%s: slot %d (rank %d) task %d: %v", e.Phase, e.Slot, e.Peer, e.Task, e.Err)
}

func (e *SlotError) Unwrap() error {
	return e.Err
}

// Run drives the given phase to completion.  Each scan visits the slots in
// index order: a completed reply is consumed, and a free slot is assigned the
// next task or the sentinel once every task has been issued.  Run returns
// when every slot has been released with the sentinel.  When a scan makes no
// progress, Run waits for the next reply instead of rescanning.
func Run(ctx context.Context, comm communicator.Comm, phase Phase, opts Options) error {
	name, size, sentinel := phase.Name(), phase.Slots(), phase.Tasks()
	timeout := opts.taskTimeout()
	glog.Infof("%s phase started with %d slots and %d tasks", name, size, sentinel)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]Slot, size)
	for index := range slots {
		slots[index].Task = Idle
	}
	// ready carries wake-ups only; the scan itself decides what completed.
	ready := make(chan struct{}, size)

	next := 0
	for {
		done, progressed := 0, false
		for index := range slots {
			slot := &slots[index]
			if slot.Done(sentinel) {
				done++
				continue
			}

			peer := phase.Peer(index)
			if slot.Task != Idle {
				if !slot.Pending.Test() {
					if 0 < timeout && timeout < time.Since(slot.since) {
						return &SlotError{Phase: name, Slot: index, Peer: peer, Task: slot.Task, Err: ErrTaskTimeout}
					}
					continue
				}
				reply, err := slot.Pending.Result()
				if err == nil {
					err = phase.Consume(slot.Task, reply)
				}
				if err != nil {
					return &SlotError{Phase: name, Slot: index, Peer: peer, Task: slot.Task, Err: err}
				}
				opts.Metrics.consumed(name, time.Since(slot.since))
				slot.Task, slot.Pending = Idle, nil
				progressed = true
			}

			task := sentinel
			if next < sentinel {
				task = next
			}
			if err := dispatch(ctx, comm, phase, opts, peer, task); err != nil {
				return &SlotError{Phase: name, Slot: index, Peer: peer, Task: task, Err: err}
			}
			slot.Task = task
			progressed = true
			if task == sentinel {
				continue
			}
			next++

			slot.Pending = comm.Irecv(peer, phase.Reply())
			slot.since = time.Now()
			opts.Metrics.dispatched(name)
			go notify(ctx, slot.Pending, ready)
		}

		if done == size {
			glog.Infof("%s phase finished", name)
			return nil
		}
		if !progressed {
			if err := wait(ctx, slots, timeout, ready); err != nil {
				return err
			}
		}
	}
}

// dispatch delivers the task index to the peer and, for a real task, lets
// the phase send whatever accompanies it.
func dispatch(ctx context.Context, comm communicator.Comm, phase Phase, opts Options, peer, task int) error {
	if 0 < opts.SendTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.SendTimeout)
		defer cancel()
	}
	if err := communicator.SendTask(ctx, comm, peer, task); err != nil {
		return err
	}
	if task == phase.Tasks() {
		return nil
	}
	return phase.Dispatch(ctx, peer, task)
}

// notify posts a wake-up once the request completes.
func notify(ctx context.Context, req *communicator.Request, ready chan<- struct{}) {
	select {
	case <-req.Done():
	case <-ctx.Done():
		return
	}
	select {
	case ready <- struct{}{}:
	default:
	}
}

// wait blocks until a reply arrives, the earliest outstanding task expires or
// the context is done.
func wait(ctx context.Context, slots []Slot, timeout time.Duration, ready <-chan struct{}) error {
	var expiry <-chan time.Time
	if 0 < timeout {
		var earliest time.Time
		for _, slot := range slots {
			if slot.Pending != nil && (earliest.IsZero() || slot.since.Before(earliest)) {
				earliest = slot.since
			}
		}
		if !earliest.IsZero() {
			timer := time.NewTimer(time.Until(earliest.Add(timeout)) + time.Millisecond)
			defer timer.Stop()
			expiry = timer.C
		}
	}

	select {
	case <-ready:
	case <-expiry:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
