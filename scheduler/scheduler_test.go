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

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/9rum/ensemble/communicator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
)

// echoPhase dispatches tasks to ranks [0, slots) and expects each peer to
// reply with the task index it was given.
type echoPhase struct {
	PhaseBase
	slots, tasks int

	mu          sync.Mutex
	outstanding map[int]int
	consumed    []int
	violations  []string
}

func newEchoPhase(slots, tasks int) *echoPhase {
	return &echoPhase{
		slots:       slots,
		tasks:       tasks,
		outstanding: make(map[int]int),
	}
}

func (p *echoPhase) Name() string            { return "echo" }
func (p *echoPhase) Slots() int              { return p.slots }
func (p *echoPhase) Tasks() int              { return p.tasks }
func (p *echoPhase) Peer(slot int) int       { return slot }
func (p *echoPhase) Reply() communicator.Tag { return communicator.TagResult }

func (p *echoPhase) Dispatch(ctx context.Context, peer, task int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prior, ok := p.outstanding[peer]; ok {
		p.violations = append(p.violations, fmt.Sprintf("rank %d got task %d before task %d was consumed", peer, task, prior))
	}
	p.outstanding[peer] = task
	return nil
}

func (p *echoPhase) Consume(task int, reply proto.Message) error {
	scores, err := communicator.ResultOf(reply)
	if err != nil {
		return err
	}
	if len(scores) != 2 || int(scores[0]) != task {
		return fmt.Errorf("reply %v does not match task %d", scores, task)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.outstanding, int(scores[1]))
	p.consumed = append(p.consumed, task)
	return nil
}

// peer replies to every task with (task, rank) after the given delay.
func peer(ctx context.Context, comm communicator.Comm, aggregator, sentinel int, delay time.Duration, received *[]int) error {
	for {
		task, err := communicator.RecvTask(ctx, comm, aggregator)
		if err != nil {
			return err
		}
		if received != nil {
			*received = append(*received, task)
		}
		if task == sentinel {
			return nil
		}
		time.Sleep(delay)
		if err := communicator.SendResult(ctx, comm, aggregator, []float64{float64(task), float64(comm.Rank())}); err != nil {
			return err
		}
	}
}

// run executes the echo phase against peers with the given delays.
func run(t *testing.T, tasks int, delays []time.Duration, opts Options) (*echoPhase, [][]int) {
	t.Helper()
	slots := len(delays)
	comms := communicator.NewLocal(slots + 1)
	aggregator := comms[slots]
	received := make([][]int, slots)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < slots; rank++ {
		rank := rank
		g.Go(func() error {
			return peer(ctx, comms[rank], slots, tasks, delays[rank], &received[rank])
		})
	}
	phase := newEchoPhase(slots, tasks)
	g.Go(func() error {
		return Run(ctx, aggregator, phase, opts)
	})
	require.NoError(t, g.Wait())

	return phase, received
}

func TestRunCoversEveryTask(t *testing.T) {
	for _, tc := range []struct {
		tasks, slots int
	}{
		{tasks: 0, slots: 1},
		{tasks: 1, slots: 1},
		{tasks: 3, slots: 2},
		{tasks: 17, slots: 4},
		{tasks: 2, slots: 5},
	} {
		t.Run(fmt.Sprintf("tasks=%d/slots=%d", tc.tasks, tc.slots), func(t *testing.T) {
			phase, received := run(t, tc.tasks, make([]time.Duration, tc.slots), Options{})

			assert.ElementsMatch(t, seq(tc.tasks), phase.consumed)
			assert.Empty(t, phase.violations)
			assert.Empty(t, phase.outstanding)

			seen := make(map[int]int)
			for rank, tasks := range received {
				require.NotEmpty(t, tasks, "rank %d never released", rank)
				assert.Equal(t, tc.tasks, tasks[len(tasks)-1], "rank %d must end with the sentinel", rank)
				for _, task := range tasks[:len(tasks)-1] {
					seen[task]++
				}
			}
			for task := 0; task < tc.tasks; task++ {
				assert.Equal(t, 1, seen[task], "task %d", task)
			}
		})
	}
}

func TestRunWithoutTasksIssuesOnlySentinels(t *testing.T) {
	_, received := run(t, 0, make([]time.Duration, 3), Options{})
	for rank, tasks := range received {
		assert.Equal(t, []int{0}, tasks, "rank %d", rank)
	}
}

func TestRunIssuesTasksInAscendingOrder(t *testing.T) {
	_, received := run(t, 12, []time.Duration{time.Millisecond, 0, 2 * time.Millisecond}, Options{})
	for rank, tasks := range received {
		for index := 1; index < len(tasks); index++ {
			assert.Less(t, tasks[index-1], tasks[index], "rank %d got %v", rank, tasks)
		}
	}
}

func TestRunFavorsFasterPeers(t *testing.T) {
	_, received := run(t, 20, []time.Duration{0, 100 * time.Millisecond}, Options{})
	// The sentinel is not a task.
	fast, slow := len(received[0])-1, len(received[1])-1
	assert.Equal(t, 20, fast+slow)
	assert.Greater(t, fast, slow)
}

func TestRunRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := MustNewMetrics(registry)

	run(t, 5, make([]time.Duration, 2), Options{Metrics: metrics})

	assert.Equal(t, 5., testutil.ToFloat64(metrics.Dispatched.WithLabelValues("echo")))
	assert.Equal(t, 5., testutil.ToFloat64(metrics.RoundTrips.WithLabelValues("echo")))
}

func TestRunTimesOutStalledPeer(t *testing.T) {
	comms := communicator.NewLocal(3)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// rank 0 answers, rank 1 takes its first task and never replies.
	go peer(ctx, comms[0], 2, 4, 0, nil)
	go func() {
		communicator.RecvTask(ctx, comms[1], 2)
		<-ctx.Done()
	}()

	err := Run(ctx, comms[2], newEchoPhase(2, 4), Options{TaskTimeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskTimeout)

	var slotErr *SlotError
	require.True(t, errors.As(err, &slotErr))
	assert.Equal(t, 1, slotErr.Slot)
	assert.Equal(t, 1, slotErr.Peer)
	assert.Equal(t, "echo", slotErr.Phase)
}

func TestRunBoundsWaitByDefault(t *testing.T) {
	defer func(timeout time.Duration) { DefaultTaskTimeout = timeout }(DefaultTaskTimeout)
	DefaultTaskTimeout = 50 * time.Millisecond

	comms := communicator.NewLocal(2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The peer takes its task and exits without replying.
	go communicator.RecvTask(ctx, comms[0], 1)

	err := Run(ctx, comms[1], newEchoPhase(1, 1), Options{SendTimeout: time.Minute})
	assert.ErrorIs(t, err, ErrTaskTimeout)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestOptionsTaskTimeout(t *testing.T) {
	assert.Equal(t, DefaultTaskTimeout, Options{}.taskTimeout())
	assert.Equal(t, time.Duration(0), Options{TaskTimeout: -1}.taskTimeout())
	assert.Equal(t, 5*time.Second, Options{TaskTimeout: 5 * time.Second}.taskTimeout())
}

func TestRunTimesOutUnreachablePeer(t *testing.T) {
	comms := communicator.NewLocal(2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Nobody receives on rank 0; fill its mailbox so that the next Send blocks.
	for {
		sctx, scancel := context.WithTimeout(ctx, 10*time.Millisecond)
		err := communicator.SendTask(sctx, comms[1], 0, 0)
		scancel()
		if err != nil {
			break
		}
	}

	err := Run(ctx, comms[1], newEchoPhase(1, 100), Options{SendTimeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunStopsOnConsumeError(t *testing.T) {
	comms := communicator.NewLocal(2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The peer replies with a vector that does not match the task.
	go func() {
		for {
			task, err := communicator.RecvTask(ctx, comms[0], 1)
			if err != nil || task == 3 {
				return
			}
			communicator.SendResult(ctx, comms[0], 1, []float64{-1})
		}
	}()

	err := Run(ctx, comms[1], newEchoPhase(1, 3), Options{})
	var slotErr *SlotError
	require.True(t, errors.As(err, &slotErr))
	assert.Equal(t, 0, slotErr.Task)
}

func TestRunHonorsContext(t *testing.T) {
	comms := communicator.NewLocal(2)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		communicator.RecvTask(context.Background(), comms[0], 1)
		cancel()
	}()

	err := Run(ctx, comms[1], newEchoPhase(1, 1), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func seq(n int) []int {
	out := make([]int, 0, n)
	for len(out) < cap(out) {
		out = append(out, len(out))
	}
	return out
}

func BenchmarkRun(b *testing.B) {
	b.StopTimer()
	const (
		tasks = 1 << 8
		slots = 1 << 3
	)
	b.StartTimer()

	for step := 0; step < b.N; step++ {
		comms := communicator.NewLocal(slots + 1)
		ctx := context.Background()
		var wg sync.WaitGroup
		for rank := 0; rank < slots; rank++ {
			wg.Add(1)
			go func(rank int) {
				defer wg.Done()
				peer(ctx, comms[rank], slots, tasks, 0, nil)
			}(rank)
		}
		if err := Run(ctx, comms[slots], newEchoPhase(slots, tasks), Options{}); err != nil {
			b.Fatal(err)
		}
		wg.Wait()
	}
}
