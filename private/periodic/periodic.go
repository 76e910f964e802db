// Copyright 2026 Interledger Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package periodic provides a mechanism to run a task periodically. Each
// runner owns a single goroutine; runs never overlap, a tick that fires
// while the previous run is still executing is skipped by the ticker.
package periodic

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/interledger/connector/pkg/log"
	"github.com/interledger/connector/pkg/metrics"
)

// Event strings for the metrics.
const (
	// EventStop indicates a stop event took place.
	EventStop = "stop"
	// EventKill indicates a kill event took place.
	EventKill = "kill"
	// EventTrigger indicates a trigger event took place.
	EventTrigger = "triggered"
)

// Task is a function that has to be run periodically.
type Task interface {
	// Run executes the task once. It should return within the lifetime of the
	// passed context.
	Run(context.Context)
	// Name returns the tasks name, which is used in logging and metrics.
	Name() string
}

// Metrics for the periodic runner.
type Metrics struct {
	// Events is a counter constructor keyed by event type.
	Events func(eventType string) metrics.Counter
	// Runtime observes the duration of single task runs.
	Runtime metrics.Gauge
	// Period reports the configured period.
	Period metrics.Gauge
}

func (m *Metrics) event(eventType string) {
	if m == nil || m.Events == nil {
		return
	}
	metrics.CounterInc(m.Events(eventType))
}

// Runner runs a task periodically.
type Runner struct {
	task         Task
	ticker       *time.Ticker
	timeout      time.Duration
	stop         chan struct{}
	loopFinished chan struct{}
	ctx          context.Context
	cancelF      context.CancelFunc
	trigger      chan struct{}
	metrics      *Metrics
	// running guards against overlapping runs when TriggerRun races a tick.
	running atomic.Bool
}

// Start creates and starts a new Runner to run the given task peridiocally.
// The timeout bounds the runtime of a single task invocation.
func Start(task Task, period, timeout time.Duration) *Runner {
	return StartWithMetrics(task, nil, period, timeout)
}

// StartWithMetrics is like Start, and records runner events on the given
// metrics.
func StartWithMetrics(task Task, m *Metrics, period, timeout time.Duration) *Runner {
	ctx, cancelF := context.WithCancel(context.Background())
	logger := log.New("debug_id", task.Name())
	ctx = log.CtxWith(ctx, logger)
	r := &Runner{
		task:         task,
		ticker:       time.NewTicker(period),
		timeout:      timeout,
		stop:         make(chan struct{}),
		loopFinished: make(chan struct{}),
		ctx:          ctx,
		cancelF:      cancelF,
		trigger:      make(chan struct{}, 1),
		metrics:      m,
	}
	if m != nil {
		metrics.GaugeSet(m.Period, period.Seconds())
	}
	go func() {
		defer log.HandlePanic()
		r.runLoop()
	}()
	return r
}

// Stop stops the periodic execution of the Runner. If the task is currently
// running, this method will block until it is done.
func (r *Runner) Stop() {
	r.ticker.Stop()
	close(r.stop)
	<-r.loopFinished
	r.metrics.event(EventStop)
}

// Kill is like Stop, but it also cancels the context of the current running
// method.
func (r *Runner) Kill() {
	if r == nil {
		return
	}
	r.ticker.Stop()
	r.cancelF()
	close(r.stop)
	<-r.loopFinished
	r.metrics.event(EventKill)
}

// TriggerRun triggers the periodic task to run now. This does not impact the
// normal periodicity of this task. If the task is currently running, the
// trigger is absorbed into that run and no additional one is scheduled.
func (r *Runner) TriggerRun() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
	r.metrics.event(EventTrigger)
}

func (r *Runner) runLoop() {
	defer close(r.loopFinished)
	for {
		select {
		case <-r.stop:
			return
		case <-r.ctx.Done():
			return
		case <-r.ticker.C:
			r.onTick()
		case <-r.trigger:
			r.onTick()
		}
	}
}

func (r *Runner) onTick() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	defer r.running.Store(false)
	start := time.Now()
	ctx, cancelF := context.WithTimeout(r.ctx, r.timeout)
	defer cancelF()
	r.task.Run(ctx)
	if r.metrics != nil {
		metrics.GaugeSet(r.metrics.Runtime, time.Since(start).Seconds())
	}
}
