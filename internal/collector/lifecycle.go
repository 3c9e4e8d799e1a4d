// SPDX-License-Identifier: MPL-2.0

package collector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a Server.
type State int32

const (
	StateCreated State = iota
	StateStarting
	StateRunning
	// StateStopping drains requests already in flight.
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AcceptsReports reports whether a report arriving in state s may still be
// stored. Once the server has stopped or failed its report set is final,
// since the compilation database is built from it.
func (s State) AcceptsReports() bool {
	return s != StateStopped && s != StateFailed
}

// lifecycle tracks a server's state and its serving goroutines. A server is
// single-use: once stopped or failed, create a new one.
type lifecycle struct {
	state atomic.Int32

	// mu guards lastErr.
	mu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedCh chan struct{}
	errCh     chan error
	lastErr   error
}

func newLifecycle() *lifecycle {
	l := &lifecycle{
		startedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	l.state.Store(int32(StateCreated))
	return l
}

// State returns the current state.
func (l *lifecycle) State() State {
	return State(l.state.Load())
}

// IsRunning reports whether the server accepts requests.
func (l *lifecycle) IsRunning() bool {
	return l.State() == StateRunning
}

// Err returns a channel receiving serve errors after Start returned. It is
// closed once the server has stopped.
func (l *lifecycle) Err() <-chan error {
	return l.errCh
}

// LastError returns the error that moved the server to StateFailed.
func (l *lifecycle) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// WaitForReady blocks until the server runs or ctx is done.
func (l *lifecycle) WaitForReady(ctx context.Context) error {
	select {
	case <-l.startedCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for collector: %w", ctx.Err())
	}
}

// toStarting moves Created to Starting. A canceled ctx fails the server
// before anything is bound.
func (l *lifecycle) toStarting(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return l.toFailed(fmt.Errorf("context canceled before start: %w", ctx.Err()))
	default:
	}

	if !l.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start collector in state %s", l.State())
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	return nil
}

func (l *lifecycle) toRunning() {
	if l.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(l.startedCh)
	}
}

// toFailed records err, moves to Failed and returns err.
func (l *lifecycle) toFailed(err error) error {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()

	l.state.Store(int32(StateFailed))
	if l.cancel != nil {
		l.cancel()
	}
	l.sendError(err)
	return err
}

// toStopping reports whether the caller owns the shutdown. A server that
// never started goes straight to Stopped.
func (l *lifecycle) toStopping() bool {
	for {
		current := l.State()
		switch current {
		case StateCreated:
			if l.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if l.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				if l.cancel != nil {
					l.cancel()
				}
				return true
			}
		default:
			return false
		}
	}
}

// toStopped waits for serving goroutines and closes the error channel.
func (l *lifecycle) toStopped() {
	l.wg.Wait()
	l.state.Store(int32(StateStopped))
	close(l.errCh)
}

func (l *lifecycle) sendError(err error) {
	select {
	case l.errCh <- err:
	default:
	}
}
