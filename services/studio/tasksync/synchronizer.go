// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tasksync reconciles generation-task status from a push channel
// and a polling fallback into one consistent view.
//
// # Description
//
// A Synchronizer owns one Subscription per tracked task. Each subscription
// runs a push loop (websocket frames from the provider) and a poll loop
// (fixed-interval status reads) concurrently. Both write into a shared task
// slot; consistency rests on the rank-ordered reconciliation rule in
// taskSlot.apply, which makes the two sources commutative and idempotent —
// no lock ordering is needed between them.
//
// Each subscription carries a monotonically increasing token. Unsubscribing
// invalidates the token; in-flight frames or poll responses holding a stale
// token are dropped on arrival, and the poll timer stops immediately.
//
// # Thread Safety
//
// Synchronizer and Subscription are safe for concurrent use.
package tasksync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// StatusFetcher is the poll source: a single status read for one task.
type StatusFetcher interface {
	TaskStatus(ctx context.Context, taskID string) (TaskUpdate, error)
}

// PushStream is one live push connection to the provider.
type PushStream interface {
	// Subscribe registers interest in a task on this connection.
	Subscribe(ctx context.Context, taskID string) error

	// Next blocks until the next frame arrives or the stream breaks.
	Next(ctx context.Context) (TaskUpdate, error)

	// Close tears the connection down.
	Close() error
}

// StreamDialer opens push connections. Each (re)connect dials a fresh
// stream and re-subscribes with the current task id.
type StreamDialer interface {
	Dial(ctx context.Context) (PushStream, error)
}

// Hooks are optional callbacks for observability. Nil fields are skipped.
// Hooks must not block; they run on the update delivery path.
type Hooks struct {
	// OnApplied fires after an update changes the reconciled state.
	OnApplied func(u TaskUpdate, task GenerationTask)

	// OnDropped fires when the reconciliation rule discards an update.
	OnDropped func(u TaskUpdate, reason DropReason)

	// OnReconnect fires before each redial attempt (1-based).
	OnReconnect func(taskID string, attempt int)

	// OnConnState fires on every push-channel state transition.
	OnConnState func(taskID string, state ConnState)

	// OnTimeout fires when the watchdog window elapses without a terminal
	// status. The subscription stays open.
	OnTimeout func(taskID string)
}

// Config configures a Synchronizer.
type Config struct {
	// Fetcher is the poll source. Required.
	Fetcher StatusFetcher

	// Dialer is the push source. Optional: when nil the synchronizer runs
	// in poll-only mode and the connection state stays disconnected.
	Dialer StreamDialer

	// PollInterval is the poll cadence. Default: 5s
	PollInterval time.Duration

	// PollCrossCheck keeps the poller running as a redundant cross-check
	// even while the push channel is connected. Default: false
	PollCrossCheck bool

	// TerminalTimeout is the watchdog window: if no terminal status lands
	// within it, OnTimeout fires and the subscription's Timeout channel
	// closes, but the subscription stays open for a late terminal update.
	// Default: 90s
	TerminalTimeout time.Duration

	// TerminalLinger is how long a terminal task's snapshot stays readable
	// after both source loops stop. When it elapses the subscription is
	// retired: its registry entry is dropped and the task id can be
	// subscribed again. Default: 2m
	TerminalLinger time.Duration

	// PollFetchTimeout bounds a single poll request. Default: 10s
	PollFetchTimeout time.Duration

	// Reconnect configures push-channel backoff.
	Reconnect ReconnectConfig

	// JournalSize is the per-subscription applied-update history.
	// Default: 64
	JournalSize int

	// PollPacer is an optional courtesy limiter for outbound poll requests,
	// shared across subscriptions. This is local pacing, not provider quota.
	PollPacer *rate.Limiter

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Hooks are optional observability callbacks.
	Hooks Hooks
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.TerminalTimeout <= 0 {
		c.TerminalTimeout = 90 * time.Second
	}
	if c.TerminalLinger <= 0 {
		c.TerminalLinger = 2 * time.Minute
	}
	if c.PollFetchTimeout <= 0 {
		c.PollFetchTimeout = 10 * time.Second
	}
	if c.Reconnect == (ReconnectConfig{}) {
		c.Reconnect = DefaultReconnectConfig()
	}
	if c.JournalSize <= 0 {
		c.JournalSize = 64
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Synchronizer tracks generation tasks across push and poll sources.
type Synchronizer struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	subs      map[string]*Subscription
	nextToken atomic.Uint64
}

// New creates a Synchronizer.
func New(cfg Config) (*Synchronizer, error) {
	if cfg.Fetcher == nil {
		return nil, ErrInvalidConfig
	}
	cfg.applyDefaults()
	if err := cfg.Reconnect.Validate(); err != nil {
		return nil, err
	}
	return &Synchronizer{
		cfg:    cfg,
		logger: cfg.Logger,
		subs:   make(map[string]*Subscription),
	}, nil
}

// Subscription is the live tracking state for one task.
type Subscription struct {
	taskID string
	token  uint64

	s       *Synchronizer
	slot    *taskSlot
	journal *Journal

	ctx    context.Context
	cancel context.CancelFunc

	connState   atomic.Int32
	reconnectCh chan struct{}

	timedOut  atomic.Bool
	timeoutCh chan struct{}
	watchdog  *time.Timer

	listenerMu sync.RWMutex
	listeners  map[string]func(GenerationTask)

	done     chan struct{}
	pushDone chan struct{}
	pollDone chan struct{}
}

// Subscribe starts tracking a task. The initial state is queued at 0%.
//
// Inputs:
//   - ctx: bounds the whole subscription lifetime. Cancelling it is
//     equivalent to Unsubscribe.
//   - taskID: the provider task id. Must be non-empty and not already
//     subscribed.
func (s *Synchronizer) Subscribe(ctx context.Context, taskID string) (*Subscription, error) {
	if taskID == "" {
		return nil, ErrInvalidConfig
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[taskID]; ok {
		return nil, ErrAlreadySubscribed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		taskID:      taskID,
		token:       s.nextToken.Add(1),
		s:           s,
		slot:        newTaskSlot(taskID),
		journal:     NewJournal(s.cfg.JournalSize),
		ctx:         subCtx,
		cancel:      cancel,
		reconnectCh: make(chan struct{}, 1),
		timeoutCh:   make(chan struct{}),
		listeners:   make(map[string]func(GenerationTask)),
		done:        make(chan struct{}),
		pushDone:    make(chan struct{}),
		pollDone:    make(chan struct{}),
	}
	s.subs[taskID] = sub

	sub.watchdog = time.AfterFunc(s.cfg.TerminalTimeout, sub.fireTimeout)

	if s.cfg.Dialer != nil {
		go sub.runPush()
	} else {
		close(sub.pushDone)
	}
	go sub.runPoll()
	go sub.watchLifecycle()

	s.logger.Info("subscribed to generation task",
		"task_id", taskID, "token", sub.token)
	return sub, nil
}

// Unsubscribe stops tracking a task: the token is invalidated, timers stop,
// and any in-flight update for the old token is dropped on arrival.
func (s *Synchronizer) Unsubscribe(taskID string) error {
	s.mu.Lock()
	sub, ok := s.subs[taskID]
	if ok {
		delete(s.subs, taskID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotSubscribed
	}
	sub.watchdog.Stop()
	sub.cancel()
	s.logger.Info("unsubscribed from generation task",
		"task_id", taskID, "token", sub.token)
	return nil
}

// Task returns the reconciled snapshot for a subscribed task.
func (s *Synchronizer) Task(taskID string) (GenerationTask, error) {
	s.mu.Lock()
	sub, ok := s.subs[taskID]
	s.mu.Unlock()

	if !ok {
		return GenerationTask{}, ErrNotSubscribed
	}
	return sub.slot.snapshot(), nil
}

// Subscription returns the live subscription for a task id.
func (s *Synchronizer) Subscription(taskID string) (*Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[taskID]
	return sub, ok
}

// Close unsubscribes every live task and waits for their loops to stop.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for id, sub := range s.subs {
		subs = append(subs, sub)
		delete(s.subs, id)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.watchdog.Stop()
		sub.cancel()
	}
	for _, sub := range subs {
		<-sub.done
	}
}

// remove drops a subscription from the registry if it is still the
// registered one for its task id, stopping its timers. Idempotent with
// Unsubscribe and safe against a newer subscription under the same id.
func (s *Synchronizer) remove(sub *Subscription) {
	s.mu.Lock()
	cur, ok := s.subs[sub.taskID]
	if ok && cur == sub {
		delete(s.subs, sub.taskID)
	}
	s.mu.Unlock()

	if !ok || cur != sub {
		return
	}
	sub.watchdog.Stop()
	sub.cancel()
	s.logger.Info("retired generation task subscription",
		"task_id", sub.taskID, "token", sub.token)
}

// tokenValid reports whether token is still the current one for taskID.
func (s *Synchronizer) tokenValid(taskID string, token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[taskID]
	return ok && sub.token == token
}

// deliver applies one incoming update under the token and rank rules.
func (s *Synchronizer) deliver(sub *Subscription, token uint64, u TaskUpdate) {
	if !s.tokenValid(sub.taskID, token) {
		s.logger.Debug("dropping update for invalidated subscription token",
			"task_id", u.TaskID, "token", token, "source", u.Source)
		return
	}

	applied, reason := sub.slot.apply(u)
	if !applied {
		s.logger.Debug("reconciliation dropped update",
			"task_id", u.TaskID, "status", u.Status, "progress", u.Progress,
			"source", u.Source, "reason", string(reason))
		if s.cfg.Hooks.OnDropped != nil {
			s.cfg.Hooks.OnDropped(u, reason)
		}
		return
	}

	sub.journal.Push(u)
	snap := sub.slot.snapshot()
	s.logger.Debug("applied task update",
		"task_id", u.TaskID, "status", snap.Status, "progress", snap.Progress,
		"source", u.Source)
	if s.cfg.Hooks.OnApplied != nil {
		s.cfg.Hooks.OnApplied(u, snap)
	}
	sub.notify(snap)
}

// =============================================================================
// Subscription
// =============================================================================

// TaskID returns the tracked task id.
func (sub *Subscription) TaskID() string {
	return sub.taskID
}

// Token returns the subscription's cancellation token.
func (sub *Subscription) Token() uint64 {
	return sub.token
}

// Task returns the current reconciled snapshot.
func (sub *Subscription) Task() GenerationTask {
	return sub.slot.snapshot()
}

// Journal returns the recent applied updates, oldest first.
func (sub *Subscription) Journal() []TaskUpdate {
	return sub.journal.Items()
}

// ConnState returns the push channel's current state.
func (sub *Subscription) ConnState() ConnState {
	return ConnState(sub.connState.Load())
}

// Timeout returns a channel closed when the watchdog window elapses
// without a terminal status. The subscription itself stays open.
func (sub *Subscription) Timeout() <-chan struct{} {
	return sub.timeoutCh
}

// TimedOut reports whether the watchdog has fired.
func (sub *Subscription) TimedOut() bool {
	return sub.timedOut.Load()
}

// Done returns a channel closed once both source loops have stopped.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Listen registers a callback invoked with the reconciled snapshot after
// every applied update.
//
// Outputs:
//
//	string - Listener id for Unlisten.
func (sub *Subscription) Listen(fn func(GenerationTask)) string {
	sub.listenerMu.Lock()
	defer sub.listenerMu.Unlock()

	id := uuid.NewString()
	sub.listeners[id] = fn
	return id
}

// Unlisten removes a listener.
func (sub *Subscription) Unlisten(id string) bool {
	sub.listenerMu.Lock()
	defer sub.listenerMu.Unlock()

	if _, ok := sub.listeners[id]; ok {
		delete(sub.listeners, id)
		return true
	}
	return false
}

func (sub *Subscription) notify(task GenerationTask) {
	sub.listenerMu.RLock()
	fns := make([]func(GenerationTask), 0, len(sub.listeners))
	for _, fn := range sub.listeners {
		fns = append(fns, fn)
	}
	sub.listenerMu.RUnlock()

	for _, fn := range fns {
		fn(task)
	}
}

// Reconnect manually re-enters the connecting state after the reconnect
// attempt cap was exhausted. It is the only way out of ConnFailed.
func (sub *Subscription) Reconnect() error {
	if sub.ConnState() != ConnFailed {
		return ErrNotFailed
	}
	select {
	case sub.reconnectCh <- struct{}{}:
	default:
	}
	return nil
}

func (sub *Subscription) fireTimeout() {
	if sub.slot.terminal() {
		return
	}
	if sub.timedOut.CompareAndSwap(false, true) {
		close(sub.timeoutCh)
		sub.s.logger.Warn("no terminal status within the watchdog window",
			"task_id", sub.taskID, "window", sub.s.cfg.TerminalTimeout)
		if sub.s.cfg.Hooks.OnTimeout != nil {
			sub.s.cfg.Hooks.OnTimeout(sub.taskID)
		}
	}
}

func (sub *Subscription) setConnState(state ConnState) {
	old := ConnState(sub.connState.Swap(int32(state)))
	if old == state {
		return
	}
	sub.s.logger.Debug("push channel state changed",
		"task_id", sub.taskID, "from", old.String(), "to", state.String())
	if sub.s.cfg.Hooks.OnConnState != nil {
		sub.s.cfg.Hooks.OnConnState(sub.taskID, state)
	}
}

// watchLifecycle closes Done once both source loops stop, then retires
// the subscription: immediately when the lifetime context died, or after
// the linger window when the loops stopped on a terminal status, so the
// snapshot stays readable for a while and the registry never leaks.
func (sub *Subscription) watchLifecycle() {
	<-sub.pushDone
	<-sub.pollDone
	close(sub.done)

	if sub.ctx.Err() != nil {
		sub.s.remove(sub)
		return
	}

	select {
	case <-sub.ctx.Done():
	case <-time.After(sub.s.cfg.TerminalLinger):
	}
	sub.s.remove(sub)
}

// runPush owns the push channel: dial, subscribe, read frames, and redial
// with capped exponential backoff on unexpected drops.
func (sub *Subscription) runPush() {
	defer close(sub.pushDone)

	cfg := sub.s.cfg
	token := sub.token
	attempt := 0
	first := true

	for {
		if sub.ctx.Err() != nil || sub.slot.terminal() {
			sub.setConnState(ConnDisconnected)
			return
		}

		if first {
			sub.setConnState(ConnConnecting)
		} else {
			sub.setConnState(ConnReconnecting)
		}

		stream, err := cfg.Dialer.Dial(sub.ctx)
		if err == nil {
			err = stream.Subscribe(sub.ctx, sub.taskID)
			if err != nil {
				_ = stream.Close()
			}
		}
		if err != nil {
			if sub.ctx.Err() != nil {
				sub.setConnState(ConnDisconnected)
				return
			}
			attempt++
			first = false
			if attempt >= cfg.Reconnect.MaxAttempts {
				sub.s.logger.Error("push channel reconnect attempts exhausted",
					"task_id", sub.taskID, "attempts", attempt, "error", err)
				sub.setConnState(ConnFailed)
				select {
				case <-sub.ctx.Done():
					sub.setConnState(ConnDisconnected)
					return
				case <-sub.reconnectCh:
					attempt = 0
					continue
				}
			}
			wait := cfg.Reconnect.backoffFor(attempt - 1)
			sub.s.logger.Warn("push channel dial failed, backing off",
				"task_id", sub.taskID, "attempt", attempt, "backoff", wait, "error", err)
			if cfg.Hooks.OnReconnect != nil {
				cfg.Hooks.OnReconnect(sub.taskID, attempt)
			}
			select {
			case <-sub.ctx.Done():
				sub.setConnState(ConnDisconnected)
				return
			case <-time.After(wait):
			}
			continue
		}

		sub.setConnState(ConnConnected)
		attempt = 0
		first = false

		for {
			u, err := stream.Next(sub.ctx)
			if err != nil {
				_ = stream.Close()
				if sub.ctx.Err() != nil {
					sub.setConnState(ConnDisconnected)
					return
				}
				sub.s.logger.Warn("push channel dropped",
					"task_id", sub.taskID, "error", err)
				break
			}
			u.Source = SourcePush
			if u.ReceivedAt.IsZero() {
				u.ReceivedAt = time.Now().UTC()
			}
			sub.s.deliver(sub, token, u)

			// Once terminal, no further frame can change the slot.
			if sub.slot.terminal() {
				_ = stream.Close()
				sub.setConnState(ConnDisconnected)
				return
			}
		}
	}
}

// runPoll issues fixed-interval status reads. It is the fallback while the
// push channel is down and, when PollCrossCheck is set, a redundant
// cross-check while connected.
func (sub *Subscription) runPoll() {
	defer close(sub.pollDone)

	cfg := sub.s.cfg
	token := sub.token

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.ctx.Done():
			return
		case <-ticker.C:
		}

		if sub.slot.terminal() {
			return
		}
		if sub.ConnState() == ConnConnected && !cfg.PollCrossCheck {
			continue
		}
		if cfg.PollPacer != nil {
			if err := cfg.PollPacer.Wait(sub.ctx); err != nil {
				return
			}
		}

		fetchCtx, cancel := context.WithTimeout(sub.ctx, cfg.PollFetchTimeout)
		u, err := cfg.Fetcher.TaskStatus(fetchCtx, sub.taskID)
		cancel()
		if err != nil {
			if sub.ctx.Err() != nil {
				return
			}
			sub.s.logger.Warn("status poll failed",
				"task_id", sub.taskID, "error", err)
			continue
		}
		u.Source = SourcePoll
		if u.ReceivedAt.IsZero() {
			u.ReceivedAt = time.Now().UTC()
		}
		sub.s.deliver(sub, token, u)
	}
}
