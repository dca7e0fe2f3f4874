package main

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DiscoveryStatus is the orchestrator state exposed to observers.
type DiscoveryStatus string

const (
	StatusIdle    DiscoveryStatus = "idle"
	StatusLoading DiscoveryStatus = "loading"
	StatusSuccess DiscoveryStatus = "success"
	StatusError   DiscoveryStatus = "error"
)

// DiscoverySnapshot is an immutable view of a discovery session published to
// subscribers. Observers never see partial mutations.
type DiscoverySnapshot struct {
	Status    DiscoveryStatus `json:"status"`
	Loading   bool            `json:"loading"`
	Matches   []MatchResult   `json:"matches"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DiscoveryService owns one discovery session per subject and the store
// subscription that invalidates them. Construct once at process start and
// pass by reference; there is no package-level instance.
type DiscoveryService struct {
	store CandidateStore
	cfg   MatchConfig

	mu        sync.Mutex
	sessions  map[string]*DiscoverySession
	storeStop func()
	pumpDone  chan struct{}
}

func NewDiscoveryService(store CandidateStore, cfg MatchConfig) *DiscoveryService {
	return &DiscoveryService{
		store:    store,
		cfg:      cfg,
		sessions: make(map[string]*DiscoverySession),
	}
}

// Start opens the store's change subscription and funnels every profile
// change into the per-session debounce gates. Safe to skip in tests that
// drive sessions directly.
func (s *DiscoveryService) Start(ctx context.Context) error {
	events, cancel, err := s.store.Subscribe(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.storeStop = cancel
	s.pumpDone = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.pumpDone)
		for range events {
			s.mu.Lock()
			active := make([]*DiscoverySession, 0, len(s.sessions))
			for _, sess := range s.sessions {
				active = append(active, sess)
			}
			s.mu.Unlock()
			for _, sess := range active {
				sess.NotifyLocationChanged()
			}
		}
	}()
	return nil
}

// Close tears down the store subscription. Session tickers stop on their own
// when the last observer unsubscribes.
func (s *DiscoveryService) Close() {
	s.mu.Lock()
	stop := s.storeStop
	done := s.pumpDone
	s.storeStop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	if done != nil {
		<-done
	}
}

// Session returns the discovery session for a subject, creating it on first
// use.
func (s *DiscoveryService) Session(subjectID string) *DiscoverySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[subjectID]
	if !ok {
		sess = &DiscoverySession{
			svc:         s,
			subjectID:   subjectID,
			status:      StatusIdle,
			subscribers: make(map[chan DiscoverySnapshot]bool),
		}
		s.sessions[subjectID] = sess
	}
	return sess
}

// Discover runs the pipeline once, synchronously, without touching session
// state. Used by the stateless HTTP surface.
func (s *DiscoveryService) Discover(ctx context.Context, subjectID string) ([]MatchResult, error) {
	return runPipeline(ctx, s.store, subjectID, s.cfg)
}

// runPipeline is the end-to-end discovery computation: load subject,
// retrieve candidates, score them in parallel, aggregate.
func runPipeline(ctx context.Context, store CandidateStore, subjectID string, cfg MatchConfig) ([]MatchResult, error) {
	if subjectID == "" {
		return nil, ErrNotAuthenticated
	}
	subject, err := store.GetUser(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, &RetrievalError{Cause: err}
	}
	if subject.Location == nil {
		return nil, ErrLocationUnavailable
	}

	candidates, err := retrieveCandidates(ctx, store, subject, cfg)
	if err != nil {
		return nil, err
	}

	// Scoring is pure per candidate, so fan it out
	results := make([]MatchResult, len(candidates))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			results[i] = scoreCandidate(subject, cand, cfg)
			return nil
		})
	}
	_ = g.Wait()

	return aggregateMatches(results, cfg), nil
}

// DiscoverySession is the observable state machine for one subject:
// idle -> loading -> success | error, with success/error re-entering loading
// on refresh. All mutations happen under one mutex; observers receive
// consistent snapshots over buffered channels.
type DiscoverySession struct {
	svc       *DiscoveryService
	subjectID string

	mu        sync.Mutex
	status    DiscoveryStatus
	matches   []MatchResult
	errMsg    string
	updatedAt time.Time

	running  bool // a pipeline run is in flight
	runAgain bool // a trigger arrived mid-run; refresh once it completes
	epoch    int  // bumped by Clear so a stale run can't publish

	cooldown      *time.Timer // location-change debounce window
	refreshQueued bool        // single-slot pending request

	subscribers map[chan DiscoverySnapshot]bool
	tickerStop  chan struct{}
}

// RequestDiscovery transitions the session to loading and runs the pipeline
// in the background. If a run is already in flight the request is queued as
// "refresh again once the current run completes" rather than cancelling it.
func (d *DiscoverySession) RequestDiscovery() {
	d.mu.Lock()
	if d.running {
		d.runAgain = true
		d.mu.Unlock()
		return
	}
	d.running = true
	d.status = StatusLoading
	d.errMsg = ""
	d.updatedAt = time.Now()
	epoch := d.epoch
	d.publishLocked()
	d.mu.Unlock()

	go d.run(epoch)
}

func (d *DiscoverySession) run(epoch int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	matches, err := runPipeline(ctx, d.svc.store, d.subjectID, d.svc.cfg)

	d.mu.Lock()
	d.running = false
	again := d.runAgain
	d.runAgain = false
	if epoch != d.epoch {
		// Cleared while running; discard the stale result
		d.mu.Unlock()
		return
	}
	if err != nil {
		// Stale-but-valid results beat a blanked screen: the previously
		// published list stays as it was
		d.status = StatusError
		d.errMsg = userMessage(err)
		log.Printf("discovery failed for subject %s: %v", d.subjectID, err)
	} else {
		d.status = StatusSuccess
		d.errMsg = ""
		d.matches = matches
	}
	d.updatedAt = time.Now()
	d.publishLocked()
	d.mu.Unlock()

	if again {
		d.RequestDiscovery()
	}
}

// NotifyLocationChanged coalesces rapid location updates: the first trigger
// arms a cooldown timer and sets the pending flag; triggers arriving while
// the cooldown is active only re-set the flag. One discovery run fires when
// the cooldown expires.
func (d *DiscoverySession) NotifyLocationChanged() {
	d.mu.Lock()
	d.refreshQueued = true
	if d.cooldown == nil {
		d.cooldown = time.AfterFunc(d.svc.cfg.DebounceInterval, d.debounceExpired)
	}
	d.mu.Unlock()
}

func (d *DiscoverySession) debounceExpired() {
	d.mu.Lock()
	d.cooldown = nil
	queued := d.refreshQueued
	d.refreshQueued = false
	d.mu.Unlock()
	if queued {
		d.RequestDiscovery()
	}
}

// periodicTick re-invokes discovery unless a run is already in flight, in
// which case the tick is dropped.
func (d *DiscoverySession) periodicTick() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	d.RequestDiscovery()
}

// Clear discards results and returns the session to idle. An in-flight run
// finishes but its result is dropped.
func (d *DiscoverySession) Clear() {
	d.mu.Lock()
	d.status = StatusIdle
	d.matches = nil
	d.errMsg = ""
	d.refreshQueued = false
	d.runAgain = false
	d.epoch++
	if d.cooldown != nil {
		d.cooldown.Stop()
		d.cooldown = nil
	}
	d.updatedAt = time.Now()
	d.publishLocked()
	d.mu.Unlock()
}

// Snapshot returns the current observable state.
func (d *DiscoverySession) Snapshot() DiscoverySnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Subscribe registers an observer. The current snapshot is delivered
// immediately, then every state change. The periodic refresh ticker runs
// while at least one observer is subscribed. The returned cleanup func
// unsubscribes and closes the channel.
func (d *DiscoverySession) Subscribe() (<-chan DiscoverySnapshot, func()) {
	d.mu.Lock()
	ch := make(chan DiscoverySnapshot, 10) // Buffered channel to prevent blocking
	d.subscribers[ch] = true
	ch <- d.snapshotLocked()
	if len(d.subscribers) == 1 {
		d.startTickerLocked()
	}
	d.mu.Unlock()

	cleanup := func() {
		d.mu.Lock()
		if _, ok := d.subscribers[ch]; ok {
			delete(d.subscribers, ch)
			close(ch)
			if len(d.subscribers) == 0 {
				d.stopTickerLocked()
			}
		}
		d.mu.Unlock()
	}
	return ch, cleanup
}

func (d *DiscoverySession) startTickerLocked() {
	stop := make(chan struct{})
	d.tickerStop = stop
	interval := d.svc.cfg.RefreshInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.periodicTick()
			case <-stop:
				return
			}
		}
	}()
}

func (d *DiscoverySession) stopTickerLocked() {
	if d.tickerStop != nil {
		close(d.tickerStop)
		d.tickerStop = nil
	}
}

func (d *DiscoverySession) snapshotLocked() DiscoverySnapshot {
	matches := make([]MatchResult, len(d.matches))
	copy(matches, d.matches)
	return DiscoverySnapshot{
		Status:    d.status,
		Loading:   d.status == StatusLoading,
		Matches:   matches,
		Error:     d.errMsg,
		UpdatedAt: d.updatedAt,
	}
}

func (d *DiscoverySession) publishLocked() {
	snap := d.snapshotLocked()
	for ch := range d.subscribers {
		select {
		case ch <- snap:
		default:
			// Subscriber is behind, skip it
		}
	}
}
