// Package eventstore provides a per-stream ordered event log with stable,
// resumable event ids. The reference implementation is in-memory, per the
// Non-goal on durable event storage; its Store interface is shaped so a
// durable backend could satisfy the same contract.
package eventstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cordialrun/agentrt/pkg/models"
)

// ErrUnknownStream is returned by operations on a stream id the store has
// never seen (or has since evicted).
var ErrUnknownStream = errors.New("eventstore: unknown stream")

// ErrStreamClosed is returned by Append when the stream is already complete
// or failed.
var ErrStreamClosed = errors.New("eventstore: stream is complete or failed")

// record is a single stream's event log plus lifecycle bookkeeping.
type record struct {
	mu         sync.Mutex
	events     []models.StreamEvent
	status     models.StreamStatus
	failReason string
	createdAt  time.Time
	lastTouch  time.Time
	nextID     uint64
}

// Store is an in-memory, goroutine-safe Event Store.
type Store struct {
	mu      sync.RWMutex
	streams map[string]*record

	ttl time.Duration

	stopOnce  sync.Once
	sweepOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a Store whose streams are evicted after ttl seconds of
// inactivity. A non-positive ttl disables the sweeper.
func New(ttl time.Duration) *Store {
	return &Store{
		streams: make(map[string]*record),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// NewStreamID returns a fresh, collision-resistant stream id for callers
// that do not supply their own.
func NewStreamID() string {
	return uuid.NewString()
}

func (s *Store) getOrCreate(streamID string) *record {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.streams[streamID]
	if !ok {
		r = &record{status: models.StreamRunning, createdAt: time.Now(), lastTouch: time.Now()}
		s.streams[streamID] = r
	}
	return r
}

// Append atomically appends event to streamID, assigning a monotonic id if
// the event's ID is zero. It rejects the append if the stream is already
// complete or failed.
func (s *Store) Append(ctx context.Context, streamID string, event models.StreamEvent) (models.StreamEvent, error) {
	r := s.getOrCreate(streamID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == models.StreamComplete || r.status == models.StreamFailed {
		return models.StreamEvent{}, ErrStreamClosed
	}

	r.nextID++
	event.ID = r.nextID
	r.events = append(r.events, event)
	r.lastTouch = time.Now()
	return event, nil
}

// Read returns events with id > afterID, in order, up to maxCount (0 means
// unlimited). Reads are idempotent and never return an id already seen by
// the caller.
func (s *Store) Read(ctx context.Context, streamID string, afterID uint64, maxCount int) ([]models.StreamEvent, error) {
	s.mu.RLock()
	r, ok := s.streams[streamID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownStream
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastTouch = time.Now()

	var out []models.StreamEvent
	for _, e := range r.events {
		if e.ID <= afterID {
			continue
		}
		out = append(out, e)
		if maxCount > 0 && len(out) >= maxCount {
			break
		}
	}
	return out, nil
}

// Status returns the current lifecycle status of streamID, or
// models.StreamUnknown if the store has never seen it.
func (s *Store) Status(streamID string) models.StreamStatus {
	s.mu.RLock()
	r, ok := s.streams[streamID]
	s.mu.RUnlock()
	if !ok {
		return models.StreamUnknown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// MarkComplete marks streamID as complete; future Appends are rejected.
func (s *Store) MarkComplete(streamID string) error {
	r := s.getOrCreate(streamID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = models.StreamComplete
	r.lastTouch = time.Now()
	return nil
}

// MarkFailed marks streamID as failed with reason; future Appends are
// rejected.
func (s *Store) MarkFailed(streamID string, reason string) error {
	r := s.getOrCreate(streamID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = models.StreamFailed
	r.failReason = reason
	r.lastTouch = time.Now()
	return nil
}

// StartSweeper launches a background goroutine evicting streams untouched
// for the Store's TTL. Call Stop to terminate it. A no-op if ttl <= 0.
func (s *Store) StartSweeper(interval time.Duration) {
	s.sweepOnce.Do(func() {
		if s.ttl <= 0 || interval <= 0 {
			close(s.doneCh)
			return
		}
		go func() {
			defer close(s.doneCh)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-s.stopCh:
					return
				case <-ticker.C:
					s.sweep()
				}
			}
		}()
	})
}

func (s *Store) sweep() {
	cutoff := time.Now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.streams {
		r.mu.Lock()
		stale := r.lastTouch.Before(cutoff)
		r.mu.Unlock()
		if stale {
			delete(s.streams, id)
		}
	}
}

// Stop terminates the sweeper goroutine and waits for it to exit. Safe to
// call whether or not StartSweeper ever ran.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.sweepOnce.Do(func() { close(s.doneCh) })
	<-s.doneCh
}
