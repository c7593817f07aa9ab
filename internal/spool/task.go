package spool

import (
	"context"
	"log/slog"

	"go.klb.dev/uniclipboard/internal/ids"
)

// Request carries raw representation bytes into the spooler.
type Request struct {
	RepresentationID ids.RepresentationId
	Bytes            []byte
}

// Spooler owns the bounded ingestion channel, the in-memory Cache, the
// on-disk Manager, and a bounded worker-notification channel. Grounded on
// the original implementation's SpoolerTask (spooler_task.rs): on disk
// write success the cache entry is marked Completed and the
// materialization worker is notified; on failure the entry reverts to
// Pending and the request is dropped: nothing re-queues it, so the disk
// write is not retried.
type Spooler struct {
	requests chan Request
	notify   chan ids.RepresentationId
	cache    *Cache
	manager  *Manager
}

// NewSpooler wires a Spooler with a request channel of the given
// capacity and a worker-notification channel of the given capacity,
// matching spec.md §4.9's "bounded queue, visible backpressure" model.
func NewSpooler(cache *Cache, manager *Manager, requestCapacity, notifyCapacity int) *Spooler {
	return &Spooler{
		requests: make(chan Request, requestCapacity),
		notify:   make(chan ids.RepresentationId, notifyCapacity),
		cache:    cache,
		manager:  manager,
	}
}

// Notifications exposes the worker-notification channel for the
// materialization worker to consume.
func (s *Spooler) Notifications() <-chan ids.RepresentationId {
	return s.notify
}

// Requests exposes the ingestion channel. Intended for tests that
// exercise Enqueue without running the Spooler loop; production callers
// should use Run.
func (s *Spooler) Requests() <-chan Request {
	return s.requests
}

// Enqueue stages bytes into the in-memory cache and attempts to hand them
// to the spooler loop without blocking. Returns ErrFull if the ingestion
// channel is saturated; the caller (the capture path) must drop the
// representation rather than block the platform clipboard observer.
func (s *Spooler) Enqueue(repID ids.RepresentationId, bytes []byte) error {
	s.cache.Put(repID, bytes)
	select {
	case s.requests <- Request{RepresentationID: repID, Bytes: bytes}:
		return nil
	default:
		return ErrFull
	}
}

// Run drains the ingestion channel until ctx is cancelled or the channel
// is closed, writing each request to disk and updating cache status.
// A full notify channel does not block this loop: handle drops the
// notification rather than wait for room. That drop does not lose
// correctness because materializer.Worker periodically rescans for
// Staged representations on its own timer rather than relying solely on
// this channel (spec.md §4.9).
func (s *Spooler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-s.requests:
			if !ok {
				return
			}
			s.handle(req)
		}
	}
}

func (s *Spooler) handle(req Request) {
	s.cache.MarkSpooling(req.RepresentationID)
	if err := s.manager.Write(req.RepresentationID, req.Bytes); err != nil {
		slog.Error("spool write failed", "representation_id", string(req.RepresentationID), "error", err)
		s.cache.MarkPending(req.RepresentationID)
		return
	}
	s.cache.MarkCompleted(req.RepresentationID)
	slog.Debug("spool write completed", "representation_id", string(req.RepresentationID))

	select {
	case s.notify <- req.RepresentationID:
	default:
		slog.Warn("worker notification channel full, dropping notification", "representation_id", string(req.RepresentationID))
	}
}
