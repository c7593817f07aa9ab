package materializer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.klb.dev/uniclipboard/internal/blobstore"
	"go.klb.dev/uniclipboard/internal/clipboard"
	"go.klb.dev/uniclipboard/internal/hashing"
	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/spool"
)

// RepresentationStore is the CAS surface the worker drives representations
// through; clipboard.Memory satisfies it.
type RepresentationStore interface {
	GetRepresentation(repID ids.RepresentationId) (*clipboard.Representation, bool)
	UpdateProcessingResult(repID ids.RepresentationId, expected []clipboard.PayloadState, newBlobID ids.BlobId, newState clipboard.PayloadState, lastError string) (clipboard.UpdateResult, error)
	ListStaged() []ids.RepresentationId
}

// rescanInterval is how often Run re-checks for Staged representations
// whose spool notification never arrived (dropped under backpressure, or
// the worker wasn't running yet when it was sent) — spec.md §4.9's "a
// full notify channel does not block or lose correctness" claim is only
// true because of this sweep, not by assumption.
const rescanInterval = 30 * time.Second

// Worker materializes staged representations into content-addressed
// blobs, driven by spool notifications (spec.md §4.9).
type Worker struct {
	notifications <-chan ids.RepresentationId
	manager       *spool.Manager
	cache         *spool.Cache
	reps          RepresentationStore
	blobs         blobstore.Store
	blobRepo      BlobRepository
	nowMs         func() int64
}

// NewWorker wires a Worker. nowMs supplies blob creation timestamps.
func NewWorker(notifications <-chan ids.RepresentationId, manager *spool.Manager, cache *spool.Cache, reps RepresentationStore, blobs blobstore.Store, blobRepo BlobRepository, nowMs func() int64) *Worker {
	return &Worker{
		notifications: notifications,
		manager:       manager,
		cache:         cache,
		reps:          reps,
		blobs:         blobs,
		blobRepo:      blobRepo,
		nowMs:         nowMs,
	}
}

// Run drains notifications until ctx is cancelled, and on a timer sweeps
// for any Staged representation that never produced a notification.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case repID, ok := <-w.notifications:
			if !ok {
				return
			}
			if err := w.ProcessOne(repID); err != nil {
				slog.Error("materialize failed", "representation_id", string(repID), "error", err)
			}
		case <-ticker.C:
			w.rescanStaged()
		}
	}
}

// rescanStaged re-drives every Staged representation through ProcessOne.
// ProcessOne is idempotent (it no-ops on anything not Staged), so calling
// it redundantly for representations that already got their real
// notification costs nothing but a map lookup.
func (w *Worker) rescanStaged() {
	for _, repID := range w.reps.ListStaged() {
		if err := w.ProcessOne(repID); err != nil {
			slog.Error("materialize rescan failed", "representation_id", string(repID), "error", err)
		}
	}
}

var expectedStagedOrProcessing = []clipboard.PayloadState{clipboard.StateStaged, clipboard.StateProcessing}

// ProcessOne runs the materialization sequence for one representation
// (spec.md §4.9). It is idempotent: a representation not in Staged is
// skipped without error.
func (w *Worker) ProcessOne(repID ids.RepresentationId) error {
	rep, ok := w.reps.GetRepresentation(repID)
	if !ok {
		return nil
	}
	if rep.PayloadState != clipboard.StateStaged {
		return nil
	}

	raw, err := w.manager.Read(repID)
	if err != nil {
		if errors.Is(err, spool.ErrNotFound) {
			_, casErr := w.reps.UpdateProcessingResult(repID, expectedStagedOrProcessing, "", clipboard.StateLost, "spool bytes missing")
			return casErr
		}
		return err
	}

	contentHash := hashing.Hash(raw)

	blobID, err := w.resolveBlobID(contentHash, raw)
	if err != nil {
		// Bytes are still spooled; the representation stays Staged for a
		// later retry (spec.md §4.9 cache hygiene).
		return err
	}

	result, err := w.reps.UpdateProcessingResult(repID, expectedStagedOrProcessing, blobID, clipboard.StateBlobReady, "")
	if err != nil {
		return err
	}
	if result != clipboard.UpdateResultUpdated {
		slog.Warn("materialize CAS did not apply", "representation_id", string(repID), "result", result)
		return nil
	}

	w.cache.MarkCompleted(repID)
	return nil
}

func (w *Worker) resolveBlobID(contentHash string, raw []byte) (ids.BlobId, error) {
	if rec, found, err := w.blobRepo.GetByHash(contentHash); err != nil {
		return "", err
	} else if found {
		return rec.BlobID, nil
	}

	blobID := ids.NewBlobId()
	meta := blobstore.Meta{ContentHash: contentHash, SizeBytes: int64(len(raw)), CreatedAt: time.UnixMilli(w.nowMs())}
	if err := w.blobs.Put(blobID, meta, raw); err != nil {
		return "", err
	}
	if err := w.blobRepo.Insert(BlobRecord{BlobID: blobID, ContentHash: contentHash, SizeBytes: meta.SizeBytes, CreatedAtMs: w.nowMs()}); err != nil {
		return "", err
	}
	return blobID, nil
}
