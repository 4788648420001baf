package services

import (
	"errors"
	"sync"
	"time"

	"tripwise-backend/internal/clock"
)

var ErrUnknownBatch = errors.New("unknown upload batch")

const (
	allUploadedMessage = "All images uploaded!"
	someFailedMessage  = "Some images failed to upload."
)

type photoState int

const (
	photoPending photoState = iota
	photoUploaded
	photoFailed
)

// UploadBatch is a set of photos a client uploads directly to storage
type UploadBatch struct {
	ID      string
	UserID  string
	Target  UploadTarget
	Expires time.Time

	keys   map[string]string
	states map[string]photoState
	order  []string
}

// UploadTarget is the record the photos of a batch are attached to
type UploadTarget struct {
	Scope  string `json:"scope"`
	TripID string `json:"trip_id"`
	ItemID string `json:"item_id,omitempty"`
}

// BatchResult summarizes a finished batch
type BatchResult struct {
	BatchID  string       `json:"batch_id"`
	Target   UploadTarget `json:"target"`
	Uploaded int          `json:"uploaded"`
	Failed   int          `json:"failed"`
	Keys     []string     `json:"-"`
	Message  string       `json:"message"`
}

// UploadTracker counts reported uploads per batch. A batch finishes once
// every photo was reported, successfully or not; it cannot be cancelled.
type UploadTracker struct {
	mu      sync.Mutex
	batches map[string]*UploadBatch
	clock   clock.Clock
}

// NewUploadTracker creates an empty tracker
func NewUploadTracker(clk clock.Clock) *UploadTracker {
	return &UploadTracker{
		batches: make(map[string]*UploadBatch),
		clock:   clk,
	}
}

// Start tracks a new batch. keys maps photo id to object key.
func (t *UploadTracker) Start(id, userID string, target UploadTarget, keys map[string]string, order []string, ttl time.Duration) *UploadBatch {
	b := &UploadBatch{
		ID:      id,
		UserID:  userID,
		Target:  target,
		Expires: t.clock.Now().Add(ttl),
		keys:    keys,
		states:  make(map[string]photoState, len(keys)),
		order:   order,
	}
	for photoID := range keys {
		b.states[photoID] = photoPending
	}

	t.mu.Lock()
	t.batches[id] = b
	t.mu.Unlock()
	return b
}

// Report records the outcome of one photo. Reporting the same photo twice
// keeps the first outcome. When the last photo is reported the batch is
// removed and its result returned.
func (t *UploadTracker) Report(userID, batchID, photoID string, ok bool) (*BatchResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, found := t.batches[batchID]
	if !found || b.UserID != userID {
		return nil, ErrUnknownBatch
	}
	state, known := b.states[photoID]
	if !known {
		return nil, ErrUnknownBatch
	}
	if state == photoPending {
		if ok {
			b.states[photoID] = photoUploaded
		} else {
			b.states[photoID] = photoFailed
		}
	}

	result := &BatchResult{BatchID: b.ID, Target: b.Target}
	for _, id := range b.order {
		switch b.states[id] {
		case photoPending:
			return nil, nil
		case photoUploaded:
			result.Uploaded++
			result.Keys = append(result.Keys, b.keys[id])
		case photoFailed:
			result.Failed++
		}
	}
	delete(t.batches, batchID)

	result.Message = allUploadedMessage
	if result.Failed > 0 {
		result.Message = someFailedMessage
	}
	return result, nil
}

// Expire drops batches past their deadline and returns them
func (t *UploadTracker) Expire() []*UploadBatch {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []*UploadBatch
	for id, b := range t.batches {
		if now.After(b.Expires) {
			expired = append(expired, b)
			delete(t.batches, id)
		}
	}
	return expired
}

// Pending returns the number of unfinished batches
func (t *UploadTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.batches)
}
