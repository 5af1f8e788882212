package service

import (
	"sync"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
)

type rowLocation struct {
	target entity.SheetTarget
	row    int
}

// ledgerIndex maps request ids and thread ids to the row they were last seen
// at. Entries are hints only and are verified against the row before use.
type ledgerIndex struct {
	mu        sync.RWMutex
	byRequest map[string]rowLocation
	byThread  map[string]rowLocation
}

func newLedgerIndex() *ledgerIndex {
	return &ledgerIndex{
		byRequest: make(map[string]rowLocation),
		byThread:  make(map[string]rowLocation),
	}
}

func (i *ledgerIndex) put(requestID, threadID string, loc rowLocation) {
	if loc.row <= 0 {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if requestID != "" {
		i.byRequest[requestID] = loc
	}
	if threadID != "" {
		i.byThread[threadID] = loc
	}
}

func (i *ledgerIndex) lookup(key lookupKey, value string) (rowLocation, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var loc rowLocation
	var ok bool
	switch key {
	case keyRequestID:
		loc, ok = i.byRequest[value]
	case keyThreadID:
		loc, ok = i.byThread[value]
	}
	return loc, ok
}

func (i *ledgerIndex) forget(key lookupKey, value string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	switch key {
	case keyRequestID:
		delete(i.byRequest, value)
	case keyThreadID:
		delete(i.byThread, value)
	}
}

func (i *ledgerIndex) len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byRequest)
}

type lookupKey int

const (
	keyRequestID lookupKey = iota
	keyThreadID
)

func (k lookupKey) String() string {
	if k == keyThreadID {
		return "thread_id"
	}
	return "request_id"
}

func (k lookupKey) matches(row Row, value string) bool {
	if value == "" {
		return false
	}
	if k == keyThreadID {
		return row.ThreadID == value
	}
	return row.RequestID == value
}
