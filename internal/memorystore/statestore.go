package memorystore

import (
	"sort"
	"sync"
)

// StateStore is the published, concurrently readable view of every monitored instrument.
//
// The key set is owned by the registry (Init/Remove). Each key carries an epoch assigned at
// Init; a monitor publishes with the epoch it was started with, so writes from a monitor
// that has already been stopped (or replaced by a fresh one) are discarded.
type StateStore struct {
	globalMu  sync.RWMutex
	data      map[string]*instrumentEntry
	nextEpoch uint64

	obsMu     sync.RWMutex
	observers []Observer
}

type instrumentEntry struct {
	mu      sync.RWMutex
	epoch   uint64
	state   InstrumentState
	history *History
}

func NewStateStore() *StateStore {
	return &StateStore{
		data: make(map[string]*instrumentEntry),
	}
}

// Subscribe registers an observer for publish/remove events.
func (s *StateStore) Subscribe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *StateStore) snapshotObservers() []Observer {
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	out := make([]Observer, len(s.observers))
	copy(out, s.observers)
	return out
}

// Init creates empty state and history for instrument, replacing anything already there,
// and returns the epoch writers must present to Publish.
func (s *StateStore) Init(instrument string) uint64 {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	s.nextEpoch++
	s.data[instrument] = &instrumentEntry{
		epoch:   s.nextEpoch,
		history: NewHistory(HistoryCapacity),
	}
	return s.nextEpoch
}

// Remove deletes the instrument's state and history. It reports whether the key existed.
func (s *StateStore) Remove(instrument string) bool {
	s.globalMu.Lock()
	entry, ok := s.data[instrument]
	delete(s.data, instrument)
	s.globalMu.Unlock()
	if !ok {
		return false
	}

	// Retire the entry under its own lock so an in-flight Publish either lands (and is
	// observed) before the removal or is rejected.
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.epoch = 0
	for _, o := range s.snapshotObservers() {
		o.OnRemove(instrument)
	}
	return true
}

// Publish atomically overwrites the instrument's state and appends sample to its history.
// It returns false when the instrument is gone or epoch belongs to an earlier Init.
func (s *StateStore) Publish(instrument string, epoch uint64, state InstrumentState, sample SpreadSample) bool {
	s.globalMu.RLock()
	entry, ok := s.data[instrument]
	s.globalMu.RUnlock()
	if !ok {
		return false
	}

	// Per-instrument locking
	entry.mu.Lock()
	if entry.epoch != epoch {
		entry.mu.Unlock()
		return false
	}
	entry.state = state
	entry.history.Append(sample)
	for _, o := range s.snapshotObservers() {
		o.OnPublish(instrument, state, sample)
	}
	entry.mu.Unlock()
	return true
}

// State returns the latest state of instrument.
func (s *StateStore) State(instrument string) (InstrumentState, bool) {
	s.globalMu.RLock()
	entry, ok := s.data[instrument]
	s.globalMu.RUnlock()
	if !ok {
		return InstrumentState{}, false
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.state, true
}

// History returns a chronological copy of the instrument's samples, or nil if unknown.
func (s *StateStore) History(instrument string) []SpreadSample {
	s.globalMu.RLock()
	entry, ok := s.data[instrument]
	s.globalMu.RUnlock()
	if !ok {
		return nil
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.history.Samples()
}

// Instruments returns the current key set, sorted.
func (s *StateStore) Instruments() []string {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	out := make([]string, 0, len(s.data))
	for inst := range s.data {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

// Snapshot copies every instrument's state and history.
func (s *StateStore) Snapshot() Snapshot {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	snap := Snapshot{
		Data:    make(map[string]InstrumentState, len(s.data)),
		History: make(map[string][]SpreadSample, len(s.data)),
	}
	for inst, entry := range s.data {
		entry.mu.RLock()
		snap.Data[inst] = entry.state
		snap.History[inst] = entry.history.Samples()
		entry.mu.RUnlock()
	}
	return snap
}

// Len returns the number of tracked instruments.
func (s *StateStore) Len() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()
	return len(s.data)
}
