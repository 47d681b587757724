package checkpoint

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory checkpoint store for tests and one-shot runs.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]*memoryRun
	closed bool
}

// memoryRun holds one run's checkpoints and its sequence counter.
type memoryRun struct {
	seq         int
	checkpoints map[string]storedCheckpoint
}

type storedCheckpoint struct {
	data      []byte
	sequence  int
	timestamp time.Time
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*memoryRun),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(runID, nodeID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	run := m.runs[runID]
	if run == nil {
		run = &memoryRun{checkpoints: make(map[string]storedCheckpoint)}
		m.runs[runID] = run
	}
	run.seq++

	run.checkpoints[nodeID] = storedCheckpoint{
		data:      append([]byte(nil), data...),
		sequence:  run.seq,
		timestamp: time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID, nodeID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	cp, ok := run.checkpoints[nodeID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), cp.data...), nil
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}

	infos := make([]Info, 0, len(run.checkpoints))
	for nodeID, cp := range run.checkpoints {
		infos = append(infos, Info{
			RunID:     runID,
			NodeID:    nodeID,
			Sequence:  cp.sequence,
			Timestamp: cp.timestamp,
			Size:      int64(len(cp.data)),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})
	return infos, nil
}

// Runs implements Store.
func (m *MemoryStore) Runs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	ids := make([]string, 0, len(m.runs))
	for id, run := range m.runs {
		if len(run.checkpoints) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(runID, nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if run, ok := m.runs[runID]; ok {
		delete(run.checkpoints, nodeID)
	}
	return nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.runs, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.runs = nil
	return nil
}

// Len returns the total number of checkpoints across all runs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, run := range m.runs {
		count += len(run.checkpoints)
	}
	return count
}
