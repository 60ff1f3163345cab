package webnav

import (
	"container/list"
	"sync"
)

// HostStats is the adaptive per-hostname attempt memory. It only biases
// the ordering of equivalent attempt targets; losing an entry is harmless.
type HostStats struct {
	Successes   int
	Failures    int
	LastFailure FailureClass
}

type hostEntry struct {
	host  string
	stats HostStats
}

// HostMemory tracks attempt outcomes per hostname, bounded by an LRU cap
// so long-running processes do not accumulate entries for every hostname
// ever visited.
type HostMemory struct {
	mu    sync.Mutex
	cap   int
	order *list.List               // front = most recently touched
	index map[string]*list.Element // host → element holding *hostEntry
}

// NewHostMemory creates a memory bounded to maxHosts entries.
// maxHosts <= 0 defaults to 1024.
func NewHostMemory(maxHosts int) *HostMemory {
	if maxHosts <= 0 {
		maxHosts = 1024
	}
	return &HostMemory{
		cap:   maxHosts,
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// Record notes the outcome of one navigation attempt against a hostname.
func (m *HostMemory) Record(host string, ok bool, class FailureClass) {
	if host == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	el, exists := m.index[host]
	if !exists {
		el = m.order.PushFront(&hostEntry{host: host})
		m.index[host] = el
		if m.order.Len() > m.cap {
			oldest := m.order.Back()
			m.order.Remove(oldest)
			delete(m.index, oldest.Value.(*hostEntry).host)
		}
	} else {
		m.order.MoveToFront(el)
	}

	entry := el.Value.(*hostEntry)
	if ok {
		entry.stats.Successes++
	} else {
		entry.stats.Failures++
		entry.stats.LastFailure = class
	}
}

// Stats returns the recorded stats for a hostname, zero if unknown.
// Reading does not refresh LRU position.
func (m *HostMemory) Stats(host string) HostStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.index[host]; ok {
		return el.Value.(*hostEntry).stats
	}
	return HostStats{}
}

// Score is the ordering bias for a hostname: 2×successes − failures.
// Higher scores are tried first.
func (m *HostMemory) Score(host string) int {
	s := m.Stats(host)
	return 2*s.Successes - s.Failures
}

// Len returns the number of tracked hostnames.
func (m *HostMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
