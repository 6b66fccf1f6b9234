package domain

import "sync"

// Stats 是跨 worker 共享的计数器：按 action 聚合，互斥锁保护。
// 作为注入对象传给每个 worker，而不是进程级全局变量。
type Stats struct {
	mu     sync.Mutex
	Total  int
	counts map[string]int
}

func NewStats(total int) *Stats {
	return &Stats{Total: total, counts: make(map[string]int, 8)}
}

func (s *Stats) Add(action string) {
	s.mu.Lock()
	s.counts[action]++
	s.mu.Unlock()
}

// Snapshot 返回计数副本（汇总输出用，避免持锁遍历）。
func (s *Stats) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
