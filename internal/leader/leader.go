// Package leader declares the cluster-state-listener collaborator the
// sweeper gates on, plus a single-process elector for local development and
// tests where there is exactly one runner and it is always the leader.
package leader

import "sync"

// Elector reports and notifies on this process's leadership state. A real
// deployment backs this with the cluster's actual leader-election
// mechanism; the sweeper only ever reads through this interface.
type Elector interface {
	IsLeader() bool
	OnChange(func(isLeader bool))
}

// Static is an Elector that is always (or never) the leader. It is useful
// for single-process deployments and for tests that don't exercise
// leadership transitions.
type Static struct {
	mu       sync.Mutex
	isLeader bool
	watchers []func(bool)
}

func NewStatic(isLeader bool) *Static {
	return &Static{isLeader: isLeader}
}

func (s *Static) IsLeader() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLeader
}

func (s *Static) OnChange(fn func(isLeader bool)) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

// SetLeader flips leadership and notifies watchers, modeling a cluster
// state listener's callback.
func (s *Static) SetLeader(isLeader bool) {
	s.mu.Lock()
	s.isLeader = isLeader
	watchers := append([]func(bool){}, s.watchers...)
	s.mu.Unlock()

	for _, w := range watchers {
		w(isLeader)
	}
}
