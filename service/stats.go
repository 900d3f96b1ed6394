package service

import "sync/atomic"

// Stats are process-wide counters; they carry no per-player state
type Stats struct {
	Connections     atomic.Int64
	Admitted        atomic.Int64
	Rejected        atomic.Int64
	AccountsCreated atomic.Int64
	Deployments     atomic.Int64
	SolveAttempts   atomic.Int64
	Solved          atomic.Int64
	Failures        atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	Connections     int64 `json:"connections"`
	Admitted        int64 `json:"admitted"`
	Rejected        int64 `json:"rejected"`
	AccountsCreated int64 `json:"accounts_created"`
	Deployments     int64 `json:"deployments"`
	SolveAttempts   int64 `json:"solve_attempts"`
	Solved          int64 `json:"solved"`
	Failures        int64 `json:"failures"`
}

// Snapshot copies the counters
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Connections:     s.Connections.Load(),
		Admitted:        s.Admitted.Load(),
		Rejected:        s.Rejected.Load(),
		AccountsCreated: s.AccountsCreated.Load(),
		Deployments:     s.Deployments.Load(),
		SolveAttempts:   s.SolveAttempts.Load(),
		Solved:          s.Solved.Load(),
		Failures:        s.Failures.Load(),
	}
}
