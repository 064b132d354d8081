package background

import (
	"fmt"
	"sync"
	"time"
)

type serverPhase int

const (
	phaseStopped serverPhase = iota
	phaseStarting
	phaseRunning
	phaseStopping
)

// ReconcilerStats is a snapshot of what the reconciler has done since it was created.
type ReconcilerStats struct {
	Running     bool
	Sweeps      int
	LastSweepAt time.Time
	Confirmed   int
	Reverted    int
	Failures    int
}

// backgroundServerStatus guards the lifecycle phase. Each transition checks and sets the phase under one lock so two callers cannot both start or both stop the server.
type backgroundServerStatus struct {
	mu    sync.Mutex
	phase serverPhase
	stats ReconcilerStats
}

func newBackgroundServerStatus() *backgroundServerStatus {
	return &backgroundServerStatus{phase: phaseStopped}
}

func (s *backgroundServerStatus) beginStart(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case phaseStarting:
		return fmt.Errorf("%v正在启动", name)
	case phaseRunning:
		return fmt.Errorf("%v已启动", name)
	case phaseStopping:
		return fmt.Errorf("%v正在停止", name)
	}
	s.phase = phaseStarting
	return nil
}

func (s *backgroundServerStatus) finishStart() {
	s.mu.Lock()
	s.phase = phaseRunning
	s.stats.Running = true
	s.mu.Unlock()
}

func (s *backgroundServerStatus) beginStop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case phaseStopping:
		return fmt.Errorf("%v正在停止", name)
	case phaseStopped, phaseStarting:
		return fmt.Errorf("%v未启动", name)
	}
	s.phase = phaseStopping
	return nil
}

func (s *backgroundServerStatus) finishStop() {
	s.mu.Lock()
	s.phase = phaseStopped
	s.stats.Running = false
	s.mu.Unlock()
}

func (s *backgroundServerStatus) recordSweep(at time.Time) {
	s.mu.Lock()
	s.stats.Sweeps++
	s.stats.LastSweepAt = at
	s.mu.Unlock()
}

func (s *backgroundServerStatus) recordOutcome(moved, confirmed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.stats.Failures++
		return
	}
	if !moved {
		return
	}
	if confirmed {
		s.stats.Confirmed++
	} else {
		s.stats.Reverted++
	}
}

func (s *backgroundServerStatus) snapshot() ReconcilerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
