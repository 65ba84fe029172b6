package dashboard

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Sternrassler/modelzoo-client/pkg/aggregate"
	"github.com/Sternrassler/modelzoo-client/pkg/catalog"
)

// ErrReloadInProgress is returned when a reload is requested while another
// one is still running.
var ErrReloadInProgress = errors.New("reload already in progress")

// Status is the lifecycle state of the dashboard data.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Snapshot is a consistent copy of the dashboard state.
type Snapshot struct {
	ReloadID string `json:"reload_id,omitempty"`
	Status   Status `json:"status"`

	// Stale is set when a failed reload left the previous data in place.
	Stale bool `json:"stale"`

	Items  map[catalog.Kind][]catalog.ResourceItem `json:"items,omitempty"`
	Totals map[catalog.Kind]int                    `json:"totals,omitempty"`
	Counts aggregate.AggregatedCounts              `json:"counts"`

	Failure *Failure `json:"failure,omitempty"`

	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
	LastSuccess time.Time `json:"last_success,omitzero"`
}

// HasData reports whether the snapshot carries results of a successful reload.
func (s Snapshot) HasData() bool {
	return !s.LastSuccess.IsZero()
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Items != nil {
		out.Items = make(map[catalog.Kind][]catalog.ResourceItem, len(s.Items))
		for kind, items := range s.Items {
			out.Items[kind] = slices.Clone(items)
		}
	}
	out.Totals = maps.Clone(s.Totals)
	out.Counts.PerKind = maps.Clone(s.Counts.PerKind)
	out.Counts.Top = slices.Clone(s.Counts.Top)
	out.Counts.Distribution = slices.Clone(s.Counts.Distribution)
	if s.Failure != nil {
		f := *s.Failure
		out.Failure = &f
	}
	return out
}

// State is the single container of dashboard data. One reload at a time
// writes it; readers get copies.
type State struct {
	mu        sync.RWMutex
	snap      Snapshot
	reloading bool
}

// NewState returns an idle state.
func NewState() *State {
	return &State{snap: Snapshot{Status: StatusIdle}}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

// begin claims the writer slot for reloadID.
func (s *State) begin(reloadID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reloading {
		return ErrReloadInProgress
	}
	s.reloading = true
	s.snap.ReloadID = reloadID
	s.snap.Status = StatusLoading
	s.snap.StartedAt = now
	s.snap.FinishedAt = time.Time{}
	return nil
}

// succeed publishes a completed reload.
func (s *State) succeed(items map[catalog.Kind][]catalog.ResourceItem, totals map[catalog.Kind]int, counts aggregate.AggregatedCounts, now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloading = false
	s.snap.Status = StatusReady
	s.snap.Stale = false
	s.snap.Items = items
	s.snap.Totals = totals
	s.snap.Counts = counts
	s.snap.Failure = nil
	s.snap.FinishedAt = now
	s.snap.LastSuccess = now
	return s.snap.clone()
}

// fail records a failed reload. Data of the last successful reload stays in
// place and is marked stale.
func (s *State) fail(f *Failure, now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloading = false
	s.snap.Status = StatusFailed
	s.snap.Stale = s.snap.HasData()
	s.snap.Failure = f
	s.snap.FinishedAt = now
	return s.snap.clone()
}
