package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/parks-context/internal/resilience"
)

var (
	// ErrNotFound is returned when no outcomes are recorded for a provider.
	ErrNotFound = errors.New("no outcomes for provider")
)

// Outcome is the result of one logical provider call. Payloads are never
// recorded.
type Outcome struct {
	Provider  string          `json:"provider"`
	Timestamp time.Time       `json:"timestamp"`
	OK        bool            `json:"ok"`
	Kind      resilience.Kind `json:"kind,omitempty"`
	Message   string          `json:"message,omitempty"`
	Status    *int            `json:"statusCode,omitempty"`
	Elapsed   time.Duration   `json:"elapsedNs"`
}

// OutcomeHistory holds a time-ordered list of outcomes for a provider.
type OutcomeHistory struct {
	Outcomes []Outcome
}

// MemoryStore is a concurrency-safe in-memory provider health history.
// It implements resilience.Observer so it can be fed directly by the
// provider clients.
type MemoryStore struct {
	resilience.NopObserver

	mu sync.RWMutex

	// key: provider name, value: history
	data map[string]*OutcomeHistory

	// retention configuration
	maxHistory int           // max number of outcomes per provider
	maxAge     time.Duration // optional max age for outcomes

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*OutcomeHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// ObserveCall records the final outcome of a provider call.
func (s *MemoryStore) ObserveCall(provider string, elapsed time.Duration, err *resilience.Error) {
	o := Outcome{
		Provider:  provider,
		Timestamp: s.now().UTC(),
		OK:        err == nil,
		Elapsed:   elapsed,
	}
	if err != nil {
		o.Kind = err.Kind
		o.Message = err.Message
		o.Status = err.StatusCode
	}
	s.SaveOutcome(o)
}

// SaveOutcome appends an outcome for its provider and enforces retention.
func (s *MemoryStore) SaveOutcome(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[o.Provider]
	if !ok {
		history = &OutcomeHistory{}
		s.data[o.Provider] = history
	}

	history.Outcomes = append(history.Outcomes, o)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Outcomes) > s.maxHistory {
		over := len(history.Outcomes) - s.maxHistory
		history.Outcomes = history.Outcomes[over:]
	}

	s.pruneLocked(history)
}

// Prune drops outcomes older than the configured max age for every provider.
// It returns the number of outcomes removed.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, history := range s.data {
		removed += s.pruneLocked(history)
	}
	return removed
}

func (s *MemoryStore) pruneLocked(history *OutcomeHistory) int {
	if s.maxAge <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.maxAge)
	i := 0
	for ; i < len(history.Outcomes); i++ {
		if !history.Outcomes[i].Timestamp.Before(cutoff) {
			break
		}
	}
	history.Outcomes = history.Outcomes[i:]
	return i
}

// GetLatest returns the most recent outcome for a provider.
func (s *MemoryStore) GetLatest(provider string) (Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[provider]
	if !ok || len(history.Outcomes) == 0 {
		return Outcome{}, ErrNotFound
	}
	return history.Outcomes[len(history.Outcomes)-1], nil
}

// GetRange returns all outcomes for a provider between from and to (inclusive).
func (s *MemoryStore) GetRange(provider string, from, to time.Time) ([]Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[provider]
	if !ok || len(history.Outcomes) == 0 {
		return nil, ErrNotFound
	}

	var result []Outcome
	for _, o := range history.Outcomes {
		if !o.Timestamp.Before(from) && !o.Timestamp.After(to) {
			result = append(result, o)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

// Status returns the latest outcome of every provider, sorted by name.
func (s *MemoryStore) Status() []Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := make([]Outcome, 0, len(s.data))
	for _, history := range s.data {
		if n := len(history.Outcomes); n > 0 {
			status = append(status, history.Outcomes[n-1])
		}
	}
	sort.Slice(status, func(i, j int) bool { return status[i].Provider < status[j].Provider })
	return status
}
