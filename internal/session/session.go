package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/edge-shortlister/internal/scoring"
	"github.com/spigell/edge-shortlister/internal/talent"
)

// ErrEmptyRequirement is returned when a blank requirement is added.
var ErrEmptyRequirement = errors.New("requirement is empty")

// Session is the state of one interactive shortlisting run.
type Session struct {
	mu sync.Mutex

	id           string
	started      time.Time
	requirements []string
	last         *scoring.Shortlist
	tables       map[string]*talent.Table
	hits         int
}

func New() *Session {
	s := &Session{}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.id = uuid.NewString()
	s.started = time.Now()
	s.requirements = nil
	s.last = nil
	s.tables = make(map[string]*talent.Table)
	s.hits = 0
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Started returns when the session was created or last cleared.
func (s *Session) Started() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// AddRequirement appends an operator requirement. Whitespace is collapsed.
func (s *Session) AddRequirement(requirement string) error {
	requirement = strings.Join(strings.Fields(requirement), " ")
	if requirement == "" {
		return ErrEmptyRequirement
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requirements = append(s.requirements, requirement)
	return nil
}

// Requirements returns a copy of the requirements in the order they were added.
func (s *Session) Requirements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requirements)
}

func (s *Session) ClearRequirements() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requirements = nil
}

// SetLast records the most recent shortlist for export and reporting.
func (s *Session) SetLast(list *scoring.Shortlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = list
}

func (s *Session) Last() *scoring.Shortlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Table parses data once per distinct content and hands out copies, so callers may mutate the result.
func (s *Session) Table(data []byte) (*talent.Table, error) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	s.mu.Lock()
	cached, ok := s.tables[key]
	if ok {
		s.hits++
	}
	s.mu.Unlock()

	if ok {
		return cached.Clone(), nil
	}

	t, err := talent.ReadTable(data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tables[key] = t
	s.mu.Unlock()

	return t.Clone(), nil
}

// ReadFile reads path and parses it through the memo.
func (s *Session) ReadFile(path string) (*talent.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	t, err := s.Table(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return t, nil
}

// CacheStats returns the number of memoized tables and memo hits.
func (s *Session) CacheStats() (entries, hits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables), s.hits
}

// Clear drops requirements, the last shortlist and the table memo, and starts a new session id.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
