package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthkeep/hearth/pkg/types"
)

var (
	ErrMemberExists       = errors.New("member already exists")
	ErrInvalidCredentials = errors.New("invalid household, member, or passcode")
)

// member is one registered person in a household.
type member struct {
	ID           string
	HouseholdID  string
	Name         string
	PasscodeHash string
}

// memberStore keeps registered members in memory, keyed by household and
// name. The hub is the household's single serialization point, so one
// process owns all of it.
type memberStore struct {
	mu      sync.RWMutex
	members map[string]member
}

func newMemberStore() *memberStore {
	return &memberStore{members: make(map[string]member)}
}

func memberKey(householdID, name string) string {
	return householdID + "\x00" + name
}

func (s *memberStore) create(householdID, name, passcodeHash string) (member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey(householdID, name)
	if _, ok := s.members[key]; ok {
		return member{}, ErrMemberExists
	}
	m := member{
		ID:           uuid.New().String(),
		HouseholdID:  householdID,
		Name:         name,
		PasscodeHash: passcodeHash,
	}
	s.members[key] = m
	return m, nil
}

func (s *memberStore) lookup(householdID, name string) (member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey(householdID, name)]
	return m, ok
}

// storedChange is one accepted change plus the hub-side acceptance time
// used to answer "what changed after since".
type storedChange struct {
	change     types.ChangeRecord
	acceptedAt time.Time
}

// changeStore holds the accepted change per (table, record) for each
// household. Acceptance is last-write-wins on the record's updatedAt;
// an incoming change at least as new as the stored one replaces it.
type changeStore struct {
	mu         sync.RWMutex
	households map[string]map[string]storedChange
	now        func() time.Time
}

func newChangeStore() *changeStore {
	return &changeStore{
		households: make(map[string]map[string]storedChange),
		now:        time.Now,
	}
}

func changeKey(c types.ChangeRecord) string {
	return string(c.Table) + "\x00" + c.ID
}

// accept merges a batch and returns how many changes were accepted.
// Rejected changes are older than what the hub already holds; the
// pushing device will receive the newer state on its next pull.
func (s *changeStore) accept(householdID string, changes []types.ChangeRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.households[householdID]
	if records == nil {
		records = make(map[string]storedChange)
		s.households[householdID] = records
	}

	accepted := 0
	now := s.now()
	for _, change := range changes {
		if change.ID == "" || !change.Table.IsTracked() {
			continue
		}
		key := changeKey(change)
		if existing, ok := records[key]; ok && existing.change.UpdatedAt.After(change.UpdatedAt) {
			continue
		}
		records[key] = storedChange{change: change, acceptedAt: now}
		accepted++
	}
	return accepted
}

// changesSince returns every stored change the hub accepted strictly
// after since. The zero since returns the household's full state.
func (s *changeStore) changesSince(householdID string, since time.Time) []types.ChangeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.ChangeRecord
	for _, stored := range s.households[householdID] {
		if since.IsZero() || stored.acceptedAt.After(since) {
			out = append(out, stored.change)
		}
	}
	return out
}
