// Package memory provides an in-memory implementation of the storage
// interface, used for tests and file-less runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
)

// Store is an in-memory implementation of storage.Storage.
type Store struct {
	mu sync.RWMutex

	apiKeys       map[string]*domain.APIKey
	profiles      map[string]*domain.Profile
	rules         map[string]*domain.Rule
	assignments   map[string][]domain.User // key: profile id
	activeProfile map[string]string        // key: user key, value: profile id

	audit       []domain.AuditEntry
	nextAuditID int64
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		apiKeys:       make(map[string]*domain.APIKey),
		profiles:      make(map[string]*domain.Profile),
		rules:         make(map[string]*domain.Rule),
		assignments:   make(map[string][]domain.User),
		activeProfile: make(map[string]string),
		nextAuditID:   1,
	}
}

func (s *Store) Close() error { return nil }

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apiKeys[key.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *key
	s.apiKeys[key.ID] = &cp
	return nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.apiKeys {
		if k.KeyHash == keyHash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]*domain.APIKey, 0, len(s.apiKeys))
	for _, k := range s.apiKeys {
		cp := *k
		keys = append(keys, &cp)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })
	return keys, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apiKeys[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	k.LastUsedAt = &now
	return nil
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apiKeys), nil
}

// ============================================
// Profiles
// ============================================

func (s *Store) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if err := s.checkRuleIDs(profile.RuleIDs); err != nil {
		return err
	}
	s.profiles[profile.ID] = copyProfile(profile)
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyProfile(p), nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProfilesLocked(), nil
}

func (s *Store) UpdateProfile(ctx context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.profiles[profile.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if err := s.checkRuleIDs(profile.RuleIDs); err != nil {
		return err
	}
	cp := copyProfile(profile)
	cp.CreatedAt = existing.CreatedAt
	s.profiles[profile.ID] = cp
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.profiles, id)
	delete(s.assignments, id)
	for userKey, profileID := range s.activeProfile {
		if profileID == id {
			delete(s.activeProfile, userKey)
		}
	}
	return nil
}

// ============================================
// Rules
// ============================================

func (s *Store) CreateRule(ctx context.Context, rule *domain.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[rule.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *Store) GetRule(ctx context.Context, id string) (*domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules := make([]*domain.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		cp := *r
		rules = append(rules, &cp)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].CreatedAt.Before(rules[j].CreatedAt) })
	return rules, nil
}

func (s *Store) UpdateRule(ctx context.Context, rule *domain.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[rule.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *rule
	cp.CreatedAt = existing.CreatedAt
	s.rules[rule.ID] = &cp
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return domain.ErrNotFound
	}
	// Reject while referenced; deleting would silently change match
	// precedence in the referencing profiles.
	for _, p := range s.profiles {
		for _, ruleID := range p.RuleIDs {
			if ruleID == id {
				return domain.ErrInvalidParameter
			}
		}
	}
	delete(s.rules, id)
	return nil
}

// ============================================
// Assignments and profile selection
// ============================================

func (s *Store) GetAssignment(ctx context.Context, profileID string) (*domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.profiles[profileID]; !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Assignment{ProfileID: profileID, Users: append([]domain.User(nil), s.assignments[profileID]...)}, nil
}

func (s *Store) ListAssignments(ctx context.Context) ([]*domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Assignment, 0, len(s.assignments))
	for _, p := range s.listProfilesLocked() {
		users, ok := s.assignments[p.ID]
		if !ok {
			continue
		}
		out = append(out, &domain.Assignment{ProfileID: p.ID, Users: append([]domain.User(nil), users...)})
	}
	return out, nil
}

func (s *Store) SetAssignment(ctx context.Context, profileID string, users []domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profileID]; !ok {
		return domain.ErrNotFound
	}
	s.assignments[profileID] = append([]domain.User(nil), users...)
	// Selections of a profile the user is no longer assigned to are stale.
	for userKey, id := range s.activeProfile {
		if id != profileID {
			continue
		}
		found := false
		for _, u := range users {
			if u.Key() == userKey {
				found = true
				break
			}
		}
		if !found {
			delete(s.activeProfile, userKey)
		}
	}
	return nil
}

func (s *Store) SetActiveProfile(ctx context.Context, user domain.User, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profileID]; !ok {
		return domain.ErrNotFound
	}
	if !userAssigned(s.assignments[profileID], user) {
		return domain.ErrInvalidParameter
	}
	s.activeProfile[user.Key()] = profileID
	return nil
}

func (s *Store) GetActiveProfileID(ctx context.Context, user domain.User) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeProfile[user.Key()], nil
}

func (s *Store) ProfilesForUser(ctx context.Context, user domain.User) ([]*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profilesForUserLocked(user), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var users []domain.User
	for _, assigned := range s.assignments {
		for _, u := range assigned {
			if !seen[u.Key()] {
				seen[u.Key()] = true
				users = append(users, u)
			}
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Key() < users[j].Key() })
	return users, nil
}

func (s *Store) PolicySnapshot(ctx context.Context, user domain.User) (*domain.PolicySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assigned := s.profilesForUserLocked(user)
	if len(assigned) == 0 {
		return nil, domain.ErrNotFound
	}

	active := assigned[0]
	if selectedID := s.activeProfile[user.Key()]; selectedID != "" {
		for _, p := range assigned {
			if p.ID == selectedID {
				active = p
				break
			}
		}
	}

	snapshot := &domain.PolicySnapshot{Profile: *active}
	for _, ruleID := range active.RuleIDs {
		if r, ok := s.rules[ruleID]; ok {
			snapshot.Rules = append(snapshot.Rules, *r)
		}
	}
	return snapshot, nil
}

// ============================================
// Audit trail
// ============================================

func (s *Store) AppendAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextAuditID
	s.nextAuditID++
	s.audit = append(s.audit, *entry)
	return nil
}

func (s *Store) GetAuditEntry(ctx context.Context, id int64) (*domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.audit {
		if s.audit[i].ID == id {
			cp := s.audit[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) QueryAuditEntries(ctx context.Context, q domain.AuditQuery) (*domain.AuditPage, error) {
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageNumber <= 0 {
		q.PageNumber = 1
	}

	s.mu.RLock()
	// Copy the matching rows under the lock so the page set is computed
	// against a snapshot taken at query start.
	var rows []domain.AuditEntry
	for _, e := range s.audit {
		if q.User != nil && !e.User.Equal(*q.User) {
			continue
		}
		if e.Timestamp.Before(q.StartTime) {
			continue
		}
		if !q.EndTime.IsZero() && e.Timestamp.After(q.EndTime) {
			continue
		}
		rows = append(rows, e)
	}
	s.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if q.SortDescending {
			a, b = b, a
		}
		switch q.SortColumn {
		case domain.SortByOutcome:
			if a.Outcome != b.Outcome {
				return a.Outcome < b.Outcome
			}
		case domain.SortByTargetPath:
			if a.TargetPath != b.TargetPath {
				return a.TargetPath < b.TargetPath
			}
		case domain.SortByUser:
			if a.User.Key() != b.User.Key() {
				return a.User.Key() < b.User.Key()
			}
		default: // timestamp
			if !a.Timestamp.Equal(b.Timestamp) {
				return a.Timestamp.Before(b.Timestamp)
			}
		}
		return a.ID < b.ID
	})

	total := int64(len(rows))
	totalPages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	start := (q.PageNumber - 1) * q.PageSize
	if start < 0 {
		start = 0
	}
	if start > len(rows) {
		start = len(rows)
	}
	end := start + q.PageSize
	if end > len(rows) {
		end = len(rows)
	}
	return &domain.AuditPage{
		TotalRecords: total,
		TotalPages:   totalPages,
		Entries:      rows[start:end],
	}, nil
}

// ============================================
// Helpers
// ============================================

func (s *Store) listProfilesLocked() []*domain.Profile {
	profiles := make([]*domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, copyProfile(p))
	}
	sort.Slice(profiles, func(i, j int) bool {
		if !profiles[i].CreatedAt.Equal(profiles[j].CreatedAt) {
			return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
		}
		return profiles[i].ID < profiles[j].ID
	})
	return profiles
}

func (s *Store) profilesForUserLocked(user domain.User) []*domain.Profile {
	var out []*domain.Profile
	for _, p := range s.listProfilesLocked() {
		if userAssigned(s.assignments[p.ID], user) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) checkRuleIDs(ruleIDs []string) error {
	for _, id := range ruleIDs {
		if _, ok := s.rules[id]; !ok {
			return domain.ErrInvalidParameter
		}
	}
	return nil
}

func copyProfile(p *domain.Profile) *domain.Profile {
	cp := *p
	cp.RuleIDs = append([]string(nil), p.RuleIDs...)
	return &cp
}

func userAssigned(users []domain.User, user domain.User) bool {
	for _, u := range users {
		if u.Equal(user) {
			return true
		}
	}
	return false
}
