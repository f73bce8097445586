// Package store provides an in-memory ilit.Store.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/ilit-engine/ilit"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	policies map[string]ilit.PolicyRecord
	order    []string // insertion order of ids
	settings *ilit.Settings
	clients  map[string]time.Time
	audit    []ilit.AuditEntry
	runs     map[string]ilit.RecalculationRun
	runOrder []string

	// Now stamps createdAt/updatedAt. Tests may pin it.
	Now func() time.Time

	// FailUpdate, when set, makes UpdateMany fail for the ids it returns an error for.
	FailUpdate func(id string) error
	// FailInsert, when set, makes InsertMany and UpsertByKey fail.
	FailInsert error
}

func NewMemory() *Memory {
	return &Memory{
		policies: make(map[string]ilit.PolicyRecord),
		clients:  make(map[string]time.Time),
		runs:     make(map[string]ilit.RecalculationRun),
		Now:      time.Now,
	}
}

var _ ilit.Store = (*Memory)(nil)

func (m *Memory) now() time.Time { return m.Now().UTC() }

// =============================================================================
// POLICIES
// =============================================================================

// InsertMany adds all records or none.
func (m *Memory) InsertMany(_ context.Context, records []ilit.PolicyRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailInsert != nil {
		return 0, m.FailInsert
	}
	for _, r := range records {
		m.insertLocked(r)
	}
	return len(records), nil
}

func (m *Memory) insertLocked(r ilit.PolicyRecord) ilit.PolicyRecord {
	now := m.now()
	r.ID = uuid.NewString()
	r.CreatedAt = now
	r.UpdatedAt = now
	m.policies[r.ID] = r
	m.order = append(m.order, r.ID)
	return r
}

func (m *Memory) ReadAll(_ context.Context, filter ilit.PolicyFilter) ([]ilit.PolicyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ilit.PolicyRecord
	for _, id := range m.order {
		r := m.policies[id]
		if filter.Match(r) {
			result = append(result, r)
		}
	}
	return result, nil
}

// UpdateMany applies each patch on its own; one failure doesn't stop the rest.
func (m *Memory) UpdateMany(_ context.Context, patches []ilit.PolicyPatch) ([]ilit.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]ilit.UpdateResult, len(patches))
	for i, p := range patches {
		results[i] = ilit.UpdateResult{ID: p.ID}
		if m.FailUpdate != nil {
			if err := m.FailUpdate(p.ID); err != nil {
				results[i].Err = err
				continue
			}
		}
		r, ok := m.policies[p.ID]
		if !ok {
			results[i].Err = ilit.ErrPolicyNotFound
			continue
		}
		r = p.Apply(r)
		r.UpdatedAt = m.now()
		m.policies[p.ID] = r
	}
	return results, nil
}

// UpsertByKey merges records into stored ones sharing the same key.
func (m *Memory) UpsertByKey(_ context.Context, key ilit.UpsertKey, records []ilit.PolicyRecord) (ilit.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res ilit.UpsertResult
	if m.FailInsert != nil {
		return res, m.FailInsert
	}

	byKey := make(map[string]string)
	for _, id := range m.order {
		if k, ok := key.Of(m.policies[id]); ok {
			if _, seen := byKey[k]; !seen {
				byKey[k] = id
			}
		}
	}

	for _, r := range records {
		k, ok := key.Of(r)
		if ok {
			if id, found := byKey[k]; found {
				merged := ilit.MergeForUpsert(m.policies[id], r)
				merged.UpdatedAt = m.now()
				m.policies[id] = merged
				res.Updated++
				continue
			}
		}
		inserted := m.insertLocked(r)
		if ok {
			byKey[k] = inserted.ID
		}
		res.Inserted++
	}
	return res, nil
}

func (m *Memory) Get(_ context.Context, id string) (ilit.PolicyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.policies[id]
	if !ok {
		return ilit.PolicyRecord{}, ilit.ErrPolicyNotFound
	}
	return r, nil
}

func (m *Memory) Create(_ context.Context, r ilit.PolicyRecord) (ilit.PolicyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(r), nil
}

func (m *Memory) Update(_ context.Context, r ilit.PolicyRecord) (ilit.PolicyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.policies[r.ID]
	if !ok {
		return ilit.PolicyRecord{}, ilit.ErrPolicyNotFound
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = m.now()
	m.policies[r.ID] = r
	return r, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.policies[id]; !ok {
		return ilit.ErrPolicyNotFound
	}
	delete(m.policies, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Memory) GetSettings(_ context.Context) (ilit.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settings == nil {
		s := ilit.DefaultSettings()
		s.UpdatedAt = m.now()
		m.settings = &s
	}
	return *m.settings, nil
}

func (m *Memory) SetSettings(_ context.Context, s ilit.Settings) (ilit.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = m.now()
	}
	m.settings = &s
	return s, nil
}

// =============================================================================
// CLIENTS
// =============================================================================

func (m *Memory) UpsertClients(_ context.Context, names []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range names {
		if _, ok := m.clients[name]; !ok {
			m.clients[name] = m.now()
		}
	}
	return len(names), nil
}

func (m *Memory) ListClients(_ context.Context) ([]ilit.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, r := range m.policies {
		counts[r.InsuredName]++
	}

	clients := make([]ilit.Client, 0, len(m.clients))
	for name, created := range m.clients {
		clients = append(clients, ilit.Client{Name: name, PolicyCount: counts[name], CreatedAt: created})
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Name < clients[j].Name })
	return clients, nil
}

// =============================================================================
// AUDIT LOG / RUNS
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry ilit.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// RecentAudit returns the newest entries first.
func (m *Memory) RecentAudit(_ context.Context, limit int) ([]ilit.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ilit.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.audit[i])
	}
	return out, nil
}

func (m *Memory) SaveRun(_ context.Context, run ilit.RecalculationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; !ok {
		m.runOrder = append(m.runOrder, run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

// ListRuns returns the newest runs first.
func (m *Memory) ListRuns(_ context.Context, limit int) ([]ilit.RecalculationRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ilit.RecalculationRun
	for i := len(m.runOrder) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.runs[m.runOrder[i]])
	}
	return out, nil
}
