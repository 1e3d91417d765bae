package repository

import (
	"context"
	"sync"
	"time"

	"github.com/notifyhub/signal-pipeline/internal/domain"
)

// Hand-written, in-memory store implementations used in unit tests.
// No mock-generation library needed.

// MockSignalStore implements SignalStore over a map.
type MockSignalStore struct {
	mu      sync.RWMutex
	signals map[string]*domain.SignalEvent

	FindErr error
}

func NewMockSignalStore() *MockSignalStore {
	return &MockSignalStore{signals: make(map[string]*domain.SignalEvent)}
}

func (m *MockSignalStore) Add(ev *domain.SignalEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *ev
	m.signals[ev.ID] = &clone
}

func (m *MockSignalStore) Get(id string) *domain.SignalEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ev, ok := m.signals[id]; ok {
		clone := *ev
		return &clone
	}
	return nil
}

func (m *MockSignalStore) FindUnprocessed(_ context.Context) ([]*domain.SignalEvent, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.SignalEvent
	for _, ev := range m.signals {
		if !ev.Processed {
			clone := *ev
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MockSignalStore) MarkProcessed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.signals[id]
	if !ok {
		return domain.ErrNotFound
	}
	ev.Processed = true
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

// MockHookStore implements HookStore over a slice.
type MockHookStore struct {
	mu    sync.RWMutex
	hooks []*domain.SignalHook
}

func NewMockHookStore() *MockHookStore {
	return &MockHookStore{}
}

func (m *MockHookStore) Add(h *domain.SignalHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *h
	m.hooks = append(m.hooks, &clone)
}

func (m *MockHookStore) FindEnabledByType(_ context.Context, signalType string) ([]*domain.SignalHook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.SignalHook
	for _, h := range m.hooks {
		if h.Enabled && h.SignalType == signalType {
			clone := *h
			out = append(out, &clone)
		}
	}
	return out, nil
}

// MockTemplateStore implements TemplateStore, including the derived-id
// fallback chain, over a map.
type MockTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*domain.NotificationTemplate
}

func NewMockTemplateStore() *MockTemplateStore {
	return &MockTemplateStore{templates: make(map[string]*domain.NotificationTemplate)}
}

func (m *MockTemplateStore) Add(t *domain.NotificationTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *t
	m.templates[t.ID] = &clone
}

func (m *MockTemplateStore) GetByID(_ context.Context, id string) (*domain.NotificationTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	clone := *t
	return &clone, nil
}

func (m *MockTemplateStore) GetByIDAndChannel(ctx context.Context, id string, channel domain.Channel) (*domain.NotificationTemplate, error) {
	m.mu.RLock()
	for _, t := range m.templates {
		if t.ID == id && t.Channel == channel {
			clone := *t
			m.mu.RUnlock()
			return &clone, nil
		}
	}
	m.mu.RUnlock()

	if derived := DeriveChannelTemplateID(id, channel); derived != id {
		if t, err := m.GetByID(ctx, derived); err == nil {
			return t, nil
		}
	}
	return m.GetByID(ctx, id)
}

// MockJobStore implements JobStore over a map.
type MockJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.NotificationJob

	CreateErr error
}

func NewMockJobStore() *MockJobStore {
	return &MockJobStore{jobs: make(map[string]*domain.NotificationJob)}
}

func (m *MockJobStore) All() []*domain.NotificationJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.NotificationJob
	for _, j := range m.jobs {
		clone := *j
		out = append(out, &clone)
	}
	return out
}

func (m *MockJobStore) Create(_ context.Context, job *domain.NotificationJob) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *job
	m.jobs[job.ID] = &clone
	return nil
}

func (m *MockJobStore) GetByID(_ context.Context, id string) (*domain.NotificationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *j
	return &clone, nil
}

func (m *MockJobStore) FindDue(_ context.Context, now time.Time) ([]*domain.NotificationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.NotificationJob
	for _, j := range m.jobs {
		due := (j.Status == domain.StatusPending &&
			(j.ScheduledAt == nil || !j.ScheduledAt.After(now))) ||
			(j.Status == domain.StatusRetrying &&
				j.NextRetryAt != nil && !j.NextRetryAt.After(now))
		if due {
			clone := *j
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MockJobStore) Claim(_ context.Context, id string) (*domain.NotificationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.Status != domain.StatusPending && j.Status != domain.StatusRetrying {
		return nil, domain.ErrJobClaimed
	}
	j.Status = domain.StatusProcessing
	j.UpdatedAt = time.Now().UTC()
	clone := *j
	return &clone, nil
}

func (m *MockJobStore) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = domain.StatusSent
	j.SentAt = &sentAt
	j.ErrorMessage = nil
	j.NextRetryAt = nil
	return nil
}

func (m *MockJobStore) ScheduleRetry(_ context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = domain.StatusRetrying
	j.RetryCount = retryCount
	j.NextRetryAt = &nextRetry
	j.ErrorMessage = &errMsg
	return nil
}

func (m *MockJobStore) MarkFailed(_ context.Context, id string, retryCount int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = domain.StatusFailed
	j.RetryCount = retryCount
	j.ErrorMessage = &errMsg
	j.NextRetryAt = nil
	return nil
}

func (m *MockJobStore) UpdateChannels(_ context.Context, id string, channels map[domain.Channel]domain.ChannelDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Channels = channels
	return nil
}

// MockEventStore records audit events in memory.
type MockEventStore struct {
	mu     sync.RWMutex
	events []*domain.AuditEvent

	RecordErr error
}

func NewMockEventStore() *MockEventStore {
	return &MockEventStore{}
}

func (m *MockEventStore) Record(_ context.Context, ev *domain.AuditEvent) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *ev
	m.events = append(m.events, &clone)
	return nil
}

func (m *MockEventStore) Events() []*domain.AuditEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}
