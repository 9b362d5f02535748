package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
	"github.com/tjfontaine/uptime-bridge/internal/core/ports"
	"github.com/tjfontaine/uptime-bridge/internal/extract"
)

type fakeDirectory struct {
	mu       sync.Mutex
	monitors []domain.RemoteMonitor
	findErr  error
	createFn func(spec domain.MonitorSpec) (domain.APIResponse, error)

	finds   int
	creates []domain.MonitorSpec
}

func (f *fakeDirectory) FindMonitorByURL(ctx context.Context, d string) (*domain.RemoteMonitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, m := range f.monitors {
		if extract.Normalize(m.URL) == d {
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) CreateHTTPMonitor(ctx context.Context, spec domain.MonitorSpec) (domain.APIResponse, error) {
	f.mu.Lock()
	f.creates = append(f.creates, spec)
	fn := f.createFn
	f.mu.Unlock()
	if fn != nil {
		return fn(spec)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := int64(len(f.creates))
	f.monitors = append(f.monitors, domain.RemoteMonitor{ID: id, URL: spec.URL})
	return domain.APIResponse{"id": id, "url": spec.URL, domain.StatusCodeKey: 200}, nil
}

func domainEvent(text string) domain.Event {
	return domain.Event{"custom_fields": []any{
		map[string]any{"name": "Приоритет", "text_value": "high"},
		map[string]any{"name": "домен", "text_value": text},
	}}
}

func newReconciler(dir *fakeDirectory, locker ports.DomainLocker) *Reconciler {
	return New(extract.NewExtractor(""), dir, Options{
		Scheme:  "https",
		Monitor: MonitorDefaults{Interval: 300, HTTPMethod: "POST", Timeout: 30},
		Locker:  locker,
	})
}

func TestReconcileNoDomain(t *testing.T) {
	dir := &fakeDirectory{}
	r := newReconciler(dir, nil)

	res := r.Reconcile(context.Background(), domain.Event{"custom_fields": []any{}})
	assert.Equal(t, OutcomeNoDomain, res.Outcome)
	assert.Zero(t, dir.finds)
	assert.Empty(t, dir.creates)
	assert.NoError(t, res.Err)
}

func TestReconcileExisting(t *testing.T) {
	dir := &fakeDirectory{monitors: []domain.RemoteMonitor{{ID: 7, URL: "https://example.co.uk/status"}}}
	r := newReconciler(dir, nil)

	res := r.Reconcile(context.Background(), domainEvent("visit example.co.uk today"))
	require.Equal(t, OutcomeExists, res.Outcome)
	assert.Equal(t, domain.MonitorContext{
		Domain:       "example.co.uk",
		MonitorURL:   "https://example.co.uk",
		FriendlyName: "example.co.uk",
	}, res.Context)
	require.NotNil(t, res.Existing)
	assert.Equal(t, "https://example.co.uk/status", res.Existing.URL)
	assert.Empty(t, dir.creates, "no creation when a monitor exists")
}

func TestReconcileCreates(t *testing.T) {
	dir := &fakeDirectory{}
	r := newReconciler(dir, nil)

	res := r.Reconcile(context.Background(), domainEvent("visit example.co.uk today"))
	require.Equal(t, OutcomeCreated, res.Outcome)
	require.Len(t, dir.creates, 1)
	assert.Equal(t, domain.MonitorSpec{
		URL:          "https://example.co.uk",
		FriendlyName: "example.co.uk",
		Interval:     300,
		HTTPMethod:   "POST",
		Timeout:      30,
	}, dir.creates[0])

	id, ok := res.Response.ID()
	assert.True(t, ok)
	assert.Equal(t, "1", id)
}

func TestReconcileCreateWithoutID(t *testing.T) {
	body := domain.APIResponse{"message": "quota exceeded", domain.StatusCodeKey: 200}
	dir := &fakeDirectory{createFn: func(domain.MonitorSpec) (domain.APIResponse, error) {
		return body, nil
	}}
	r := newReconciler(dir, nil)

	res := r.Reconcile(context.Background(), domainEvent("example.co.uk"))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, body, res.Response)
	assert.NoError(t, res.Err)
	assert.Len(t, dir.creates, 1, "exactly one creation attempt")
}

func TestReconcileCreateTransportError(t *testing.T) {
	transportErr := errors.New("dial tcp: timeout")
	dir := &fakeDirectory{createFn: func(domain.MonitorSpec) (domain.APIResponse, error) {
		return domain.APIResponse{"status": "error", "message": transportErr.Error(), domain.StatusCodeKey: 0}, transportErr
	}}
	r := newReconciler(dir, nil)

	res := r.Reconcile(context.Background(), domainEvent("example.co.uk"))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, transportErr)
	assert.Equal(t, "error", res.Response["status"])
}

func TestReconcileLookupAborted(t *testing.T) {
	dir := &fakeDirectory{findErr: context.Canceled}
	r := newReconciler(dir, nil)

	res := r.Reconcile(context.Background(), domainEvent("example.co.uk"))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, dir.creates)
}

func TestReconcileLockFailure(t *testing.T) {
	dir := &fakeDirectory{}
	locker := NewKeyedLocker()
	unlock, err := locker.Lock(context.Background(), "example.co.uk")
	require.NoError(t, err)
	defer unlock()

	r := newReconciler(dir, locker)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := r.Reconcile(ctx, domainEvent("example.co.uk"))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, domain.ErrLockUnavailable)
	assert.Zero(t, dir.finds)
}

// slowDirectory widens the find-then-create window so concurrent calls overlap.
type slowDirectory struct {
	*fakeDirectory
	delay time.Duration
}

func (s *slowDirectory) FindMonitorByURL(ctx context.Context, d string) (*domain.RemoteMonitor, error) {
	m, err := s.fakeDirectory.FindMonitorByURL(ctx, d)
	time.Sleep(s.delay)
	return m, err
}

func TestReconcileConcurrentSameDomainWithLocker(t *testing.T) {
	dir := &slowDirectory{fakeDirectory: &fakeDirectory{}, delay: 10 * time.Millisecond}
	r := New(extract.NewExtractor(""), dir, Options{Scheme: "https", Locker: NewKeyedLocker()})

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Reconcile(context.Background(), domainEvent("example.co.uk")).Outcome == OutcomeCreated {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, created.Load())
	assert.Len(t, dir.creates, 1)
}

func TestReconcileConcurrentSameDomainWithoutLocker(t *testing.T) {
	dir := &slowDirectory{fakeDirectory: &fakeDirectory{}, delay: 50 * time.Millisecond}
	r := New(extract.NewExtractor(""), dir, Options{Scheme: "https"})

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			r.Reconcile(context.Background(), domainEvent("example.co.uk"))
		}()
	}
	close(start)
	wg.Wait()

	// Both callers observed "not found": the known duplicate-creation race.
	assert.Len(t, dir.creates, 2)
}
