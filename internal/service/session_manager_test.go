package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Bouza1/cloned-it/internal/domain"
	"github.com/Bouza1/cloned-it/internal/observability"
	"github.com/Bouza1/cloned-it/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type auditEvent struct {
	event    string
	severity string
	attrs    map[string]any
}

type captureAudit struct {
	mu     sync.Mutex
	events []auditEvent
}

func (a *captureAudit) Emit(_ context.Context, event, severity string, attrs ...any) {
	m := make(map[string]any, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		m[key] = attrs[i+1]
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, auditEvent{event: event, severity: severity, attrs: m})
}

func (a *captureAudit) last() auditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return auditEvent{}
	}
	return a.events[len(a.events)-1]
}

func (a *captureAudit) find(event string) (auditEvent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e.event == event {
			return e, true
		}
	}
	return auditEvent{}, false
}

// brokenStore fails every operation, standing in for a store outage.
type brokenStore struct{}

var errStoreDown = errors.New("connection refused")

func (brokenStore) Create(context.Context, *domain.Session) error { return errStoreDown }
func (brokenStore) Get(context.Context, string) (*domain.Session, error) {
	return nil, errStoreDown
}
func (brokenStore) UpdateLastActive(context.Context, string, time.Time) error { return errStoreDown }
func (brokenStore) Delete(context.Context, string) (bool, error)              { return false, errStoreDown }
func (brokenStore) DeleteInactiveBefore(context.Context, time.Time, int) (int64, error) {
	return 0, errStoreDown
}
func (brokenStore) Overview(context.Context, time.Time) (repository.Overview, error) {
	return repository.Overview{}, errStoreDown
}
func (brokenStore) Ping(context.Context) error { return errStoreDown }

func newTestManager(t *testing.T) (*Manager, *repository.MemorySessionStore, *fakeClock, *captureAudit) {
	t.Helper()
	store := repository.NewMemorySessionStore()
	clock := newFakeClock()
	audit := &captureAudit{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := NewManager(store, clock, audit, logger, ManagerConfig{})
	return mgr, store, clock, audit
}

func testInput() CreateInput {
	return CreateInput{
		UserID:    "108123456789",
		Email:     "alice@example.com",
		Name:      "Alice",
		Picture:   "https://example.com/alice.png",
		ClientIP:  "1.2.3.4",
		UserAgent: "TestAgent",
	}
}

func TestCreateValidateRoundTrip(t *testing.T) {
	ctx := context.Background()
	mgr, _, _, audit := newTestManager(t)

	sessionID, err := mgr.Create(ctx, testInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sessionID == "" {
		t.Fatal("expected non-empty session id")
	}
	if e, ok := audit.find(observability.EventSessionCreated); !ok {
		t.Fatal("expected session_created audit event")
	} else if e.attrs["session_prefix"] == sessionID {
		t.Fatal("audit event must not carry the full session id")
	}

	identity, err := mgr.Validate(ctx, sessionID, "1.2.3.4", "TestAgent")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	want := domain.Identity{
		UserID:  "108123456789",
		Email:   "alice@example.com",
		Name:    "Alice",
		Picture: "https://example.com/alice.png",
	}
	if *identity != want {
		t.Fatalf("identity mismatch: got %+v want %+v", identity, want)
	}
	if e, ok := audit.find(observability.EventSessionValidated); !ok {
		t.Fatal("expected session_validated audit event")
	} else if e.severity != observability.SeverityInfo {
		t.Fatalf("validation success audits at info; got %q", e.severity)
	}
}

func TestCreateMissingFields(t *testing.T) {
	ctx := context.Background()
	mgr, _, _, _ := newTestManager(t)

	for _, tc := range []struct {
		name string
		in   CreateInput
	}{
		{"user_id", CreateInput{Email: "a@b.c", Name: "A"}},
		{"email", CreateInput{UserID: "1", Name: "A"}},
		{"name", CreateInput{UserID: "1", Email: "a@b.c"}},
	} {
		if _, err := mgr.Create(ctx, tc.in); !errors.Is(err, ErrMissingField) {
			t.Fatalf("%s: expected ErrMissingField, got %v", tc.name, err)
		}
	}
}

func TestValidateNotFound(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	if _, err := mgr.Validate(context.Background(), "does-not-exist", "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateEmptyIDIsUnauthenticated(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	_, err := mgr.Validate(context.Background(), "", "1.2.3.4", "TestAgent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !IsInvalidSession(err) {
		t.Fatal("empty session id must read as unauthenticated, not an infrastructure error")
	}
}

func TestValidateExpiredDeletesThenNotFound(t *testing.T) {
	ctx := context.Background()
	mgr, store, clock, audit := newTestManager(t)

	sessionID, err := mgr.Create(ctx, testInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.Advance(DefaultSessionTTL + time.Second)
	if _, err := mgr.Validate(ctx, sessionID, "1.2.3.4", "TestAgent"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if e, ok := audit.find(observability.EventSessionExpired); !ok {
		t.Fatal("expected session_expired audit event")
	} else if e.severity != observability.SeverityInfo {
		t.Fatalf("expiry is not a violation; got severity %q", e.severity)
	}
	if store.Len() != 0 {
		t.Fatal("expected expired session purged")
	}

	if _, err := mgr.Validate(ctx, sessionID, "1.2.3.4", "TestAgent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after purge, got %v", err)
	}
}

func TestValidateExpiryBoundaryIsExclusive(t *testing.T) {
	ctx := context.Background()
	mgr, _, clock, _ := newTestManager(t)

	sessionID, err := mgr.Create(ctx, testInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// expires_at == now counts as expired.
	clock.Advance(DefaultSessionTTL)
	if _, err := mgr.Validate(ctx, sessionID, "", ""); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired at exact expiry instant, got %v", err)
	}
}

func TestValidateIPMismatchScenario(t *testing.T) {
	ctx := context.Background()
	mgr, store, clock, audit := newTestManager(t)

	sessionID, err := mgr.Create(ctx, testInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.Advance(time.Minute)
	if _, err := mgr.Validate(ctx, sessionID, "1.2.3.4", "TestAgent"); err != nil {
		t.Fatalf("matching validate: %v", err)
	}
	sess, err := store.Get(ctx, sessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !sess.LastActive.Equal(clock.Now()) {
		t.Fatalf("last_active did not advance: %v", sess.LastActive)
	}
	if !sess.ExpiresAt.Equal(sess.CreatedAt.Add(DefaultSessionTTL)) {
		t.Fatal("expires_at must stay fixed from creation")
	}

	if _, err := mgr.Validate(ctx, sessionID, "9.9.9.9", "TestAgent"); !errors.Is(err, ErrIPMismatch) {
		t.Fatalf("expected ErrIPMismatch, got %v", err)
	}
	e, ok := audit.find(observability.EventSessionHijackAttempt)
	if !ok {
		t.Fatal("expected session_hijack_attempt audit event")
	}
	if e.severity != observability.SeverityHigh {
		t.Fatalf("expected high severity, got %q", e.severity)
	}
	if e.attrs["check"] != "ip" {
		t.Fatalf("expected ip check attribute, got %v", e.attrs["check"])
	}
	if store.Len() != 0 {
		t.Fatal("expected session removed after mismatch")
	}

	if _, err := mgr.Validate(ctx, sessionID, "1.2.3.4", "TestAgent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after violation delete, got %v", err)
	}
}

func TestValidateUserAgentMismatch(t *testing.T) {
	ctx := context.Background()
	mgr, store, _, audit := newTestManager(t)

	sessionID, err := mgr.Create(ctx, testInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := mgr.Validate(ctx, sessionID, "1.2.3.4", "EvilAgent"); !errors.Is(err, ErrUserAgentMismatch) {
		t.Fatalf("expected ErrUserAgentMismatch, got %v", err)
	}
	if e, ok := audit.find(observability.EventSessionHijackAttempt); !ok || e.attrs["check"] != "user_agent" {
		t.Fatalf("expected user_agent hijack audit, got %+v ok=%v", e, ok)
	}
	if store.Len() != 0 {
		t.Fatal("expected session removed after mismatch")
	}
}

func TestValidateSkipsChecksWithoutCallerInputs(t *testing.T) {
	ctx := context.Background()
	mgr, _, _, _ := newTestManager(t)

	sessionID, err := mgr.Create(ctx, testInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// No IP/UA supplied: binding checks are skipped, not failed.
	if _, err := mgr.Validate(ctx, sessionID, "", ""); err != nil {
		t.Fatalf("validate without fingerprint inputs: %v", err)
	}
}

func TestValidateSkipsChecksWithoutStoredHashes(t *testing.T) {
	ctx := context.Background()
	mgr, _, _, _ := newTestManager(t)

	in := testInput()
	in.ClientIP = ""
	in.UserAgent = ""
	sessionID, err := mgr.Create(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Session predates fingerprint capture: absence of binding data must
	// never escalate to a violation.
	if _, err := mgr.Validate(ctx, sessionID, "5.6.7.8", "OtherAgent"); err != nil {
		t.Fatalf("validate against unbound session: %v", err)
	}
}

func TestValidateExpiredWinsOverMismatch(t *testing.T) {
	ctx := context.Background()
	mgr, _, clock, audit := newTestManager(t)

	sessionID, err := mgr.Create(ctx, testInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.Advance(DefaultSessionTTL + time.Hour)
	if _, err := mgr.Validate(ctx, sessionID, "9.9.9.9", "EvilAgent"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired to win over mismatch, got %v", err)
	}
	if _, ok := audit.find(observability.EventSessionHijackAttempt); ok {
		t.Fatal("expired session must not be reported as a hijack")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	mgr, _, _, audit := newTestManager(t)

	sessionID, err := mgr.Create(ctx, testInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted, err := mgr.Delete(ctx, sessionID, domain.ReasonLogout)
	if err != nil || !deleted {
		t.Fatalf("first delete: deleted=%v err=%v", deleted, err)
	}
	e := audit.last()
	if e.event != observability.EventSessionDeleted || e.attrs["reason"] != domain.ReasonLogout {
		t.Fatalf("expected session_deleted audit with logout reason, got %+v", e)
	}
	if e.attrs["user_id"] != "108123456789" {
		t.Fatalf("expected pre-delete user_id on audit event, got %v", e.attrs["user_id"])
	}

	deleted, err = mgr.Delete(ctx, sessionID, domain.ReasonLogout)
	if err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}
	if e := audit.last(); e.attrs["deleted"] != false {
		t.Fatalf("expected audit for no-op delete, got %+v", e)
	}
}

func TestSweepRetentionWindow(t *testing.T) {
	ctx := context.Background()
	mgr, store, clock, _ := newTestManager(t)

	staleID, err := mgr.Create(ctx, testInput())
	if err != nil {
		t.Fatalf("create stale: %v", err)
	}

	clock.Advance(DefaultRetention + time.Minute)
	in := testInput()
	in.UserID = "other-user"
	freshID, err := mgr.Create(ctx, in)
	if err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	deleted, err := mgr.Sweep(ctx, 0)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	if _, err := store.Get(ctx, staleID); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatal("expected inactive session swept despite valid expires_at")
	}
	if _, err := store.Get(ctx, freshID); err != nil {
		t.Fatalf("expected fresh session to survive: %v", err)
	}
}

func TestSweepKeepsRecentlyValidatedSessions(t *testing.T) {
	ctx := context.Background()
	mgr, store, clock, _ := newTestManager(t)

	sessionID, err := mgr.Create(ctx, testInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Activity inside the retention window resets the inactivity timer.
	clock.Advance(DefaultRetention - time.Hour)
	if _, err := mgr.Validate(ctx, sessionID, "1.2.3.4", "TestAgent"); err != nil {
		t.Fatalf("validate: %v", err)
	}
	clock.Advance(2 * time.Hour)

	deleted, err := mgr.Sweep(ctx, 0)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0 deleted, got %d", deleted)
	}
	if _, err := store.Get(ctx, sessionID); err != nil {
		t.Fatalf("expected session to survive: %v", err)
	}
}

func TestStoreOutageSurfacesAsStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := NewManager(brokenStore{}, newFakeClock(), &captureAudit{}, logger, ManagerConfig{})

	if _, err := mgr.Create(ctx, testInput()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("create: expected ErrStoreUnavailable, got %v", err)
	}
	_, err := mgr.Validate(ctx, "some-session", "", "")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("validate: expected ErrStoreUnavailable, got %v", err)
	}
	// An outage must not masquerade as "not logged in".
	if IsInvalidSession(err) {
		t.Fatal("store outage classified as invalid session")
	}
	if _, err := mgr.Delete(ctx, "some-session", domain.ReasonLogout); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("delete: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := mgr.Sweep(ctx, 0); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("sweep: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestOverview(t *testing.T) {
	ctx := context.Background()
	mgr, _, clock, _ := newTestManager(t)

	if _, err := mgr.Create(ctx, testInput()); err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(time.Hour)

	ov, err := mgr.Overview(ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Total != 1 || ov.Active != 1 || ov.Expired != 0 {
		t.Fatalf("unexpected overview: %+v", ov)
	}
}
