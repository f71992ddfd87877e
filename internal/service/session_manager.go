package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Bouza1/cloned-it/internal/domain"
	"github.com/Bouza1/cloned-it/internal/observability"
	"github.com/Bouza1/cloned-it/internal/repository"
	"github.com/Bouza1/cloned-it/internal/security"
)

const (
	DefaultSessionTTL     = 30 * 24 * time.Hour
	DefaultRetention      = 7 * 24 * time.Hour
	DefaultSweepBatchSize = 500
)

type ManagerConfig struct {
	TTL            time.Duration
	Retention      time.Duration
	SweepBatchSize int
}

// Manager owns the full session lifecycle: create, validate (with hijack
// detection), delete, and the inactivity sweep. It is the single
// implementation behind every deployment target; the transport in front of
// it is a replaceable adapter.
type Manager struct {
	store     repository.SessionStore
	clock     Clock
	audit     Auditor
	logger    *slog.Logger
	ttl       time.Duration
	retention time.Duration
	batchSize int
}

// CreateInput carries the identity-provider claims and optional client
// binding data for a new session. The caller has already verified the
// claims with the identity provider.
type CreateInput struct {
	UserID    string
	Email     string
	Name      string
	Picture   string
	ClientIP  string
	UserAgent string
}

func NewManager(store repository.SessionStore, clock Clock, audit Auditor, logger *slog.Logger, cfg ManagerConfig) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = DefaultSweepBatchSize
	}
	return &Manager{
		store:     store,
		clock:     clock,
		audit:     audit,
		logger:    logger,
		ttl:       cfg.TTL,
		retention: cfg.Retention,
		batchSize: cfg.SweepBatchSize,
	}
}

// Create persists a new session bound to the caller's identity claims and
// returns its opaque ID. One store write, one audit emission, no retries;
// a write failure surfaces as ErrStoreUnavailable and the login must be
// treated as failed.
func (m *Manager) Create(ctx context.Context, in CreateInput) (string, error) {
	switch {
	case in.UserID == "":
		observability.RecordSessionCreate("missing_field")
		return "", fmt.Errorf("%w: user_id", ErrMissingField)
	case in.Email == "":
		observability.RecordSessionCreate("missing_field")
		return "", fmt.Errorf("%w: email", ErrMissingField)
	case in.Name == "":
		observability.RecordSessionCreate("missing_field")
		return "", fmt.Errorf("%w: name", ErrMissingField)
	}

	sessionID, err := security.NewSessionID()
	if err != nil {
		observability.RecordSessionCreate("error")
		return "", err
	}

	now := m.clock.Now().UTC()
	sess := &domain.Session{
		ID:         sessionID,
		UserID:     in.UserID,
		Email:      in.Email,
		Name:       in.Name,
		Picture:    in.Picture,
		CreatedAt:  now,
		LastActive: now,
		ExpiresAt:  now.Add(m.ttl),
		IPHash:     security.Fingerprint(in.ClientIP),
		UAHash:     security.Fingerprint(in.UserAgent),
	}
	if err := m.store.Create(ctx, sess); err != nil {
		observability.RecordSessionCreate("store_error")
		return "", m.storeErr("create session", err)
	}

	observability.RecordSessionCreate("success")
	m.audit.Emit(ctx, observability.EventSessionCreated, observability.SeverityInfo,
		"user_id", in.UserID,
		"session_prefix", security.LogPrefix(sessionID),
		"ip_hash_prefix", security.LogPrefix(sess.IPHash),
		"expires_at", sess.ExpiresAt,
	)
	return sessionID, nil
}

// Validate checks a presented session ID against the store and the client's
// current fingerprint. Checks run in strict order: existence, expiry, IP
// binding, User-Agent binding. Expiry and fingerprint mismatches delete the
// session as a side effect; absent binding data skips the check rather than
// failing it. A valid session gets its last_active moved to now; expires_at
// never slides.
func (m *Manager) Validate(ctx context.Context, sessionID, clientIP, userAgent string) (*domain.Identity, error) {
	// An empty ID is indistinguishable from an unknown one to the caller;
	// both must read as unauthenticated, never as an infrastructure error.
	if sessionID == "" {
		observability.RecordSessionValidate("not_found")
		return nil, ErrNotFound
	}

	sess, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		observability.RecordSessionValidate("not_found")
		m.logger.InfoContext(ctx, "session not found",
			"session_prefix", security.LogPrefix(sessionID))
		return nil, ErrNotFound
	}
	if err != nil {
		observability.RecordSessionValidate("store_error")
		return nil, m.storeErr("get session", err)
	}

	now := m.clock.Now().UTC()
	if sess.IsExpired(now) {
		m.deleteAfterViolation(ctx, sess)
		observability.RecordSessionValidate("expired")
		m.audit.Emit(ctx, observability.EventSessionExpired, observability.SeverityInfo,
			"user_id", sess.UserID,
			"session_prefix", security.LogPrefix(sess.ID),
			"expired_at", sess.ExpiresAt,
		)
		return nil, ErrExpired
	}

	if clientIP != "" && sess.IPHash != "" {
		presented := security.Fingerprint(clientIP)
		if !security.FingerprintEqual(presented, sess.IPHash) {
			m.deleteAfterViolation(ctx, sess)
			observability.RecordSessionValidate("ip_mismatch")
			m.audit.Emit(ctx, observability.EventSessionHijackAttempt, observability.SeverityHigh,
				"user_id", sess.UserID,
				"session_prefix", security.LogPrefix(sess.ID),
				"check", "ip",
				"stored_hash_prefix", security.LogPrefix(sess.IPHash),
				"presented_hash_prefix", security.LogPrefix(presented),
			)
			return nil, ErrIPMismatch
		}
	}

	if userAgent != "" && sess.UAHash != "" {
		presented := security.Fingerprint(userAgent)
		if !security.FingerprintEqual(presented, sess.UAHash) {
			m.deleteAfterViolation(ctx, sess)
			observability.RecordSessionValidate("user_agent_mismatch")
			m.audit.Emit(ctx, observability.EventSessionHijackAttempt, observability.SeverityHigh,
				"user_id", sess.UserID,
				"session_prefix", security.LogPrefix(sess.ID),
				"check", "user_agent",
				"stored_hash_prefix", security.LogPrefix(sess.UAHash),
				"presented_hash_prefix", security.LogPrefix(presented),
			)
			return nil, ErrUserAgentMismatch
		}
	}

	if err := m.store.UpdateLastActive(ctx, sess.ID, now); err != nil {
		if !errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordSessionValidate("store_error")
			return nil, m.storeErr("touch session", err)
		}
		// Lost a race with a concurrent delete; the read already succeeded
		// and last_active is advisory, so the validation stands.
	}

	observability.RecordSessionValidate("success")
	identity := sess.Identity()
	m.audit.Emit(ctx, observability.EventSessionValidated, observability.SeverityInfo,
		"user_id", identity.UserID,
		"session_prefix", security.LogPrefix(sess.ID),
	)
	return &identity, nil
}

// Delete removes a session and audits the removal with the supplied reason.
// Idempotent: deleting an unknown session returns false, not an error.
func (m *Manager) Delete(ctx context.Context, sessionID, reason string) (bool, error) {
	var userID string
	sess, err := m.store.Get(ctx, sessionID)
	switch {
	case err == nil:
		userID = sess.UserID
	case errors.Is(err, repository.ErrSessionNotFound):
	default:
		observability.RecordSessionDelete(reason, "store_error")
		return false, m.storeErr("get session", err)
	}

	deleted, err := m.store.Delete(ctx, sessionID)
	if err != nil {
		observability.RecordSessionDelete(reason, "store_error")
		return false, m.storeErr("delete session", err)
	}

	status := "not_found"
	if deleted {
		status = "success"
	}
	observability.RecordSessionDelete(reason, status)
	m.audit.Emit(ctx, observability.EventSessionDeleted, observability.SeverityInfo,
		"user_id", userID,
		"session_prefix", security.LogPrefix(sessionID),
		"reason", reason,
		"deleted", deleted,
	)
	return deleted, nil
}

// Sweep deletes sessions whose last_active is older than the retention
// window, independent of expires_at. Runs in bounded batches; already
// deleted batches survive a mid-sweep failure and the count covers them.
func (m *Manager) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = m.retention
	}
	cutoff := m.clock.Now().UTC().Add(-retention)
	deleted, err := m.store.DeleteInactiveBefore(ctx, cutoff, m.batchSize)
	observability.RecordSweepDeleted(deleted)
	if err != nil {
		return deleted, m.storeErr("sweep sessions", err)
	}
	m.audit.Emit(ctx, observability.EventSessionSweep, observability.SeverityInfo,
		"deleted_count", deleted,
		"cutoff", cutoff,
	)
	return deleted, nil
}

// Overview reports stored-session counts for the admin stats endpoint.
func (m *Manager) Overview(ctx context.Context) (repository.Overview, error) {
	ov, err := m.store.Overview(ctx, m.clock.Now().UTC())
	if err != nil {
		return repository.Overview{}, m.storeErr("session overview", err)
	}
	return ov, nil
}

// deleteAfterViolation removes a session whose validation failed terminally.
// Best effort: the validation outcome is already decided, so a failed delete
// is logged rather than escalated, and a concurrent delete is a no-op.
func (m *Manager) deleteAfterViolation(ctx context.Context, sess *domain.Session) {
	if _, err := m.store.Delete(ctx, sess.ID); err != nil {
		m.logger.WarnContext(ctx, "failed to delete invalidated session",
			"session_prefix", security.LogPrefix(sess.ID),
			"error", err)
	}
}

func (m *Manager) storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
