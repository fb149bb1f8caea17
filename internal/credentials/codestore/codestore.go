// Package codestore keeps time-bound, single-use secrets: numeric
// verification codes and password-reset tokens. Each (subject, purpose) pair
// holds at most one live record. Expiry is evaluated lazily on consume.
package codestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/domain"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/cryptox"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/idx"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"
)

// maxSettle bounds the re-read loop after a lost consume race.
const maxSettle = 3

// CodeStore issues and consumes verification records in Store. It keeps no
// state of its own, so any number of instances may share one Store.
type CodeStore struct {
	Store store.Store
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

// New returns a CodeStore over s using the wall clock.
func New(s store.Store) *CodeStore {
	return &CodeStore{Store: s}
}

// WithStore returns a copy bound to s, typically a store.Tx.
func (c *CodeStore) WithStore(s store.Store) *CodeStore {
	cp := *c
	cp.Store = s
	return &cp
}

// Now is the store's clock in UTC.
func (c *CodeStore) Now() time.Time {
	if c.Clock != nil {
		return c.Clock().UTC()
	}
	return time.Now().UTC()
}

// Issue replaces whatever record subjectID holds for purpose with a fresh one
// for secret. Concurrent issues for the same pair resolve last writer wins.
func (c *CodeStore) Issue(ctx context.Context, subjectID int64, purpose domain.Purpose, secret string, ttl time.Duration) (domain.VerificationRecord, error) {
	if ttl <= 0 {
		return domain.VerificationRecord{}, ErrInvalidTTL
	}
	if !purpose.Valid() {
		return domain.VerificationRecord{}, fmt.Errorf("codestore: unknown purpose %q", purpose)
	}
	if strings.TrimSpace(secret) == "" {
		return domain.VerificationRecord{}, errors.New("codestore: empty secret")
	}

	now := c.Now()
	rec := domain.VerificationRecord{
		ID:         idx.NewAt(now),
		SubjectID:  subjectID,
		Purpose:    purpose,
		SecretHash: cryptox.FingerprintToken(secret),
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := c.Store.Verifications().Upsert(ctx, rec); err != nil {
		return domain.VerificationRecord{}, fmt.Errorf("codestore: issue %s for %d: %w", purpose, subjectID, err)
	}

	slogx.FromContext(ctx).Debug("verification record issued",
		"subject_id", subjectID, "purpose", purpose, "record_id", rec.ID, "expires_at", rec.ExpiresAt)
	return rec, nil
}

// Consume checks candidate against the live record for (subjectID, purpose).
// The error is reserved for storage failures; every business outcome is a
// Result.
func (c *CodeStore) Consume(ctx context.Context, subjectID int64, purpose domain.Purpose, candidate string) (Result, error) {
	load := func() (domain.VerificationRecord, error) {
		return c.Store.Verifications().Get(ctx, subjectID, purpose)
	}
	res, _, err := c.consume(ctx, load, candidate)
	return res, err
}

// ConsumeSecret is Consume for flows where only the secret is known, such as
// password reset links. A secret that has since been replaced by a newer
// issue is NotFound.
func (c *CodeStore) ConsumeSecret(ctx context.Context, purpose domain.Purpose, candidate string) (Result, domain.VerificationRecord, error) {
	fp := cryptox.FingerprintToken(candidate)
	load := func() (domain.VerificationRecord, error) {
		return c.Store.Verifications().GetBySecretHash(ctx, purpose, fp)
	}
	return c.consume(ctx, load, candidate)
}

// Lookup returns the current record without mutating it.
func (c *CodeStore) Lookup(ctx context.Context, subjectID int64, purpose domain.Purpose) (domain.VerificationRecord, error) {
	rec, err := c.Store.Verifications().Get(ctx, subjectID, purpose)
	if errors.Is(err, store.ErrNotFound) {
		return domain.VerificationRecord{}, ErrRecordNotFound
	}
	return rec, err
}

func (c *CodeStore) consume(
	ctx context.Context,
	load func() (domain.VerificationRecord, error),
	candidate string,
) (Result, domain.VerificationRecord, error) {
	fp := cryptox.FingerprintToken(candidate)
	logger := slogx.FromContext(ctx)

	for range maxSettle {
		rec, err := load()
		if errors.Is(err, store.ErrNotFound) {
			return NotFound, domain.VerificationRecord{}, nil
		}
		if err != nil {
			return 0, domain.VerificationRecord{}, fmt.Errorf("codestore: load: %w", err)
		}

		now := c.Now()
		switch {
		case rec.Consumed():
			return AlreadyUsed, rec, nil
		case rec.ExpiredAt(now):
			return Expired, rec, nil
		case !cryptox.EqualFingerprints(rec.SecretHash, fp):
			if err := c.Store.Verifications().IncrementAttempts(ctx, rec.ID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					// Replaced between load and increment.
					continue
				}
				return 0, rec, fmt.Errorf("codestore: count attempt: %w", err)
			}
			rec.Attempts++
			logger.Info("verification secret mismatch",
				"subject_id", rec.SubjectID, "purpose", rec.Purpose, "attempts", rec.Attempts)
			return Mismatch, rec, nil
		}

		ok, err := c.Store.Verifications().MarkConsumed(ctx, rec.ID, now)
		if err != nil {
			return 0, rec, fmt.Errorf("codestore: mark consumed: %w", err)
		}
		if ok {
			rec.ConsumedAt = &now
			return Success, rec, nil
		}
		// Lost the race to another consumer, or the record was reissued.
		// Reload and classify again.
	}
	return 0, domain.VerificationRecord{}, errors.New("codestore: consume did not settle")
}
