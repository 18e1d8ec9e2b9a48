package passkey

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/domain"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/repository"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/slot"
	userdomain "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/domain"
	userrepo "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/repository"
)

// Result is a completed passkey authentication.
type Result struct {
	User          *userdomain.User
	Authenticator *domain.Authenticator
}

// Authentication signs users in with a registered passkey.
type Authentication struct {
	users    userrepo.Repository
	repo     repository.Repository
	slots    slot.Store
	verifier Verifier
	ttl      time.Duration
	logger   *zap.Logger
	nowF     func() time.Time
}

// NewAuthentication returns an Authentication. ttl <= 0 uses DefaultChallengeTTL.
func NewAuthentication(users userrepo.Repository, repo repository.Repository, slots slot.Store, verifier Verifier, ttl time.Duration, logger *zap.Logger) *Authentication {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authentication{
		users:    users,
		repo:     repo,
		slots:    slots,
		verifier: verifier,
		ttl:      ttl,
		logger:   logger,
		nowF:     time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (a *Authentication) SetClock(now func() time.Time) {
	a.nowF = now
}

// Begin creates authentication options. With an email the allow-list is that user's passkeys and the
// challenge goes to the user's slot; without one the ceremony is discoverable and the challenge is
// stored under itself.
func (a *Authentication) Begin(ctx context.Context, email string) (*Options, error) {
	var (
		c   *Ceremony
		key slot.Key
		err error
	)
	if email == "" {
		c, err = a.verifier.BuildAuthenticationOptions(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("build authentication options: %w", err)
		}
		key = slot.DiscoverableKey(c.Challenge)
	} else {
		u, uerr := a.users.GetByEmail(ctx, email)
		if uerr != nil {
			return nil, fmt.Errorf("get user: %w", uerr)
		}
		if u == nil {
			return nil, ErrNotFound
		}
		allow, lerr := a.repo.ListByUser(ctx, u.ID)
		if lerr != nil {
			return nil, fmt.Errorf("list authenticators: %w", lerr)
		}
		owner := ownerOf(u)
		c, err = a.verifier.BuildAuthenticationOptions(&owner, allow)
		if err != nil {
			return nil, fmt.Errorf("build authentication options: %w", err)
		}
		key = slot.ChallengeKey(u.ID)
	}

	expiresAt := a.nowF().Add(a.ttl)
	if err := a.slots.Put(ctx, key, slot.Record{
		Secret:    c.Challenge,
		ExpiresAt: expiresAt,
		Payload:   c.State,
	}); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	return &Options{Challenge: c.Challenge, PublicKey: c.Options, ExpiresAt: expiresAt}, nil
}

// Complete verifies an assertion for challenge. Checks run in order: the credential must be
// registered, the challenge must be pending for its owner (or discoverable), unexpired, the
// assertion must verify and the signature counter must advance. Only then is the challenge
// consumed, the counter persisted and two_factor_verified_at stamped.
func (a *Authentication) Complete(ctx context.Context, response []byte, challenge string) (*Result, error) {
	credentialID, err := a.verifier.CredentialID(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	stored, err := a.repo.GetByCredentialID(ctx, credentialID)
	if err != nil {
		return nil, fmt.Errorf("get authenticator: %w", err)
	}
	if stored == nil {
		return nil, ErrPasskeyNotFound
	}
	u, err := a.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, ErrPasskeyNotFound
	}

	key, rec, err := a.resolveChallenge(ctx, u.ID, challenge)
	if err != nil {
		return nil, err
	}
	now := a.nowF()
	if rec.Expired(now) {
		return nil, ErrChallengeExpired
	}

	verified, err := a.verifier.VerifyAuthentication(ownerOf(u), rec.Payload, response, stored)
	if err != nil {
		a.logger.Info("passkey: assertion rejected", zap.String("user_id", u.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if !counterAdvanced(stored.Counter, verified.Counter) {
		a.logger.Warn("passkey: signature counter did not advance",
			zap.String("user_id", u.ID),
			zap.String("authenticator_id", stored.ID),
			zap.Uint32("stored", stored.Counter),
			zap.Uint32("reported", verified.Counter),
		)
		return nil, ErrAuthenticationFailed
	}

	out, _, err := a.slots.Consume(ctx, key, challenge, now)
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}
	switch out {
	case slot.Match:
	case slot.Expired:
		return nil, ErrChallengeExpired
	default:
		// Another completion won the race, or a new begin replaced the challenge.
		return nil, ErrInvalidChallenge
	}

	if err := a.repo.UpdateCounter(ctx, stored.ID, verified.Counter, now); err != nil {
		return nil, fmt.Errorf("update counter: %w", err)
	}
	if err := a.users.MarkTwoFactorVerified(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("mark two-factor verified: %w", err)
	}
	stored.Counter = verified.Counter
	stored.BackedUp = verified.BackedUp
	usedAt := now.UTC()
	stored.LastUsedAt = &usedAt
	verifiedAt := usedAt
	u.TwoFactorVerifiedAt = &verifiedAt
	return &Result{User: u, Authenticator: stored}, nil
}

// resolveChallenge finds the pending slot holding challenge: the owner's own slot first, then the
// discoverable slot keyed by the challenge.
func (a *Authentication) resolveChallenge(ctx context.Context, userID, challenge string) (slot.Key, *slot.Record, error) {
	if challenge == "" {
		return slot.Key{}, nil, ErrInvalidChallenge
	}
	key := slot.ChallengeKey(userID)
	rec, err := a.slots.Get(ctx, key)
	if err != nil {
		return slot.Key{}, nil, fmt.Errorf("load challenge: %w", err)
	}
	if rec != nil && rec.Secret == challenge {
		return key, rec, nil
	}
	key = slot.DiscoverableKey(challenge)
	rec, err = a.slots.Get(ctx, key)
	if err != nil {
		return slot.Key{}, nil, fmt.Errorf("load challenge: %w", err)
	}
	if rec != nil && rec.Secret == challenge {
		return key, rec, nil
	}
	return slot.Key{}, nil, ErrInvalidChallenge
}

// counterAdvanced reports whether reported is acceptable after stored. Authenticators that do not
// implement counters report zero forever; once either side is non-zero the counter must strictly grow.
func counterAdvanced(stored, reported uint32) bool {
	if stored == 0 && reported == 0 {
		return true
	}
	return reported > stored
}
