package passkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/domain"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/repository"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/slot"
	userdomain "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/domain"
	userrepo "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/repository"
)

// Registration enrolls new passkeys for signed-in users and manages the ones they have.
type Registration struct {
	users    userrepo.Repository
	repo     repository.Repository
	slots    slot.Store
	verifier Verifier
	ttl      time.Duration
	logger   *zap.Logger
	nowF     func() time.Time
}

// NewRegistration returns a Registration. ttl <= 0 uses DefaultChallengeTTL.
func NewRegistration(users userrepo.Repository, repo repository.Repository, slots slot.Store, verifier Verifier, ttl time.Duration, logger *zap.Logger) *Registration {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registration{
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
func (r *Registration) SetClock(now func() time.Time) {
	r.nowF = now
}

// Begin creates registration options for userID and stores the challenge in the user's slot,
// replacing any pending one.
func (r *Registration) Begin(ctx context.Context, userID string) (*Options, error) {
	u, err := r.owner(ctx, userID)
	if err != nil {
		return nil, err
	}
	existing, err := r.repo.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list authenticators: %w", err)
	}
	c, err := r.verifier.BuildRegistrationOptions(ownerOf(u), existing)
	if err != nil {
		return nil, fmt.Errorf("build registration options: %w", err)
	}
	expiresAt := r.nowF().Add(r.ttl)
	if err := r.slots.Put(ctx, slot.ChallengeKey(u.ID), slot.Record{
		Secret:    c.Challenge,
		ExpiresAt: expiresAt,
		Payload:   c.State,
	}); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	return &Options{Challenge: c.Challenge, PublicKey: c.Options, ExpiresAt: expiresAt}, nil
}

// Complete verifies the attestation against the pending challenge and stores the new authenticator.
// The challenge is cleared only on success.
func (r *Registration) Complete(ctx context.Context, userID string, response []byte) (*domain.Authenticator, error) {
	u, err := r.owner(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := r.nowF()
	key := slot.ChallengeKey(u.ID)
	rec, err := r.slots.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if rec == nil || rec.Expired(now) {
		return nil, ErrSessionExpired
	}

	cred, err := r.verifier.VerifyRegistration(ownerOf(u), rec.Payload, response)
	if err != nil {
		r.logger.Info("passkey: registration rejected", zap.String("user_id", u.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	a := &domain.Authenticator{
		ID:                  uuid.NewString(),
		UserID:              u.ID,
		CredentialID:        cred.CredentialID,
		CredentialPublicKey: cred.PublicKey,
		Counter:             cred.Counter,
		DeviceType:          domain.DeviceTypeFor(cred.BackupEligible),
		BackedUp:            cred.BackedUp,
		Transports:          cred.Transports,
		CreatedAt:           now.UTC(),
	}
	if err := r.repo.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicateCredential) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create authenticator: %w", err)
	}
	if err := r.slots.Delete(ctx, key); err != nil {
		r.logger.Warn("passkey: clear challenge failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	r.logger.Info("passkey: registered",
		zap.String("user_id", u.ID),
		zap.String("authenticator_id", a.ID),
		zap.String("device_type", string(a.DeviceType)),
	)
	return a, nil
}

// List returns the user's passkeys, oldest first.
func (r *Registration) List(ctx context.Context, userID string) ([]*domain.Authenticator, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	list, err := r.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list authenticators: %w", err)
	}
	return list, nil
}

// Delete removes one of the user's passkeys. ErrNotFound when the user does not own it.
func (r *Registration) Delete(ctx context.Context, userID, authenticatorID string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	if authenticatorID == "" {
		return ErrNotFound
	}
	ok, err := r.repo.DeleteByUser(ctx, userID, authenticatorID)
	if err != nil {
		return fmt.Errorf("delete authenticator: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *Registration) owner(ctx context.Context, userID string) (*userdomain.User, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, ErrUnauthorized
	}
	return u, nil
}

func ownerOf(u *userdomain.User) Owner {
	return Owner{ID: u.ID, Email: u.Email, Name: u.Name}
}
