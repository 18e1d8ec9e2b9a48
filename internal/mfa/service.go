// Package mfa issues and verifies the emailed 6-digit sign-in code.
package mfa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/devotp"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/logging"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/mailer"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/policy/engine"
	sessiondomain "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session/domain"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/slot"
	userrepo "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/repository"
)

var (
	// ErrNotFound is returned by Issue when no user has the email.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCode is returned by Verify when no code is pending or the code does not match.
	ErrInvalidCode = errors.New("invalid code")
	// ErrExpiredCode is returned by Verify when the code matches but is past its expiry.
	ErrExpiredCode = errors.New("code expired")
)

// DefaultTTL is how long an issued code stays valid.
const DefaultTTL = 5 * time.Minute

const mailSubject = "Your sign-in code"

// PasskeyCounter counts a user's registered passkeys.
type PasskeyCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

// CodeService issues and verifies email sign-in codes. Each user has at most one pending code.
type CodeService struct {
	users    userrepo.Repository
	passkeys PasskeyCounter
	slots    slot.Store
	sender   mailer.Sender
	policy   engine.Evaluator
	devStore devotp.Store
	ttl      time.Duration
	logger   *zap.Logger
	nowF     func() time.Time
}

// Option configures a CodeService.
type Option func(*CodeService)

// WithPolicy sets the next-step policy. Without it the built-in rule applies.
func WithPolicy(p engine.Evaluator) Option {
	return func(s *CodeService) { s.policy = p }
}

// WithDevStore copies every issued code into store for GET /dev/otp.
func WithDevStore(store devotp.Store) Option {
	return func(s *CodeService) { s.devStore = store }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *CodeService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *CodeService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *CodeService) { s.nowF = now }
}

// NewCodeService returns a CodeService.
func NewCodeService(users userrepo.Repository, passkeys PasskeyCounter, slots slot.Store, sender mailer.Sender, opts ...Option) *CodeService {
	s := &CodeService{
		users:    users,
		passkeys: passkeys,
		slots:    slots,
		sender:   sender,
		ttl:      DefaultTTL,
		logger:   zap.NewNop(),
		nowF:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a new code for the user with email, replaces any pending one and mails it.
// If sending fails the error is returned but the stored code is kept; a later Issue overwrites it.
func (s *CodeService) Issue(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return ErrNotFound
	}
	code, err := GenerateOTP()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	expiresAt := s.nowF().Add(s.ttl)
	if err := s.slots.Put(ctx, slot.OTPKey(u.ID), slot.Record{
		Secret:    HashOTP(code),
		ExpiresAt: expiresAt,
	}); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	if s.devStore != nil {
		s.devStore.Put(ctx, u.Email, code, expiresAt)
	}

	text, html := renderCodeMail(code, s.ttl)
	msgID, err := s.sender.Send(ctx, u.Email, mailSubject, text, html)
	if err != nil {
		s.logger.Error("mfa: send code failed",
			zap.String("user_id", u.ID),
			zap.String("email", logging.MaskEmail(u.Email)),
			zap.Error(err),
		)
		return fmt.Errorf("send code: %w", err)
	}
	s.logger.Info("mfa: code issued",
		zap.String("user_id", u.ID),
		zap.String("message_id", msgID),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}

// Verify checks code against the user's pending code. On success the code is consumed,
// two_factor_verified_at is stamped and the next step is decided from the user's passkey count.
// A wrong or expired code leaves the pending code in place.
func (s *CodeService) Verify(ctx context.Context, userID, code string) (engine.NextStep, error) {
	now := s.nowF()
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrInvalidCode
	}
	out, _, err := s.slots.Consume(ctx, slot.OTPKey(userID), HashOTP(code), now)
	if err != nil {
		return "", fmt.Errorf("consume code: %w", err)
	}
	switch out {
	case slot.NotFound, slot.Mismatch:
		return "", ErrInvalidCode
	case slot.Expired:
		return "", ErrExpiredCode
	}

	if err := s.users.MarkTwoFactorVerified(ctx, userID, now); err != nil {
		return "", fmt.Errorf("mark two-factor verified: %w", err)
	}
	count, err := s.passkeys.CountByUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("count passkeys: %w", err)
	}
	want := engine.DefaultNextStep(count)
	if s.policy == nil {
		return want, nil
	}
	step, err := s.policy.NextStep(ctx, engine.Input{
		UserID:       userID,
		PasskeyCount: count,
		Methods:      []string{string(sessiondomain.MethodPassword), string(sessiondomain.MethodOTP)},
	})
	if err != nil {
		return "", err
	}
	// Only the passkey count decides the route; a policy cannot send a user
	// without passkeys to verification or skip verification for one who has them.
	if step != want {
		s.logger.Warn("mfa: policy next step overridden",
			zap.String("user_id", userID),
			zap.Int("passkey_count", count),
			zap.String("policy_step", string(step)),
			zap.String("step", string(want)),
		)
		return want, nil
	}
	return step, nil
}

func renderCodeMail(code string, ttl time.Duration) (text, html string) {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	text = fmt.Sprintf("Your sign-in code is %s.\n\nIt expires in %d minutes. If you did not try to sign in, you can ignore this email.\n", code, minutes)
	html = fmt.Sprintf(`<p>Your sign-in code is</p><p style="font-size:24px;font-weight:bold;letter-spacing:4px">%s</p><p>It expires in %d minutes. If you did not try to sign in, you can ignore this email.</p>`, code, minutes)
	return text, html
}
