// Package signin orchestrates multi-factor sign-in: password, emailed code, then a passkey.
// Progress between requests travels in a signed continuation token; no step is inferred from
// scratch columns.
package signin

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/audit"
	auditdomain "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/audit/domain"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/logging"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/mfa"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey"
	passkeydomain "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/domain"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/policy/engine"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/security"
	sessiondomain "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session/domain"
)

const tracerName = "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/signin"

// CodeIssuer issues and verifies emailed sign-in codes.
type CodeIssuer interface {
	Issue(ctx context.Context, email string) error
	Verify(ctx context.Context, userID, code string) (engine.NextStep, error)
}

// RegistrationCeremony registers and manages a signed-in user's passkeys.
type RegistrationCeremony interface {
	Begin(ctx context.Context, userID string) (*passkey.Options, error)
	Complete(ctx context.Context, userID string, response []byte) (*passkeydomain.Authenticator, error)
	List(ctx context.Context, userID string) ([]*passkeydomain.Authenticator, error)
	Delete(ctx context.Context, userID, authenticatorID string) error
}

// AuthenticationCeremony signs a user in with a registered passkey.
type AuthenticationCeremony interface {
	Begin(ctx context.Context, email string) (*passkey.Options, error)
	Complete(ctx context.Context, response []byte, challenge string) (*passkey.Result, error)
}

// Deps holds the collaborators of a Flow. Audit, Tracer and Logger are optional.
type Deps struct {
	Users          UserLookup
	Authenticator  *Authenticator
	Codes          CodeIssuer
	Registration   RegistrationCeremony
	Authentication AuthenticationCeremony
	Sessions       SessionIssuer
	Tokens         *security.TokenProvider
	Audit          audit.AuditLogger
	Tracer         trace.Tracer
	Logger         *zap.Logger
}

// Flow is the sign-in state machine. Every operation returns a Result; the error is non-nil
// only for infrastructure failures, in which case the Result carries MessageInternal.
type Flow struct {
	users          UserLookup
	authn          *Authenticator
	codes          CodeIssuer
	registration   RegistrationCeremony
	authentication AuthenticationCeremony
	bridge         bridge
	sessions       SessionIssuer
	tokens         *security.TokenProvider
	audit          audit.AuditLogger
	tracer         trace.Tracer
	logger         *zap.Logger
}

// NewFlow returns a Flow wired to deps.
func NewFlow(deps Deps) *Flow {
	f := &Flow{
		users:          deps.Users,
		authn:          deps.Authenticator,
		codes:          deps.Codes,
		registration:   deps.Registration,
		authentication: deps.Authentication,
		bridge:         bridge{sessions: deps.Sessions},
		sessions:       deps.Sessions,
		tokens:         deps.Tokens,
		audit:          deps.Audit,
		tracer:         deps.Tracer,
		logger:         deps.Logger,
	}
	if f.audit == nil {
		f.audit = audit.Nop{}
	}
	if f.tracer == nil {
		f.tracer = otel.Tracer(tracerName)
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// BeginPasswordSignIn checks the password and mails a code. The failure message never
// reveals whether the email is registered.
func (f *Flow) BeginPasswordSignIn(ctx context.Context, email, password string) (res *Result, err error) {
	ctx, span := f.start(ctx, "BeginPasswordSignIn")
	defer func() { f.end(span, "BeginPasswordSignIn", res, err) }()

	p, err := f.authn.Authenticate(ctx, email, password)
	if err != nil {
		return f.internal(err)
	}
	if p == nil {
		f.audit.LogEvent(ctx, "", auditdomain.ActionSignInFailure, auditdomain.ResourceAuthentication,
			"email="+logging.MaskEmail(email))
		return fail(ErrInvalidCredentials), nil
	}
	if err := f.codes.Issue(ctx, p.Email); err != nil {
		if errors.Is(err, mfa.ErrNotFound) {
			return fail(ErrInvalidCredentials), nil
		}
		return f.internal(fmt.Errorf("issue code: %w", err))
	}
	token, err := f.advance(p.UserID, StateAnonymous, StateTwoFactorPending,
		[]sessiondomain.Method{sessiondomain.MethodPassword})
	if err != nil {
		return f.internal(err)
	}
	f.audit.LogEvent(ctx, p.UserID, auditdomain.ActionSignInPassword, auditdomain.ResourceAuthentication, "")
	f.audit.LogEvent(ctx, p.UserID, auditdomain.ActionTwoFactorIssued, auditdomain.ResourceAuthentication, "")

	res = ok("Verification code sent")
	res.UserID = p.UserID
	res.NextStep = NextStepVerifyCode
	res.State = StateTwoFactorPending
	res.Continuation = token
	return res, nil
}

// VerifyTwoFactor checks the emailed code for the user named by the continuation token. On
// success a session is issued and the client is routed to passkey setup or verification.
// userID is optional; when set it must match the continuation subject.
func (f *Flow) VerifyTwoFactor(ctx context.Context, continuation, userID, code string) (res *Result, err error) {
	ctx, span := f.start(ctx, "VerifyTwoFactor")
	defer func() { f.end(span, "VerifyTwoFactor", res, err) }()

	claims, err := f.resume(continuation, StateTwoFactorPending)
	if err != nil {
		return fail(err), nil
	}
	subject := claims.Subject
	span.SetAttributes(attribute.String("user.id", subject))
	if userID != "" && userID != subject {
		return fail(ErrUnauthorized), nil
	}

	step, err := f.codes.Verify(ctx, subject, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrExpiredCode) {
			f.audit.LogEvent(ctx, subject, auditdomain.ActionTwoFactorFailure, auditdomain.ResourceAuthentication, err.Error())
			return fail(err), nil
		}
		return f.internal(fmt.Errorf("verify code: %w", err))
	}

	methods := withMethod(methodsFromClaims(claims.Methods), sessiondomain.MethodOTP)
	tokens, err := f.bridge.complete(ctx, subject, methods)
	if err != nil {
		return f.internal(fmt.Errorf("issue session: %w", err))
	}
	next := stateForStep(step)
	token, err := f.advance(subject, StateTwoFactorPending, next, methods)
	if err != nil {
		return f.internal(err)
	}
	f.audit.LogEvent(ctx, subject, auditdomain.ActionTwoFactorVerified, auditdomain.ResourceAuthentication, string(step))

	res = ok("Verification successful")
	res.UserID = subject
	res.NextStep = string(step)
	res.State = next
	res.Continuation = token
	res.Session = tokens
	return res, nil
}

// ResendTwoFactor mails a fresh code for a pending continuation, invalidating the previous code.
func (f *Flow) ResendTwoFactor(ctx context.Context, continuation string) (res *Result, err error) {
	ctx, span := f.start(ctx, "ResendTwoFactor")
	defer func() { f.end(span, "ResendTwoFactor", res, err) }()

	claims, err := f.resume(continuation, StateTwoFactorPending)
	if err != nil {
		return fail(err), nil
	}
	u, err := f.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return f.internal(fmt.Errorf("get user: %w", err))
	}
	if u == nil {
		return fail(ErrNotFound), nil
	}
	if err := f.codes.Issue(ctx, u.Email); err != nil {
		if errors.Is(err, mfa.ErrNotFound) {
			return fail(ErrNotFound), nil
		}
		return f.internal(fmt.Errorf("issue code: %w", err))
	}
	token, err := f.advance(u.ID, StateTwoFactorPending, StateTwoFactorPending, methodsFromClaims(claims.Methods))
	if err != nil {
		return f.internal(err)
	}
	f.audit.LogEvent(ctx, u.ID, auditdomain.ActionTwoFactorIssued, auditdomain.ResourceAuthentication, "resend")

	res = ok("Verification code sent")
	res.UserID = u.ID
	res.NextStep = NextStepVerifyCode
	res.State = StateTwoFactorPending
	res.Continuation = token
	return res, nil
}

// BeginPasskeyRegistration creates registration options for the signed-in user.
func (f *Flow) BeginPasskeyRegistration(ctx context.Context, userID string) (res *Result, err error) {
	ctx, span := f.start(ctx, "BeginPasskeyRegistration")
	defer func() { f.end(span, "BeginPasskeyRegistration", res, err) }()

	opts, err := f.registration.Begin(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return fail(ErrUnauthorized), nil
		}
		return f.internal(fmt.Errorf("begin registration: %w", err))
	}
	res = ok("Passkey registration started")
	res.UserID = userID
	res.Options = opts
	return res, nil
}

// CompletePasskeyRegistration verifies the attestation and stores the new passkey.
func (f *Flow) CompletePasskeyRegistration(ctx context.Context, userID string, attestation []byte) (res *Result, err error) {
	ctx, span := f.start(ctx, "CompletePasskeyRegistration")
	defer func() { f.end(span, "CompletePasskeyRegistration", res, err) }()

	a, err := f.registration.Complete(ctx, userID, attestation)
	if err != nil {
		if IsTaxonomy(err) {
			return fail(err), nil
		}
		return f.internal(fmt.Errorf("complete registration: %w", err))
	}
	f.audit.LogEvent(ctx, userID, auditdomain.ActionPasskeyRegistered, auditdomain.ResourcePasskey, a.ID)

	res = ok("Passkey registered")
	res.UserID = userID
	res.Passkeys = []Passkey{toPasskey(a)}
	return res, nil
}

// BeginPasskeyAuthentication creates assertion options. An empty email starts a discoverable
// ceremony; an unknown email fails with "User not found".
func (f *Flow) BeginPasskeyAuthentication(ctx context.Context, email string) (res *Result, err error) {
	ctx, span := f.start(ctx, "BeginPasskeyAuthentication")
	defer func() { f.end(span, "BeginPasskeyAuthentication", res, err) }()

	opts, err := f.authentication.Begin(ctx, email)
	if err != nil {
		if errors.Is(err, passkey.ErrNotFound) {
			return fail(ErrNotFound), nil
		}
		return f.internal(fmt.Errorf("begin authentication: %w", err))
	}
	res = ok("Passkey challenge created")
	res.NextStep = string(engine.NextStepVerifyPasskey)
	res.Options = opts
	return res, nil
}

// CompletePasskeyAuthentication verifies the assertion against challenge and signs the user in.
// A continuation from the code step, when presented for the same user, carries its factors into
// the session.
func (f *Flow) CompletePasskeyAuthentication(ctx context.Context, assertion []byte, challenge, continuation string) (res *Result, err error) {
	ctx, span := f.start(ctx, "CompletePasskeyAuthentication")
	defer func() { f.end(span, "CompletePasskeyAuthentication", res, err) }()

	out, err := f.authentication.Complete(ctx, assertion, challenge)
	if err != nil {
		if IsTaxonomy(err) {
			f.audit.LogEvent(ctx, "", auditdomain.ActionPasskeyFailure, auditdomain.ResourcePasskey, err.Error())
			return fail(err), nil
		}
		return f.internal(fmt.Errorf("complete authentication: %w", err))
	}
	userID := out.User.ID
	span.SetAttributes(attribute.String("user.id", userID))

	from := StateAnonymous
	methods := []sessiondomain.Method{sessiondomain.MethodPasskey}
	if continuation != "" {
		claims, err := f.resume(continuation, StatePasskeySetupPending, StatePasskeyVerificationPending)
		switch {
		case err != nil:
			f.logger.Debug("signin: ignoring continuation", zap.String("user_id", userID), zap.Error(err))
		case claims.Subject != userID:
			f.logger.Warn("signin: continuation subject does not own passkey", zap.String("user_id", userID))
		default:
			from = State(claims.State)
			methods = withMethod(methodsFromClaims(claims.Methods), sessiondomain.MethodPasskey)
		}
	}
	if err := transition(from, StateAuthenticated); err != nil {
		return f.internal(err)
	}

	tokens, err := f.bridge.complete(ctx, userID, methods)
	if err != nil {
		return f.internal(fmt.Errorf("issue session: %w", err))
	}
	f.audit.LogEvent(ctx, userID, auditdomain.ActionPasskeyVerified, auditdomain.ResourcePasskey, out.Authenticator.ID)

	res = ok("Signed in")
	res.UserID = userID
	res.State = StateAuthenticated
	res.Session = tokens
	return res, nil
}

// ListPasskeys returns the signed-in user's passkeys.
func (f *Flow) ListPasskeys(ctx context.Context, userID string) (res *Result, err error) {
	ctx, span := f.start(ctx, "ListPasskeys")
	defer func() { f.end(span, "ListPasskeys", res, err) }()

	list, err := f.registration.List(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return fail(ErrUnauthorized), nil
		}
		return f.internal(fmt.Errorf("list passkeys: %w", err))
	}
	res = ok("OK")
	res.UserID = userID
	res.Passkeys = toPasskeys(list)
	return res, nil
}

// DeletePasskey removes one of the signed-in user's passkeys.
func (f *Flow) DeletePasskey(ctx context.Context, userID, authenticatorID string) (res *Result, err error) {
	ctx, span := f.start(ctx, "DeletePasskey")
	defer func() { f.end(span, "DeletePasskey", res, err) }()

	if err := f.registration.Delete(ctx, userID, authenticatorID); err != nil {
		switch {
		case errors.Is(err, ErrUnauthorized):
			return fail(ErrUnauthorized), nil
		case errors.Is(err, passkey.ErrNotFound):
			return fail(ErrPasskeyNotFound), nil
		}
		return f.internal(fmt.Errorf("delete passkey: %w", err))
	}
	f.audit.LogEvent(ctx, userID, auditdomain.ActionPasskeyDeleted, auditdomain.ResourcePasskey, authenticatorID)

	res = ok("Passkey deleted")
	res.UserID = userID
	return res, nil
}

// RefreshSession rotates the refresh token. Reuse of a rotated token revokes every session of the user.
func (f *Flow) RefreshSession(ctx context.Context, refreshToken string) (res *Result, err error) {
	ctx, span := f.start(ctx, "RefreshSession")
	defer func() { f.end(span, "RefreshSession", res, err) }()

	tokens, err := f.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrRefreshTokenReuse):
			f.audit.LogEvent(ctx, "", auditdomain.ActionSessionRefreshReuse, auditdomain.ResourceSession, "")
			return fail(err), nil
		case errors.Is(err, ErrInvalidRefreshToken):
			return fail(err), nil
		}
		return f.internal(fmt.Errorf("refresh session: %w", err))
	}
	f.audit.LogEvent(ctx, tokens.UserID, auditdomain.ActionSessionRefreshed, auditdomain.ResourceSession, tokens.SessionID)

	res = ok("Session refreshed")
	res.UserID = tokens.UserID
	res.Session = tokens
	return res, nil
}

// SignOut revokes the caller's session.
func (f *Flow) SignOut(ctx context.Context, userID, sessionID string) (res *Result, err error) {
	ctx, span := f.start(ctx, "SignOut")
	defer func() { f.end(span, "SignOut", res, err) }()

	if sessionID == "" {
		return fail(ErrUnauthorized), nil
	}
	if err := f.sessions.Revoke(ctx, sessionID); err != nil {
		return f.internal(err)
	}
	f.audit.LogEvent(ctx, userID, auditdomain.ActionSignOut, auditdomain.ResourceSession, sessionID)
	return ok("Signed out"), nil
}

// advance signs a continuation for the move from one state to the next.
func (f *Flow) advance(userID string, from, to State, methods []sessiondomain.Method) (string, error) {
	if err := transition(from, to); err != nil {
		return "", err
	}
	token, _, err := f.tokens.IssueContinuation(userID, string(to), methodsToClaims(methods))
	if err != nil {
		return "", fmt.Errorf("issue continuation: %w", err)
	}
	return token, nil
}

// resume validates a continuation and requires it to be in one of the wanted states.
func (f *Flow) resume(token string, want ...State) (*security.ContinuationClaims, error) {
	if token == "" {
		return nil, ErrInvalidContinuation
	}
	claims, err := f.tokens.ValidateContinuation(token)
	if err != nil {
		return nil, ErrInvalidContinuation
	}
	for _, s := range want {
		if State(claims.State) == s {
			return claims, nil
		}
	}
	return nil, ErrInvalidContinuation
}

func (f *Flow) internal(err error) (*Result, error) {
	return &Result{Success: false, Message: MessageInternal}, err
}

func (f *Flow) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return f.tracer.Start(ctx, "signin."+op)
}

func (f *Flow) end(span trace.Span, op string, res *Result, err error) {
	defer span.End()
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "internal")
		f.logger.Error("signin: operation failed", zap.String("op", op), zap.Error(err))
	case res != nil && !res.Success:
		span.SetAttributes(attribute.Bool("signin.success", false), attribute.String("signin.message", res.Message))
		f.logger.Info("signin: rejected", zap.String("op", op), zap.String("reason", res.Message))
	default:
		span.SetAttributes(attribute.Bool("signin.success", true))
	}
}
