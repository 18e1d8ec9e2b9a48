package signin

import (
	"time"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/domain"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session"
)

// Result is the uniform outcome of every sign-in operation. Callers branch on Success and NextStep.
type Result struct {
	Success      bool             `json:"success"`
	Message      string           `json:"message"`
	UserID       string           `json:"userId,omitempty"`
	NextStep     string           `json:"nextStep,omitempty"`
	State        State            `json:"state,omitempty"`
	Continuation string           `json:"continuation,omitempty"`
	Session      *session.Tokens  `json:"session,omitempty"`
	Options      *passkey.Options `json:"options,omitempty"`
	Passkeys     []Passkey        `json:"passkeys,omitempty"`

	// Reason is the taxonomy error behind a failed result; nil on success.
	Reason error `json:"-"`
}

// Passkey is the client view of a registered authenticator. Key material is never exposed.
type Passkey struct {
	ID           string     `json:"id"`
	CredentialID string     `json:"credentialId"`
	DeviceType   string     `json:"deviceType"`
	BackedUp     bool       `json:"backedUp"`
	Transports   []string   `json:"transports,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastUsedAt   *time.Time `json:"lastUsedAt,omitempty"`
}

func ok(message string) *Result {
	return &Result{Success: true, Message: message}
}

func fail(reason error) *Result {
	return &Result{Success: false, Message: Message(reason), Reason: reason}
}

func toPasskey(a *domain.Authenticator) Passkey {
	return Passkey{
		ID:           a.ID,
		CredentialID: a.CredentialID,
		DeviceType:   string(a.DeviceType),
		BackedUp:     a.BackedUp,
		Transports:   a.Transports,
		CreatedAt:    a.CreatedAt,
		LastUsedAt:   a.LastUsedAt,
	}
}

func toPasskeys(list []*domain.Authenticator) []Passkey {
	out := make([]Passkey, 0, len(list))
	for _, a := range list {
		out = append(out, toPasskey(a))
	}
	return out
}
