package domain

import "time"

type SessionUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// SessionBinding must always equal the values derived from the session's
// current certificate and the identity's device secret.
type SessionBinding struct {
	DeviceID string `json:"device_id"`
	CertHash string `json:"cert_hash"`
	Role     Role   `json:"role"`
}

type Session struct {
	AccessToken      string         `json:"access_token"`
	User             SessionUser    `json:"user"`
	Certificate      Certificate    `json:"certificate"`
	CreatedAt        time.Time      `json:"created_at"`
	LastVerified     time.Time      `json:"last_verified"`
	LastActivity     time.Time      `json:"last_activity"`
	ReauthDeadline   time.Time      `json:"reauth_deadline"`
	AccessExpiresAt  time.Time      `json:"access_expires_at"`
	AbsoluteDeadline time.Time      `json:"absolute_deadline"`
	RefreshToken     string         `json:"refresh_token"`
	RefreshExpiresAt time.Time      `json:"refresh_expires_at"`
	Binding          SessionBinding `json:"binding"`
	SessionKey       []byte         `json:"session_key,omitempty"`
}

type SessionState string

const (
	SessionActive          SessionState = "active"
	SessionAccessExpired   SessionState = "access_expired"
	SessionIdleExpired     SessionState = "idle_expired"
	SessionAbsoluteExpired SessionState = "absolute_expired"
)

// StateAt reports where the session stands at now. Absolute and idle expiry
// are terminal; access expiry is recoverable through a refresh.
func (s Session) StateAt(now time.Time, idleTimeout time.Duration) SessionState {
	switch {
	case !now.Before(s.AbsoluteDeadline):
		return SessionAbsoluteExpired
	case idleTimeout > 0 && now.Sub(s.LastActivity) >= idleTimeout:
		return SessionIdleExpired
	case !now.Before(s.AccessExpiresAt):
		return SessionAccessExpired
	}
	return SessionActive
}

// Terminal reports whether the state ends the session.
func (st SessionState) Terminal() bool {
	return st == SessionIdleExpired || st == SessionAbsoluteExpired
}

type SessionTokens struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
