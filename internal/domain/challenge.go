package domain

import "time"

type ChallengePurpose string

const (
	ChallengePurposeLogin    ChallengePurpose = "login"
	ChallengePurposeReverify ChallengePurpose = "reverify"
	ChallengePurposeQRLogin  ChallengePurpose = "qr_login"
)

func (p ChallengePurpose) Valid() bool {
	switch p {
	case ChallengePurposeLogin, ChallengePurposeReverify, ChallengePurposeQRLogin:
		return true
	default:
		return false
	}
}

// Challenge is single-use: Issued -> Consumed, or Issued -> Purged.
type Challenge struct {
	Token              string            `json:"token"`
	Nonce              []byte            `json:"nonce"`
	Certificate        Certificate       `json:"certificate"`
	LegacyDeviceSecret string            `json:"legacy_device_secret,omitempty"`
	Purpose            ChallengePurpose  `json:"purpose"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	BindingContext     map[string]string `json:"binding_context,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	ExpiresAt          time.Time         `json:"expires_at"`
}

type ChallengeRequest struct {
	Certificate        Certificate
	LegacyDeviceSecret string
	TTL                time.Duration
	Purpose            ChallengePurpose
	Metadata           map[string]string
	BindingContext     map[string]string
	Nonce              []byte
}

type IssuedChallenge struct {
	Token     string
	Nonce     []byte
	ExpiresAt time.Time
}
