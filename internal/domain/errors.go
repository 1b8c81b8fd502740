package domain

import "errors"

type DenialCode string

const (
	DenialCertificateNotFound  DenialCode = "CERTIFICATE_NOT_FOUND"
	DenialCertificateInvalid   DenialCode = "CERTIFICATE_INVALID"
	DenialCertificateRevoked   DenialCode = "CERTIFICATE_REVOKED"
	DenialSessionInvalid       DenialCode = "SESSION_INVALID"
	DenialAccessExpired        DenialCode = "ACCESS_EXPIRED"
	DenialBindingMismatch      DenialCode = "BINDING_MISMATCH"
	DenialChallengeUnavailable DenialCode = "CHALLENGE_EXPIRED_OR_CONSUMED"
	DenialDeviceProofInvalid   DenialCode = "DEVICE_PROOF_INVALID"
	DenialActionForbidden      DenialCode = "ACTION_FORBIDDEN"
	DenialReauthRequired       DenialCode = "REAUTH_REQUIRED"
)

const (
	ReasonHashMismatch     = "hash_mismatch"
	ReasonSignatureInvalid = "signature_invalid"
	ReasonPolicyMismatch   = "policy_mismatch"
	ReasonExpired          = "expired"
	ReasonNotYetValid      = "not_yet_valid"
	ReasonMalformed        = "malformed"

	ReasonMissing         = "missing"
	ReasonIdleTimeout     = "idle_timeout"
	ReasonAbsoluteTimeout = "absolute_timeout"
	ReasonRefreshExpired  = "refresh_expired"

	ReasonDevice   = "device"
	ReasonRole     = "role"
	ReasonCertHash = "cert_hash"
)

// Denial is an expected authentication or authorization refusal. Message is
// safe to show to the caller.
type Denial struct {
	Code    DenialCode
	Reason  string
	Message string
}

func (d *Denial) Error() string {
	if d == nil {
		return ""
	}
	if d.Reason != "" {
		return string(d.Code) + ": " + d.Reason
	}
	return string(d.Code)
}

// Is matches on code, and on reason when the target carries one.
func (d *Denial) Is(target error) bool {
	t, ok := target.(*Denial)
	if !ok || d == nil || t == nil {
		return false
	}
	if d.Code != t.Code {
		return false
	}
	return t.Reason == "" || t.Reason == d.Reason
}

func Deny(code DenialCode, reason, message string) *Denial {
	return &Denial{Code: code, Reason: reason, Message: message}
}

func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

var (
	ErrCertificateNotFound = &Denial{Code: DenialCertificateNotFound, Message: "Certificate not found"}
	ErrCertificateInvalid  = &Denial{Code: DenialCertificateInvalid, Message: "Certificate invalid"}
	ErrCertificateRevoked  = &Denial{Code: DenialCertificateRevoked, Message: "Certificate revoked"}
	ErrSessionInvalid      = &Denial{Code: DenialSessionInvalid, Message: "Session invalid"}
	ErrAccessExpired       = &Denial{Code: DenialAccessExpired, Message: "Access token expired; refresh required"}
	ErrBindingMismatch     = &Denial{Code: DenialBindingMismatch, Message: "Device binding mismatch"}
	ErrChallengeExpired    = &Denial{Code: DenialChallengeUnavailable, Message: "Challenge expired or already used"}
	ErrDeviceProofInvalid  = &Denial{Code: DenialDeviceProofInvalid, Message: "Device proof invalid"}
	ErrActionForbidden     = &Denial{Code: DenialActionForbidden, Message: "Action not permitted"}
	ErrReauthRequired      = &Denial{Code: DenialReauthRequired, Message: "Re-verification required"}

	ErrCertificateHashMismatch     = &Denial{Code: DenialCertificateInvalid, Reason: ReasonHashMismatch, Message: "Certificate hash mismatch"}
	ErrCertificateSignatureInvalid = &Denial{Code: DenialCertificateInvalid, Reason: ReasonSignatureInvalid, Message: "Certificate signature invalid"}
	ErrCertificatePolicyMismatch   = &Denial{Code: DenialCertificateInvalid, Reason: ReasonPolicyMismatch, Message: "Certificate policy mismatch"}
	ErrCertificateExpired          = &Denial{Code: DenialCertificateInvalid, Reason: ReasonExpired, Message: "Certificate expired"}
	ErrCertificateNotYetValid      = &Denial{Code: DenialCertificateInvalid, Reason: ReasonNotYetValid, Message: "Certificate not yet valid"}
	ErrCertificateMalformed        = &Denial{Code: DenialCertificateInvalid, Reason: ReasonMalformed, Message: "Certificate malformed"}

	ErrSessionMissing         = &Denial{Code: DenialSessionInvalid, Reason: ReasonMissing, Message: "Session not found"}
	ErrSessionIdleTimeout     = &Denial{Code: DenialSessionInvalid, Reason: ReasonIdleTimeout, Message: "Session expired due to inactivity"}
	ErrSessionAbsoluteTimeout = &Denial{Code: DenialSessionInvalid, Reason: ReasonAbsoluteTimeout, Message: "Session expired"}
	ErrSessionRefreshExpired  = &Denial{Code: DenialSessionInvalid, Reason: ReasonRefreshExpired, Message: "Refresh token expired"}
)

// Fault is an unexpected storage or crypto failure. It is never a policy
// decision and callers should not parse it.
type Fault struct {
	Op  string
	Err error
}

func (f *Fault) Error() string {
	if f == nil {
		return ""
	}
	if f.Err == nil {
		return f.Op
	}
	return f.Op + ": " + f.Err.Error()
}

func (f *Fault) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

func NewFault(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Fault
	if errors.As(err, &existing) {
		return err
	}
	if _, ok := AsDenial(err); ok {
		return err
	}
	return &Fault{Op: op, Err: err}
}

var (
	ErrVault    = errors.New("vault error")
	ErrNotFound = errors.New("not found")
)
