package domain

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleManager  Role = "manager"
	RoleAuditor  Role = "auditor"
	RoleAdmin    Role = "admin"
)

const (
	ActionViewAccounts       = "view_accounts"
	ActionViewTransactions   = "view_transactions"
	ActionInitiateTransfer   = "initiate_transfer"
	ActionApproveTransfer    = "approve_transfer"
	ActionSubmitKYC          = "submit_kyc"
	ActionReviewKYC          = "review_kyc"
	ActionFreezeAccount      = "freeze_account"
	ActionSignIntent         = "sign_intent"
	ActionViewAuditLogs      = "view_audit_logs"
	ActionVerifyAuditChain   = "verify_audit_chain"
	ActionExportReports      = "export_reports"
	ActionManageUsers        = "manage_users"
	ActionIssueCertificate   = "issue_certificate"
	ActionRevokeCertificate  = "revoke_certificate"
	ActionRotateCAKeys       = "rotate_ca_keys"
	ActionResetDeviceBinding = "reset_device_binding"
)

// roleActions is the static privilege table. Editing an entry invalidates
// every certificate already issued for that role.
var roleActions = map[Role][]string{
	RoleCustomer: {
		ActionViewAccounts,
		ActionViewTransactions,
		ActionInitiateTransfer,
		ActionSubmitKYC,
		ActionSignIntent,
	},
	RoleManager: {
		ActionViewAccounts,
		ActionViewTransactions,
		ActionApproveTransfer,
		ActionReviewKYC,
		ActionFreezeAccount,
		ActionSignIntent,
	},
	RoleAuditor: {
		ActionViewAccounts,
		ActionViewAuditLogs,
		ActionVerifyAuditChain,
		ActionExportReports,
	},
	RoleAdmin: {
		ActionManageUsers,
		ActionIssueCertificate,
		ActionRevokeCertificate,
		ActionRotateCAKeys,
		ActionResetDeviceBinding,
		ActionViewAuditLogs,
		ActionVerifyAuditChain,
	},
}

func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", fmt.Errorf("unsupported role %q", value)
	}
	return role, nil
}

func (r Role) Valid() bool {
	_, ok := roleActions[r]
	return ok
}

func (r Role) Actions() []string {
	actions := roleActions[r]
	out := make([]string, len(actions))
	copy(out, actions)
	return out
}

// AllowedActions returns the canonical comma-joined action list for role.
func AllowedActions(role Role) (string, bool) {
	actions, ok := roleActions[role]
	if !ok {
		return "", false
	}
	return strings.Join(actions, ","), true
}

const (
	HashAlgorithm          = "SHA-256"
	DeviceBindingAlgorithm = "SHA-256(device_secret)"
	ChallengeAlgorithm     = "HMAC-SHA-256+RSA-PSS+ML-DSA-65"
	DefenseVersion         = "hybrid-v1"
	PurposeScope           = "banking-authentication"
	SecurityLayers         = "aes-256-gcm,ml-dsa-65,ml-kem-768,rsa-pss-sha256"
)

type Descriptors struct {
	HashAlgorithm          string `json:"hash_algorithm"`
	DeviceBindingAlgorithm string `json:"device_binding_algorithm"`
	ChallengeAlgorithm     string `json:"challenge_algorithm"`
	DefenseVersion         string `json:"defense_version"`
	PurposeScope           string `json:"purpose_scope"`
	SecurityLayers         string `json:"security_layers"`
}

func ExpectedDescriptors() Descriptors {
	return Descriptors{
		HashAlgorithm:          HashAlgorithm,
		DeviceBindingAlgorithm: DeviceBindingAlgorithm,
		ChallengeAlgorithm:     ChallengeAlgorithm,
		DefenseVersion:         DefenseVersion,
		PurposeScope:           PurposeScope,
		SecurityLayers:         SecurityLayers,
	}
}

// Certificate is immutable once issued. Amendments are new generations under
// the same lineage.
type Certificate struct {
	CertificateID  string      `json:"certificate_id"`
	UserID         string      `json:"user_id"`
	Owner          string      `json:"owner"`
	Role           Role        `json:"role"`
	AllowedActions string      `json:"allowed_actions"`
	LineageID      string      `json:"lineage_id"`
	Generation     int         `json:"cert_generation"`
	RSAPublicKey   []byte      `json:"rsa_public_key"`
	PQPublicKey    []byte      `json:"pq_public_key,omitempty"`
	MLKEMPublicKey []byte      `json:"ml_kem_public_key"`
	ValidFrom      time.Time   `json:"valid_from"`
	ValidTo        time.Time   `json:"valid_to"`
	IssuedAt       time.Time   `json:"issued_at"`
	DeviceID       string      `json:"device_id"`
	CRLURL         string      `json:"crl_url"`
	Descriptors    Descriptors `json:"descriptors"`
	CertHash       string      `json:"cert_hash"`
	RSASignature   []byte      `json:"rsa_signature"`
	PQSignature    []byte      `json:"pq_signature"`
}

func (c Certificate) HasPQKey() bool {
	return len(c.PQPublicKey) > 0
}

func (c Certificate) ActionList() []string {
	if c.AllowedActions == "" {
		return nil
	}
	return strings.Split(c.AllowedActions, ",")
}

func (c Certificate) Allows(action string) bool {
	for _, a := range c.ActionList() {
		if a == action {
			return true
		}
	}
	return false
}

func (c Certificate) ValidAt(now time.Time) bool {
	return !now.Before(c.ValidFrom) && !now.After(c.ValidTo)
}

type IssueRequest struct {
	UserID         string
	FullName       string
	Role           Role
	RSAPublicKey   []byte
	MLKEMPublicKey []byte
	PQPublicKey    []byte
	ValidityDays   int
	DeviceSecret   string
}

// IssuedBundle is returned exactly once. DeviceSecret is not retrievable again.
type IssuedBundle struct {
	Certificate  Certificate
	Plaintext    []byte
	DeviceSecret string
	CertHash     string
}
