package domain

// ActionPolicyInput is evaluated for every protected action.
type ActionPolicyInput struct {
	Action           string   `json:"action"`
	Role             string   `json:"role"`
	AllowedActions   []string `json:"allowed_actions"`
	SensitiveActions []string `json:"sensitive_actions"`
	RequiresReauth   bool     `json:"requires_reauth"`
}

const (
	PolicyDenyActionNotAllowed = "ACTION_NOT_ALLOWED"
	PolicyDenyReauthRequired   = "REAUTH_REQUIRED"
)

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

func (r PolicyResult) Denied(code string) bool {
	for _, d := range r.Deny {
		if d.Code == code {
			return true
		}
	}
	return false
}

type PolicyEvaluation struct {
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}

// SensitiveActions require a recent reverification on top of a valid session.
func SensitiveActions() []string {
	return []string{
		ActionInitiateTransfer,
		ActionApproveTransfer,
		ActionFreezeAccount,
		ActionIssueCertificate,
		ActionRevokeCertificate,
		ActionRotateCAKeys,
		ActionResetDeviceBinding,
	}
}
