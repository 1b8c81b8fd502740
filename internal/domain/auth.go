package domain

// Principal is the authenticated caller of a protected operation, derived
// from an enforced session.
type Principal struct {
	Subject            string
	Name               string
	Role               Role
	CertificateID      string
	Actions            []string
	SessionFingerprint string
	RequiresReauth     bool
}

type Authorizer interface {
	Require(principal Principal, action string) error
}
