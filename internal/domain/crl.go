package domain

import (
	"sort"
	"time"
)

type RevocationEntry struct {
	CertificateID string    `json:"-"`
	Reason        string    `json:"reason"`
	RevokedAt     time.Time `json:"revoked_at"`
	RequestedBy   string    `json:"requested_by"`
}

// CRL is the persisted revocation set. Entries are only ever added.
type CRL struct {
	Revoked  []string                   `json:"revoked"`
	Metadata map[string]RevocationEntry `json:"metadata"`
}

func NewCRL() CRL {
	return CRL{Revoked: []string{}, Metadata: map[string]RevocationEntry{}}
}

func (c CRL) Contains(certificateID string) bool {
	_, ok := c.Metadata[certificateID]
	return ok
}

func (c CRL) Entry(certificateID string) (RevocationEntry, bool) {
	entry, ok := c.Metadata[certificateID]
	if ok {
		entry.CertificateID = certificateID
	}
	return entry, ok
}

// Add inserts entry unless already present and reports whether it was added.
func (c *CRL) Add(entry RevocationEntry) (RevocationEntry, bool) {
	if c.Metadata == nil {
		c.Metadata = map[string]RevocationEntry{}
	}
	if existing, ok := c.Entry(entry.CertificateID); ok {
		return existing, false
	}
	entry.RevokedAt = entry.RevokedAt.UTC().Truncate(time.Second)
	c.Metadata[entry.CertificateID] = entry
	c.Revoked = append(c.Revoked, entry.CertificateID)
	sort.Strings(c.Revoked)
	return entry, true
}
