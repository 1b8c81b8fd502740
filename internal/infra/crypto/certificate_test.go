package crypto

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

func sampleCertificate() domain.Certificate {
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	actions, _ := domain.AllowedActions(domain.RoleCustomer)
	return domain.Certificate{
		CertificateID:  "c0ffee",
		UserID:         "user-1",
		Owner:          "Ada Lovelace",
		Role:           domain.RoleCustomer,
		AllowedActions: actions,
		LineageID:      "abcd:1",
		Generation:     1,
		RSAPublicKey:   []byte{1, 2, 3},
		MLKEMPublicKey: []byte{4, 5, 6},
		ValidFrom:      issued,
		ValidTo:        issued.Add(30 * 24 * time.Hour),
		IssuedAt:       issued,
		DeviceID:       "deadbeef",
		CRLURL:         "https://bank.example/crl",
		Descriptors:    domain.ExpectedDescriptors(),
		CertHash:       "hash",
		RSASignature:   []byte{9},
		PQSignature:    []byte{8},
	}
}

func TestMarshalParseCertificate_RoundTrip(t *testing.T) {
	cert := sampleCertificate()
	text, err := MarshalCertificate(cert)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(text), "certificate_id=c0ffee\nuser_id=user-1\n"))
	assert.Contains(t, string(text), "pq_public_key=\n")

	parsed, err := ParseCertificate(text)
	require.NoError(t, err)
	assert.Equal(t, cert, parsed)
}

func TestCanonicalCertificatePayload_ExcludesSeal(t *testing.T) {
	cert := sampleCertificate()
	payload, err := CanonicalCertificatePayload(cert)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "cert_hash=")
	assert.NotContains(t, string(payload), "signature=")

	cert.RSASignature = []byte("different")
	cert.CertHash = "other"
	again, err := CanonicalCertificatePayload(cert)
	require.NoError(t, err)
	assert.Equal(t, payload, again)
	assert.Len(t, CertificateHash(payload), 64)
}

func TestCanonicalCertificatePayload_FieldSensitive(t *testing.T) {
	base, err := CanonicalCertificatePayload(sampleCertificate())
	require.NoError(t, err)

	mutations := map[string]func(c *domain.Certificate){
		"owner":      func(c *domain.Certificate) { c.Owner = "Mallory" },
		"role":       func(c *domain.Certificate) { c.Role = domain.RoleAdmin },
		"device":     func(c *domain.Certificate) { c.DeviceID = "cafe" },
		"generation": func(c *domain.Certificate) { c.Generation = 2 },
		"valid_to":   func(c *domain.Certificate) { c.ValidTo = c.ValidTo.Add(time.Hour) },
		"pq key":     func(c *domain.Certificate) { c.PQPublicKey = []byte{1} },
		"descriptor": func(c *domain.Certificate) { c.Descriptors.DefenseVersion = "v0" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cert := sampleCertificate()
			mutate(&cert)
			payload, err := CanonicalCertificatePayload(cert)
			require.NoError(t, err)
			assert.NotEqual(t, CertificateHash(base), CertificateHash(payload))
		})
	}
}

func TestParseCertificate_Rejects(t *testing.T) {
	text, err := MarshalCertificate(sampleCertificate())
	require.NoError(t, err)
	valid := string(text)

	cases := map[string]string{
		"unknown key":   valid + "extra=1\n",
		"duplicate key": valid + "owner=Eve\n",
		"missing key":   strings.Replace(valid, "device_id=deadbeef\n", "", 1),
		"no separator":  valid + "garbage\n",
		"bad time":      strings.Replace(valid, "issued_at=2026-03-01T10:00:00Z", "issued_at=yesterday", 1),
		"bad base64":    strings.Replace(valid, "rsa_signature=CQ==", "rsa_signature=***", 1),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCertificate([]byte(input))
			assert.ErrorIs(t, err, ErrCertificateFormat)
		})
	}
}

func TestMarshalCertificate_RejectsLineBreaks(t *testing.T) {
	cert := sampleCertificate()
	cert.Owner = "Ada\nrole=admin"
	_, err := MarshalCertificate(cert)
	assert.ErrorIs(t, err, ErrCertificateFormat)
}
