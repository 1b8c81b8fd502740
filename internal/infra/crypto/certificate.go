package crypto

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

var ErrCertificateFormat = errors.New("certificate format")

const certificateTimeLayout = "2006-01-02T15:04:05Z"

type certField struct {
	key      string
	optional bool
	get      func(c *domain.Certificate) string
	set      func(c *domain.Certificate, v string) error
}

// signableFields fixes the canonical ordering. cert_hash and the two
// signatures follow in the plaintext form but are never hashed.
var signableFields = []certField{
	stringField("certificate_id", func(c *domain.Certificate) *string { return &c.CertificateID }),
	stringField("user_id", func(c *domain.Certificate) *string { return &c.UserID }),
	stringField("owner", func(c *domain.Certificate) *string { return &c.Owner }),
	{
		key: "role",
		get: func(c *domain.Certificate) string { return string(c.Role) },
		set: func(c *domain.Certificate, v string) error { c.Role = domain.Role(v); return nil },
	},
	stringField("allowed_actions", func(c *domain.Certificate) *string { return &c.AllowedActions }),
	stringField("lineage_id", func(c *domain.Certificate) *string { return &c.LineageID }),
	{
		key: "cert_generation",
		get: func(c *domain.Certificate) string { return strconv.Itoa(c.Generation) },
		set: func(c *domain.Certificate, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return fmt.Errorf("cert_generation %q", v)
			}
			c.Generation = n
			return nil
		},
	},
	bytesField("rsa_public_key", false, func(c *domain.Certificate) *[]byte { return &c.RSAPublicKey }),
	bytesField("pq_public_key", true, func(c *domain.Certificate) *[]byte { return &c.PQPublicKey }),
	bytesField("ml_kem_public_key", false, func(c *domain.Certificate) *[]byte { return &c.MLKEMPublicKey }),
	timeField("valid_from", func(c *domain.Certificate) *time.Time { return &c.ValidFrom }),
	timeField("valid_to", func(c *domain.Certificate) *time.Time { return &c.ValidTo }),
	timeField("issued_at", func(c *domain.Certificate) *time.Time { return &c.IssuedAt }),
	stringField("device_id", func(c *domain.Certificate) *string { return &c.DeviceID }),
	stringField("crl_url", func(c *domain.Certificate) *string { return &c.CRLURL }),
	stringField("hash_algorithm", func(c *domain.Certificate) *string { return &c.Descriptors.HashAlgorithm }),
	stringField("device_binding_algorithm", func(c *domain.Certificate) *string { return &c.Descriptors.DeviceBindingAlgorithm }),
	stringField("challenge_algorithm", func(c *domain.Certificate) *string { return &c.Descriptors.ChallengeAlgorithm }),
	stringField("defense_version", func(c *domain.Certificate) *string { return &c.Descriptors.DefenseVersion }),
	stringField("purpose_scope", func(c *domain.Certificate) *string { return &c.Descriptors.PurposeScope }),
	stringField("security_layers", func(c *domain.Certificate) *string { return &c.Descriptors.SecurityLayers }),
}

var sealFields = []certField{
	stringField("cert_hash", func(c *domain.Certificate) *string { return &c.CertHash }),
	bytesField("rsa_signature", false, func(c *domain.Certificate) *[]byte { return &c.RSASignature }),
	bytesField("pq_signature", false, func(c *domain.Certificate) *[]byte { return &c.PQSignature }),
}

func stringField(key string, ref func(*domain.Certificate) *string) certField {
	return certField{
		key: key,
		get: func(c *domain.Certificate) string { return *ref(c) },
		set: func(c *domain.Certificate, v string) error { *ref(c) = v; return nil },
	}
}

func bytesField(key string, optional bool, ref func(*domain.Certificate) *[]byte) certField {
	return certField{
		key:      key,
		optional: optional,
		get:      func(c *domain.Certificate) string { return base64.StdEncoding.EncodeToString(*ref(c)) },
		set: func(c *domain.Certificate, v string) error {
			if v == "" {
				*ref(c) = nil
				return nil
			}
			raw, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				return fmt.Errorf("%s: %v", key, err)
			}
			*ref(c) = raw
			return nil
		},
	}
}

func timeField(key string, ref func(*domain.Certificate) *time.Time) certField {
	return certField{
		key: key,
		get: func(c *domain.Certificate) string { return ref(c).UTC().Format(certificateTimeLayout) },
		set: func(c *domain.Certificate, v string) error {
			t, err := time.Parse(certificateTimeLayout, v)
			if err != nil {
				return fmt.Errorf("%s: %v", key, err)
			}
			*ref(c) = t.UTC()
			return nil
		},
	}
}

// CanonicalCertificatePayload is the only producer of the bytes that
// cert_hash covers.
func CanonicalCertificatePayload(cert domain.Certificate) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFields(&buf, &cert, signableFields); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func CertificateHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// MarshalCertificate renders the inspectable key=value plaintext.
func MarshalCertificate(cert domain.Certificate) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFields(&buf, &cert, signableFields); err != nil {
		return nil, err
	}
	if err := writeFields(&buf, &cert, sealFields); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFields(buf *bytes.Buffer, cert *domain.Certificate, fields []certField) error {
	for _, f := range fields {
		v := f.get(cert)
		if strings.ContainsAny(v, "\r\n") {
			return fmt.Errorf("%w: %s contains a line break", ErrCertificateFormat, f.key)
		}
		buf.WriteString(f.key)
		buf.WriteByte('=')
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	return nil
}

// ParseCertificate rejects unknown, duplicate and missing keys.
func ParseCertificate(data []byte) (domain.Certificate, error) {
	index := make(map[string]certField, len(signableFields)+len(sealFields))
	for _, f := range signableFields {
		index[f.key] = f
	}
	for _, f := range sealFields {
		index[f.key] = f
	}

	var cert domain.Certificate
	seen := make(map[string]bool, len(index))
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return domain.Certificate{}, fmt.Errorf("%w: line %d has no '='", ErrCertificateFormat, line)
		}
		key = strings.TrimSpace(key)
		f, known := index[key]
		if !known {
			return domain.Certificate{}, fmt.Errorf("%w: unknown key %q", ErrCertificateFormat, key)
		}
		if seen[key] {
			return domain.Certificate{}, fmt.Errorf("%w: duplicate key %q", ErrCertificateFormat, key)
		}
		seen[key] = true
		if err := f.set(&cert, value); err != nil {
			return domain.Certificate{}, fmt.Errorf("%w: %v", ErrCertificateFormat, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Certificate{}, fmt.Errorf("%w: %v", ErrCertificateFormat, err)
	}
	for key, f := range index {
		if !seen[key] && !f.optional {
			return domain.Certificate{}, fmt.Errorf("%w: missing key %q", ErrCertificateFormat, key)
		}
	}
	return cert, nil
}
