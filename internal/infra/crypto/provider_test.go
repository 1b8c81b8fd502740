package crypto

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHybridProvider_ClassicalRoundTrip(t *testing.T) {
	p := NewHybridProvider()
	pair, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	msg := []byte("nonce-bytes")
	sig, err := p.SignClassical(pair.Private, msg)
	require.NoError(t, err)
	require.NoError(t, p.VerifyClassical(pair.Public, msg, sig))

	err = p.VerifyClassical(pair.Public, []byte("other"), sig)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
	assert.ErrorIs(t, p.VerifyClassical(pair.Public, msg, nil), ErrSignatureInvalid)
}

func TestHybridProvider_PQRoundTrip(t *testing.T) {
	p := NewHybridProvider()
	pair, err := GenerateMLDSAKeyPair()
	require.NoError(t, err)

	msg := []byte("payload")
	sig, err := p.SignPQ(pair.Private, msg)
	require.NoError(t, err)
	require.NoError(t, p.VerifyPQ(pair.Public, msg, sig))

	sig[0] ^= 0xff
	assert.ErrorIs(t, p.VerifyPQ(pair.Public, msg, sig), ErrSignatureInvalid)
	assert.ErrorIs(t, p.VerifyPQ(pair.Public, msg, sig[:10]), ErrSignatureInvalid)
	assert.ErrorIs(t, p.VerifyPQ([]byte("short"), msg, sig), ErrKeyInvalid)
}

func TestHybridProvider_KEMSharedSecret(t *testing.T) {
	p := NewHybridProvider()
	pair, err := GenerateMLKEMKeyPair()
	require.NoError(t, err)

	ct, ss, err := p.Encapsulate(pair.Public)
	require.NoError(t, err)
	recovered, err := p.Decapsulate(pair.Private, ct)
	require.NoError(t, err)
	assert.Equal(t, ss, recovered)

	_, _, err = p.Encapsulate([]byte("bogus"))
	assert.ErrorIs(t, err, ErrKeyInvalid)
}

func TestHybridProvider_SealOpen(t *testing.T) {
	p := NewHybridProvider()
	key := bytes.Repeat([]byte{7}, 32)

	sealed, err := p.Seal(key, []byte("secret"), []byte("aad"))
	require.NoError(t, err)
	plain, err := p.Open(key, sealed, []byte("aad"))
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), plain)

	_, err = p.Open(key, sealed, []byte("other-aad"))
	assert.Error(t, err)
	_, err = p.Open(key, sealed[:5], []byte("aad"))
	assert.ErrorIs(t, err, ErrSealedTooShort)
	_, err = p.Seal([]byte("short"), []byte("x"), nil)
	assert.ErrorIs(t, err, ErrKeyInvalid)
}

func TestHybridProvider_HKDFDeterministic(t *testing.T) {
	p := NewHybridProvider()
	a, err := p.HKDF([]byte("ss"), []byte("salt"), []byte("info"), 32)
	require.NoError(t, err)
	b, err := p.HKDF([]byte("ss"), []byte("salt"), []byte("info"), 32)
	require.NoError(t, err)
	c, err := p.HKDF([]byte("ss"), []byte("salt"), []byte("other"), 32)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNormalizeRSAPublicKey_Encodings(t *testing.T) {
	pair, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	parsed, err := x509.ParsePKIXPublicKey(pair.Public)
	require.NoError(t, err)
	pkcs1 := x509.MarshalPKCS1PublicKey(parsed.(*rsa.PublicKey))

	inputs := map[string][]byte{
		"pkix der":  pair.Public,
		"pkcs1 der": pkcs1,
		"pkix pem":  pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pair.Public}),
		"pkcs1 pem": pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: pkcs1}),
		"base64":    []byte(base64.StdEncoding.EncodeToString(pair.Public)),
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			out, err := NormalizeRSAPublicKey(input)
			require.NoError(t, err)
			assert.Equal(t, pair.Public, out)
		})
	}

	_, err = NormalizeRSAPublicKey([]byte("not a key"))
	assert.ErrorIs(t, err, ErrKeyInvalid)
	_, err = NormalizeRSAPublicKey(nil)
	assert.ErrorIs(t, err, ErrKeyInvalid)
}
