package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

const MinRSABits = 2048

// KeyPair holds encoded key material: PKCS#8/PKIX DER for RSA, packed binary
// for ML-DSA and ML-KEM.
type KeyPair struct {
	Private []byte
	Public  []byte
}

func GenerateRSAKeyPair(bits int) (KeyPair, error) {
	if bits < MinRSABits {
		bits = MinRSABits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate rsa key: %w", err)
	}
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return KeyPair{}, err
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Private: priv, Public: pub}, nil
}

func GenerateMLDSAKeyPair() (KeyPair, error) {
	pub, priv, err := mldsa65.Scheme().GenerateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate ml-dsa key: %w", err)
	}
	return marshalPair(priv, pub)
}

func GenerateMLKEMKeyPair() (KeyPair, error) {
	pub, priv, err := mlkem768.Scheme().GenerateKeyPair()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate ml-kem key: %w", err)
	}
	return marshalPair(priv, pub)
}

type binaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

func marshalPair(priv, pub binaryMarshaler) (KeyPair, error) {
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return KeyPair{}, err
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Private: privBytes, Public: pubBytes}, nil
}

// NormalizeRSAPublicKey accepts PEM ("PUBLIC KEY" or "RSA PUBLIC KEY"), PKIX
// or PKCS#1 DER, or base64 of either DER form, and returns PKIX DER.
func NormalizeRSAPublicKey(input []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty rsa public key", ErrKeyInvalid)
	}
	if bytes.HasPrefix(trimmed, []byte("-----BEGIN")) {
		block, _ := pem.Decode(trimmed)
		if block == nil {
			return nil, fmt.Errorf("%w: undecodable PEM", ErrKeyInvalid)
		}
		trimmed = block.Bytes
	} else if decoded, err := base64.StdEncoding.DecodeString(string(trimmed)); err == nil {
		if _, parseErr := parseRSAPublicDER(decoded); parseErr == nil {
			trimmed = decoded
		}
	}
	key, err := parseRSAPublicDER(trimmed)
	if err != nil {
		return nil, err
	}
	if key.N.BitLen() < MinRSABits {
		return nil, fmt.Errorf("%w: rsa key of %d bits", ErrKeyInvalid, key.N.BitLen())
	}
	return x509.MarshalPKIXPublicKey(key)
}

// ParseRSAPublicKey parses PKIX DER as produced by NormalizeRSAPublicKey.
func ParseRSAPublicKey(der []byte) (*rsa.PublicKey, error) {
	return parseRSAPublicDER(der)
}

func parseRSAPublicDER(der []byte) (*rsa.PublicKey, error) {
	if parsed, err := x509.ParsePKIXPublicKey(der); err == nil {
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: public key is %T, not RSA", ErrKeyInvalid, parsed)
		}
		return key, nil
	}
	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: rsa public key: %v", ErrKeyInvalid, err)
	}
	return key, nil
}

// ValidateMLKEMPublicKey checks the packed ML-KEM-768 encoding.
func ValidateMLKEMPublicKey(pub []byte) error {
	if _, err := mlkem768.Scheme().UnmarshalBinaryPublicKey(pub); err != nil {
		return fmt.Errorf("%w: ml-kem public key: %v", ErrKeyInvalid, err)
	}
	return nil
}

func ValidateMLDSAPublicKey(pub []byte) error {
	if _, err := mldsa65.Scheme().UnmarshalBinaryPublicKey(pub); err != nil {
		return fmt.Errorf("%w: ml-dsa public key: %v", ErrKeyInvalid, err)
	}
	return nil
}

// Fingerprint is hex(SHA-256(key)).
func Fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}

// EncodePrivatePEM wraps DER or packed key bytes for on-disk storage.
func EncodePrivatePEM(blockType string, key []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: key})
}

func DecodePrivatePEM(blockType string, data []byte) ([]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != blockType {
		return nil, fmt.Errorf("%w: expected PEM block %q", ErrKeyInvalid, blockType)
	}
	return block.Bytes, nil
}

// RSAPublicFromPrivate returns the PKIX DER public half of a PKCS#8 or
// PKCS#1 private key.
func RSAPublicFromPrivate(der []byte) ([]byte, error) {
	key, err := parseRSAPrivateKey(der)
	if err != nil {
		return nil, err
	}
	return x509.MarshalPKIXPublicKey(&key.PublicKey)
}

func MLDSAPublicFromPrivate(priv []byte) ([]byte, error) {
	key, err := mldsa65.Scheme().UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: ml-dsa private key: %v", ErrKeyInvalid, err)
	}
	pub, ok := key.Public().(sign.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: ml-dsa public key type %T", ErrKeyInvalid, key.Public())
	}
	return pub.MarshalBinary()
}
