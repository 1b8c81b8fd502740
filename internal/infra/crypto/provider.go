package crypto

import (
	stdcrypto "crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"golang.org/x/crypto/hkdf"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

const (
	AEADKeySize   = 32
	AEADNonceSize = 12
)

var (
	ErrSignatureInvalid = errors.New("signature verification failed")
	ErrKeyInvalid       = errors.New("invalid key material")
	ErrSealedTooShort   = errors.New("sealed payload too short")
)

// HybridProvider composes RSA-PSS/SHA-256, ML-DSA-65, ML-KEM-768,
// AES-256-GCM and HKDF-SHA-256.
type HybridProvider struct {
	random io.Reader
	sig    sign.Scheme
	kem    kem.Scheme
}

var _ domain.CryptoProvider = (*HybridProvider)(nil)

func NewHybridProvider() *HybridProvider {
	return &HybridProvider{
		random: rand.Reader,
		sig:    mldsa65.Scheme(),
		kem:    mlkem768.Scheme(),
	}
}

func (p *HybridProvider) Hash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func (p *HybridProvider) SignClassical(privateKey, message []byte) ([]byte, error) {
	key, err := parseRSAPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(message)
	return rsa.SignPSS(p.random, key, stdcrypto.SHA256, digest[:], &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
}

func (p *HybridProvider) VerifyClassical(publicKey, message, signature []byte) error {
	key, err := ParseRSAPublicKey(publicKey)
	if err != nil {
		return err
	}
	if len(signature) == 0 {
		return ErrSignatureInvalid
	}
	digest := sha256.Sum256(message)
	if err := rsa.VerifyPSS(key, stdcrypto.SHA256, digest[:], signature, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto}); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

func (p *HybridProvider) SignPQ(privateKey, message []byte) ([]byte, error) {
	key, err := p.sig.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: ml-dsa private key: %v", ErrKeyInvalid, err)
	}
	return p.sig.Sign(key, message, nil), nil
}

func (p *HybridProvider) VerifyPQ(publicKey, message, signature []byte) error {
	key, err := p.sig.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return fmt.Errorf("%w: ml-dsa public key: %v", ErrKeyInvalid, err)
	}
	if len(signature) != p.sig.SignatureSize() {
		return ErrSignatureInvalid
	}
	if !p.sig.Verify(key, message, signature, nil) {
		return ErrSignatureInvalid
	}
	return nil
}

func (p *HybridProvider) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	key, err := p.kem.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: ml-kem public key: %v", ErrKeyInvalid, err)
	}
	return p.kem.Encapsulate(key)
}

func (p *HybridProvider) Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	key, err := p.kem.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: ml-kem private key: %v", ErrKeyInvalid, err)
	}
	if len(ciphertext) != p.kem.CiphertextSize() {
		return nil, fmt.Errorf("ml-kem ciphertext length %d", len(ciphertext))
	}
	return p.kem.Decapsulate(key, ciphertext)
}

// Seal returns nonce || ciphertext.
func (p *HybridProvider) Seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, AEADNonceSize)
	if _, err := io.ReadFull(p.random, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

func (p *HybridProvider) Open(key, sealed, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < AEADNonceSize+aead.Overhead() {
		return nil, ErrSealedTooShort
	}
	return aead.Open(nil, sealed[:AEADNonceSize], sealed[AEADNonceSize:], aad)
}

func (p *HybridProvider) HKDF(secret, salt, info []byte, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("hkdf length %d", length)
	}
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != AEADKeySize {
		return nil, fmt.Errorf("%w: aead key length %d", ErrKeyInvalid, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, AEADNonceSize)
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		if key, pkcs1Err := x509.ParsePKCS1PrivateKey(der); pkcs1Err == nil {
			return key, nil
		}
		return nil, fmt.Errorf("%w: rsa private key: %v", ErrKeyInvalid, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: private key is %T, not RSA", ErrKeyInvalid, parsed)
	}
	return key, nil
}
