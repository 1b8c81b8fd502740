package domain

// CryptoProvider is the external primitive capability. Keys cross this
// boundary as encoded bytes: PKIX/PKCS#8 DER for the classical scheme, packed
// binary for the post-quantum schemes.
type CryptoProvider interface {
	Hash(data []byte) []byte
	SignClassical(privateKey, message []byte) ([]byte, error)
	VerifyClassical(publicKey, message, signature []byte) error
	SignPQ(privateKey, message []byte) ([]byte, error)
	VerifyPQ(publicKey, message, signature []byte) error
	Encapsulate(publicKey []byte) (ciphertext, sharedSecret []byte, err error)
	Decapsulate(privateKey, ciphertext []byte) ([]byte, error)
	Seal(key, plaintext, aad []byte) ([]byte, error)
	Open(key, sealed, aad []byte) ([]byte, error)
	HKDF(secret, salt, info []byte, length int) ([]byte, error)
}
