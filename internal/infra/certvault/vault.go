package certvault

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/crypto"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/filestore"
)

const (
	envelopeVersion   = 2
	kdfAlgorithm      = "pbkdf2-sha256"
	cipherAlgorithm   = "aes-256-gcm"
	saltBytes         = 16
	DefaultIterations = 200000
)

type PassphraseSource interface {
	Passphrase(ctx context.Context) (string, error)
}

type StaticPassphrase string

func (s StaticPassphrase) Passphrase(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("vault passphrase is empty")
	}
	return string(s), nil
}

type envelope struct {
	Version    int         `json:"version"`
	Salt       string      `json:"salt"`
	Nonce      string      `json:"nonce"`
	Ciphertext string      `json:"ciphertext"`
	KDF        envelopeKDF `json:"kdf"`
	Cipher     string      `json:"cipher"`
}

type envelopeKDF struct {
	Alg        string `json:"alg"`
	Iterations int    `json:"iterations"`
}

// Vault stores each certificate generation as its own encrypted file:
// <dir>/<role>/<user_id>/gen-000001.cert. Files are never rewritten except
// to migrate a legacy plaintext certificate into an envelope.
type Vault struct {
	dir        string
	source     PassphraseSource
	iterations int
	provider   *crypto.HybridProvider
	logger     *zap.Logger

	passOnce   sync.Once
	passphrase string
	passErr    error

	mu sync.Mutex
}

func New(dir string, source PassphraseSource, iterations int, logger *zap.Logger) *Vault {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vault{
		dir:        dir,
		source:     source,
		iterations: iterations,
		provider:   crypto.NewHybridProvider(),
		logger:     logger,
	}
}

func (v *Vault) Store(ctx context.Context, cert domain.Certificate, plaintext []byte) error {
	path, err := v.path(cert.Role, cert.UserID, cert.Generation)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: generation %d already stored for %s/%s", domain.ErrVault, cert.Generation, cert.Role, cert.UserID)
	}
	sealed, err := v.seal(ctx, aad(cert.Role, cert.UserID, cert.Generation), plaintext)
	if err != nil {
		return err
	}
	return filestore.WriteAtomic(path, sealed)
}

// Load returns the plaintext of the newest generation.
func (v *Vault) Load(ctx context.Context, role domain.Role, userID string) ([]byte, error) {
	latest, err := v.Generations(ctx, role, userID)
	if err != nil {
		return nil, err
	}
	if latest == 0 {
		return nil, domain.ErrNotFound
	}
	return v.LoadGeneration(ctx, role, userID, latest)
}

func (v *Vault) LoadGeneration(ctx context.Context, role domain.Role, userID string, generation int) ([]byte, error) {
	path, err := v.path(role, userID, generation)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	additional := aad(role, userID, generation)

	var env envelope
	if json.Unmarshal(data, &env) != nil || env.Version == 0 {
		return v.migrateLegacy(ctx, path, additional, data)
	}
	return v.open(ctx, additional, env)
}

// Generations reports the highest stored generation, 0 when none exist.
func (v *Vault) Generations(_ context.Context, role domain.Role, userID string) (int, error) {
	dir, err := v.identityDir(role, userID)
	if err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, entry := range entries {
		n, ok := parseGenerationName(entry.Name())
		if ok && n > highest {
			highest = n
		}
	}
	return highest, nil
}

func (v *Vault) migrateLegacy(ctx context.Context, path string, additional, data []byte) ([]byte, error) {
	if _, err := crypto.ParseCertificate(data); err != nil {
		return nil, fmt.Errorf("%w: %s is neither an envelope nor a certificate", domain.ErrVault, filepath.Base(path))
	}
	sealed, err := v.seal(ctx, additional, data)
	if err != nil {
		return nil, err
	}
	if err := filestore.WriteAtomic(path, sealed); err != nil {
		return nil, err
	}
	v.logger.Warn("migrated legacy plaintext certificate", zap.String("path", path))
	return data, nil
}

func (v *Vault) seal(ctx context.Context, additional, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key, err := v.deriveKey(ctx, salt, v.iterations)
	if err != nil {
		return nil, err
	}
	sealed, err := v.provider.Seal(key, plaintext, additional)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVault, err)
	}
	return json.Marshal(envelope{
		Version:    envelopeVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(sealed[:crypto.AEADNonceSize]),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed[crypto.AEADNonceSize:]),
		KDF:        envelopeKDF{Alg: kdfAlgorithm, Iterations: v.iterations},
		Cipher:     cipherAlgorithm,
	})
}

func (v *Vault) open(ctx context.Context, additional []byte, env envelope) ([]byte, error) {
	if env.Version != envelopeVersion || env.Cipher != cipherAlgorithm || env.KDF.Alg != kdfAlgorithm || env.KDF.Iterations <= 0 {
		return nil, fmt.Errorf("%w: unsupported envelope (version %d, cipher %q, kdf %q)", domain.ErrVault, env.Version, env.Cipher, env.KDF.Alg)
	}
	salt, err1 := base64.StdEncoding.DecodeString(env.Salt)
	nonce, err2 := base64.StdEncoding.DecodeString(env.Nonce)
	ciphertext, err3 := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("%w: envelope encoding: %v", domain.ErrVault, err)
	}
	key, err := v.deriveKey(ctx, salt, env.KDF.Iterations)
	if err != nil {
		return nil, err
	}
	plaintext, err := v.provider.Open(key, append(nonce, ciphertext...), additional)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: %v", domain.ErrVault, err)
	}
	return plaintext, nil
}

func (v *Vault) deriveKey(ctx context.Context, salt []byte, iterations int) ([]byte, error) {
	passphrase, err := v.loadPassphrase(ctx)
	if err != nil {
		return nil, err
	}
	return pbkdf2.Key([]byte(passphrase), salt, iterations, crypto.AEADKeySize, sha256.New), nil
}

// loadPassphrase fetches the passphrase once per process.
func (v *Vault) loadPassphrase(ctx context.Context) (string, error) {
	if v.source == nil {
		return "", fmt.Errorf("%w: no passphrase source", domain.ErrVault)
	}
	v.passOnce.Do(func() {
		v.passphrase, v.passErr = v.source.Passphrase(ctx)
	})
	if v.passErr != nil {
		return "", fmt.Errorf("%w: passphrase: %v", domain.ErrVault, v.passErr)
	}
	return v.passphrase, nil
}

func (v *Vault) path(role domain.Role, userID string, generation int) (string, error) {
	if generation < 1 {
		return "", fmt.Errorf("invalid generation %d", generation)
	}
	dir, err := v.identityDir(role, userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, generationName(generation)), nil
}

func (v *Vault) identityDir(role domain.Role, userID string) (string, error) {
	if v == nil || v.dir == "" {
		return "", errors.New("vault directory is required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	if userID == "" || userID == "." || userID == ".." || strings.ContainsAny(userID, `/\`) {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	return filepath.Join(v.dir, string(role), userID), nil
}

func aad(role domain.Role, userID string, generation int) []byte {
	return []byte(string(role) + "/" + userID + "/" + strconv.Itoa(generation))
}

func generationName(generation int) string {
	return fmt.Sprintf("gen-%06d.cert", generation)
}

func parseGenerationName(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, "gen-")
	if !ok {
		return 0, false
	}
	digits, ok = strings.CutSuffix(digits, ".cert")
	if !ok || len(digits) != 6 {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
