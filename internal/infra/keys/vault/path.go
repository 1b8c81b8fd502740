package vault

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

// Vault KV v2 path format (env-scoped, kind-scoped):
// secret/data/certauth/{env}/ca/{kind}
// Stored fields: alg, private_key_base64, created_at.
const caKeyPathFormat = "secret/data/certauth/%s/ca/%s"

func caKeyPath(env string, kind domain.CAKeyKind) (string, error) {
	if env == "" {
		return "", errors.New("CERTAUTH_ENV is required")
	}
	if !kind.Valid() {
		return "", fmt.Errorf("unsupported ca key kind %q", kind)
	}
	return fmt.Sprintf(caKeyPathFormat, env, kind), nil
}

func retiredKeyPath(current string, unix int64) string {
	return current + "-retired-" + strconv.FormatInt(unix, 10)
}

func keyAlg(kind domain.CAKeyKind) string {
	if kind == domain.CAKeyClassical {
		return "rsa-pss-sha256"
	}
	return "ml-dsa-65"
}
