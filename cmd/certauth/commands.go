package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/app"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/filestore"
)

func newIssueCmd(flags *rootFlags) *cobra.Command {
	var (
		userID, fullName, role     string
		rsaPath, mlkemPath, pqPath string
		validityDays               int
		deviceSecret, out          string
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a hybrid certificate and print its one-time device secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rsaKey, err := os.ReadFile(rsaPath)
			if err != nil {
				return fmt.Errorf("read rsa public key: %w", err)
			}
			mlkemKey, err := readBinaryKey(mlkemPath)
			if err != nil {
				return fmt.Errorf("read ml-kem public key: %w", err)
			}
			var pqKey []byte
			if pqPath != "" {
				if pqKey, err = readBinaryKey(pqPath); err != nil {
					return fmt.Errorf("read pq public key: %w", err)
				}
			}
			cmd.SilenceUsage = true
			return withApp(cmd.Context(), flags, func(a *app.App) error {
				if validityDays == 0 {
					validityDays = a.Config.CertificateValidityDays
				}
				bundle, err := a.Authority.Issue(cmd.Context(), domain.IssueRequest{
					UserID:         userID,
					FullName:       fullName,
					Role:           domain.Role(role),
					RSAPublicKey:   rsaKey,
					MLKEMPublicKey: mlkemKey,
					PQPublicKey:    pqKey,
					ValidityDays:   validityDays,
					DeviceSecret:   deviceSecret,
				})
				if err != nil {
					return err
				}
				if out != "" {
					if err := filestore.WriteAtomic(out, bundle.Plaintext); err != nil {
						return err
					}
				}
				return printJSON(cmd, map[string]any{
					"certificate_id": bundle.Certificate.CertificateID,
					"user_id":        bundle.Certificate.UserID,
					"role":           bundle.Certificate.Role,
					"generation":     bundle.Certificate.Generation,
					"valid_to":       bundle.Certificate.ValidTo,
					"cert_hash":      bundle.CertHash,
					"device_secret":  bundle.DeviceSecret,
				})
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user identifier")
	cmd.Flags().StringVar(&fullName, "name", "", "full name of the certificate owner")
	cmd.Flags().StringVar(&role, "role", "", "customer, manager, auditor or admin")
	cmd.Flags().StringVar(&rsaPath, "rsa-pub", "", "client RSA public key (PEM, DER or base64)")
	cmd.Flags().StringVar(&mlkemPath, "mlkem-pub", "", "client ML-KEM-768 public key (raw or base64)")
	cmd.Flags().StringVar(&pqPath, "pq-pub", "", "optional client ML-DSA-65 public key (raw or base64)")
	cmd.Flags().IntVar(&validityDays, "validity-days", 0, "validity in days (defaults to config)")
	cmd.Flags().StringVar(&deviceSecret, "device-secret", "", "device secret to bind (generated when empty)")
	cmd.Flags().StringVar(&out, "out", "", "write the certificate plaintext to this file")
	for _, name := range []string{"user-id", "name", "role", "rsa-pub", "mlkem-pub"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newRevokeCmd(flags *rootFlags) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "revoke <certificate-id>",
		Short: "Add a certificate to the revocation list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return withApp(cmd.Context(), flags, func(a *app.App) error {
				entry, err := a.Authority.Revoke(cmd.Context(), args[0], reason, flags.operator)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"certificate_id": entry.CertificateID,
					"reason":         entry.Reason,
					"revoked_at":     entry.RevokedAt,
					"requested_by":   entry.RequestedBy,
				})
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "unspecified", "revocation reason")
	return cmd
}

func newRotateCmd(flags *rootFlags) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "rotate-ca",
		Short: "Retire the current CA key of one kind and install a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k := domain.CAKeyKind(kind)
			if !k.Valid() {
				return fmt.Errorf("--kind must be %q or %q", domain.CAKeyClassical, domain.CAKeyPQ)
			}
			cmd.SilenceUsage = true
			return withApp(cmd.Context(), flags, func(a *app.App) error {
				rotation, err := a.Authority.RotateCAKeys(cmd.Context(), k, flags.operator)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"kind":            rotation.Kind,
					"old_fingerprint": rotation.OldFingerprint,
					"new_fingerprint": rotation.NewFingerprint,
					"retired_path":    rotation.RetiredPath,
					"rotated_at":      rotation.RotatedAt,
				})
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "classical or pq")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newVerifyChainCmd(flags *rootFlags) *cobra.Command {
	var chain string
	cmd := &cobra.Command{
		Use:   "verify-chain",
		Short: "Recompute the hash chain of an audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := domain.AuditChain(chain)
			if !c.Valid() {
				return fmt.Errorf("unknown audit chain %q", chain)
			}
			cmd.SilenceUsage = true
			return withApp(cmd.Context(), flags, func(a *app.App) error {
				report, err := a.Audit.VerifyChain(cmd.Context(), c)
				if err != nil {
					return err
				}
				if err := printJSON(cmd, report); err != nil {
					return err
				}
				if !report.Valid {
					return fmt.Errorf("audit chain %s is broken at entry %d", c, report.FirstInvalid)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&chain, "chain", string(domain.AuditChainRequests), "requests, signed_intents, transfers or anomalies")
	return cmd
}

func newResetDeviceCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-device <user-id>",
		Short: "Delete a user's device binding and end their sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return withApp(cmd.Context(), flags, func(a *app.App) error {
				n, err := a.DeviceReset.Reset(cmd.Context(), args[0], flags.operator)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"user_id": args[0], "sessions_destroyed": n})
			})
		},
	}
}

func newShowCmd(flags *rootFlags) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print the latest stored certificate for a user and its verification result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := domain.ParseRole(role)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return withApp(cmd.Context(), flags, func(a *app.App) error {
				cert, _, err := a.Authority.LoadCertificate(cmd.Context(), r, args[0])
				if err != nil {
					return err
				}
				status := "valid"
				if _, verr := a.Authority.Verify(cmd.Context(), cert); verr != nil {
					status = verr.Error()
				}
				return printJSON(cmd, map[string]any{
					"certificate_id":  cert.CertificateID,
					"user_id":         cert.UserID,
					"owner":           cert.Owner,
					"role":            cert.Role,
					"allowed_actions": cert.ActionList(),
					"generation":      cert.Generation,
					"lineage_id":      cert.LineageID,
					"valid_from":      cert.ValidFrom,
					"valid_to":        cert.ValidTo,
					"has_pq_key":      cert.HasPQKey(),
					"cert_hash":       cert.CertHash,
					"status":          status,
				})
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(domain.RoleCustomer), "certificate role")
	return cmd
}

func newCRLCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "crl",
		Short: "Print the current revocation list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return withApp(cmd.Context(), flags, func(a *app.App) error {
				list, err := a.CRL.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"revoked":      list.Revoked,
					"metadata":     list.Metadata,
					"generated_at": time.Now().UTC().Truncate(time.Second),
				})
			})
		},
	}
}

// readBinaryKey accepts raw key bytes or their standard base64 encoding.
func readBinaryKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if decoded, err := base64.StdEncoding.DecodeString(string(trimmed)); err == nil && len(decoded) > 0 {
		return decoded, nil
	}
	return raw, nil
}
