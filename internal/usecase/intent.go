package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

const IntentTypeTransfer = "transfer"

var ErrIntentMACInvalid = domain.Deny(domain.DenialDeviceProofInvalid, "intent_mac", "Intent signature invalid")

type IntentRequest struct {
	Type    string
	Payload json.RawMessage
	MAC     []byte
}

type IntentResult struct {
	Verified   bool
	IntentHash string
	Entry      domain.AuditEntry
}

type transferIntent struct {
	TransferID  string `json:"transfer_id"`
	FromAccount string `json:"from_account"`
	ToAccount   string `json:"to_account"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

// IntentService checks client intents MACed with the session key
// established at login.
type IntentService struct {
	Guard  *AccessGuard
	Canon  Canonicalizer
	Audit  *AuditRecorder
	Logger *zap.Logger
}

func (s *IntentService) VerifyIntent(ctx context.Context, accessToken string, req IntentRequest) (IntentResult, error) {
	if s == nil || s.Guard == nil || s.Canon == nil || s.Audit == nil {
		return IntentResult{}, errors.New("intent service is not fully configured")
	}
	if req.Type == "" || len(req.Payload) == 0 {
		return IntentResult{}, errors.New("intent type and payload are required")
	}
	principal, session, err := s.Guard.Authenticate(ctx, accessToken, false)
	if err != nil {
		return IntentResult{}, err
	}
	if err := s.Guard.Authorize(ctx, principal, domain.ActionSignIntent); err != nil {
		return IntentResult{}, err
	}

	var transfer transferIntent
	if req.Type == IntentTypeTransfer {
		if err := json.Unmarshal(req.Payload, &transfer); err != nil {
			return IntentResult{}, fmt.Errorf("transfer intent: %w", err)
		}
		if err := s.Guard.Authorize(ctx, principal, domain.ActionInitiateTransfer); err != nil {
			return IntentResult{}, err
		}
	}

	canonical, err := s.Canon.CanonicalJSON(req.Payload)
	if err != nil {
		return IntentResult{}, fmt.Errorf("intent payload: %w", err)
	}
	digest := sha256.Sum256(canonical)
	intentHash := hex.EncodeToString(digest[:])
	verified := len(session.SessionKey) > 0 && hmac.Equal(IntentMAC(session.SessionKey, canonical), req.MAC)

	entry, err := s.Audit.RecordSignedIntent(ctx, domain.IntentRecord{
		UserID:        principal.Subject,
		CertificateID: principal.CertificateID,
		IntentType:    req.Type,
		IntentHash:    intentHash,
		Verified:      verified,
	})
	if err != nil {
		return IntentResult{}, err
	}
	if !verified {
		s.logger().Warn("intent mac rejected",
			zap.String("user_id", principal.Subject),
			zap.String("intent_type", req.Type),
			zap.String("intent_hash", intentHash),
		)
		if _, err := s.Audit.RecordAnomaly(ctx, domain.AnomalyRecord{
			UserID:        principal.Subject,
			CertificateID: principal.CertificateID,
			Kind:          domain.AnomalyIntentMACInvalid,
			Severity:      domain.AnomalySeverityHigh,
			Detail:        req.Type + ":" + intentHash,
		}); err != nil {
			return IntentResult{}, err
		}
		return IntentResult{Verified: false, IntentHash: intentHash, Entry: entry}, ErrIntentMACInvalid
	}

	if req.Type == IntentTypeTransfer {
		if _, err := s.Audit.RecordTransfer(ctx, domain.TransferRecord{
			TransferID:  transfer.TransferID,
			FromAccount: transfer.FromAccount,
			ToAccount:   transfer.ToAccount,
			Amount:      transfer.Amount,
			Currency:    transfer.Currency,
			InitiatedBy: principal.Subject,
			Status:      "authorized",
		}); err != nil {
			return IntentResult{}, err
		}
	}
	return IntentResult{Verified: true, IntentHash: intentHash, Entry: entry}, nil
}

// IntentMAC is HMAC-SHA-256 over the canonical JSON payload.
func IntentMAC(sessionKey, canonicalPayload []byte) []byte {
	mac := hmac.New(sha256.New, sessionKey)
	mac.Write(canonicalPayload)
	return mac.Sum(nil)
}

func (s *IntentService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
