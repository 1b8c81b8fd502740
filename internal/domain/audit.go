package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type AuditChain string

const (
	AuditChainRequests      AuditChain = "requests"
	AuditChainSignedIntents AuditChain = "signed_intents"
	AuditChainTransfers     AuditChain = "transfers"
	AuditChainAnomalies     AuditChain = "anomalies"
)

func (c AuditChain) Valid() bool {
	switch c {
	case AuditChainRequests, AuditChainSignedIntents, AuditChainTransfers, AuditChainAnomalies:
		return true
	default:
		return false
	}
}

// Chained reports whether entries of this store are hash-linked. The anomaly
// log is a plain append-only list.
func (c AuditChain) Chained() bool {
	return c == AuditChainRequests || c == AuditChainSignedIntents || c == AuditChainTransfers
}

func ChainedAuditChains() []AuditChain {
	return []AuditChain{AuditChainRequests, AuditChainSignedIntents, AuditChainTransfers}
}

const (
	AuditGenesis         = "GENESIS"
	AuditTimestampLayout = "2006-01-02T15:04:05Z"
)

const (
	auditKeyEventID   = "event_id"
	auditKeyTimestamp = "timestamp"
	auditKeyPrevHash  = "prev_hash"
	auditKeyEntryHash = "entry_hash"
)

// AuditEntry is persisted flat: event_id, timestamp, the domain fields,
// prev_hash and entry_hash side by side in one JSON object.
type AuditEntry struct {
	EventID   string
	Timestamp string
	Fields    map[string]any
	PrevHash  string
	EntryHash string
}

// Body is the hashed part of the entry.
func (e AuditEntry) Body() map[string]any {
	body := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		body[k] = v
	}
	body[auditKeyEventID] = e.EventID
	body[auditKeyTimestamp] = e.Timestamp
	return body
}

func (e AuditEntry) Field(key string) string {
	v, ok := e.Fields[key]
	if !ok || v == nil {
		return ""
	}
	switch value := v.(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprint(value)
	}
}

func (e AuditEntry) MarshalJSON() ([]byte, error) {
	out := e.Body()
	if e.PrevHash != "" {
		out[auditKeyPrevHash] = e.PrevHash
	}
	if e.EntryHash != "" {
		out[auditKeyEntryHash] = e.EntryHash
	}
	return json.Marshal(out)
}

func (e *AuditEntry) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	entry := AuditEntry{Fields: map[string]any{}}
	for k, v := range raw {
		switch k {
		case auditKeyEventID:
			entry.EventID, _ = v.(string)
		case auditKeyTimestamp:
			entry.Timestamp, _ = v.(string)
		case auditKeyPrevHash:
			entry.PrevHash, _ = v.(string)
		case auditKeyEntryHash:
			entry.EntryHash, _ = v.(string)
		default:
			entry.Fields[k] = v
		}
	}
	if entry.EventID == "" {
		return fmt.Errorf("audit entry missing %s", auditKeyEventID)
	}
	*e = entry
	return nil
}

func IsReservedAuditKey(key string) bool {
	switch key {
	case auditKeyEventID, auditKeyTimestamp, auditKeyPrevHash, auditKeyEntryHash:
		return true
	default:
		return false
	}
}

type RequestRecord struct {
	UserID             string
	Role               string
	Action             string
	Method             string
	Path               string
	Status             int
	Outcome            string
	CertificateID      string
	SessionFingerprint string
	RemoteAddr         string
	Detail             string
}

func (r RequestRecord) Fields() map[string]any {
	return map[string]any{
		"user_id":             r.UserID,
		"role":                r.Role,
		"action":              r.Action,
		"method":              r.Method,
		"path":                r.Path,
		"status":              r.Status,
		"outcome":             r.Outcome,
		"certificate_id":      r.CertificateID,
		"session_fingerprint": r.SessionFingerprint,
		"remote_addr":         r.RemoteAddr,
		"detail":              r.Detail,
	}
}

type IntentRecord struct {
	UserID        string
	CertificateID string
	IntentType    string
	IntentHash    string
	Verified      bool
}

func (r IntentRecord) Fields() map[string]any {
	return map[string]any{
		"user_id":        r.UserID,
		"certificate_id": r.CertificateID,
		"intent_type":    r.IntentType,
		"intent_hash":    r.IntentHash,
		"verified":       r.Verified,
	}
}

type TransferRecord struct {
	TransferID  string
	FromAccount string
	ToAccount   string
	Amount      string
	Currency    string
	InitiatedBy string
	Status      string
}

func (r TransferRecord) Fields() map[string]any {
	return map[string]any{
		"transfer_id":  r.TransferID,
		"from_account": r.FromAccount,
		"to_account":   r.ToAccount,
		"amount":       r.Amount,
		"currency":     r.Currency,
		"initiated_by": r.InitiatedBy,
		"status":       r.Status,
	}
}

type AnomalyRecord struct {
	UserID        string
	CertificateID string
	Kind          string
	Severity      string
	Detail        string
}

func (r AnomalyRecord) Fields() map[string]any {
	return map[string]any{
		"user_id":        r.UserID,
		"certificate_id": r.CertificateID,
		"kind":           r.Kind,
		"severity":       r.Severity,
		"detail":         r.Detail,
	}
}

const (
	AnomalySeverityLow    = "low"
	AnomalySeverityMedium = "medium"
	AnomalySeverityHigh   = "high"
)

const (
	AnomalyBindingMismatch    = "binding_mismatch"
	AnomalyRevokedCertificate = "revoked_certificate_use"
	AnomalyInvalidCertificate = "invalid_certificate"
	AnomalyDeviceProofFailed  = "device_proof_failed"
	AnomalyChallengeReplay    = "challenge_replay"
	AnomalyIntentMACInvalid   = "intent_mac_invalid"
)
