package db

import "time"

// AuditChainHeadModel is locked FOR UPDATE while an entry is appended so
// concurrent writers on one chain serialize.
type AuditChainHeadModel struct {
	Chain     string `gorm:"primaryKey;type:text"`
	Seq       int64  `gorm:"not null"`
	EntryHash string `gorm:"type:text;not null;default:''"`
}

func (AuditChainHeadModel) TableName() string { return "audit_chain_heads" }

type AuditEntryModel struct {
	Chain     string    `gorm:"primaryKey;type:text"`
	Seq       int64     `gorm:"primaryKey"`
	EventID   string    `gorm:"type:text;uniqueIndex;not null"`
	Timestamp string    `gorm:"type:text;not null"`
	PrevHash  string    `gorm:"type:text;not null;default:''"`
	EntryHash string    `gorm:"type:text;not null;default:''"`
	Payload   []byte    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (AuditEntryModel) TableName() string { return "audit_entries" }

type DeviceBindingModel struct {
	UserID       string    `gorm:"primaryKey;type:text"`
	DeviceSecret string    `gorm:"type:text;not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (DeviceBindingModel) TableName() string { return "device_bindings" }

type CertificateRevocationModel struct {
	CertificateID string    `gorm:"primaryKey;type:text"`
	Reason        string    `gorm:"type:text;not null"`
	RevokedAt     time.Time `gorm:"not null"`
	RequestedBy   string    `gorm:"type:text;not null;default:''"`
}

func (CertificateRevocationModel) TableName() string { return "certificate_revocations" }
