package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

type issueCertificateRequest struct {
	UserID         string `json:"user_id"`
	FullName       string `json:"full_name"`
	Role           string `json:"role"`
	RSAPublicKey   string `json:"rsa_public_key"`
	MLKEMPublicKey []byte `json:"ml_kem_public_key"`
	PQPublicKey    []byte `json:"pq_public_key,omitempty"`
	ValidityDays   int    `json:"validity_days"`
	DeviceSecret   string `json:"device_secret,omitempty"`
}

type issueCertificateResponse struct {
	CertificateID string    `json:"certificate_id"`
	UserID        string    `json:"user_id"`
	Role          string    `json:"role"`
	ValidTo       time.Time `json:"valid_to"`
	CertHash      string    `json:"cert_hash"`
	Certificate   string    `json:"certificate"`
	DeviceSecret  string    `json:"device_secret"`
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

type rotateRequest struct {
	Kind string `json:"kind"`
}

func (s *Server) handleIssueCertificate(c *gin.Context) {
	c.Set(actionContextKey, domain.ActionIssueCertificate)
	var req issueCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "invalid json")
		return
	}
	if req.ValidityDays == 0 {
		req.ValidityDays = s.cfg.CertificateValidityDays
	}
	bundle, err := s.deps.Authority.Issue(c.Request.Context(), domain.IssueRequest{
		UserID:         req.UserID,
		FullName:       req.FullName,
		Role:           domain.Role(req.Role),
		RSAPublicKey:   []byte(req.RSAPublicKey),
		MLKEMPublicKey: req.MLKEMPublicKey,
		PQPublicKey:    req.PQPublicKey,
		ValidityDays:   req.ValidityDays,
		DeviceSecret:   req.DeviceSecret,
	})
	if err != nil {
		s.writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issueCertificateResponse{
		CertificateID: bundle.Certificate.CertificateID,
		UserID:        bundle.Certificate.UserID,
		Role:          string(bundle.Certificate.Role),
		ValidTo:       bundle.Certificate.ValidTo,
		CertHash:      bundle.CertHash,
		Certificate:   string(bundle.Plaintext),
		DeviceSecret:  bundle.DeviceSecret,
	})
}

func (s *Server) handleRevokeCertificate(c *gin.Context) {
	c.Set(actionContextKey, domain.ActionRevokeCertificate)
	var req revokeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "invalid json")
			return
		}
	}
	principal, _ := getPrincipal(c)
	entry, err := s.deps.Authority.Revoke(c.Request.Context(), c.Param("certificate_id"), req.Reason, principal.Subject)
	if err != nil {
		s.writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"certificate_id": entry.CertificateID,
		"reason":         entry.Reason,
		"revoked_at":     entry.RevokedAt,
		"requested_by":   entry.RequestedBy,
	})
}

func (s *Server) handleRotateCA(c *gin.Context) {
	c.Set(actionContextKey, domain.ActionRotateCAKeys)
	var req rotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "invalid json")
		return
	}
	kind := domain.CAKeyKind(req.Kind)
	if !kind.Valid() {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "kind must be classical or pq")
		return
	}
	principal, _ := getPrincipal(c)
	rotation, err := s.deps.Authority.RotateCAKeys(c.Request.Context(), kind, principal.Subject)
	if err != nil {
		s.writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"kind":            string(rotation.Kind),
		"old_fingerprint": rotation.OldFingerprint,
		"new_fingerprint": rotation.NewFingerprint,
		"rotated_at":      rotation.RotatedAt,
	})
}

func (s *Server) handleResetDevice(c *gin.Context) {
	c.Set(actionContextKey, domain.ActionResetDeviceBinding)
	principal, _ := getPrincipal(c)
	destroyed, err := s.deps.DeviceReset.Reset(c.Request.Context(), c.Param("user_id"), principal.Subject)
	if err != nil {
		s.writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": c.Param("user_id"), "sessions_destroyed": destroyed})
}

func (s *Server) handleVerifyChain(c *gin.Context) {
	c.Set(actionContextKey, domain.ActionVerifyAuditChain)
	chain := domain.AuditChain(c.Param("chain"))
	if !chain.Valid() {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "unknown audit chain")
		return
	}
	report, err := s.deps.Audit.VerifyChain(c.Request.Context(), chain)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// writeAdminError reports plain validation errors from admin operations as
// 400. Denials and faults keep their usual mapping.
func (s *Server) writeAdminError(c *gin.Context, err error) {
	var fault *domain.Fault
	if _, ok := domain.AsDenial(err); ok || errors.As(err, &fault) {
		s.writeError(c, err)
		return
	}
	s.writeError(c, badRequest(err.Error()))
}
