package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/auth/rbac"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// writeError maps denials to 401/403 with their caller-safe message. Anything
// else is an internal failure and is logged, not echoed.
func (s *Server) writeError(c *gin.Context, err error) {
	if authz, ok := rbac.IsAuthzError(err); ok {
		writeErrorCode(c, http.StatusForbidden, string(domain.DenialActionForbidden), domain.ErrActionForbidden.Message+" ("+authz.Code+")")
		return
	}
	if denial, ok := domain.AsDenial(err); ok {
		writeErrorCode(c, denialStatus(denial.Code), string(denial.Code), denial.Message)
		return
	}
	if errors.Is(err, errBadRequest) {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	s.log.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
	writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func denialStatus(code domain.DenialCode) int {
	switch code {
	case domain.DenialActionForbidden, domain.DenialReauthRequired:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Is(target error) bool { return target == errBadRequest }
