package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

const namespace = "certauth"

// Label names
const (
	LabelOutcome = "outcome"
	LabelRole    = "role"
	LabelReason  = "reason"
	LabelChain   = "chain"
)

// Prometheus records the security counters on a private registry so several
// instances can coexist in one process.
type Prometheus struct {
	registry *prometheus.Registry

	certificatesVerified *prometheus.CounterVec
	certificatesIssued   *prometheus.CounterVec
	logins               *prometheus.CounterVec
	sessionsDestroyed    *prometheus.CounterVec
	auditAppends         *prometheus.CounterVec
	rateLimited          prometheus.Counter
}

func New() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		certificatesVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "certificate_verifications_total",
			Help: "Certificate verifications by outcome.",
		}, []string{LabelOutcome}),
		certificatesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "certificates_issued_total",
			Help: "Certificates issued by role.",
		}, []string{LabelRole}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "logins_total",
			Help: "Completed login attempts by outcome.",
		}, []string{LabelOutcome}),
		sessionsDestroyed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_destroyed_total",
			Help: "Sessions destroyed by reason.",
		}, []string{LabelReason}),
		auditAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "audit_entries_appended_total",
			Help: "Audit entries appended per chain.",
		}, []string{LabelChain}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "challenge_rate_limited_total",
			Help: "Challenge requests refused by the rate limiter.",
		}),
	}
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.certificatesVerified,
		p.certificatesIssued,
		p.logins,
		p.sessionsDestroyed,
		p.auditAppends,
		p.rateLimited,
	)
	return p
}

func (p *Prometheus) CertificateVerified(outcome string) {
	if p == nil {
		return
	}
	p.certificatesVerified.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) CertificateIssued(role domain.Role) {
	if p == nil {
		return
	}
	p.certificatesIssued.WithLabelValues(string(role)).Inc()
}

func (p *Prometheus) LoginCompleted(outcome string) {
	if p == nil {
		return
	}
	p.logins.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) SessionDestroyed(reason string) {
	if p == nil {
		return
	}
	p.sessionsDestroyed.WithLabelValues(reason).Inc()
}

func (p *Prometheus) AuditAppended(chain domain.AuditChain) {
	if p == nil {
		return
	}
	p.auditAppends.WithLabelValues(string(chain)).Inc()
}

func (p *Prometheus) RateLimited() {
	if p == nil {
		return
	}
	p.rateLimited.Inc()
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

var _ usecase.Metrics = (*Prometheus)(nil)
