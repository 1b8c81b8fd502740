package crypto

import "github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"

// Service exposes the certificate codec and canonical JSON as one
// injectable dependency.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) CanonicalCertificatePayload(cert domain.Certificate) ([]byte, error) {
	return CanonicalCertificatePayload(cert)
}

func (s *Service) MarshalCertificate(cert domain.Certificate) ([]byte, error) {
	return MarshalCertificate(cert)
}

func (s *Service) ParseCertificate(data []byte) (domain.Certificate, error) {
	return ParseCertificate(data)
}

func (s *Service) CanonicalJSON(v any) ([]byte, error) {
	return CanonicalJSON(v)
}

func (s *Service) NormalizeRSAPublicKey(input []byte) ([]byte, error) {
	return NormalizeRSAPublicKey(input)
}

func (s *Service) ValidateMLKEMPublicKey(pub []byte) error {
	return ValidateMLKEMPublicKey(pub)
}

func (s *Service) ValidateMLDSAPublicKey(pub []byte) error {
	return ValidateMLDSAPublicKey(pub)
}
