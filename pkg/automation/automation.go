// Package automation implements the Shogun DNS actions: setting up, verifying,
// and describing a domain's records through the Vercel CLI backend.
package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pulseops/pulser/pkg/dnscli"
)

// Record values for a Vercel-hosted site.
const (
	RootRecordValue = "76.76.21.21"
	WWWRecordValue  = "cname.vercel-dns.com"
)

// Shogun performs the DNS automation actions.
type Shogun struct {
	dns    *dnscli.Client
	logger *slog.Logger
}

// Option configures a Shogun.
type Option func(*Shogun)

// WithDNSClient sets the domain-record backend.
func WithDNSClient(c *dnscli.Client) Option {
	return func(s *Shogun) {
		s.dns = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Shogun) {
		s.logger = l
	}
}

// New creates a Shogun over the default Vercel CLI backend.
func New(opts ...Option) *Shogun {
	s := &Shogun{
		dns:    dnscli.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetupResult is the payload of a setup_dns action.
type SetupResult struct {
	Success    bool          `json:"success"`
	Domain     string        `json:"domain"`
	RootRecord dnscli.Result `json:"root_record"`
	WWWRecord  dnscli.Result `json:"www_record"`
	Message    string        `json:"message"`
}

// VerifyResult is the payload of a verify_dns action.
type VerifyResult struct {
	Success      bool          `json:"success"`
	Domain       string        `json:"domain"`
	Verification dnscli.Result `json:"verification"`
	Message      string        `json:"message"`
}

// InfoResult is the payload of a dns_info action.
type InfoResult struct {
	Success    bool          `json:"success"`
	Domain     string        `json:"domain"`
	DNSRecords dnscli.Result `json:"dns_records"`
	Message    string        `json:"message"`
}

// SetupDNS points the root domain at Vercel's A record and the www subdomain
// at its CNAME target.
func (s *Shogun) SetupDNS(ctx context.Context, domain string) SetupResult {
	s.logger.InfoContext(ctx, "setting up dns", slog.String("domain", domain))

	root := s.dns.AddRecord(ctx, domain, "@", "A", RootRecordValue)
	www := s.dns.AddRecord(ctx, domain, "www", "CNAME", WWWRecordValue)

	return SetupResult{
		Success:    root.Success && www.Success,
		Domain:     domain,
		RootRecord: root,
		WWWRecord:  www,
		Message: fmt.Sprintf(
			"DNS records have been configured for %s. Root domain points to %s and www subdomain points to %s.",
			domain, RootRecordValue, WWWRecordValue),
	}
}

// VerifyDNS checks the domain's verification status.
func (s *Shogun) VerifyDNS(ctx context.Context, domain string, checkNameservers bool) VerifyResult {
	s.logger.InfoContext(ctx, "verifying dns", slog.String("domain", domain))

	verification := s.dns.InspectDomain(ctx, domain)

	if checkNameservers {
		// TODO: parse nameserver delegation out of the inspect output once
		// the vercel CLI output format is pinned down.
		s.logger.InfoContext(ctx, "nameserver check requested", slog.String("domain", domain))
	}

	return VerifyResult{
		Success:      verification.Success,
		Domain:       domain,
		Verification: verification,
		Message: fmt.Sprintf(
			"Domain verification checked for %s. Please check the verification details to ensure the domain is properly configured.",
			domain),
	}
}

// DNSInfo lists the domain's current records.
func (s *Shogun) DNSInfo(ctx context.Context, domain string) InfoResult {
	s.logger.InfoContext(ctx, "getting dns info", slog.String("domain", domain))

	records := s.dns.ListRecords(ctx, domain)

	return InfoResult{
		Success:    records.Success,
		Domain:     domain,
		DNSRecords: records,
		Message:    fmt.Sprintf("Current DNS configuration for %s.", domain),
	}
}
