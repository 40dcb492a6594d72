package assetdef

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DNSSECResolver resolves definition records through a validating
// recursive resolver. Every query carries the DNSSEC-OK bit and only
// answers the upstream marked authenticated (AD) are accepted, so a forged
// SRV or TXT record cannot redirect a definition fetch to an attacker's
// endpoint.
type DNSSECResolver struct {
	// Upstream is the recursive resolver address, host:port. Empty uses
	// a public validating resolver.
	Upstream string

	// Net is the transport handed to the dns client ("udp", "tcp",
	// "tcp-tls"); empty means udp. Definition record sets are small, but
	// tcp avoids truncation when a domain publishes many handles.
	Net string

	// Timeout bounds a single query; zero means 10 seconds.
	Timeout time.Duration
}

// NewDNSSECResolver creates a validating resolver against upstream; an
// empty upstream uses a public validating resolver.
func NewDNSSECResolver(upstream string) *DNSSECResolver {
	if upstream == "" {
		upstream = "8.8.8.8:53"
	}
	return &DNSSECResolver{Upstream: upstream}
}

// exchange runs one authenticated query and hands each answer record to
// collect. A name that provably does not exist maps to ErrNoEndpoints:
// for definition lookups an authenticated NXDOMAIN means the issuer
// publishes nothing, which callers treat the same as an empty record set.
func (r *DNSSECResolver) exchange(name string, qtype uint16, collect func(dns.RR)) error {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(name), qtype)
	req.RecursionDesired = true
	req.SetEdns0(4096, true) // DO bit

	timeout := r.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	upstream := r.Upstream
	if upstream == "" {
		upstream = "8.8.8.8:53"
	}
	client := &dns.Client{Net: r.Net, Timeout: timeout}
	resp, _, err := client.Exchange(req, upstream)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrLookupFailed, name, dns.TypeToString[qtype], err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		if !resp.AuthenticatedData {
			return fmt.Errorf("%w: %s %s", ErrDNSSECValidation, name, dns.TypeToString[qtype])
		}
		return fmt.Errorf("%w: %s does not exist", ErrNoEndpoints, name)
	default:
		return fmt.Errorf("%w: %s %s: rcode %s",
			ErrLookupFailed, name, dns.TypeToString[qtype], dns.RcodeToString[resp.Rcode])
	}
	if !resp.AuthenticatedData {
		return fmt.Errorf("%w: %s %s", ErrDNSSECValidation, name, dns.TypeToString[qtype])
	}

	for _, rr := range resp.Answer {
		collect(rr)
	}
	return nil
}

// LookupSRV implements DNSResolver over the validating transport.
func (r *DNSSECResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	fqdn := fmt.Sprintf("_%s._%s.%s", service, proto, name)
	var srvs []*net.SRV
	err := r.exchange(fqdn, dns.TypeSRV, func(rr dns.RR) {
		if srv, ok := rr.(*dns.SRV); ok {
			srvs = append(srvs, &net.SRV{
				Target:   srv.Target,
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	})
	if err != nil {
		return "", nil, err
	}
	return fqdn, srvs, nil
}

// LookupTXT implements DNSResolver over the validating transport.
func (r *DNSSECResolver) LookupTXT(name string) ([]string, error) {
	var records []string
	err := r.exchange(name, dns.TypeTXT, func(rr dns.RR) {
		if txt, ok := rr.(*dns.TXT); ok {
			records = append(records, strings.Join(txt.Txt, ""))
		}
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
