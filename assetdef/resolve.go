package assetdef

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// SRVService is the service label for definition endpoints:
// _assetdef._tcp.{domain}.
const SRVService = "assetdef"

// DNSResolver is the lookup surface resolution needs; tests supply mocks
// and DNSSECResolver supplies a validating implementation.
type DNSResolver interface {
	LookupSRV(service, proto, name string) (string, []*net.SRV, error)
	LookupTXT(name string) ([]string, error)
}

// defaultDNSResolver wraps the standard net package lookups.
type defaultDNSResolver struct{}

func (defaultDNSResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return net.LookupSRV(service, proto, name)
}

func (defaultDNSResolver) LookupTXT(name string) ([]string, error) {
	return net.LookupTXT(name)
}

// DefaultDNSResolver is the production resolver using the net package.
var DefaultDNSResolver DNSResolver = defaultDNSResolver{}

// ResolveEndpoints returns the definition endpoints for a domain from its
// _assetdef._tcp SRV records, sorted by priority then descending weight.
func ResolveEndpoints(domain string, resolver DNSResolver) ([]string, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrInvalidHandle)
	}
	if resolver == nil {
		resolver = DefaultDNSResolver
	}
	_, srvs, err := resolver.LookupSRV(SRVService, "tcp", domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLookupFailed, domain, err)
	}
	if len(srvs) == 0 {
		return nil, fmt.Errorf("%w: no SRV records for %s", ErrNoEndpoints, domain)
	}
	sort.SliceStable(srvs, func(i, j int) bool {
		if srvs[i].Priority != srvs[j].Priority {
			return srvs[i].Priority < srvs[j].Priority
		}
		return srvs[i].Weight > srvs[j].Weight
	})
	endpoints := make([]string, len(srvs))
	for i, srv := range srvs {
		host := srv.Target
		if len(host) > 0 && host[len(host)-1] == '.' {
			host = host[:len(host)-1]
		}
		endpoints[i] = fmt.Sprintf("%s:%d", host, srv.Port)
	}
	return endpoints, nil
}

// ResolveHandle resolves "name@domain" to the definition URLs published for
// that name in the TXT records at _assetdef.{domain}. Records have the form
// "assetdef name=<name> u=<url>".
func ResolveHandle(handle string, resolver DNSResolver) ([]string, error) {
	name, domain, err := SplitHandle(handle)
	if err != nil {
		return nil, err
	}
	if resolver == nil {
		resolver = DefaultDNSResolver
	}
	records, err := resolver.LookupTXT("_assetdef." + domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLookupFailed, domain, err)
	}
	var urls []string
	for _, rec := range records {
		recName, url, ok := parseTXTRecord(rec)
		if ok && recName == name {
			urls = append(urls, url)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoints, handle)
	}
	return urls, nil
}

// parseTXTRecord parses "assetdef name=<name> u=<url>".
func parseTXTRecord(rec string) (name, url string, ok bool) {
	const prefix = "assetdef "
	if !strings.HasPrefix(rec, prefix) {
		return "", "", false
	}
	for _, field := range strings.Fields(rec[len(prefix):]) {
		switch {
		case strings.HasPrefix(field, "name="):
			name = field[len("name="):]
		case strings.HasPrefix(field, "u="):
			url = field[len("u="):]
		}
	}
	return name, url, name != "" && url != ""
}

// Fetcher retrieves one definition document by URL.
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// FetchAll fetches every definition URL concurrently, at most limit in
// flight, and returns the documents in input order. The first failure
// cancels the rest.
func FetchAll(ctx context.Context, urls []string, limit int, fetch Fetcher) ([][]byte, error) {
	if fetch == nil {
		return nil, ErrNilFetcher
	}
	if limit <= 0 {
		limit = 4
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	docs := make([][]byte, len(urls))
	for i, url := range urls {
		g.Go(func() error {
			doc, err := fetch(ctx, url)
			if err != nil {
				return fmt.Errorf("assetdef: fetch %s: %w", url, err)
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}
