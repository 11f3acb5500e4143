package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

const (
	DNSResolves     = "RESOLVES"
	DNSNXDomain     = "NXDOMAIN"
	DNSNoARecord    = "NO_A_RECORD"
	DNSServFail     = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName  = "INVALID_NAME"
	DNSLiteralIP    = "IP_LITERAL"
	defaultDNSLimit = 3 * time.Second
)

// HostResolver is the subset of *net.Resolver used for classification.
type HostResolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

// DNSClassifier explains why an unreachable stream host might be failing.
type DNSClassifier struct {
	Resolver HostResolver
	Timeout  time.Duration
}

func NewDNSClassifier() *DNSClassifier {
	return &DNSClassifier{Resolver: &net.Resolver{}, Timeout: defaultDNSLimit}
}

// Classify returns one of the DNS* classes for the host of streamURL.
func (d *DNSClassifier) Classify(ctx context.Context, streamURL string) string {
	host := hostOf(streamURL)
	if host == "" || strings.Contains(host, "://") {
		return DNSInvalidName
	}
	if net.ParseIP(host) != nil {
		return DNSLiteralIP
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultDNSLimit
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ips, err := d.Resolver.LookupIP(ctx, "ip", host)
	if err == nil && len(ips) > 0 {
		return DNSResolves
	}

	class := DNSServFail
	var de *net.DNSError
	if errors.As(err, &de) && de.IsNotFound {
		class = DNSNXDomain
	}
	if err == nil {
		class = DNSNXDomain
	}
	// A zone with nameservers but no address records is a different failure.
	if ns, nsErr := d.Resolver.LookupNS(ctx, host); nsErr == nil && len(ns) > 0 && class == DNSNXDomain {
		class = DNSNoARecord
	}
	return class
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return strings.TrimSpace(raw)
	}
	return u.Hostname()
}
