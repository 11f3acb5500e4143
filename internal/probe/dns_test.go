package probe

import (
	"context"
	"net"
	"testing"
)

type fakeResolver struct {
	ips   []net.IP
	ipErr error
	ns    []*net.NS
	nsErr error
}

func (f *fakeResolver) LookupIP(ctx context.Context, network, host string) ([]net.IP, error) {
	return f.ips, f.ipErr
}

func (f *fakeResolver) LookupNS(ctx context.Context, name string) ([]*net.NS, error) {
	return f.ns, f.nsErr
}

func TestDNSClassifier_Classify(t *testing.T) {
	notFound := &net.DNSError{Err: "no such host", Name: "x", IsNotFound: true}
	timeout := &net.DNSError{Err: "i/o timeout", Name: "x", IsTimeout: true}

	cases := []struct {
		name string
		url  string
		res  *fakeResolver
		want string
	}{
		{"resolves", "http://cdn.example.com/live.m3u8", &fakeResolver{ips: []net.IP{net.ParseIP("10.0.0.1")}}, DNSResolves},
		{"nxdomain", "http://gone.example.com/", &fakeResolver{ipErr: notFound, nsErr: notFound}, DNSNXDomain},
		{"no_a_record", "http://zone.example.com/", &fakeResolver{ipErr: notFound, ns: []*net.NS{{Host: "ns1."}}}, DNSNoARecord},
		{"servfail", "rtsp://flaky.example.com/s", &fakeResolver{ipErr: timeout, nsErr: timeout}, DNSServFail},
		{"literal", "rtsp://192.168.1.10:554/s", &fakeResolver{}, DNSLiteralIP},
		{"invalid", "http://", &fakeResolver{}, DNSInvalidName},
	}
	for _, c := range cases {
		d := &DNSClassifier{Resolver: c.res}
		if got := d.Classify(context.Background(), c.url); got != c.want {
			t.Fatalf("%s: Classify(%q)=%s want %s", c.name, c.url, got, c.want)
		}
	}
}
