package transport

import (
	"context"
	"net"

	"github.com/nodecore/evnet"
)

// StdResolver adapts net.Resolver to evnet.Resolver: Lookup dispatches
// the blocking net.Resolver.LookupIPAddr call on its own goroutine and
// hands the first matching address back through cb, preferring an
// IPv4 result unless PreferIPv6 is set — mirroring getaddrinfo's
// default family preference rather than an explicit dual-stack race.
type StdResolver struct {
	Resolver   *net.Resolver
	PreferIPv6 bool
}

// NewStdResolver returns a StdResolver over net.DefaultResolver.
func NewStdResolver() *StdResolver {
	return &StdResolver{Resolver: net.DefaultResolver}
}

func (r *StdResolver) Lookup(host string, cb func(err error, ip string, addressType int)) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	go func() {
		addrs, err := res.LookupIPAddr(context.Background(), host)
		if err != nil {
			cb(err, "", 0)
			return
		}
		if len(addrs) == 0 {
			cb(&net.DNSError{Err: "no addresses found", Name: host}, "", 0)
			return
		}
		ip, family := pickAddr(addrs, r.PreferIPv6)
		cb(nil, ip, family)
	}()
}

func pickAddr(addrs []net.IPAddr, preferIPv6 bool) (string, int) {
	var v4, v6 *net.IPAddr
	for i := range addrs {
		a := &addrs[i]
		if a.IP.To4() != nil {
			if v4 == nil {
				v4 = a
			}
		} else if v6 == nil {
			v6 = a
		}
	}
	if preferIPv6 && v6 != nil {
		return v6.IP.String(), 6
	}
	if v4 != nil {
		return v4.IP.String(), 4
	}
	if v6 != nil {
		return v6.IP.String(), 6
	}
	return addrs[0].IP.String(), 4
}

var _ evnet.Resolver = (*StdResolver)(nil)
