package middlewares

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPMiddleware rewrites RemoteAddr to "IP:port" with the real client
// address. Forwarding headers are only honoured when the direct peer is one
// of trusted; otherwise any caller could attribute its requests to another
// address in the block history.
func ClientIPMiddleware(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := extractClientIP(r, trusted)

			if clientIP.IsValid() {
				_, port, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil || port == "" {
					port = "0"
				}
				r.RemoteAddr = net.JoinHostPort(clientIP.String(), port)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractClientIP(r *http.Request, trusted []netip.Prefix) netip.Addr {
	peer := peerAddr(r.RemoteAddr)
	if !peer.IsValid() || !isTrusted(peer, trusted) {
		return peer
	}

	if ip, ok := parseHeaderIP(r.Header.Get("True-Client-IP")); ok {
		return ip
	}

	if ip, ok := parseHeaderIP(r.Header.Get("X-Real-IP")); ok {
		return ip
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip, ok := parseHeaderIP(first); ok {
			return ip
		}
	}

	return peer
}

func peerAddr(remoteAddr string) netip.Addr {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap()
	}
	if ip, err := netip.ParseAddr(remoteAddr); err == nil {
		return ip.Unmap()
	}
	return netip.Addr{}
}

func parseHeaderIP(value string) (netip.Addr, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return netip.Addr{}, false
	}
	ip, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

func isTrusted(ip netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
