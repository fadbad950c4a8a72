package middlewares

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTrustedProxies = []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

func TestClientIPMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		remoteAddr     string
		headers        map[string]string
		expectedIP     string
		expectedPort   string
		expectedRemote string
	}{
		{
			name:           "direct connection with port",
			remoteAddr:     "203.0.113.1:54321",
			expectedIP:     "203.0.113.1",
			expectedPort:   "54321",
			expectedRemote: "203.0.113.1:54321",
		},
		{
			name:           "direct connection without port",
			remoteAddr:     "203.0.113.1",
			expectedIP:     "203.0.113.1",
			expectedPort:   "0",
			expectedRemote: "203.0.113.1:0",
		},
		{
			name:       "true-client-ip from trusted proxy",
			remoteAddr: "10.0.0.1:12345",
			headers: map[string]string{
				"True-Client-IP": "198.51.100.1",
			},
			expectedIP:     "198.51.100.1",
			expectedPort:   "12345",
			expectedRemote: "198.51.100.1:12345",
		},
		{
			name:       "x-forwarded-for from untrusted peer is ignored",
			remoteAddr: "203.0.113.9:12345",
			headers: map[string]string{
				"X-Forwarded-For": "198.51.100.3",
			},
			expectedIP:     "203.0.113.9",
			expectedPort:   "12345",
			expectedRemote: "203.0.113.9:12345",
		},
		{
			name:       "x-forwarded-for multiple IPs",
			remoteAddr: "10.0.0.1:12345",
			headers: map[string]string{
				"X-Forwarded-For": "  198.51.100.4 , 10.0.0.2, 10.0.0.3",
			},
			expectedIP:     "198.51.100.4",
			expectedPort:   "12345",
			expectedRemote: "198.51.100.4:12345",
		},
		{
			name:       "ipv6 in x-forwarded-for",
			remoteAddr: "10.0.0.1:12345",
			headers: map[string]string{
				"X-Forwarded-For": "2001:db8::2",
			},
			expectedIP:     "2001:db8::2",
			expectedPort:   "12345",
			expectedRemote: "[2001:db8::2]:12345",
		},
		{
			name:           "ipv4-mapped peer is unmapped",
			remoteAddr:     "[::ffff:192.0.2.7]:8080",
			expectedIP:     "192.0.2.7",
			expectedPort:   "8080",
			expectedRemote: "192.0.2.7:8080",
		},
		{
			name:       "preserve port 0 from original",
			remoteAddr: "10.0.0.1:0",
			headers: map[string]string{
				"X-Real-IP": "198.51.100.13",
			},
			expectedIP:     "198.51.100.13",
			expectedPort:   "0",
			expectedRemote: "198.51.100.13:0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedRemoteAddr string
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				capturedRemoteAddr = r.RemoteAddr
				w.WriteHeader(http.StatusOK)
			})

			handler := ClientIPMiddleware(testTrustedProxies)(testHandler)

			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = tt.remoteAddr
			for key, value := range tt.headers {
				req.Header.Set(key, value)
			}

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedRemote, capturedRemoteAddr)

			host, port, err := net.SplitHostPort(capturedRemoteAddr)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedIP, host)
			assert.Equal(t, tt.expectedPort, port)
		})
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		trusted    []netip.Prefix
		headers    map[string]string
		expectedIP string
	}{
		{
			name:       "no headers",
			remoteAddr: "192.168.1.1:12345",
			trusted:    testTrustedProxies,
			expectedIP: "192.168.1.1",
		},
		{
			name:       "all headers present - priority order",
			remoteAddr: "10.0.0.1:12345",
			trusted:    testTrustedProxies,
			headers: map[string]string{
				"True-Client-IP":  "203.0.113.4",
				"X-Real-IP":       "203.0.113.5",
				"X-Forwarded-For": "203.0.113.6",
			},
			expectedIP: "203.0.113.4",
		},
		{
			name:       "x-real-ip over x-forwarded-for",
			remoteAddr: "10.0.0.1:12345",
			trusted:    testTrustedProxies,
			headers: map[string]string{
				"X-Real-IP":       "203.0.113.5",
				"X-Forwarded-For": "203.0.113.6",
			},
			expectedIP: "203.0.113.5",
		},
		{
			name:       "invalid true-client-ip, valid x-real-ip",
			remoteAddr: "10.0.0.1:12345",
			trusted:    testTrustedProxies,
			headers: map[string]string{
				"True-Client-IP": "not.valid.ip",
				"X-Real-IP":      "203.0.113.7",
			},
			expectedIP: "203.0.113.7",
		},
		{
			name:       "invalid headers fall back to peer",
			remoteAddr: "10.0.0.1:12345",
			trusted:    testTrustedProxies,
			headers: map[string]string{
				"X-Forwarded-For": "invalid-ip",
			},
			expectedIP: "10.0.0.1",
		},
		{
			name:       "no trusted proxies configured",
			remoteAddr: "10.0.0.1:12345",
			headers: map[string]string{
				"X-Real-IP": "203.0.113.8",
			},
			expectedIP: "10.0.0.1",
		},
		{
			name:       "invalid remote addr",
			remoteAddr: "invalid",
			trusted:    testTrustedProxies,
			expectedIP: "invalid IP",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::1]:12345",
			trusted:    testTrustedProxies,
			expectedIP: "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = tt.remoteAddr

			for key, value := range tt.headers {
				req.Header.Set(key, value)
			}

			assert.Equal(t, tt.expectedIP, extractClientIP(req, tt.trusted).String())
		})
	}
}
