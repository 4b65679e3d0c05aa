package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// defaultWritesPerMinute bounds mutating requests per client and resource.
	defaultWritesPerMinute = 60
	// defaultExportsPerMinute bounds report exports per client; each one
	// writes a workbook or calls the Sheets API.
	defaultExportsPerMinute = 6

	guardWindow     = time.Minute
	guardStaleAfter = 10 * time.Minute
	maxURLLength    = 2048
)

// securityMetrics tracks guard decisions.
type securityMetrics struct {
	rateLimitHits      int64
	suspiciousRequests int64
}

// apiResources are the first path segments under /api/ that the mux serves.
var apiResources = map[string]bool{
	"expenses":      true,
	"periods":       true,
	"salaries":      true,
	"extra-incomes": true,
	"categories":    true,
	"reports":       true,
}

var trustedProxies = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
}

var scannerAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab", "scanner",
}

// requestGuard rate-limits writes per client and API resource and flags
// requests that do not look like ledger API traffic.
type requestGuard struct {
	mu       sync.Mutex
	writes   int
	exports  int
	windows  map[string]*guardWindowState
	metrics  *securityMetrics
	stopOnce sync.Once
	stopCh   chan struct{}
}

type guardWindowState struct {
	start time.Time
	seen  time.Time
	count int
}

func newRequestGuard(writesPerMinute, exportsPerMinute int, metrics *securityMetrics) *requestGuard {
	if writesPerMinute <= 0 {
		writesPerMinute = defaultWritesPerMinute
	}
	if exportsPerMinute <= 0 {
		exportsPerMinute = defaultExportsPerMinute
	}
	g := &requestGuard{
		writes:  writesPerMinute,
		exports: exportsPerMinute,
		windows: make(map[string]*guardWindowState),
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}
	go g.sweep(5 * time.Minute)
	return g
}

// resourceOf returns the API resource a path addresses, or "" outside /api/.
func resourceOf(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

func isWrite(method string) bool {
	return method != http.MethodGet && method != http.MethodHead && method != http.MethodOptions
}

// budget is the per-minute write allowance for resource.
func (g *requestGuard) budget(resource string) int {
	if resource == "reports" {
		return g.exports
	}
	return g.writes
}

// allow counts one write by clientIP against resource. Each resource has
// its own fixed one-minute window, so exports cannot starve expense entry.
func (g *requestGuard) allow(clientIP, resource string, now time.Time) bool {
	key := clientIP + "|" + resource

	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[key]
	if !ok || now.Sub(w.start) >= guardWindow {
		g.windows[key] = &guardWindowState{start: now, seen: now, count: 1}
		return true
	}
	w.seen = now
	if w.count >= g.budget(resource) {
		if g.metrics != nil {
			atomic.AddInt64(&g.metrics.rateLimitHits, 1)
		}
		return false
	}
	w.count++
	return true
}

func (g *requestGuard) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			g.evictBefore(now.Add(-guardStaleAfter))
		case <-g.stopCh:
			return
		}
	}
}

func (g *requestGuard) evictBefore(cutoff time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, w := range g.windows {
		if w.seen.Before(cutoff) {
			delete(g.windows, key)
		}
	}
}

func (g *requestGuard) stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
}

// suspicion returns why r does not look like ledger API traffic, or "".
func (g *requestGuard) suspicion(r *http.Request) string {
	reason := classifyRequest(r)
	if reason != "" && g.metrics != nil {
		atomic.AddInt64(&g.metrics.suspiciousRequests, 1)
	}
	return reason
}

func classifyRequest(r *http.Request) string {
	switch r.Method {
	case "TRACE", "TRACK", "DEBUG", "CONNECT":
		return "method"
	}

	raw := strings.ToLower(r.URL.EscapedPath() + "?" + r.URL.RawQuery)
	if strings.Contains(raw, "..") || strings.Contains(raw, "%2e%2e") || strings.Contains(raw, "%00") {
		return "traversal"
	}
	if len(r.URL.String()) > maxURLLength {
		return "oversized_url"
	}

	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, agent := range scannerAgents {
		if strings.Contains(ua, agent) {
			return "scanner_agent"
		}
	}

	switch path := r.URL.Path; {
	case path == "/healthz" || path == "/readyz":
	case strings.HasPrefix(path, "/api/"):
		if !apiResources[resourceOf(path)] {
			return "unknown_resource"
		}
		if (r.Method == http.MethodPost || r.Method == http.MethodPut) && !acceptedBody(r.Header.Get("Content-Type")) {
			return "content_type"
		}
	default:
		return "unknown_path"
	}

	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		return "forwarded_chain"
	}
	return ""
}

func acceptedBody(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" ||
		strings.HasPrefix(ct, "application/json") ||
		strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}

// extractClientIP returns the client address, honouring X-Forwarded-For and
// X-Real-IP only when the direct peer is a trusted proxy.
func extractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !trustedPeer(peer) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	return host
}

func trustedPeer(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
