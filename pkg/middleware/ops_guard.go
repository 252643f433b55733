package middleware

import (
	"crypto/subtle"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jusegoram/react-apollo-ccs-desk/pkg/configuration"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/httpapi"
)

type opsGuard struct {
	opts  configuration.OpsOptions
	cidrs []netip.Prefix
	open  map[string]struct{}
}

// OpsGuard restricts the ops API to callers presenting the configured token or
// connecting from an allowed network. Paths in open stay public.
func OpsGuard(opts configuration.OpsOptions, open ...string) mux.MiddlewareFunc {
	g := &opsGuard{
		opts:  opts,
		cidrs: parseCIDRs(opts.GuardCIDRs),
		open:  make(map[string]struct{}, len(open)),
	}
	for _, p := range open {
		g.open[p] = struct{}{}
	}
	return g.middleware
}

func (g *opsGuard) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.opts.GuardEnabled {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := g.open[r.URL.Path]; ok || g.authorized(r) {
			next.ServeHTTP(w, r)
			return
		}
		_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "ops token required", nil)
	})
}

func (g *opsGuard) authorized(r *http.Request) bool {
	if len(g.cidrs) > 0 {
		if ip, ok := realIP(r, g.opts.RealIPHeader); ok {
			if addr, err := netip.ParseAddr(ip); err == nil {
				for _, p := range g.cidrs {
					if p.Contains(addr) {
						return true
					}
				}
			}
		}
	}
	token := strings.TrimSpace(g.opts.GuardToken)
	return token != "" && subtle.ConstantTimeCompare([]byte(tokenFromRequest(r)), []byte(token)) == 1
}

func parseCIDRs(raw string) []netip.Prefix {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t' })
	out := make([]netip.Prefix, 0, len(parts))
	for _, part := range parts {
		if p, err := netip.ParsePrefix(part); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func tokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get("X-Ops-Token")); t != "" {
		return t
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > len("bearer ") && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}
