package cors

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	rscors "github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ctfer-io/chore-server/global"
)

// Policy is an origin-acceptance predicate.
type Policy struct {
	preset   string
	origins  map[string]struct{}
	suffixes []string
}

// New builds the Policy described by conf.
func New(conf Config) (*Policy, error) {
	p := &Policy{
		preset:  strings.ToLower(strings.TrimSpace(conf.Policy)),
		origins: map[string]struct{}{},
	}

	switch p.preset {
	case PresetExact:
		for _, origin := range conf.Origins {
			if o := normalizeOrigin(origin); o != "" {
				p.origins[o] = struct{}{}
			}
		}
		if len(p.origins) == 0 {
			return nil, fmt.Errorf("%s CORS policy requires at least one origin", PresetExact)
		}

	case PresetWildcard:

	case PresetTrusted:
		for _, suffix := range conf.Suffixes {
			s := strings.Trim(strings.ToLower(strings.TrimSpace(suffix)), ".")
			if s != "" {
				p.suffixes = append(p.suffixes, s)
			}
		}

	default:
		return nil, fmt.Errorf("unknown CORS policy %q, expected one of %s", conf.Policy, strings.Join(Presets, ", "))
	}
	return p, nil
}

// Preset returns the name of the preset the policy was built from.
func (p *Policy) Preset() string {
	return p.preset
}

// Allow reports whether origin is accepted. An empty origin means the request
// did not come from a browser.
func (p *Policy) Allow(origin string) bool {
	switch p.preset {
	case PresetWildcard:
		return true

	case PresetExact:
		_, ok := p.origins[normalizeOrigin(origin)]
		return ok

	case PresetTrusted:
		if origin == "" {
			return true
		}
		u, err := url.Parse(strings.TrimSpace(origin))
		if err != nil || u.Host == "" {
			return false
		}
		host := strings.ToLower(u.Hostname())
		if isLoopback(host) {
			return true
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false
		}
		for _, suffix := range p.suffixes {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
		}
	}
	return false
}

// Handler wraps next with the CORS headers of the policy.
// Every OPTIONS request is answered 200 with an empty body and never
// reaches next, whether or not its origin is accepted.
func (p *Policy) Handler(next http.Handler) http.Handler {
	opts := rscors.Options{
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:       []string{"Content-Type"},
		OptionsSuccessStatus: http.StatusOK,
	}
	if p.preset == PresetWildcard {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowOriginRequestFunc = func(r *http.Request, origin string) bool {
			ok := p.Allow(origin)
			if !ok {
				global.Log().Debug(r.Context(), "rejected CORS origin",
					zap.String("rejected_origin", origin),
					zap.String("policy", p.preset),
				)
			}
			return ok
		}
	}

	return rscors.New(opts).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Preflights carrying Access-Control-Request-Method are answered by
		// rs/cors, bare OPTIONS requests land here.
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
}

func isLoopback(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
