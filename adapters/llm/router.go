package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

// Router dispatches each candidate to the provider its prefix names.
// Candidates without a known prefix go to the default provider.
type Router struct {
	fallback domain.Llm
	routes   []route
}

type route struct {
	prefix   string
	provider domain.Llm
}

func NewRouter(fallback domain.Llm) *Router {
	return &Router{fallback: fallback}
}

// Register routes candidates starting with prefix to provider. Prefixes are
// matched in registration order; registering a prefix again replaces its
// provider in place.
func (r *Router) Register(prefix string, provider domain.Llm) *Router {
	for i := range r.routes {
		if r.routes[i].prefix == prefix {
			r.routes[i].provider = provider
			return r
		}
	}
	r.routes = append(r.routes, route{prefix: prefix, provider: provider})
	return r
}

// Providers lists the configured provider prefixes plus "openrouter" for
// the default.
func (r *Router) Providers() []string {
	var names []string
	if r.fallback != nil && r.fallback.Ready() == nil {
		names = append(names, "openrouter")
	}
	for _, rt := range r.routes {
		if rt.provider.Ready() == nil {
			names = append(names, strings.TrimSuffix(rt.prefix, ":"))
		}
	}
	return names
}

// Ready requires the default provider; native providers are optional.
func (r *Router) Ready() error {
	if r.fallback == nil {
		return domain.ErrNotConfigured
	}
	return r.fallback.Ready()
}

func (r *Router) provider(c domain.Candidate) (domain.Llm, error) {
	for _, rt := range r.routes {
		if strings.HasPrefix(string(c), rt.prefix) {
			if rt.provider.Ready() != nil {
				return nil, fmt.Errorf("%w: %s", domain.ErrNoProvider, c)
			}
			return rt.provider, nil
		}
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoProvider, c)
	}
	return r.fallback, nil
}

func (r *Router) Complete(ctx context.Context, req domain.GenerationRequest) (string, error) {
	p, err := r.provider(req.Model)
	if err != nil {
		return "", err
	}
	return p.Complete(ctx, req)
}

func (r *Router) Stream(ctx context.Context, req domain.GenerationRequest, onDelta func(string) error) (string, error) {
	p, err := r.provider(req.Model)
	if err != nil {
		return "", err
	}
	return p.Stream(ctx, req, onDelta)
}

var errNotDataURL = errors.New("not a base64 data URL")

// parseDataURL splits "data:<mime>;base64,<payload>".
func parseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, errNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errNotDataURL
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL: %w", err)
	}
	return mime, data, nil
}
