package report

import (
	"context"
	"fmt"
	"strings"

	"household/internal/core"
)

// Sink writes a finished document somewhere.
type Sink interface {
	Write(ctx context.Context, doc Document, destination string) error
}

// Router dispatches on the destination's scheme prefix ("gsheets://...").
// Destinations without a registered scheme go to the default sink.
type Router struct {
	def     Sink
	schemes map[string]Sink
}

func NewRouter(def Sink) *Router {
	return &Router{def: def, schemes: make(map[string]Sink)}
}

// Handle registers a sink for destinations starting with scheme + "://".
func (r *Router) Handle(scheme string, s Sink) {
	r.schemes[strings.ToLower(scheme)] = s
}

func (r *Router) Write(ctx context.Context, doc Document, destination string) error {
	if scheme, _, ok := strings.Cut(destination, "://"); ok {
		s, found := r.schemes[strings.ToLower(scheme)]
		if !found {
			return fmt.Errorf("%w: unsupported destination scheme %q", core.ErrIO, scheme)
		}
		return s.Write(ctx, doc, destination)
	}
	if r.def == nil {
		return fmt.Errorf("%w: no default report sink", core.ErrIO)
	}
	return r.def.Write(ctx, doc, destination)
}
