package graphql

import (
	"context"
	"net/http"

	"github.com/saturnines/butterflymx-go/pkg/auth"
	"github.com/saturnines/butterflymx-go/pkg/transport/rest"
)

// Builder constructs GraphQL requests.
type Builder struct {
	Endpoint    string
	Query       string
	AuthHandler auth.Handler
}

// NewBuilder sets up a GraphQL Builder. Endpoint is the full URL of the
// GraphQL endpoint; h may be nil.
func NewBuilder(endpoint, query string, h auth.Handler) *Builder {
	return &Builder{
		Endpoint:    endpoint,
		Query:       query,
		AuthHandler: h,
	}
}

// Body returns the JSON payload. Documents are sent without variables.
func (b *Builder) Body() map[string]any {
	return map[string]any{"query": b.Query}
}

// Build creates the *http.Request with JSON body.
func (b *Builder) Build(ctx context.Context) (*http.Request, error) {
	rb := &rest.Builder{
		URL:         b.Endpoint,
		Method:      http.MethodPost,
		Headers:     map[string]string{"Accept": "application/json"},
		JSON:        b.Body(),
		AuthHandler: b.AuthHandler,
	}
	return rb.Build(ctx)
}
