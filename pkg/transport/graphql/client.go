package graphql

import (
	"context"
	"net/http"

	"github.com/saturnines/butterflymx-go/pkg/errors"
	"github.com/saturnines/butterflymx-go/pkg/transport/rest"
)

// Client executes GraphQL operations.
type Client struct {
	doer rest.HTTPDoer
}

// NewClient wraps an HTTPDoer (e.g. *http.Client or a retry transport).
func NewClient(doer rest.HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{doer: doer}
}

// Execute sends the operation and decodes the JSON response. When the body
// is an object whose only key is "data", the value of "data" is returned;
// anything else, including "errors", comes back as decoded. Non-2xx
// responses fail with *rest.HTTPError.
func (c *Client) Execute(ctx context.Context, b *Builder) (any, error) {
	req, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPRequest, "execute GraphQL operation")
	}

	var body any
	if err := rest.DecodeJSON(resp, &body); err != nil {
		return nil, err
	}
	return Unwrap(body), nil
}

// Unwrap strips a {"data": ...} envelope when "data" is the only key.
func Unwrap(body any) any {
	m, ok := body.(map[string]any)
	if !ok || len(m) != 1 {
		return body
	}
	if data, ok := m["data"]; ok {
		return data
	}
	return body
}
