package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/saturnines/butterflymx-go/pkg/errors"
)

// AuthHandler decorates an outgoing request with credentials.
// It mirrors auth.Handler without importing it.
type AuthHandler interface {
	ApplyAuth(req *http.Request) error
}

// Builder builds REST HTTP requests.
// At most one of Form and JSON may be set.
type Builder struct {
	URL         string
	Method      string
	Headers     map[string]string
	QueryParams map[string]string
	Form        url.Values
	JSON        any
	AuthHandler AuthHandler
}

// Build creates an HTTP request.
func (b *Builder) Build(ctx context.Context) (*http.Request, error) {
	method := b.Method
	if method == "" {
		method = http.MethodGet
	}

	body, contentType, err := b.body()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, b.URL, body)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPRequest, "build request")
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range b.Headers {
		req.Header.Set(k, v)
	}

	if len(b.QueryParams) > 0 {
		q := req.URL.Query()
		for k, v := range b.QueryParams {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	if b.AuthHandler != nil {
		if err := b.AuthHandler.ApplyAuth(req); err != nil {
			return nil, err
		}
	}

	return req, nil
}

func (b *Builder) body() (io.Reader, string, error) {
	switch {
	case b.Form != nil && b.JSON != nil:
		return nil, "", errors.WrapError(
			fmt.Errorf("both form and JSON body set"),
			errors.ErrHTTPRequest,
			"build request",
		)
	case b.Form != nil:
		return strings.NewReader(b.Form.Encode()), "application/x-www-form-urlencoded", nil
	case b.JSON != nil:
		buf, err := json.Marshal(b.JSON)
		if err != nil {
			return nil, "", errors.WrapError(err, errors.ErrHTTPRequest, "encode JSON body")
		}
		return bytes.NewReader(buf), "application/json", nil
	}
	return nil, "", nil
}
