// Package butterflymx is a client for the ButterflyMX resident API.
//
// A Client renders GraphQL documents, keeps the session authenticated
// through an auth.Manager and decodes the results into domain types:
//
//	c, err := butterflymx.New(butterflymx.WithCredentials(
//		auth.RefreshToken{Value: rt},
//		auth.OAuthClient{ClientID: id, ClientSecret: secret},
//	))
//	tenants, err := c.Tenants(ctx)
package butterflymx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/saturnines/butterflymx-go/pkg/auth"
	"github.com/saturnines/butterflymx-go/pkg/config"
	"github.com/saturnines/butterflymx-go/pkg/errors"
	"github.com/saturnines/butterflymx-go/pkg/graphql"
	"github.com/saturnines/butterflymx-go/pkg/logging"
	"github.com/saturnines/butterflymx-go/pkg/transport/rest"

	gqltransport "github.com/saturnines/butterflymx-go/pkg/transport/graphql"
)

const tracerName = "github.com/saturnines/butterflymx-go/pkg/butterflymx"

// Client talks to the denizen GraphQL API.
type Client struct {
	apiURL  string
	session *auth.Manager
	gql     *gqltransport.Client
	logger  *slog.Logger
	tracer  trace.Tracer
}

type options struct {
	apiURL     string
	endpoints  auth.Endpoints
	creds      []auth.Credential
	transport  *rest.Client
	clientOpts []rest.ClientOption
	logger     *slog.Logger
	clock      func() time.Time
	tracing    trace.TracerProvider
}

// Option configures a Client.
type Option func(*options)

// WithAPIURL overrides the GraphQL endpoint.
func WithAPIURL(url string) Option {
	return func(o *options) {
		o.apiURL = url
	}
}

// WithEndpoints overrides the accounts service endpoints.
func WithEndpoints(e auth.Endpoints) Option {
	return func(o *options) {
		o.endpoints = e
	}
}

// WithCredentials adds session credentials.
func WithCredentials(creds ...auth.Credential) Option {
	return func(o *options) {
		o.creds = append(o.creds, creds...)
	}
}

// WithTransport shares an existing transport, cookie jar included.
func WithTransport(t *rest.Client) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithHTTPOptions configures the transport created by New. It is ignored
// when WithTransport is used.
func WithHTTPOptions(opts ...rest.ClientOption) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// WithLogger sets the logger for the client and its session.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracerProvider sets the provider for request and session spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracing = tp
	}
}

// WithClock replaces time.Now for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// New creates a Client. Credentials are required; see auth.NewManager.
func New(opts ...Option) (*Client, error) {
	o := &options{
		apiURL:    config.DefaultAPIURL,
		endpoints: auth.DefaultEndpoints(),
		logger:    slog.Default(),
		clock:     time.Now,
		tracing:   otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	transport := o.transport
	if transport == nil {
		t, err := rest.NewClient(o.clientOpts...)
		if err != nil {
			return nil, err
		}
		transport = t
	}

	session, err := auth.NewManager(transport, o.creds,
		auth.WithEndpoints(o.endpoints),
		auth.WithLogger(o.logger),
		auth.WithClock(o.clock),
		auth.WithTracerProvider(o.tracing),
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		apiURL:  o.apiURL,
		session: session,
		gql:     gqltransport.NewClient(transport.HTTPClient()),
		logger:  o.logger,
		tracer:  o.tracing.Tracer(tracerName),
	}, nil
}

// NewFromConfig creates a Client from a loaded Config. Extra options are
// applied after the ones derived from cfg.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	base := []Option{
		WithAPIURL(cfg.APIURL),
		WithEndpoints(cfg.Endpoints()),
		WithCredentials(cfg.Credentials()...),
		WithHTTPOptions(cfg.ClientOptions()...),
		WithLogger(logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)),
	}
	return New(append(base, opts...)...)
}

// Session returns the session, e.g. to persist a rotated refresh token.
func (c *Client) Session() *auth.Manager {
	return c.session
}

// Execute posts a GraphQL document and returns the decoded response, with a
// lone "data" envelope removed.
func (c *Client) Execute(ctx context.Context, document string) (any, error) {
	ctx, span := c.tracer.Start(ctx, "graphql.execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("graphql.document.size", len(document))),
	)
	defer span.End()

	b := gqltransport.NewBuilder(c.apiURL, document, c.session)
	data, err := c.gql.Execute(ctx, b)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "graphql request failed")
		return nil, err
	}
	return data, nil
}

// Query renders node and executes it.
func (c *Client) Query(ctx context.Context, node graphql.Node) (any, error) {
	document, err := graphql.Render(node)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "graphql request", "bytes", len(document))
	return c.Execute(ctx, document)
}

// Tenants lists the signed-in user's tenants with their access points.
func (c *Client) Tenants(ctx context.Context) ([]Tenant, error) {
	data, err := c.Query(ctx, tenantsQuery())
	if err != nil {
		return nil, err
	}

	raw, err := lookup(data, "tenants.nodes")
	if err != nil {
		return nil, err
	}
	var nodes []tenantNode
	if err := decode(raw, &nodes); err != nil {
		return nil, err
	}

	tenants := make([]Tenant, len(nodes))
	for i, n := range nodes {
		tenants[i] = n.tenant()
	}
	return tenants, nil
}

// OpenAccessPoint asks the API to open a door for a tenant and returns the
// client mutation id echoed by the server.
func (c *Client) OpenAccessPoint(ctx context.Context, tenantID, accessPointID string) (string, error) {
	mutationID := uuid.NewString()
	data, err := c.Query(ctx, swipeToOpenMutation(tenantID, accessPointID, mutationID))
	if err != nil {
		return "", err
	}

	raw, err := lookup(data, "swipeToOpen.clientMutationId")
	if err != nil {
		return "", err
	}
	echoed, ok := raw.(string)
	if !ok {
		return "", errors.WrapError(
			fmt.Errorf("clientMutationId is %T", raw),
			errors.ErrHTTPResponse,
			"open access point",
		)
	}

	c.logger.InfoContext(ctx, "access point opened", "tenant_id", tenantID, "access_point_id", accessPointID)
	return echoed, nil
}

// TypesIntrospection describes the named schema types, keyed by name. A
// GraphQL errors array, if any, is left in the result.
func (c *Client) TypesIntrospection(ctx context.Context, types ...string) (map[string]any, error) {
	if len(types) == 0 {
		return map[string]any{}, nil
	}

	data, err := c.Query(ctx, introspectionQuery(types...))
	if err != nil {
		return nil, err
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil, errors.WrapError(
			fmt.Errorf("response is %T", data),
			errors.ErrHTTPResponse,
			"types introspection",
		)
	}
	return m, nil
}

func tenantsQuery() *graphql.Selection {
	accessPoints := graphql.Select("accessPoints",
		graphql.Select("nodes",
			"id",
			"legacyId",
			"name",
			"capabilities",
			graphql.Select("building", "id", "name"),
		),
	)
	return graphql.Query(
		graphql.Select("tenants",
			graphql.Select("nodes", "id", "name", accessPoints),
		),
	)
}

func swipeToOpenMutation(tenantID, accessPointID, mutationID string) *graphql.Selection {
	return graphql.Mutation(
		graphql.NewCall("swipeToOpen",
			graphql.NewArgs("input", graphql.NewArgs(
				"tenantId", tenantID,
				"accessPointId", accessPointID,
				"deviceId", nil,
				"clientMutationId", mutationID,
			)),
			"clientMutationId",
		),
	)
}

// introspectionQuery aliases one __type lookup per name.
func introspectionQuery(types ...string) *graphql.Selection {
	calls := make([]graphql.Node, len(types))
	for i, t := range types {
		calls[i] = graphql.NewCall(t+": __type", graphql.NewArgs("name", t),
			"name",
			graphql.Select("fields",
				"name",
				graphql.Select("type",
					"name",
					"kind",
					graphql.Select("ofType", "name", "kind"),
				),
			),
		)
	}
	return graphql.Query(calls)
}

// lookup finds path in a response, reporting GraphQL errors when the path is
// missing.
func lookup(data any, path string) (any, error) {
	if v, ok := gqltransport.Lookup(data, path); ok {
		return v, nil
	}
	if m, ok := data.(map[string]any); ok {
		if err := graphQLErrors(m); err != nil {
			return nil, err
		}
	}
	return nil, errors.WrapError(
		fmt.Errorf("%s not found", path),
		errors.ErrHTTPResponse,
		"unexpected response shape",
	)
}

func graphQLErrors(m map[string]any) error {
	list, ok := m["errors"].([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(list))
	for _, e := range list {
		if em, ok := e.(map[string]any); ok {
			if msg, ok := em["message"].(string); ok {
				msgs = append(msgs, msg)
				continue
			}
		}
		msgs = append(msgs, fmt.Sprint(e))
	}
	return errors.WrapError(
		fmt.Errorf("%s", strings.Join(msgs, "; ")),
		errors.ErrHTTPResponse,
		"graphql errors",
	)
}
