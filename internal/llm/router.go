package llm

import (
	"context"
	"errors"
)

// Router selects a client per use case, so cheap models can serve bulk
// extraction while a stronger model handles analysis. Use cases without an
// explicit client fall back to the default.
type Router struct {
	fallback Client
	clients  map[UseCase]Client
}

// NewRouter creates a router with the given default client.
func NewRouter(fallback Client) (*Router, error) {
	if fallback == nil {
		return nil, errors.New("router requires a default client")
	}
	return &Router{
		fallback: fallback,
		clients:  make(map[UseCase]Client),
	}, nil
}

// Register assigns a client to a use case, replacing any previous one.
func (r *Router) Register(useCase UseCase, client Client) {
	r.clients[useCase] = client
}

// ClientFor returns the client serving a use case.
func (r *Router) ClientFor(useCase UseCase) Client {
	if c, ok := r.clients[useCase]; ok {
		return c
	}
	return r.fallback
}

// Generate routes the request to the client for its use case.
func (r *Router) Generate(ctx context.Context, req Request) (Response, error) {
	return r.ClientFor(req.UseCase).Generate(ctx, req)
}
