// Package client is the runtime between a typed resource request and the
// HTTP transport: it resolves paths, assembles requests, decodes responses,
// and exposes capability-guarded generic handles plus the watch verbs.
package client

import (
	"k8s.io/utils/clock"

	"github.com/kubewire/kubewire/pkg/api"
	"github.com/kubewire/kubewire/pkg/transport"
)

// Client owns the shared transport and the descriptor registry. All handles
// derived from one Client share its connection pool and are safe for
// concurrent use.
type Client struct {
	transport *transport.Transport
	registry  *api.Registry
	clock     clock.PassiveClock
}

// New builds a client from a resolved transport configuration and a
// descriptor registry.
func New(cfg transport.Config, registry *api.Registry) (*Client, error) {
	t, err := transport.New(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithTransport(t, registry), nil
}

// NewWithTransport wires a client over an existing transport; tests use it
// to point handles at fake servers.
func NewWithTransport(t *transport.Transport, registry *api.Registry) *Client {
	if registry == nil {
		registry = api.NewRegistry()
	}
	return &Client{transport: t, registry: registry, clock: clock.RealClock{}}
}

// Registry returns the descriptor registry this client resolves against.
func (c *Client) Registry() *api.Registry { return c.registry }
