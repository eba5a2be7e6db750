// Package transport turns a resolved connection configuration into the
// shared HTTP client all resource handles of one top-level client use.
// Kubeconfig parsing and credential resolution happen upstream; this package
// only wires the pieces it is handed.
package transport

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	k8stransport "k8s.io/client-go/transport"
)

const defaultUserAgent = "kubewire"

// TLSConfig carries resolved trust anchors and the optional client keypair.
type TLSConfig struct {
	// CAData holds PEM trust anchors for the server certificate.
	CAData []byte
	// CertData and KeyData hold an optional PEM client certificate/key pair.
	CertData []byte
	KeyData  []byte
	// Insecure skips server certificate verification.
	Insecure bool
	// ServerName overrides the hostname used for verification.
	ServerName string
}

// Config is the resolved transport configuration for one API server.
type Config struct {
	// Server is the base URL, scheme://host:port.
	Server string

	TLS TLSConfig

	// BearerToken is attached as an Authorization header when set.
	BearerToken string

	// UserAgent defaults to "kubewire" when empty.
	UserAgent string

	// Timeout bounds single-shot requests. Watches and log streams ignore
	// it; they are bounded by server-side timeoutSeconds and caller
	// cancellation.
	Timeout time.Duration
}

// Transport performs single HTTP request-responses over one shared
// connection pool. It is safe for concurrent use.
type Transport struct {
	base      *url.URL
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// New builds a Transport from cfg. The TLS and bearer-token round tripper
// comes from client-go's transport package so credential injection matches
// the rest of the ecosystem.
func New(cfg Config) (*Transport, error) {
	if cfg.Server == "" {
		return nil, fmt.Errorf("transport: server URL is required")
	}
	base, err := url.Parse(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid server URL %q: %w", cfg.Server, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("transport: server URL %q must include scheme and host", cfg.Server)
	}

	rt, err := k8stransport.New(&k8stransport.Config{
		TLS: k8stransport.TLSConfig{
			CAData:     cfg.TLS.CAData,
			CertData:   cfg.TLS.CertData,
			KeyData:    cfg.TLS.KeyData,
			Insecure:   cfg.TLS.Insecure,
			ServerName: cfg.TLS.ServerName,
		},
		BearerToken: cfg.BearerToken,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: building round tripper: %w", err)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Transport{
		base: base,
		// No client-level timeout: it would sever long-lived watch streams.
		// Single-shot deadlines are applied per request context.
		client:    &http.Client{Transport: rt},
		userAgent: ua,
		timeout:   cfg.Timeout,
	}, nil
}

// BaseURL returns a copy of the server base URL.
func (t *Transport) BaseURL() *url.URL {
	u := *t.base
	return &u
}

// Timeout returns the configured single-shot request timeout.
func (t *Transport) Timeout() time.Duration { return t.timeout }

// Do performs one request-response. The default user agent is attached when
// the caller set none. Errors come back unclassified; callers route them
// through apierrors.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.client.Do(req)
}
