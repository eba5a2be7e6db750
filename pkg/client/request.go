package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"k8s.io/apimachinery/pkg/types"
	"k8s.io/klog/v2"

	"github.com/kubewire/kubewire/pkg/apierrors"
	"github.com/kubewire/kubewire/pkg/metrics"
)

// Verb names one operation of the client for dispatch, diagnostics and
// metrics.
type Verb string

const (
	VerbGet              Verb = "get"
	VerbList             Verb = "list"
	VerbCreate           Verb = "create"
	VerbUpdate           Verb = "update"
	VerbPatch            Verb = "patch"
	VerbDelete           Verb = "delete"
	VerbDeleteCollection Verb = "deletecollection"
	VerbWatch            Verb = "watch"
	VerbGetStatus        Verb = "getstatus"
	VerbUpdateStatus     Verb = "updatestatus"
	VerbGetScale         Verb = "getscale"
	VerbUpdateScale      Verb = "updatescale"
	VerbGetLog           Verb = "getlog"
	VerbEvict            Verb = "evict"
)

const (
	contentTypeJSON   = "application/json"
	acceptJSON        = "application/json"
	acceptWatchStream = "application/json;stream=watch"
)

// apiRequest is one fully-resolved request: method, path, query, headers and
// body, ready for the transport adapter.
type apiRequest struct {
	verb   Verb
	method string
	path   string
	query  url.Values

	body        []byte
	contentType string
	accept      string

	// stream leaves the response body open for the caller instead of
	// decoding it (watch, logs).
	stream bool
}

func (r *apiRequest) url(base *url.URL) *url.URL {
	u := *base
	u.Path = r.path
	u.RawQuery = r.query.Encode()
	return &u
}

// buildRequest assembles the http.Request. The verb decided method, body
// and query upstream; this only renders them.
func (c *Client) buildRequest(ctx context.Context, r *apiRequest) (*http.Request, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url(c.transport.BaseURL()).String(), body)
	if err != nil {
		return nil, apierrors.NewInvalidRequest("building %s %s: %v", r.method, r.path, err)
	}
	accept := r.accept
	if accept == "" {
		accept = acceptJSON
	}
	req.Header.Set("Accept", accept)
	if r.body != nil {
		ct := r.contentType
		if ct == "" {
			ct = contentTypeJSON
		}
		req.Header.Set("Content-Type", ct)
	}
	return req, nil
}

// do runs one request-response through the shared transport, classifying
// failures and recording the request metrics. On success the caller owns
// the response body.
func (c *Client) do(ctx context.Context, r *apiRequest) (*http.Response, error) {
	cancel := func() {}
	if !r.stream && c.transport.Timeout() > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.transport.Timeout())
	}

	req, err := c.buildRequest(ctx, r)
	if err != nil {
		cancel()
		return nil, err
	}

	start := c.clock.Now()
	resp, err := c.transport.Do(req)
	elapsed := c.clock.Since(start)
	if err != nil {
		cancel()
		metrics.ObserveRequest(string(r.verb), 0, elapsed)
		return nil, apierrors.FromTransport(err).WithRequest(r.method, r.path)
	}
	metrics.ObserveRequest(string(r.verb), resp.StatusCode, elapsed)
	klog.V(6).Infof("%s %s -> %d (%s)", r.method, r.path, resp.StatusCode, elapsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		return nil, apierrors.FromResponse(resp, r.method, r.path)
	}

	if !r.stream {
		// Single-shot responses are decoded promptly; tie the body's
		// lifetime to the deadline context.
		resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	} else {
		cancel()
	}
	return resp, nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func encodeBody(obj interface{}) ([]byte, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, apierrors.NewInvalidRequest("encoding request body: %v", err)
	}
	return data, nil
}

// nameOfObject probes the metadata.name of an encoded object; update-style
// verbs take the target name from the body.
func nameOfObject(body []byte) (string, error) {
	var probe struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", apierrors.NewInvalidRequest("request body has no object metadata: %v", err)
	}
	if probe.Metadata.Name == "" {
		return "", apierrors.NewInvalidRequest("request body object has no metadata.name")
	}
	return probe.Metadata.Name, nil
}

// patchContentType validates the patch strategy and returns its MIME type.
func patchContentType(pt types.PatchType) (string, error) {
	switch pt {
	case types.JSONPatchType, types.MergePatchType, types.StrategicMergePatchType, types.ApplyPatchType:
		return string(pt), nil
	default:
		return "", apierrors.NewInvalidRequest("unknown patch type %q", pt)
	}
}
