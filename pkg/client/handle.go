package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	autoscalingv1 "k8s.io/api/autoscaling/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/kubewire/kubewire/pkg/api"
	"github.com/kubewire/kubewire/pkg/apierrors"
	"github.com/kubewire/kubewire/pkg/client/watch"
)

// resourceHandle carries the verb implementations shared by both handle
// flavors. Every verb checks the descriptor's capability set first; a miss
// fails before any network I/O.
type resourceHandle[T any] struct {
	c *Client
	d api.ResourceDescriptor
}

func (r *resourceHandle[T]) capability(cap api.Capability, verb Verb) error {
	if !r.d.Capabilities.Has(cap) {
		return apierrors.NewUnsupportedOperation(string(verb), r.d.Kind)
	}
	return nil
}

// requireNamespace guards the verbs for which AllNamespaces is illegal on a
// namespaced resource: everything except list and watch.
func (r *resourceHandle[T]) requireNamespace(ns NamespaceSelector, verb Verb) error {
	if r.d.Scope == api.NamespaceScoped && ns.IsAll() {
		return apierrors.NewInvalidRequest("%s %s: a concrete namespace is required", string(verb), r.d.Plural)
	}
	return nil
}

func (r *resourceHandle[T]) get(ctx context.Context, ns NamespaceSelector, name string, opts GetOptions) (*T, error) {
	if err := r.capability(api.Readable, VerbGet); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apierrors.NewInvalidRequest("get %s: name is required", r.d.Plural)
	}
	p, err := resourcePath(r.d, ns, name, "")
	if err != nil {
		return nil, err
	}
	resp, err := r.c.do(ctx, &apiRequest{verb: VerbGet, method: http.MethodGet, path: p, query: opts.toQuery()})
	if err != nil {
		return nil, err
	}
	return decodeResource[T](resp, VerbGet, p)
}

func (r *resourceHandle[T]) list(ctx context.Context, ns NamespaceSelector, opts ListOptions) (*List[T], error) {
	if err := r.capability(api.Listable, VerbList); err != nil {
		return nil, err
	}
	p, err := resourcePath(r.d, ns, "", "")
	if err != nil {
		return nil, err
	}
	q, err := opts.toQuery(false)
	if err != nil {
		return nil, err
	}
	resp, err := r.c.do(ctx, &apiRequest{verb: VerbList, method: http.MethodGet, path: p, query: q})
	if err != nil {
		return nil, err
	}
	return decodeList[T](resp, VerbList, p)
}

func (r *resourceHandle[T]) create(ctx context.Context, ns NamespaceSelector, obj *T, opts CreateOptions) (*T, error) {
	if err := r.capability(api.Creatable, VerbCreate); err != nil {
		return nil, err
	}
	if err := r.requireNamespace(ns, VerbCreate); err != nil {
		return nil, err
	}
	body, err := encodeBody(obj)
	if err != nil {
		return nil, err
	}
	p, err := resourcePath(r.d, ns, "", "")
	if err != nil {
		return nil, err
	}
	resp, err := r.c.do(ctx, &apiRequest{
		verb: VerbCreate, method: http.MethodPost, path: p,
		query: dryRunQuery(opts.DryRun), body: body,
	})
	if err != nil {
		return nil, err
	}
	return decodeResource[T](resp, VerbCreate, p)
}

func (r *resourceHandle[T]) update(ctx context.Context, ns NamespaceSelector, obj *T, opts UpdateOptions) (*T, error) {
	if err := r.capability(api.Replaceable, VerbUpdate); err != nil {
		return nil, err
	}
	if err := r.requireNamespace(ns, VerbUpdate); err != nil {
		return nil, err
	}
	body, err := encodeBody(obj)
	if err != nil {
		return nil, err
	}
	name, err := nameOfObject(body)
	if err != nil {
		return nil, err
	}
	p, err := resourcePath(r.d, ns, name, "")
	if err != nil {
		return nil, err
	}
	resp, err := r.c.do(ctx, &apiRequest{
		verb: VerbUpdate, method: http.MethodPut, path: p,
		query: dryRunQuery(opts.DryRun), body: body,
	})
	if err != nil {
		return nil, err
	}
	return decodeResource[T](resp, VerbUpdate, p)
}

func (r *resourceHandle[T]) patch(ctx context.Context, ns NamespaceSelector, name string, pt types.PatchType, patch []byte, opts PatchOptions) (*T, error) {
	if err := r.capability(api.Patchable, VerbPatch); err != nil {
		return nil, err
	}
	if err := r.requireNamespace(ns, VerbPatch); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apierrors.NewInvalidRequest("patch %s: name is required", r.d.Plural)
	}
	ct, err := patchContentType(pt)
	if err != nil {
		return nil, err
	}
	p, err := resourcePath(r.d, ns, name, "")
	if err != nil {
		return nil, err
	}
	resp, err := r.c.do(ctx, &apiRequest{
		verb: VerbPatch, method: http.MethodPatch, path: p,
		query: dryRunQuery(opts.DryRun), body: patch, contentType: ct,
	})
	if err != nil {
		return nil, err
	}
	return decodeResource[T](resp, VerbPatch, p)
}

func (r *resourceHandle[T]) delete(ctx context.Context, ns NamespaceSelector, name string, opts DeleteOptions) (*ResourceOrStatus[T], error) {
	if err := r.capability(api.Deletable, VerbDelete); err != nil {
		return nil, err
	}
	if err := r.requireNamespace(ns, VerbDelete); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apierrors.NewInvalidRequest("delete %s: name is required", r.d.Plural)
	}
	body, err := encodeBody(opts.toBody())
	if err != nil {
		return nil, err
	}
	p, err := resourcePath(r.d, ns, name, "")
	if err != nil {
		return nil, err
	}
	resp, err := r.c.do(ctx, &apiRequest{
		verb: VerbDelete, method: http.MethodDelete, path: p,
		query: dryRunQuery(opts.DryRun), body: body,
	})
	if err != nil {
		return nil, err
	}
	return decodeResourceOrStatus[T](resp, VerbDelete, p)
}

func (r *resourceHandle[T]) deleteCollection(ctx context.Context, ns NamespaceSelector, listOpts ListOptions, opts DeleteOptions) error {
	if err := r.capability(api.CollectionDeletable, VerbDeleteCollection); err != nil {
		return err
	}
	if err := r.requireNamespace(ns, VerbDeleteCollection); err != nil {
		return err
	}
	q, err := listOpts.toQuery(false)
	if err != nil {
		return err
	}
	for k, vs := range dryRunQuery(opts.DryRun) {
		q[k] = vs
	}
	body, err := encodeBody(opts.toBody())
	if err != nil {
		return err
	}
	p, err := resourcePath(r.d, ns, "", "")
	if err != nil {
		return err
	}
	resp, err := r.c.do(ctx, &apiRequest{
		verb: VerbDeleteCollection, method: http.MethodDelete, path: p,
		query: q, body: body,
	})
	if err != nil {
		return err
	}
	drainBody(resp)
	return nil
}

func (r *resourceHandle[T]) getStatus(ctx context.Context, ns NamespaceSelector, name string) (*T, error) {
	if err := r.capability(api.StatusHaving, VerbGetStatus); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apierrors.NewInvalidRequest("get %s status: name is required", r.d.Plural)
	}
	p, err := resourcePath(r.d, ns, name, "status")
	if err != nil {
		return nil, err
	}
	resp, err := r.c.do(ctx, &apiRequest{verb: VerbGetStatus, method: http.MethodGet, path: p, query: url.Values{}})
	if err != nil {
		return nil, err
	}
	return decodeResource[T](resp, VerbGetStatus, p)
}

func (r *resourceHandle[T]) updateStatus(ctx context.Context, ns NamespaceSelector, obj *T) (*T, error) {
	if err := r.capability(api.StatusHaving, VerbUpdateStatus); err != nil {
		return nil, err
	}
	if err := r.requireNamespace(ns, VerbUpdateStatus); err != nil {
		return nil, err
	}
	body, err := encodeBody(obj)
	if err != nil {
		return nil, err
	}
	name, err := nameOfObject(body)
	if err != nil {
		return nil, err
	}
	p, err := resourcePath(r.d, ns, name, "status")
	if err != nil {
		return nil, err
	}
	resp, err := r.c.do(ctx, &apiRequest{verb: VerbUpdateStatus, method: http.MethodPut, path: p, query: url.Values{}, body: body})
	if err != nil {
		return nil, err
	}
	return decodeResource[T](resp, VerbUpdateStatus, p)
}

func (r *resourceHandle[T]) getScale(ctx context.Context, ns NamespaceSelector, name string) (*autoscalingv1.Scale, error) {
	if err := r.capability(api.Scalable, VerbGetScale); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apierrors.NewInvalidRequest("get %s scale: name is required", r.d.Plural)
	}
	p, err := resourcePath(r.d, ns, name, "scale")
	if err != nil {
		return nil, err
	}
	resp, err := r.c.do(ctx, &apiRequest{verb: VerbGetScale, method: http.MethodGet, path: p, query: url.Values{}})
	if err != nil {
		return nil, err
	}
	return decodeResource[autoscalingv1.Scale](resp, VerbGetScale, p)
}

func (r *resourceHandle[T]) updateScale(ctx context.Context, ns NamespaceSelector, name string, scale *autoscalingv1.Scale) (*autoscalingv1.Scale, error) {
	if err := r.capability(api.Scalable, VerbUpdateScale); err != nil {
		return nil, err
	}
	if err := r.requireNamespace(ns, VerbUpdateScale); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apierrors.NewInvalidRequest("update %s scale: name is required", r.d.Plural)
	}
	body, err := encodeBody(scale)
	if err != nil {
		return nil, err
	}
	p, err := resourcePath(r.d, ns, name, "scale")
	if err != nil {
		return nil, err
	}
	resp, err := r.c.do(ctx, &apiRequest{verb: VerbUpdateScale, method: http.MethodPut, path: p, query: url.Values{}, body: body})
	if err != nil {
		return nil, err
	}
	return decodeResource[autoscalingv1.Scale](resp, VerbUpdateScale, p)
}

func (r *resourceHandle[T]) watch(ctx context.Context, ns NamespaceSelector, opts ListOptions, strategy watch.RetryStrategy, sink watch.Sink[T]) (*watch.Task, error) {
	if err := r.capability(api.Watchable, VerbWatch); err != nil {
		return nil, err
	}
	p, err := resourcePath(r.d, ns, "", "")
	if err != nil {
		return nil, err
	}
	baseQuery, err := opts.toQuery(true)
	if err != nil {
		return nil, err
	}

	connect := func(ctx context.Context, resourceVersion string) (io.ReadCloser, error) {
		q := url.Values{}
		for k, vs := range baseQuery {
			q[k] = vs
		}
		q.Del("resourceVersion")
		if resourceVersion != "" {
			q.Set("resourceVersion", resourceVersion)
		}
		resp, err := r.c.do(ctx, &apiRequest{
			verb: VerbWatch, method: http.MethodGet, path: p,
			query: q, accept: acceptWatchStream, stream: true,
		})
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	}

	task := watch.Run[T](ctx, connect, strategy, sink, watch.Options{
		Name:                   fmt.Sprintf("watch %s", r.d.Plural),
		InitialResourceVersion: opts.ResourceVersion,
		ForwardBookmarks:       opts.AllowWatchBookmarks,
	})
	return task, nil
}

// NamespacedResource is the handle flavor for namespace-scoped descriptors.
// Every verb takes a NamespaceSelector; AllNamespaces is legal only for
// List and Watch.
type NamespacedResource[T any] struct {
	resourceHandle[T]
}

// NewNamespacedResource builds a typed handle over a namespace-scoped
// descriptor.
func NewNamespacedResource[T any](c *Client, d api.ResourceDescriptor) (*NamespacedResource[T], error) {
	if d.Scope != api.NamespaceScoped {
		return nil, apierrors.NewInvalidRequest("%s is cluster-scoped; use NewClusterResource", d.Plural)
	}
	return &NamespacedResource[T]{resourceHandle[T]{c: c, d: d}}, nil
}

// Descriptor returns the immutable descriptor backing this handle.
func (r *NamespacedResource[T]) Descriptor() api.ResourceDescriptor { return r.d }

func (r *NamespacedResource[T]) Get(ctx context.Context, ns NamespaceSelector, name string, opts GetOptions) (*T, error) {
	return r.get(ctx, ns, name, opts)
}

func (r *NamespacedResource[T]) List(ctx context.Context, ns NamespaceSelector, opts ListOptions) (*List[T], error) {
	return r.list(ctx, ns, opts)
}

func (r *NamespacedResource[T]) Create(ctx context.Context, ns NamespaceSelector, obj *T, opts CreateOptions) (*T, error) {
	return r.create(ctx, ns, obj, opts)
}

func (r *NamespacedResource[T]) Update(ctx context.Context, ns NamespaceSelector, obj *T, opts UpdateOptions) (*T, error) {
	return r.update(ctx, ns, obj, opts)
}

func (r *NamespacedResource[T]) Patch(ctx context.Context, ns NamespaceSelector, name string, pt types.PatchType, patch []byte, opts PatchOptions) (*T, error) {
	return r.patch(ctx, ns, name, pt, patch, opts)
}

func (r *NamespacedResource[T]) Delete(ctx context.Context, ns NamespaceSelector, name string, opts DeleteOptions) (*ResourceOrStatus[T], error) {
	return r.delete(ctx, ns, name, opts)
}

func (r *NamespacedResource[T]) DeleteCollection(ctx context.Context, ns NamespaceSelector, listOpts ListOptions, opts DeleteOptions) error {
	return r.deleteCollection(ctx, ns, listOpts, opts)
}

func (r *NamespacedResource[T]) GetStatus(ctx context.Context, ns NamespaceSelector, name string) (*T, error) {
	return r.getStatus(ctx, ns, name)
}

func (r *NamespacedResource[T]) UpdateStatus(ctx context.Context, ns NamespaceSelector, obj *T) (*T, error) {
	return r.updateStatus(ctx, ns, obj)
}

func (r *NamespacedResource[T]) GetScale(ctx context.Context, ns NamespaceSelector, name string) (*autoscalingv1.Scale, error) {
	return r.getScale(ctx, ns, name)
}

func (r *NamespacedResource[T]) UpdateScale(ctx context.Context, ns NamespaceSelector, name string, scale *autoscalingv1.Scale) (*autoscalingv1.Scale, error) {
	return r.updateScale(ctx, ns, name, scale)
}

func (r *NamespacedResource[T]) Watch(ctx context.Context, ns NamespaceSelector, opts ListOptions, strategy watch.RetryStrategy, sink watch.Sink[T]) (*watch.Task, error) {
	return r.watch(ctx, ns, opts, strategy, sink)
}

// ClusterResource is the handle flavor for cluster-scoped descriptors; the
// namespace is implicitly AllNamespaces.
type ClusterResource[T any] struct {
	resourceHandle[T]
}

// NewClusterResource builds a typed handle over a cluster-scoped
// descriptor.
func NewClusterResource[T any](c *Client, d api.ResourceDescriptor) (*ClusterResource[T], error) {
	if d.Scope != api.ClusterScoped {
		return nil, apierrors.NewInvalidRequest("%s is namespace-scoped; use NewNamespacedResource", d.Plural)
	}
	return &ClusterResource[T]{resourceHandle[T]{c: c, d: d}}, nil
}

// Descriptor returns the immutable descriptor backing this handle.
func (r *ClusterResource[T]) Descriptor() api.ResourceDescriptor { return r.d }

func (r *ClusterResource[T]) Get(ctx context.Context, name string, opts GetOptions) (*T, error) {
	return r.get(ctx, AllNamespaces(), name, opts)
}

func (r *ClusterResource[T]) List(ctx context.Context, opts ListOptions) (*List[T], error) {
	return r.list(ctx, AllNamespaces(), opts)
}

func (r *ClusterResource[T]) Create(ctx context.Context, obj *T, opts CreateOptions) (*T, error) {
	return r.create(ctx, AllNamespaces(), obj, opts)
}

func (r *ClusterResource[T]) Update(ctx context.Context, obj *T, opts UpdateOptions) (*T, error) {
	return r.update(ctx, AllNamespaces(), obj, opts)
}

func (r *ClusterResource[T]) Patch(ctx context.Context, name string, pt types.PatchType, patch []byte, opts PatchOptions) (*T, error) {
	return r.patch(ctx, AllNamespaces(), name, pt, patch, opts)
}

func (r *ClusterResource[T]) Delete(ctx context.Context, name string, opts DeleteOptions) (*ResourceOrStatus[T], error) {
	return r.delete(ctx, AllNamespaces(), name, opts)
}

func (r *ClusterResource[T]) DeleteCollection(ctx context.Context, listOpts ListOptions, opts DeleteOptions) error {
	return r.deleteCollection(ctx, AllNamespaces(), listOpts, opts)
}

func (r *ClusterResource[T]) GetStatus(ctx context.Context, name string) (*T, error) {
	return r.getStatus(ctx, AllNamespaces(), name)
}

func (r *ClusterResource[T]) UpdateStatus(ctx context.Context, obj *T) (*T, error) {
	return r.updateStatus(ctx, AllNamespaces(), obj)
}

func (r *ClusterResource[T]) Watch(ctx context.Context, opts ListOptions, strategy watch.RetryStrategy, sink watch.Sink[T]) (*watch.Task, error) {
	return r.watch(ctx, AllNamespaces(), opts, strategy, sink)
}
