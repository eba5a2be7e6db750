package client

import (
	"net/url"
	"path"

	"github.com/kubewire/kubewire/pkg/api"
	"github.com/kubewire/kubewire/pkg/apierrors"
)

// resourcePath maps a descriptor plus namespace/name/subresource onto the
// versioned API path:
//
//	core group:   /api/{version}/...
//	named group:  /apis/{group}/{version}/...
//	cluster:      .../{plural}[/{name}[/{sub}]]
//	namespaced:   .../namespaces/{ns}/{plural}[/{name}[/{sub}]]
//
// With AllNamespaces a namespaced resource collapses to .../{plural}; name
// and subresource are illegal there because they require a concrete
// namespace.
func resourcePath(d api.ResourceDescriptor, ns NamespaceSelector, name, subresource string) (string, error) {
	segments := make([]string, 0, 8)
	if d.Group == "" {
		segments = append(segments, "api", d.Version)
	} else {
		segments = append(segments, "apis", d.Group, d.Version)
	}

	if d.Scope == api.NamespaceScoped && !ns.IsAll() {
		segments = append(segments, "namespaces", ns.Name())
	}
	segments = append(segments, d.Plural)

	if name != "" {
		if d.Scope == api.NamespaceScoped && ns.IsAll() {
			return "", apierrors.NewInvalidRequest("%s %q: a named request needs a concrete namespace", d.Plural, name)
		}
		segments = append(segments, name)
	}

	if subresource != "" {
		if name == "" {
			return "", apierrors.NewInvalidRequest("%s: subresource %q requires a resource name", d.Plural, subresource)
		}
		suffix, ok := d.Subresource(subresource)
		if !ok {
			return "", apierrors.NewInvalidRequest("%s: subresource %q is not registered", d.Plural, subresource)
		}
		segments = append(segments, suffix)
	}

	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return "/" + path.Join(escaped...), nil
}
