// Package catalog ships descriptors for a set of well-known kinds so
// applications can talk to common resources without hand-writing metadata.
// The client core stays agnostic: it consumes these through the same
// registry any generated catalog would fill.
package catalog

import (
	"github.com/kubewire/kubewire/pkg/api"
)

var (
	// Pods covers core/v1 Pod with its status, log and eviction
	// subresources.
	Pods = api.ResourceDescriptor{
		Version:  "v1",
		Plural:   "pods",
		Singular: "pod",
		Kind:     "Pod",
		Scope:    api.NamespaceScoped,
		Capabilities: api.Readable | api.Listable | api.Creatable | api.Replaceable |
			api.Patchable | api.Deletable | api.CollectionDeletable | api.Watchable |
			api.StatusHaving | api.Loggable | api.Evictable,
		Subresources: map[string]string{
			"status":   "status",
			"log":      "log",
			"eviction": "eviction",
			"exec":     "exec",
		},
	}

	// Namespaces covers core/v1 Namespace.
	Namespaces = api.ResourceDescriptor{
		Version:  "v1",
		Plural:   "namespaces",
		Singular: "namespace",
		Kind:     "Namespace",
		Scope:    api.ClusterScoped,
		Capabilities: api.Readable | api.Listable | api.Creatable | api.Replaceable |
			api.Patchable | api.Deletable | api.Watchable | api.StatusHaving,
		Subresources: map[string]string{"status": "status"},
	}

	// Nodes covers core/v1 Node.
	Nodes = api.ResourceDescriptor{
		Version:  "v1",
		Plural:   "nodes",
		Singular: "node",
		Kind:     "Node",
		Scope:    api.ClusterScoped,
		Capabilities: api.Readable | api.Listable | api.Patchable | api.Deletable |
			api.Watchable | api.StatusHaving,
		Subresources: map[string]string{"status": "status"},
	}

	// Services covers core/v1 Service.
	Services = api.ResourceDescriptor{
		Version:  "v1",
		Plural:   "services",
		Singular: "service",
		Kind:     "Service",
		Scope:    api.NamespaceScoped,
		Capabilities: api.Readable | api.Listable | api.Creatable | api.Replaceable |
			api.Patchable | api.Deletable | api.Watchable | api.StatusHaving,
		Subresources: map[string]string{"status": "status"},
	}

	// ConfigMaps covers core/v1 ConfigMap.
	ConfigMaps = api.ResourceDescriptor{
		Version:  "v1",
		Plural:   "configmaps",
		Singular: "configmap",
		Kind:     "ConfigMap",
		Scope:    api.NamespaceScoped,
		Capabilities: api.Readable | api.Listable | api.Creatable | api.Replaceable |
			api.Patchable | api.Deletable | api.CollectionDeletable | api.Watchable,
	}

	// Secrets covers core/v1 Secret.
	Secrets = api.ResourceDescriptor{
		Version:  "v1",
		Plural:   "secrets",
		Singular: "secret",
		Kind:     "Secret",
		Scope:    api.NamespaceScoped,
		Capabilities: api.Readable | api.Listable | api.Creatable | api.Replaceable |
			api.Patchable | api.Deletable | api.CollectionDeletable | api.Watchable,
	}

	// Deployments covers apps/v1 Deployment with status and scale.
	Deployments = api.ResourceDescriptor{
		Group:    "apps",
		Version:  "v1",
		Plural:   "deployments",
		Singular: "deployment",
		Kind:     "Deployment",
		Scope:    api.NamespaceScoped,
		Capabilities: api.Readable | api.Listable | api.Creatable | api.Replaceable |
			api.Patchable | api.Deletable | api.CollectionDeletable | api.Watchable |
			api.StatusHaving | api.Scalable,
		Subresources: map[string]string{
			"status": "status",
			"scale":  "scale",
		},
	}

	// StatefulSets covers apps/v1 StatefulSet with status and scale.
	StatefulSets = api.ResourceDescriptor{
		Group:    "apps",
		Version:  "v1",
		Plural:   "statefulsets",
		Singular: "statefulset",
		Kind:     "StatefulSet",
		Scope:    api.NamespaceScoped,
		Capabilities: api.Readable | api.Listable | api.Creatable | api.Replaceable |
			api.Patchable | api.Deletable | api.CollectionDeletable | api.Watchable |
			api.StatusHaving | api.Scalable,
		Subresources: map[string]string{
			"status": "status",
			"scale":  "scale",
		},
	}

	// Scales covers autoscaling/v1 Scale, the shape served by every scale
	// subresource above.
	Scales = api.ResourceDescriptor{
		Group:        "autoscaling",
		Version:      "v1",
		Plural:       "scales",
		Singular:     "scale",
		Kind:         "Scale",
		Scope:        api.NamespaceScoped,
		Capabilities: api.Readable | api.Replaceable,
	}

	// Evictions covers policy/v1 Eviction, the body posted to the pod
	// eviction subresource.
	Evictions = api.ResourceDescriptor{
		Group:        "policy",
		Version:      "v1",
		Plural:       "evictions",
		Singular:     "eviction",
		Kind:         "Eviction",
		Scope:        api.NamespaceScoped,
		Capabilities: api.Creatable,
	}
)

// All returns every built-in descriptor.
func All() []api.ResourceDescriptor {
	return []api.ResourceDescriptor{
		Pods, Namespaces, Nodes, Services, ConfigMaps, Secrets,
		Deployments, StatefulSets, Scales, Evictions,
	}
}

// NewRegistry builds a registry pre-filled with the built-in descriptors.
func NewRegistry() *api.Registry {
	r := api.NewRegistry()
	r.MustRegister(All()...)
	return r
}
