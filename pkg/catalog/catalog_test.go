package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/kubewire/kubewire/pkg/api"
)

func TestBuiltinsRegisterCleanly(t *testing.T) {
	// MustRegister panics on an inconsistent descriptor; building the
	// registry at all proves the invariant holds for every built-in.
	r := NewRegistry()
	assert.Len(t, r.Descriptors(), len(All()))
}

func TestBuiltinScopes(t *testing.T) {
	r := NewRegistry()

	pods, ok := r.Lookup(schema.GroupVersionResource{Version: "v1", Resource: "pods"})
	require.True(t, ok)
	assert.Equal(t, api.NamespaceScoped, pods.Scope)
	assert.True(t, pods.Capabilities.Has(api.Loggable|api.Evictable))

	nodes, ok := r.Lookup(schema.GroupVersionResource{Version: "v1", Resource: "nodes"})
	require.True(t, ok)
	assert.Equal(t, api.ClusterScoped, nodes.Scope)
	assert.False(t, nodes.Capabilities.Has(api.Creatable))

	deploy, ok := r.Lookup(schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"})
	require.True(t, ok)
	assert.True(t, deploy.Capabilities.Has(api.Scalable))
	_, hasScale := deploy.Subresource("scale")
	assert.True(t, hasScale)
}

func TestSubresourceBearingCapabilitiesAreBacked(t *testing.T) {
	checks := []struct {
		cap  api.Capability
		name string
	}{
		{api.StatusHaving, "status"},
		{api.Scalable, "scale"},
		{api.Loggable, "log"},
		{api.Evictable, "eviction"},
	}
	for _, d := range All() {
		for _, c := range checks {
			if !d.Capabilities.Has(c.cap) {
				continue
			}
			_, ok := d.Subresource(c.name)
			assert.True(t, ok, "%s advertises %s without a %q subresource", d.Kind, c.cap, c.name)
		}
	}
}
