package api

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// ResourceScope indicates whether a resource lives under a namespace or at
// cluster level.
type ResourceScope string

const (
	ClusterScoped   ResourceScope = "Cluster"
	NamespaceScoped ResourceScope = "Namespaced"
)

// Capability is one verb a resource supports. Capabilities combine into a
// bit set on the descriptor.
type Capability uint32

const (
	Readable Capability = 1 << iota
	Listable
	Creatable
	Replaceable
	Patchable
	Deletable
	CollectionDeletable
	StatusHaving
	Scalable
	Watchable
	Loggable
	Evictable
)

// Has reports whether every capability in want is present in c.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

func (c Capability) String() string {
	names := []struct {
		cap  Capability
		name string
	}{
		{Readable, "Readable"},
		{Listable, "Listable"},
		{Creatable, "Creatable"},
		{Replaceable, "Replaceable"},
		{Patchable, "Patchable"},
		{Deletable, "Deletable"},
		{CollectionDeletable, "CollectionDeletable"},
		{StatusHaving, "StatusHaving"},
		{Scalable, "Scalable"},
		{Watchable, "Watchable"},
		{Loggable, "Loggable"},
		{Evictable, "Evictable"},
	}
	var s string
	for _, n := range names {
		if c&n.cap == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += n.name
	}
	if s == "" {
		return "<none>"
	}
	return s
}

// ResourceDescriptor is the immutable metadata for one kind/version. One
// descriptor exists per supported resource; handles reference descriptors by
// value and never mutate them.
type ResourceDescriptor struct {
	// Group is empty for the core ("legacy") group.
	Group    string
	Version  string
	Plural   string
	Singular string
	Kind     string

	Scope ResourceScope

	Capabilities Capability

	// Subresources maps a subresource name to the path suffix appended after
	// the resource name, e.g. "status" -> "status", "log" -> "log".
	Subresources map[string]string
}

func (d ResourceDescriptor) GroupVersionResource() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: d.Group, Version: d.Version, Resource: d.Plural}
}

func (d ResourceDescriptor) GroupVersionKind() schema.GroupVersionKind {
	return schema.GroupVersionKind{Group: d.Group, Version: d.Version, Kind: d.Kind}
}

// APIVersion renders the "apiVersion" wire form: "v1" for the core group,
// "group/version" otherwise.
func (d ResourceDescriptor) APIVersion() string {
	if d.Group == "" {
		return d.Version
	}
	return d.Group + "/" + d.Version
}

// Subresource returns the registered path suffix for the named subresource.
func (d ResourceDescriptor) Subresource(name string) (string, bool) {
	suffix, ok := d.Subresources[name]
	return suffix, ok
}

// capabilitySubresources lists the capabilities that imply a subresource
// registration on the same descriptor.
var capabilitySubresources = []struct {
	cap  Capability
	name string
}{
	{StatusHaving, "status"},
	{Scalable, "scale"},
	{Loggable, "log"},
	{Evictable, "eviction"},
}

// validate checks descriptor self-consistency: subresource-bearing
// capabilities must come with a registered subresource suffix.
func (d ResourceDescriptor) validate() error {
	if d.Version == "" {
		return fmt.Errorf("descriptor %s: version is required", d.Kind)
	}
	if d.Plural == "" {
		return fmt.Errorf("descriptor %s: plural is required", d.Kind)
	}
	if d.Kind == "" {
		return fmt.Errorf("descriptor %s/%s: kind is required", d.Group, d.Plural)
	}
	switch d.Scope {
	case ClusterScoped, NamespaceScoped:
	default:
		return fmt.Errorf("descriptor %s: unknown scope %q", d.Kind, d.Scope)
	}
	for _, cs := range capabilitySubresources {
		if !d.Capabilities.Has(cs.cap) {
			continue
		}
		if _, ok := d.Subresources[cs.name]; !ok {
			return fmt.Errorf("descriptor %s: capability %s requires a %q subresource", d.Kind, cs.cap, cs.name)
		}
	}
	return nil
}
