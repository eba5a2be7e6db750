package client

import (
	"net/url"
	"strconv"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/kubewire/kubewire/pkg/api/selectors"
	"github.com/kubewire/kubewire/pkg/apierrors"
)

// NamespaceSelector picks the namespace slice of a request: a concrete
// namespace, the conventional "default" one, or all namespaces. The zero
// value selects all namespaces.
type NamespaceSelector struct {
	name string
}

func AllNamespaces() NamespaceSelector { return NamespaceSelector{} }

func InNamespace(name string) NamespaceSelector { return NamespaceSelector{name: name} }

func DefaultNamespace() NamespaceSelector { return NamespaceSelector{name: metav1.NamespaceDefault} }

// IsAll reports whether the selector spans all namespaces.
func (s NamespaceSelector) IsAll() bool { return s.name == "" }

// Name returns the concrete namespace, empty for AllNamespaces.
func (s NamespaceSelector) Name() string { return s.name }

// GetOptions tune single-object reads.
type GetOptions struct {
	Pretty bool
	// ResourceVersion requests stale-read semantics; empty asks for the
	// latest.
	ResourceVersion string
}

func (o GetOptions) toQuery() url.Values {
	q := url.Values{}
	if o.Pretty {
		q.Set("pretty", "true")
	}
	if o.ResourceVersion != "" {
		q.Set("resourceVersion", o.ResourceVersion)
	}
	return q
}

// ListOptions tune list and watch requests.
type ListOptions struct {
	LabelSelector []selectors.Requirement
	FieldSelector []selectors.FieldRequirement

	// ResourceVersion is the opaque server-defined cursor.
	ResourceVersion string

	// Limit enables pagination; Continue carries the token from the
	// previous page.
	Limit    int64
	Continue string

	// TimeoutSeconds bounds the total wait for a list; for a watch it is
	// re-issued per attempt.
	TimeoutSeconds *int64

	// AllowWatchBookmarks asks the server for bookmark events (watch only).
	AllowWatchBookmarks bool

	Pretty bool
}

// toQuery encodes the options. Selector encoding failures surface as
// InvalidRequest before any network I/O; the "watch=true" knob is owned by
// the watch verb and never exposed on lists.
func (o ListOptions) toQuery(forWatch bool) (url.Values, error) {
	q := url.Values{}

	ls, err := selectors.Encode(o.LabelSelector)
	if err != nil {
		return nil, apierrors.NewInvalidRequest("labelSelector: %v", err)
	}
	if ls != "" {
		q.Set("labelSelector", ls)
	}

	fs, err := selectors.EncodeFields(o.FieldSelector)
	if err != nil {
		return nil, apierrors.NewInvalidRequest("fieldSelector: %v", err)
	}
	if fs != "" {
		q.Set("fieldSelector", fs)
	}

	if o.ResourceVersion != "" {
		q.Set("resourceVersion", o.ResourceVersion)
	}
	if o.TimeoutSeconds != nil {
		q.Set("timeoutSeconds", strconv.FormatInt(*o.TimeoutSeconds, 10))
	}
	if o.Pretty {
		q.Set("pretty", "true")
	}

	if forWatch {
		q.Set("watch", "true")
		if o.AllowWatchBookmarks {
			q.Set("allowWatchBookmarks", "true")
		}
	} else {
		if o.Limit > 0 {
			q.Set("limit", strconv.FormatInt(o.Limit, 10))
		}
		if o.Continue != "" {
			q.Set("continue", o.Continue)
		}
	}
	return q, nil
}

// CreateOptions tune create requests.
type CreateOptions struct {
	DryRun bool
}

// UpdateOptions tune update (replace) requests.
type UpdateOptions struct {
	DryRun bool
}

// PatchOptions tune patch requests.
type PatchOptions struct {
	DryRun bool
}

func dryRunQuery(dryRun bool) url.Values {
	q := url.Values{}
	if dryRun {
		q.Set("dryRun", "All")
	}
	return q
}

// PropagationPolicy selects how dependents are handled on delete.
type PropagationPolicy = metav1.DeletionPropagation

const (
	PropagationOrphan     = metav1.DeletePropagationOrphan
	PropagationBackground = metav1.DeletePropagationBackground
	PropagationForeground = metav1.DeletePropagationForeground
)

// Preconditions guard a delete against racing writers.
type Preconditions struct {
	UID             string
	ResourceVersion string
}

// DeleteOptions tune delete and delete-collection requests.
type DeleteOptions struct {
	GracePeriodSeconds *int64
	PropagationPolicy  PropagationPolicy
	Preconditions      *Preconditions
	DryRun             bool
}

// toBody renders the wire DeleteOptions object sent as the request body.
func (o DeleteOptions) toBody() *metav1.DeleteOptions {
	body := &metav1.DeleteOptions{
		TypeMeta:           metav1.TypeMeta{APIVersion: "v1", Kind: "DeleteOptions"},
		GracePeriodSeconds: o.GracePeriodSeconds,
	}
	if o.PropagationPolicy != "" {
		p := o.PropagationPolicy
		body.PropagationPolicy = &p
	}
	if o.Preconditions != nil {
		pre := &metav1.Preconditions{}
		if o.Preconditions.UID != "" {
			uid := types.UID(o.Preconditions.UID)
			pre.UID = &uid
		}
		if o.Preconditions.ResourceVersion != "" {
			rv := o.Preconditions.ResourceVersion
			pre.ResourceVersion = &rv
		}
		body.Preconditions = pre
	}
	if o.DryRun {
		body.DryRun = []string{metav1.DryRunAll}
	}
	return body
}

// LogOptions tune pod log requests.
type LogOptions struct {
	Container    string
	Follow       bool
	Previous     bool
	Timestamps   bool
	TailLines    *int64
	SinceSeconds *int64
}

func (o LogOptions) toQuery() url.Values {
	q := url.Values{}
	if o.Container != "" {
		q.Set("container", o.Container)
	}
	if o.Follow {
		q.Set("follow", "true")
	}
	if o.Previous {
		q.Set("previous", "true")
	}
	if o.Timestamps {
		q.Set("timestamps", "true")
	}
	if o.TailLines != nil {
		q.Set("tailLines", strconv.FormatInt(*o.TailLines, 10))
	}
	if o.SinceSeconds != nil {
		q.Set("sinceSeconds", strconv.FormatInt(*o.SinceSeconds, 10))
	}
	return q
}
