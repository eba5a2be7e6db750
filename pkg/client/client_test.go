package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/kubewire/kubewire/pkg/api"
	"github.com/kubewire/kubewire/pkg/api/selectors"
	"github.com/kubewire/kubewire/pkg/apierrors"
	"github.com/kubewire/kubewire/pkg/client/watch"
	"github.com/kubewire/kubewire/pkg/transport"
)

var fullPodsDesc = api.ResourceDescriptor{
	Version: "v1", Plural: "pods", Singular: "pod", Kind: "Pod",
	Scope: api.NamespaceScoped,
	Capabilities: api.Readable | api.Listable | api.Creatable | api.Replaceable |
		api.Patchable | api.Deletable | api.CollectionDeletable | api.Watchable |
		api.StatusHaving | api.Loggable | api.Evictable,
	Subresources: map[string]string{"status": "status", "log": "log", "eviction": "eviction"},
}

var namespacesDesc = api.ResourceDescriptor{
	Version: "v1", Plural: "namespaces", Singular: "namespace", Kind: "Namespace",
	Scope:        api.ClusterScoped,
	Capabilities: api.Readable | api.Listable | api.Deletable | api.Watchable,
}

type recordedRequest struct {
	Method      string
	Path        string
	Query       url.Values
	ContentType string
	Accept      string
	Body        []byte
}

// recordingServer captures every request and serves canned JSON.
type recordingServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
}

func (s *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		ContentType: r.Header.Get("Content-Type"),
		Accept:      r.Header.Get("Accept"),
		Body:        body,
	})
	s.mu.Unlock()
	s.handler(w, r)
}

func (s *recordingServer) last(t *testing.T) recordedRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.requests)
	return s.requests[len(s.requests)-1]
}

func (s *recordingServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func podJSON(name, ns, rv string) string {
	return fmt.Sprintf(`{"kind":"Pod","apiVersion":"v1","metadata":{"name":%q,"namespace":%q,"resourceVersion":%q}}`, name, ns, rv)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recordingServer) {
	t.Helper()
	rec := &recordingServer{handler: handler}
	ts := httptest.NewServer(rec)
	t.Cleanup(ts.Close)

	tr, err := transport.New(transport.Config{Server: ts.URL})
	require.NoError(t, err)
	return NewWithTransport(tr, api.NewRegistry()), rec
}

func servePodJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, podJSON("web-0", "prod", "7"))
}

func TestRequestMatrix(t *testing.T) {
	c, rec := newTestClient(t, servePodJSON)
	pods, err := NewNamespacedResource[corev1.Pod](c, fullPodsDesc)
	require.NoError(t, err)
	ctx := context.Background()
	ns := InNamespace("prod")

	t.Run("get", func(t *testing.T) {
		_, err := pods.Get(ctx, ns, "web-0", GetOptions{Pretty: true, ResourceVersion: "5"})
		require.NoError(t, err)
		r := rec.last(t)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/namespaces/prod/pods/web-0", r.Path)
		assert.Equal(t, "true", r.Query.Get("pretty"))
		assert.Equal(t, "5", r.Query.Get("resourceVersion"))
		assert.Equal(t, "application/json", r.Accept)
		assert.Empty(t, r.Body)
	})

	t.Run("create", func(t *testing.T) {
		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "web-0"}}
		_, err := pods.Create(ctx, ns, pod, CreateOptions{DryRun: true})
		require.NoError(t, err)
		r := rec.last(t)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/namespaces/prod/pods", r.Path)
		assert.Equal(t, "All", r.Query.Get("dryRun"))
		assert.Equal(t, "application/json", r.ContentType)
		assert.Contains(t, string(r.Body), `"name":"web-0"`)
	})

	t.Run("update takes name from the object", func(t *testing.T) {
		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "web-0"}}
		_, err := pods.Update(ctx, ns, pod, UpdateOptions{})
		require.NoError(t, err)
		r := rec.last(t)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/namespaces/prod/pods/web-0", r.Path)
	})

	t.Run("patch sets the strategy content type", func(t *testing.T) {
		_, err := pods.Patch(ctx, ns, "web-0", types.StrategicMergePatchType, []byte(`{"spec":{}}`), PatchOptions{})
		require.NoError(t, err)
		r := rec.last(t)
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "application/strategic-merge-patch+json", r.ContentType)
	})

	t.Run("delete carries DeleteOptions in the body", func(t *testing.T) {
		grace := int64(30)
		_, err := pods.Delete(ctx, ns, "web-0", DeleteOptions{
			GracePeriodSeconds: &grace,
			PropagationPolicy:  PropagationForeground,
			Preconditions:      &Preconditions{UID: "abc", ResourceVersion: "9"},
		})
		require.NoError(t, err)
		r := rec.last(t)
		assert.Equal(t, http.MethodDelete, r.Method)

		var sent metav1.DeleteOptions
		require.NoError(t, json.Unmarshal(r.Body, &sent))
		assert.Equal(t, int64(30), *sent.GracePeriodSeconds)
		assert.Equal(t, PropagationForeground, *sent.PropagationPolicy)
		assert.Equal(t, types.UID("abc"), *sent.Preconditions.UID)
		assert.Equal(t, "9", *sent.Preconditions.ResourceVersion)
	})

	t.Run("delete collection merges selectors and dry run", func(t *testing.T) {
		err := pods.DeleteCollection(ctx, ns,
			ListOptions{LabelSelector: []selectors.Requirement{selectors.Eq("app", "web")}},
			DeleteOptions{DryRun: true})
		require.NoError(t, err)
		r := rec.last(t)
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/namespaces/prod/pods", r.Path)
		assert.Equal(t, "app=web", r.Query.Get("labelSelector"))
		assert.Equal(t, "All", r.Query.Get("dryRun"))
	})

	t.Run("status subresource", func(t *testing.T) {
		_, err := pods.GetStatus(ctx, ns, "web-0")
		require.NoError(t, err)
		assert.Equal(t, "/api/v1/namespaces/prod/pods/web-0/status", rec.last(t).Path)

		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "web-0"}}
		_, err = pods.UpdateStatus(ctx, ns, pod)
		require.NoError(t, err)
		r := rec.last(t)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/namespaces/prod/pods/web-0/status", r.Path)
	})

	t.Run("list pagination knobs", func(t *testing.T) {
		_, err := pods.List(ctx, ns, ListOptions{Limit: 100, Continue: "tok", ResourceVersion: "3"})
		// The pod body does not decode as a list; only the request matters here.
		_ = err
		r := rec.last(t)
		assert.Equal(t, "100", r.Query.Get("limit"))
		assert.Equal(t, "tok", r.Query.Get("continue"))
		assert.Equal(t, "3", r.Query.Get("resourceVersion"))
		assert.False(t, r.Query.Has("watch"))
	})

	t.Run("empty selectors add no query parameters", func(t *testing.T) {
		_, _ = pods.List(ctx, ns, ListOptions{})
		r := rec.last(t)
		assert.False(t, r.Query.Has("labelSelector"))
		assert.False(t, r.Query.Has("fieldSelector"))
	})
}

func TestCapabilityGuardBlocksBeforeNetwork(t *testing.T) {
	c, rec := newTestClient(t, servePodJSON)

	readOnly := fullPodsDesc
	readOnly.Capabilities = api.Readable
	pods, err := NewNamespacedResource[corev1.Pod](c, readOnly)
	require.NoError(t, err)
	ctx := context.Background()
	ns := InNamespace("prod")

	_, err = pods.List(ctx, ns, ListOptions{})
	assert.True(t, apierrors.IsKind(err, apierrors.KindUnsupportedOperation))

	_, err = pods.Create(ctx, ns, &corev1.Pod{}, CreateOptions{})
	assert.True(t, apierrors.IsKind(err, apierrors.KindUnsupportedOperation))

	_, err = pods.Delete(ctx, ns, "web-0", DeleteOptions{})
	assert.True(t, apierrors.IsKind(err, apierrors.KindUnsupportedOperation))

	_, err = pods.Watch(ctx, ns, ListOptions{}, watch.DefaultRetryStrategy(), nil)
	assert.True(t, apierrors.IsKind(err, apierrors.KindUnsupportedOperation))

	assert.Zero(t, rec.count(), "capability misses must issue no HTTP requests")
}

func TestInvalidSelectorFailsBeforeNetwork(t *testing.T) {
	c, rec := newTestClient(t, servePodJSON)
	pods, err := NewNamespacedResource[corev1.Pod](c, fullPodsDesc)
	require.NoError(t, err)

	_, err = pods.List(context.Background(), InNamespace("prod"), ListOptions{
		LabelSelector: []selectors.Requirement{selectors.In("app")},
	})
	require.Error(t, err)
	assert.True(t, apierrors.IsInvalidRequest(err))
	assert.Zero(t, rec.count())
}

func TestNamespaceRequiredForWrites(t *testing.T) {
	c, rec := newTestClient(t, servePodJSON)
	pods, err := NewNamespacedResource[corev1.Pod](c, fullPodsDesc)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = pods.Create(ctx, AllNamespaces(), &corev1.Pod{}, CreateOptions{})
	assert.True(t, apierrors.IsInvalidRequest(err))

	_, err = pods.Get(ctx, AllNamespaces(), "web-0", GetOptions{})
	assert.True(t, apierrors.IsInvalidRequest(err))

	_, err = pods.Delete(ctx, AllNamespaces(), "web-0", DeleteOptions{})
	assert.True(t, apierrors.IsInvalidRequest(err))

	assert.Zero(t, rec.count())
}

func TestDeleteReturnsResourceOrStatus(t *testing.T) {
	t.Run("status branch", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"kind":"Status","apiVersion":"v1","status":"Success","code":200}`)
		})
		pods, err := NewNamespacedResource[corev1.Pod](c, fullPodsDesc)
		require.NoError(t, err)

		result, err := pods.Delete(context.Background(), InNamespace("prod"), "web-0", DeleteOptions{})
		require.NoError(t, err)
		require.NotNil(t, result.Status)
		assert.Nil(t, result.Resource)
		assert.Equal(t, int32(200), result.Status.Code)
	})

	t.Run("resource branch", func(t *testing.T) {
		c, _ := newTestClient(t, servePodJSON)
		pods, err := NewNamespacedResource[corev1.Pod](c, fullPodsDesc)
		require.NoError(t, err)

		result, err := pods.Delete(context.Background(), InNamespace("prod"), "web-0", DeleteOptions{})
		require.NoError(t, err)
		require.NotNil(t, result.Resource)
		assert.Nil(t, result.Status)
		assert.Equal(t, "web-0", result.Resource.Name)
	})
}

func TestEmptyBodyOnUpdateIsMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	pods, err := NewNamespacedResource[corev1.Pod](c, fullPodsDesc)
	require.NoError(t, err)

	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "web-0"}}
	_, err = pods.Update(context.Background(), InNamespace("prod"), pod, UpdateOptions{})
	require.Error(t, err)
	assert.True(t, apierrors.IsKind(err, apierrors.KindMalformedResponse))
}

func TestErrorResponsesAreClassified(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"kind":"Status","apiVersion":"v1","status":"Failure","reason":"NotFound","code":404}`)
	})
	pods, err := NewNamespacedResource[corev1.Pod](c, fullPodsDesc)
	require.NoError(t, err)

	_, err = pods.Get(context.Background(), InNamespace("prod"), "missing", GetOptions{})
	require.Error(t, err)
	assert.True(t, apierrors.IsNotFound(err))

	var se *apierrors.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "/api/v1/namespaces/prod/pods/missing", se.Path)
	assert.NotNil(t, se.Status)
}

// namespaceFixture matches the label-selector scenarios: three namespaces
// with app/env labels.
func namespaceFixture() []corev1.Namespace {
	mk := func(name string, labels map[string]string) corev1.Namespace {
		return corev1.Namespace{
			TypeMeta:   metav1.TypeMeta{Kind: "Namespace", APIVersion: "v1"},
			ObjectMeta: metav1.ObjectMeta{Name: name, Labels: labels},
		}
	}
	return []corev1.Namespace{
		mk("ns1", map[string]string{"app": "nginx", "env": "dev"}),
		mk("ns2", map[string]string{"app": "nginx", "env": "qa"}),
		mk("ns3", map[string]string{"app": "swiftkube", "env": "prod"}),
	}
}

// splitSelectorTerms splits on commas that are not inside value sets.
func splitSelectorTerms(s string) []string {
	var terms []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				terms = append(terms, s[start:i])
				start = i + 1
			}
		}
	}
	return append(terms, s[start:])
}

func matchSelector(selector string, labels map[string]string) bool {
	if selector == "" {
		return true
	}
	for _, term := range splitSelectorTerms(selector) {
		term = strings.TrimSpace(term)
		switch {
		case strings.Contains(term, " notin ("):
			parts := strings.SplitN(term, " notin (", 2)
			values := strings.Split(strings.TrimSuffix(parts[1], ")"), ",")
			v, ok := labels[parts[0]]
			if !ok {
				continue
			}
			for _, candidate := range values {
				if v == candidate {
					return false
				}
			}
		case strings.Contains(term, " in ("):
			parts := strings.SplitN(term, " in (", 2)
			values := strings.Split(strings.TrimSuffix(parts[1], ")"), ",")
			v, ok := labels[parts[0]]
			if !ok {
				return false
			}
			found := false
			for _, candidate := range values {
				if v == candidate {
					found = true
				}
			}
			if !found {
				return false
			}
		case strings.Contains(term, "!="):
			kv := strings.SplitN(term, "!=", 2)
			if labels[kv[0]] == kv[1] {
				return false
			}
		case strings.Contains(term, "="):
			kv := strings.SplitN(term, "=", 2)
			if labels[kv[0]] != kv[1] {
				return false
			}
		case strings.HasPrefix(term, "!"):
			if _, ok := labels[term[1:]]; ok {
				return false
			}
		default:
			if _, ok := labels[term]; !ok {
				return false
			}
		}
	}
	return true
}

func newNamespaceServer(t *testing.T) *ClusterResource[corev1.Namespace] {
	t.Helper()
	fixture := namespaceFixture()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if name := strings.TrimPrefix(r.URL.Path, "/api/v1/namespaces/"); name != r.URL.Path && name != "" {
			for _, ns := range fixture {
				if ns.Name == name {
					_ = json.NewEncoder(w).Encode(ns)
					return
				}
			}
			w.WriteHeader(http.StatusNotFound)
			return
		}

		selector := r.URL.Query().Get("labelSelector")
		list := List[corev1.Namespace]{
			TypeMeta: metav1.TypeMeta{Kind: "NamespaceList", APIVersion: "v1"},
			ListMeta: metav1.ListMeta{ResourceVersion: "99"},
		}
		for _, ns := range fixture {
			if matchSelector(selector, ns.Labels) {
				list.Items = append(list.Items, ns)
			}
		}
		_ = json.NewEncoder(w).Encode(list)
	})

	handle, err := NewClusterResource[corev1.Namespace](c, namespacesDesc)
	require.NoError(t, err)
	return handle
}

func listNames(t *testing.T, h *ClusterResource[corev1.Namespace], reqs ...selectors.Requirement) []string {
	t.Helper()
	list, err := h.List(context.Background(), ListOptions{LabelSelector: reqs})
	require.NoError(t, err)
	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.Name)
	}
	return names
}

func TestListScenarios(t *testing.T) {
	h := newNamespaceServer(t)

	t.Run("equality", func(t *testing.T) {
		assert.Equal(t, []string{"ns1", "ns2"}, listNames(t, h, selectors.Eq("app", "nginx")))
	})

	t.Run("negated equality with existence", func(t *testing.T) {
		assert.Equal(t, []string{"ns3"}, listNames(t, h, selectors.Exists("app"), selectors.Neq("app", "nginx")))
	})

	t.Run("non-existent key", func(t *testing.T) {
		assert.Empty(t, listNames(t, h, selectors.Exists("foo")))
	})

	t.Run("set membership", func(t *testing.T) {
		assert.Equal(t, []string{"ns1", "ns2", "ns3"}, listNames(t, h, selectors.In("app", "nginx", "swiftkube")))
		assert.Equal(t, []string{"ns1", "ns2"}, listNames(t, h, selectors.In("app", "nginx")))
	})

	t.Run("negated set membership", func(t *testing.T) {
		assert.Equal(t, []string{"ns3"}, listNames(t, h, selectors.NotIn("app", "nginx")))
	})

	t.Run("get by name", func(t *testing.T) {
		ns, err := h.Get(context.Background(), "ns2", GetOptions{})
		require.NoError(t, err)
		assert.Equal(t, "ns2", ns.Name)
	})
}
