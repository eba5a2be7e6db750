package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/kubewire/kubewire/pkg/api"
	"github.com/kubewire/kubewire/pkg/apierrors"
)

// restartedAtAnnotation is the annotation kubectl uses to trigger a rolling
// restart; writing a fresh timestamp rolls the pods.
const restartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

// PodClient composes pod-specific verbs over the base namespaced handle.
type PodClient struct {
	*NamespacedResource[corev1.Pod]
}

func NewPodClient(base *NamespacedResource[corev1.Pod]) *PodClient {
	return &PodClient{NamespacedResource: base}
}

// Logs streams the container log of one pod. The returned reader is the live
// response body; the caller must close it. With opts.Follow the stream stays
// open until closed or the container ends.
func (p *PodClient) Logs(ctx context.Context, ns NamespaceSelector, name string, opts LogOptions) (io.ReadCloser, error) {
	if err := p.capability(api.Loggable, VerbGetLog); err != nil {
		return nil, err
	}
	if err := p.requireNamespace(ns, VerbGetLog); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apierrors.NewInvalidRequest("get %s log: name is required", p.d.Plural)
	}
	path, err := resourcePath(p.d, ns, name, "log")
	if err != nil {
		return nil, err
	}
	resp, err := p.c.do(ctx, &apiRequest{
		verb: VerbGetLog, method: http.MethodGet, path: path,
		query: opts.toQuery(), accept: "text/plain", stream: true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Evict posts a policy/v1 Eviction for the pod, honoring disruption
// budgets server-side.
func (p *PodClient) Evict(ctx context.Context, ns NamespaceSelector, name string, opts DeleteOptions) error {
	if err := p.capability(api.Evictable, VerbEvict); err != nil {
		return err
	}
	if err := p.requireNamespace(ns, VerbEvict); err != nil {
		return err
	}
	if name == "" {
		return apierrors.NewInvalidRequest("evict %s: name is required", p.d.Plural)
	}
	path, err := resourcePath(p.d, ns, name, "eviction")
	if err != nil {
		return err
	}
	eviction := &policyv1.Eviction{
		TypeMeta:      metav1.TypeMeta{APIVersion: "policy/v1", Kind: "Eviction"},
		ObjectMeta:    metav1.ObjectMeta{Name: name, Namespace: ns.Name()},
		DeleteOptions: opts.toBody(),
	}
	body, err := encodeBody(eviction)
	if err != nil {
		return err
	}
	resp, err := p.c.do(ctx, &apiRequest{
		verb: VerbEvict, method: http.MethodPost, path: path,
		query: dryRunQuery(opts.DryRun), body: body,
	})
	if err != nil {
		return err
	}
	drainBody(resp)
	return nil
}

// DeploymentClient composes deployment-specific verbs over the base
// namespaced handle.
type DeploymentClient struct {
	*NamespacedResource[appsv1.Deployment]
}

func NewDeploymentClient(base *NamespacedResource[appsv1.Deployment]) *DeploymentClient {
	return &DeploymentClient{NamespacedResource: base}
}

// Restart triggers a rolling restart by stamping the pod template's
// restartedAt annotation through a strategic-merge patch, the same way
// kubectl rollout restart does.
func (d *DeploymentClient) Restart(ctx context.Context, ns NamespaceSelector, name string) (*appsv1.Deployment, error) {
	stamp := d.c.clock.Now().UTC().Format(time.RFC3339)
	patch := fmt.Sprintf(
		`{"spec":{"template":{"metadata":{"annotations":{%q:%q}}}}}`,
		restartedAtAnnotation, stamp,
	)
	return d.Patch(ctx, ns, name, types.StrategicMergePatchType, []byte(patch), PatchOptions{})
}
