package catalog

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/kubewire/kubewire/pkg/client"
)

// PodsFor returns the pod handle with its log and eviction verbs.
func PodsFor(c *client.Client) (*client.PodClient, error) {
	base, err := client.NewNamespacedResource[corev1.Pod](c, Pods)
	if err != nil {
		return nil, err
	}
	return client.NewPodClient(base), nil
}

// DeploymentsFor returns the deployment handle with its restart verb.
func DeploymentsFor(c *client.Client) (*client.DeploymentClient, error) {
	base, err := client.NewNamespacedResource[appsv1.Deployment](c, Deployments)
	if err != nil {
		return nil, err
	}
	return client.NewDeploymentClient(base), nil
}

// NamespacesFor returns the cluster-scoped namespace handle.
func NamespacesFor(c *client.Client) (*client.ClusterResource[corev1.Namespace], error) {
	return client.NewClusterResource[corev1.Namespace](c, Namespaces)
}

// ServicesFor returns the namespaced service handle.
func ServicesFor(c *client.Client) (*client.NamespacedResource[corev1.Service], error) {
	return client.NewNamespacedResource[corev1.Service](c, Services)
}

// ConfigMapsFor returns the namespaced configmap handle.
func ConfigMapsFor(c *client.Client) (*client.NamespacedResource[corev1.ConfigMap], error) {
	return client.NewNamespacedResource[corev1.ConfigMap](c, ConfigMaps)
}
