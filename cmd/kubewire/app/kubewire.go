// Package app wires the kubewire CLI: a small get/list/watch front end over
// the client library, mostly useful for poking at clusters and as a worked
// example of the handle API.
package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aquasecurity/table"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/duration"
	"k8s.io/klog/v2"

	"github.com/kubewire/kubewire/pkg/api/selectors"
	"github.com/kubewire/kubewire/pkg/catalog"
	"github.com/kubewire/kubewire/pkg/client"
	"github.com/kubewire/kubewire/pkg/client/watch"
)

type globalOptions struct {
	configFile    string
	namespace     string
	allNamespaces bool
	labelSelector string
	logFile       string
}

func (o *globalOptions) namespaceSelector() client.NamespaceSelector {
	if o.allNamespaces {
		return client.AllNamespaces()
	}
	if o.namespace == "" {
		return client.DefaultNamespace()
	}
	return client.InNamespace(o.namespace)
}

func (o *globalOptions) buildClient() (*client.Client, error) {
	if o.logFile != "" {
		klog.LogToStderr(false)
		klog.SetOutput(&lumberjack.Logger{Filename: o.logFile, MaxSize: 50, MaxBackups: 3})
	}
	cfg, err := loadTransportConfig(o.configFile)
	if err != nil {
		return nil, err
	}
	return client.New(cfg, catalog.NewRegistry())
}

// NewKubewireCommand builds the root command.
func NewKubewireCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "kubewire",
		Short:         "Typed get/list/watch against a Kubernetes API server.",
		SilenceErrors: false,
		SilenceUsage:  true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	rootCmd.PersistentFlags().AddGoFlagSet(fs)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "kubewire.yaml", "Connection config file.")
	pf.StringVarP(&opts.namespace, "namespace", "n", "", "Namespace to operate in.")
	pf.BoolVarP(&opts.allNamespaces, "all-namespaces", "A", false, "Span all namespaces (list and watch only).")
	pf.StringVarP(&opts.labelSelector, "selector", "l", "", "Label selector, e.g. 'app=nginx,env!=dev'.")
	pf.StringVar(&opts.logFile, "log-file", "", "Write logs to this rotating file instead of stderr.")

	rootCmd.AddCommand(newGetCmd(opts), newListCmd(opts), newWatchCmd(opts))
	return rootCmd
}

func newGetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get RESOURCE NAME",
		Short: "Fetch one object by name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.buildClient()
			if err != nil {
				return err
			}
			obj, err := fetchOne(cmd.Context(), c, opts, args[0], args[1])
			if err != nil {
				return err
			}
			printRows([]row{obj})
			return nil
		},
	}
}

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list RESOURCE",
		Short: "List objects, optionally filtered by label selector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.buildClient()
			if err != nil {
				return err
			}
			listOpts, err := listOptions(opts)
			if err != nil {
				return err
			}
			rows, err := fetchList(cmd.Context(), c, opts, args[0], listOpts)
			if err != nil {
				return err
			}
			printRows(rows)
			return nil
		},
	}
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch RESOURCE",
		Short: "Stream change events until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.buildClient()
			if err != nil {
				return err
			}
			listOpts, err := listOptions(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			task, err := startWatch(ctx, c, opts, args[0], listOpts)
			if err != nil {
				return err
			}
			<-task.Done()
			if err := task.Err(); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

func listOptions(opts *globalOptions) (client.ListOptions, error) {
	reqs, err := parseSelector(opts.labelSelector)
	if err != nil {
		return client.ListOptions{}, err
	}
	return client.ListOptions{LabelSelector: reqs}, nil
}

// parseSelector understands the common subset of the selector grammar:
// "k=v", "k!=v", "k" and "!k", joined by commas.
func parseSelector(s string) ([]selectors.Requirement, error) {
	if s == "" {
		return nil, nil
	}
	var reqs []selectors.Requirement
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			return nil, fmt.Errorf("empty selector term in %q", s)
		case strings.Contains(part, "!="):
			kv := strings.SplitN(part, "!=", 2)
			reqs = append(reqs, selectors.Neq(kv[0], kv[1]))
		case strings.Contains(part, "="):
			kv := strings.SplitN(part, "=", 2)
			reqs = append(reqs, selectors.Eq(kv[0], kv[1]))
		case strings.HasPrefix(part, "!"):
			reqs = append(reqs, selectors.DoesNotExist(part[1:]))
		default:
			reqs = append(reqs, selectors.Exists(part))
		}
	}
	return reqs, nil
}

type row struct {
	namespace string
	name      string
	age       string
}

type objectMeta interface {
	GetName() string
	GetNamespace() string
	GetCreationTimestamp() metav1.Time
}

func rowOf(o objectMeta) row {
	return row{
		namespace: o.GetNamespace(),
		name:      o.GetName(),
		age:       duration.HumanDuration(metav1.Now().Sub(o.GetCreationTimestamp().Time)),
	}
}

func rowsOf[T any](items []T) []row {
	out := make([]row, 0, len(items))
	for i := range items {
		out = append(out, rowOf(any(&items[i]).(objectMeta)))
	}
	return out
}

func printRows(rows []row) {
	t := table.New(os.Stdout)
	t.SetHeaders("NAMESPACE", "NAME", "AGE")
	for _, r := range rows {
		t.AddRow(r.namespace, r.name, r.age)
	}
	t.Render()
}

func fetchOne(ctx context.Context, c *client.Client, opts *globalOptions, resource, name string) (row, error) {
	ns := opts.namespaceSelector()
	switch resource {
	case "pods", "pod", "po":
		h, err := catalog.PodsFor(c)
		if err != nil {
			return row{}, err
		}
		obj, err := h.Get(ctx, ns, name, client.GetOptions{})
		if err != nil {
			return row{}, err
		}
		return rowOf(obj), nil
	case "deployments", "deployment", "deploy":
		h, err := catalog.DeploymentsFor(c)
		if err != nil {
			return row{}, err
		}
		obj, err := h.Get(ctx, ns, name, client.GetOptions{})
		if err != nil {
			return row{}, err
		}
		return rowOf(obj), nil
	case "namespaces", "namespace", "ns":
		h, err := catalog.NamespacesFor(c)
		if err != nil {
			return row{}, err
		}
		obj, err := h.Get(ctx, name, client.GetOptions{})
		if err != nil {
			return row{}, err
		}
		return rowOf(obj), nil
	case "services", "service", "svc":
		h, err := catalog.ServicesFor(c)
		if err != nil {
			return row{}, err
		}
		obj, err := h.Get(ctx, ns, name, client.GetOptions{})
		if err != nil {
			return row{}, err
		}
		return rowOf(obj), nil
	case "configmaps", "configmap", "cm":
		h, err := catalog.ConfigMapsFor(c)
		if err != nil {
			return row{}, err
		}
		obj, err := h.Get(ctx, ns, name, client.GetOptions{})
		if err != nil {
			return row{}, err
		}
		return rowOf(obj), nil
	default:
		return row{}, fmt.Errorf("unknown resource %q", resource)
	}
}

func fetchList(ctx context.Context, c *client.Client, opts *globalOptions, resource string, listOpts client.ListOptions) ([]row, error) {
	ns := opts.namespaceSelector()
	switch resource {
	case "pods", "pod", "po":
		h, err := catalog.PodsFor(c)
		if err != nil {
			return nil, err
		}
		list, err := h.List(ctx, ns, listOpts)
		if err != nil {
			return nil, err
		}
		return rowsOf(list.Items), nil
	case "deployments", "deployment", "deploy":
		h, err := catalog.DeploymentsFor(c)
		if err != nil {
			return nil, err
		}
		list, err := h.List(ctx, ns, listOpts)
		if err != nil {
			return nil, err
		}
		return rowsOf(list.Items), nil
	case "namespaces", "namespace", "ns":
		h, err := catalog.NamespacesFor(c)
		if err != nil {
			return nil, err
		}
		list, err := h.List(ctx, listOpts)
		if err != nil {
			return nil, err
		}
		return rowsOf(list.Items), nil
	case "services", "service", "svc":
		h, err := catalog.ServicesFor(c)
		if err != nil {
			return nil, err
		}
		list, err := h.List(ctx, ns, listOpts)
		if err != nil {
			return nil, err
		}
		return rowsOf(list.Items), nil
	case "configmaps", "configmap", "cm":
		h, err := catalog.ConfigMapsFor(c)
		if err != nil {
			return nil, err
		}
		list, err := h.List(ctx, ns, listOpts)
		if err != nil {
			return nil, err
		}
		return rowsOf(list.Items), nil
	default:
		return nil, fmt.Errorf("unknown resource %q", resource)
	}
}

func startWatch(ctx context.Context, c *client.Client, opts *globalOptions, resource string, listOpts client.ListOptions) (*watch.Task, error) {
	printEvent := func(eventType watch.EventType, o objectMeta) {
		fmt.Printf("%-10s %s/%s\n", eventType, o.GetNamespace(), o.GetName())
	}
	ns := opts.namespaceSelector()
	strategy := watch.DefaultRetryStrategy()

	switch resource {
	case "pods", "pod", "po":
		h, err := catalog.PodsFor(c)
		if err != nil {
			return nil, err
		}
		return h.Watch(ctx, ns, listOpts, strategy, watch.SinkOf(func(e watch.Event[corev1.Pod]) {
			printEvent(e.Type, e.Object)
		}))
	case "deployments", "deployment", "deploy":
		h, err := catalog.DeploymentsFor(c)
		if err != nil {
			return nil, err
		}
		return h.Watch(ctx, ns, listOpts, strategy, watch.SinkOf(func(e watch.Event[appsv1.Deployment]) {
			printEvent(e.Type, e.Object)
		}))
	case "namespaces", "namespace", "ns":
		h, err := catalog.NamespacesFor(c)
		if err != nil {
			return nil, err
		}
		return h.Watch(ctx, listOpts, strategy, watch.SinkOf(func(e watch.Event[corev1.Namespace]) {
			printEvent(e.Type, e.Object)
		}))
	default:
		return nil, fmt.Errorf("watch not supported for resource %q", resource)
	}
}
