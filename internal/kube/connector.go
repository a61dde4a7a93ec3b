package kube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stackctl/internal/utils"
	"stackctl/pkg/logging"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// Provider selects how credentials for the cluster are obtained.
type Provider string

const (
	ProviderEKS        Provider = "eks"
	ProviderKubeconfig Provider = "kubeconfig"
)

// ClientFactory builds API clients from a REST config. Tests substitute
// fakes.
type ClientFactory func(cfg *rest.Config) (kubernetes.Interface, ControlPlane, error)

// DefaultClientFactory builds real clients.
func DefaultClientFactory(fieldManager string) ClientFactory {
	return func(cfg *rest.Config) (kubernetes.Interface, ControlPlane, error) {
		clientset, err := kubernetes.NewForConfig(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
		}
		cp, err := NewClient(cfg, fieldManager)
		if err != nil {
			return nil, nil, err
		}
		return clientset, cp, nil
	}
}

// Connector is the ClusterConnector.
type Connector struct {
	Provider   Provider
	AWSBinary  string
	Region     string
	Kubeconfig string
	Context    string // alias written for eks; existing context for kubeconfig
	Timeout    time.Duration

	Runner     utils.Runner
	NewClients ClientFactory
}

// ErrNoClusterName is returned when the graph did not report a cluster.
var ErrNoClusterName = errors.New("cluster name output is empty")

// Connect obtains credentials for the cluster, verifies that its API answers
// and returns a handle for manifest operations.
func (c *Connector) Connect(ctx context.Context, ref ClusterRef) (*ClusterHandle, error) {
	if ref.Name == "" {
		return nil, ErrNoClusterName
	}

	contextName := c.Context
	switch c.Provider {
	case ProviderEKS:
		if err := c.updateKubeconfig(ctx, ref); err != nil {
			return nil, err
		}
	case ProviderKubeconfig:
		if contextName == "" {
			current, err := GetCurrentKubeContext(c.Kubeconfig)
			if err != nil {
				return nil, err
			}
			contextName = current
		}
	default:
		return nil, fmt.Errorf("unknown cluster provider %q", c.Provider)
	}

	restConfig, err := RESTConfigForContext(c.Kubeconfig, contextName, c.Timeout)
	if err != nil {
		return nil, err
	}
	clientset, cp, err := c.NewClients(restConfig)
	if err != nil {
		return nil, err
	}

	version, err := clientset.Discovery().ServerVersion()
	if err != nil {
		return nil, fmt.Errorf("cluster %s is unreachable at %s: %w", ref.Name, restConfig.Host, err)
	}

	handle := &ClusterHandle{
		Name:       ref.Name,
		Endpoint:   ref.Endpoint,
		Context:    contextName,
		Kubeconfig: c.Kubeconfig,
		Version:    version.GitVersion,
		API:        cp,
	}
	if handle.Endpoint == "" {
		handle.Endpoint = restConfig.Host
	}

	health, err := GetNodeStatus(ctx, clientset)
	if err != nil {
		logging.Warn("Connector", "Could not read node status for %s: %v", ref.Name, err)
	} else {
		handle.Nodes = health
		logging.Info("Connector", "Connected to %s (%s, %s): %d/%d nodes ready", ref.Name, version.GitVersion, health.Provider, health.ReadyNodes, health.TotalNodes)
	}
	return handle, nil
}

func (c *Connector) updateKubeconfig(ctx context.Context, ref ClusterRef) error {
	region := c.Region
	if ref.Region != "" {
		region = ref.Region
	}
	args := []string{"eks", "update-kubeconfig", "--name", ref.Name}
	if region != "" {
		args = append(args, "--region", region)
	}
	if c.Context != "" {
		args = append(args, "--alias", c.Context)
	}
	if c.Kubeconfig != "" {
		args = append(args, "--kubeconfig", c.Kubeconfig)
	}
	if _, err := c.Runner.Run(ctx, utils.Command{Name: c.AWSBinary, Args: args, Subsystem: "Connector"}); err != nil {
		return fmt.Errorf("failed to obtain credentials for cluster %s: %w", ref.Name, err)
	}
	if c.Context == "" {
		return nil
	}
	ok, err := ContextExists(c.Kubeconfig, c.Context)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("context %s missing from kubeconfig after credential update for cluster %s", c.Context, ref.Name)
	}
	return nil
}
