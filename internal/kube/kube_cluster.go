package kube

import (
	"context"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	_ "k8s.io/client-go/plugin/pkg/client/auth" // Important for various auth providers
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// GetNodeStatus counts ready nodes and guesses the provider from the first
// node. The call is bounded so it cannot hang.
var GetNodeStatus = func(ctx context.Context, clientset kubernetes.Interface) (NodeHealth, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	nodeList, err := clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return NodeHealth{}, fmt.Errorf("failed to list nodes: %w", err)
	}

	health := NodeHealth{TotalNodes: len(nodeList.Items), Provider: "unknown"}
	for i, node := range nodeList.Items {
		if i == 0 {
			health.Provider = determineProviderFromNode(&nodeList.Items[0])
		}
		for _, condition := range node.Status.Conditions {
			if condition.Type == corev1.NodeReady && condition.Status == corev1.ConditionTrue {
				health.ReadyNodes++
				break
			}
		}
	}
	return health, nil
}

// determineProviderFromNode inspects a node's ProviderID and labels to
// determine the cloud provider.
func determineProviderFromNode(node *corev1.Node) string {
	if node == nil {
		return "unknown"
	}

	providerID := node.Spec.ProviderID
	if providerID != "" {
		switch {
		case strings.HasPrefix(providerID, "aws://"):
			return "aws"
		case strings.HasPrefix(providerID, "azure://"):
			return "azure"
		case strings.HasPrefix(providerID, "gce://"):
			return "gcp"
		case strings.Contains(providerID, "kind://"):
			return "kind"
		}
		// If providerID is present but not matched, try labels next
	}

	for k := range node.GetLabels() {
		switch {
		case strings.Contains(k, "eks.amazonaws.com") || strings.Contains(k, "amazonaws.com/compute"):
			return "aws"
		case strings.Contains(k, "kubernetes.azure.com"):
			return "azure"
		case strings.Contains(k, "cloud.google.com/gke"):
			return "gcp"
		}
	}
	return "unknown"
}

// RESTConfigForContext builds a REST config for a kubeconfig context.
var RESTConfigForContext = func(kubeconfig, kubeContextName string, timeout time.Duration) (*rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}
	configOverrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContextName}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, configOverrides)

	restConfig, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get REST config for context %q: %w", kubeContextName, err)
	}
	if timeout > 0 {
		restConfig.Timeout = timeout
	}
	return restConfig, nil
}
