package kube

import (
	"fmt"

	"k8s.io/client-go/tools/clientcmd"
)

// pathOptions returns kubeconfig path options, honouring an explicit file.
func pathOptions(kubeconfig string) *clientcmd.PathOptions {
	po := clientcmd.NewDefaultPathOptions()
	if kubeconfig != "" {
		po.LoadingRules.ExplicitPath = kubeconfig
	}
	return po
}

func writeTarget(po *clientcmd.PathOptions) string {
	if po.IsExplicitFile() {
		return po.GetExplicitFile()
	}
	return po.GetDefaultFilename()
}

// GetCurrentKubeContext retrieves the name of the currently active Kubernetes context
var GetCurrentKubeContext = func(kubeconfig string) (string, error) {
	config, err := pathOptions(kubeconfig).GetStartingConfig()
	if err != nil {
		return "", fmt.Errorf("failed to get starting kubeconfig: %w", err)
	}
	if config.CurrentContext == "" {
		return "", fmt.Errorf("current kubeconfig context is not set")
	}
	return config.CurrentContext, nil
}

// ContextExists reports whether the kubeconfig holds the named context.
func ContextExists(kubeconfig, name string) (bool, error) {
	config, err := pathOptions(kubeconfig).GetStartingConfig()
	if err != nil {
		return false, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	_, ok := config.Contexts[name]
	return ok, nil
}

// RemoveContext deletes a context from the kubeconfig together with its
// cluster and user entries when no other context references them. A missing
// context is not an error.
var RemoveContext = func(kubeconfig, name string) error {
	po := pathOptions(kubeconfig)
	config, err := po.GetStartingConfig()
	if err != nil {
		return fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	removed, ok := config.Contexts[name]
	if !ok {
		return nil
	}
	delete(config.Contexts, name)

	clusterShared, userShared := false, false
	for _, c := range config.Contexts {
		if c.Cluster == removed.Cluster {
			clusterShared = true
		}
		if c.AuthInfo == removed.AuthInfo {
			userShared = true
		}
	}
	if !clusterShared {
		delete(config.Clusters, removed.Cluster)
	}
	if !userShared {
		delete(config.AuthInfos, removed.AuthInfo)
	}
	if config.CurrentContext == name {
		config.CurrentContext = ""
	}

	target := writeTarget(po)
	if err := clientcmd.WriteToFile(*config, target); err != nil {
		return fmt.Errorf("failed to write updated kubeconfig to '%s': %w", target, err)
	}
	return nil
}
