package config

import "time"

// GetDefaultConfig returns the built-in configuration layer.
func GetDefaultConfig() StackctlConfig {
	return StackctlConfig{
		Environment: "dev",
		WorkDir:     ".",
		Terraform: TerraformConfig{
			Binary:            "terraform",
			Dir:               "infra",
			VarsFile:          "terraform.tfvars",
			VarsTemplate:      "terraform.tfvars.example",
			PlanFile:          "stackctl.tfplan",
			DestroyPlanFile:   "stackctl-destroy.tfplan",
			RequiredVariables: []string{"region", "environment"},
			ScalingBounds: []ScalingPair{
				{Min: "node_min_size", Max: "node_max_size"},
			},
		},
		Graph: DefaultGraph(),
		Outputs: OutputMapping{
			ClusterName:        "cluster_name",
			ClusterEndpoint:    "cluster_endpoint",
			DatabaseEndpoint:   "database_endpoint",
			CacheEndpoint:      "cache_endpoint",
			DistributionDomain: "distribution_domain",
		},
		Prerequisites: PrerequisitesConfig{
			Tools:             []string{"terraform", "aws"},
			CredentialCommand: []string{"aws", "sts", "get-caller-identity"},
		},
		Cluster: ClusterConfig{
			Provider:       ClusterProviderEKS,
			Node:           "cluster",
			AWSBinary:      "aws",
			RegionVariable: "region",
			ConnectTimeout: 30 * time.Second,
		},
		Kubernetes: KubernetesConfig{
			ManifestsDir:           "k8s",
			Namespaces:             []string{"app", "monitoring"},
			FieldManager:           "stackctl",
			NamespaceDeleteTimeout: 5 * time.Minute,
		},
		Rollout: RolloutConfig{
			CoreTimeout:      5 * time.Minute,
			AuxiliaryTimeout: 3 * time.Minute,
			PollInterval:     5 * time.Second,
		},
		Backup: BackupConfig{
			Dir: "backups",
			Resources: []string{
				"v1/configmaps",
				"v1/services",
				"v1/serviceaccounts",
				"apps/v1/deployments",
				"apps/v1/statefulsets",
				"apps/v1/daemonsets",
				"autoscaling/v2/horizontalpodautoscalers",
				"policy/v1/poddisruptionbudgets",
				"networking.k8s.io/v1/ingresses",
				"networking.k8s.io/v1/networkpolicies",
			},
			Concurrency: 4,
		},
	}
}

// DefaultGraph is the standard application environment: network first, the
// cluster, database and cache inside it, distribution in front of the
// cluster, observability over everything that emits metrics.
func DefaultGraph() []GraphNodeDefinition {
	return []GraphNodeDefinition{
		{Name: "network"},
		{Name: "security", DependsOn: []string{"network"}},
		{Name: "cluster", DependsOn: []string{"network", "security"}},
		{Name: "database", DependsOn: []string{"network", "security"}},
		{Name: "cache", DependsOn: []string{"network", "security"}},
		{Name: "distribution", DependsOn: []string{"cluster"}},
		{Name: "observability", DependsOn: []string{"cluster", "database", "cache"}},
	}
}
