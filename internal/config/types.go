package config

import (
	"time"
)

// StackctlConfig is the top-level configuration structure for stackctl.
type StackctlConfig struct {
	Environment   string                `yaml:"environment" validate:"required"`
	WorkDir       string                `yaml:"workDir,omitempty"`
	Terraform     TerraformConfig       `yaml:"terraform"`
	Graph         []GraphNodeDefinition `yaml:"graph,omitempty" validate:"dive"`
	Outputs       OutputMapping         `yaml:"outputs"`
	Prerequisites PrerequisitesConfig   `yaml:"prerequisites"`
	Cluster       ClusterConfig         `yaml:"cluster"`
	Kubernetes    KubernetesConfig      `yaml:"kubernetes"`
	Rollout       RolloutConfig         `yaml:"rollout"`
	Backup        BackupConfig          `yaml:"backup"`
}

// TerraformConfig describes the resource graph root module and its inputs.
type TerraformConfig struct {
	Binary            string        `yaml:"binary" validate:"required"`
	Dir               string        `yaml:"dir" validate:"required"`
	VarsFile          string        `yaml:"varsFile" validate:"required"`
	VarsTemplate      string        `yaml:"varsTemplate,omitempty"`
	PlanFile          string        `yaml:"planFile" validate:"required"`
	DestroyPlanFile   string        `yaml:"destroyPlanFile" validate:"required"`
	Parallelism       int           `yaml:"parallelism,omitempty" validate:"gte=0"`
	RequiredVariables []string      `yaml:"requiredVariables,omitempty"`
	ScalingBounds     []ScalingPair `yaml:"scalingBounds,omitempty" validate:"dive"`
}

// ScalingPair names two numeric variables that must satisfy min <= max.
type ScalingPair struct {
	Min string `yaml:"min" validate:"required"`
	Max string `yaml:"max" validate:"required"`
}

// GraphNodeDefinition declares one resource module and the modules whose
// outputs it consumes.
type GraphNodeDefinition struct {
	Name      string   `yaml:"name" validate:"required"`
	Module    string   `yaml:"module,omitempty"` // defaults to module.<name>
	DependsOn []string `yaml:"dependsOn,omitempty"`
}

// OutputMapping maps the summary fields onto engine output names. The values
// are passed through untouched.
type OutputMapping struct {
	ClusterName        string `yaml:"clusterName" validate:"required"`
	ClusterEndpoint    string `yaml:"clusterEndpoint"`
	DatabaseEndpoint   string `yaml:"databaseEndpoint"`
	CacheEndpoint      string `yaml:"cacheEndpoint"`
	DistributionDomain string `yaml:"distributionDomain"`
}

// PrerequisitesConfig lists required tools and the credential probe.
type PrerequisitesConfig struct {
	Tools             []string `yaml:"tools,omitempty"`
	CredentialCommand []string `yaml:"credentialCommand,omitempty"`
}

// ClusterProvider selects how cluster credentials are obtained.
type ClusterProvider string

const (
	ClusterProviderEKS        ClusterProvider = "eks"
	ClusterProviderKubeconfig ClusterProvider = "kubeconfig"
)

// ClusterConfig configures the ClusterConnector.
type ClusterConfig struct {
	Provider       ClusterProvider `yaml:"provider" validate:"oneof=eks kubeconfig"`
	Node           string          `yaml:"node" validate:"required"` // graph node that owns the cluster
	AWSBinary      string          `yaml:"awsBinary,omitempty"`
	RegionVariable string          `yaml:"regionVariable,omitempty"`
	Kubeconfig     string          `yaml:"kubeconfig,omitempty"`
	ContextAlias   string          `yaml:"contextAlias,omitempty"` // defaults to stackctl-<environment>
	ConnectTimeout time.Duration   `yaml:"connectTimeout,omitempty" validate:"gte=0"`
}

// KubernetesConfig configures the manifest set and teardown behaviour.
type KubernetesConfig struct {
	ManifestsDir           string              `yaml:"manifestsDir" validate:"required"`
	Manifests              map[string][]string `yaml:"manifests,omitempty"`
	Namespaces             []string            `yaml:"namespaces,omitempty"`
	FieldManager           string              `yaml:"fieldManager,omitempty"`
	NamespaceDeleteTimeout time.Duration       `yaml:"namespaceDeleteTimeout,omitempty" validate:"gte=0"`
}

// RolloutConfig bounds the readiness wait.
type RolloutConfig struct {
	CoreTimeout      time.Duration `yaml:"coreTimeout" validate:"gt=0"`
	AuxiliaryTimeout time.Duration `yaml:"auxiliaryTimeout" validate:"gt=0"`
	PollInterval     time.Duration `yaml:"pollInterval" validate:"gt=0"`
}

// BackupConfig configures the pre-teardown snapshot.
type BackupConfig struct {
	Dir            string   `yaml:"dir" validate:"required"`
	Resources      []string `yaml:"resources,omitempty"` // group/version/resource, e.g. apps/v1/deployments
	IncludeSecrets bool     `yaml:"includeSecrets,omitempty"`
	Concurrency    int      `yaml:"concurrency,omitempty" validate:"gte=0"`
}
