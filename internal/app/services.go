package app

import (
	"fmt"
	"os"
	"path/filepath"

	"stackctl/internal/backup"
	"stackctl/internal/config"
	"stackctl/internal/engine"
	"stackctl/internal/gate"
	"stackctl/internal/graph"
	"stackctl/internal/kube"
	"stackctl/internal/orchestrator"
	"stackctl/internal/prereq"
	"stackctl/internal/reporting"
	"stackctl/internal/utils"
	"stackctl/internal/variables"
	"stackctl/internal/workspace"
)

// Services holds the wired components of one invocation.
type Services struct {
	Orchestrator *orchestrator.Orchestrator
	Options      orchestrator.Options
	Engine       *engine.Terraform
	Connector    *kube.Connector
	Gate         *gate.Gate
}

// InitializeServices builds the orchestrator from the loaded configuration.
// Relative paths are resolved against the work directory.
func InitializeServices(cfg *Config) (*Services, error) {
	if cfg.StackctlConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	c := *cfg.StackctlConfig

	workDir, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work directory %s: %w", c.WorkDir, err)
	}
	under := func(base, p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	tfDir := under(workDir, c.Terraform.Dir)
	varsFile := under(tfDir, c.Terraform.VarsFile)

	nodes := make([]graph.Node, 0, len(c.Graph))
	for _, n := range c.Graph {
		nodes = append(nodes, graph.Node{ID: n.Name, Module: n.Module, DependsOn: n.DependsOn})
	}
	g, err := graph.Build(nodes)
	if err != nil {
		return nil, fmt.Errorf("invalid resource graph: %w", err)
	}

	backupResources, err := backup.ParseResources(c.Backup.Resources)
	if err != nil {
		return nil, err
	}

	tf := engine.NewTerraform(c.Terraform.Binary, tfDir, varsFile, c.Terraform.Parallelism)
	runner := utils.NewExecRunner()

	connector := newConnector(c, runner)
	gt := &gate.Gate{
		Tokens:   gate.NewTokens(cfg.AutoApprove, cfg.Approvals...),
		Prompter: gate.DefaultPrompter(cfg.NonInteractive),
	}

	bounds := make([]variables.Bound, 0, len(c.Terraform.ScalingBounds))
	for _, b := range c.Terraform.ScalingBounds {
		bounds = append(bounds, variables.Bound{Min: b.Min, Max: b.Max})
	}

	opts := orchestrator.Options{
		Environment: c.Environment,
		Out:         os.Stdout,
		Reporter:    reporting.NewConsoleReporter(os.Stderr),

		Graph:         g,
		Engine:        tf,
		Prerequisites: &prereq.Checker{Tools: c.Prerequisites.Tools, CredentialCommand: c.Prerequisites.CredentialCommand, Runner: runner},
		Workspace:     &workspace.Workspace{Engine: tf, VarsFile: varsFile, VarsTemplate: under(tfDir, c.Terraform.VarsTemplate)},
		Gate:          gt,
		Connector:     connector,

		VariableRules:   variables.Rules{Required: c.Terraform.RequiredVariables, Bounds: bounds},
		RegionVariable:  c.Cluster.RegionVariable,
		PlanFile:        under(tfDir, c.Terraform.PlanFile),
		DestroyPlanFile: under(tfDir, c.Terraform.DestroyPlanFile),

		Outputs:     c.Outputs,
		ClusterNode: c.Cluster.Node,

		ManifestsDir:  under(workDir, c.Kubernetes.ManifestsDir),
		ManifestFiles: c.Kubernetes.Manifests,
		Namespaces:    c.Kubernetes.Namespaces,

		CoreTimeout:            c.Rollout.CoreTimeout,
		AuxiliaryTimeout:       c.Rollout.AuxiliaryTimeout,
		PollInterval:           c.Rollout.PollInterval,
		NamespaceDeleteTimeout: c.Kubernetes.NamespaceDeleteTimeout,

		BackupStore:          backup.DirStore{Dir: under(workDir, c.Backup.Dir)},
		BackupResources:      backupResources,
		BackupIncludeSecrets: c.Backup.IncludeSecrets,
		BackupConcurrency:    c.Backup.Concurrency,
	}
	// Only contexts stackctl wrote itself are removed after teardown.
	if c.Cluster.Provider == config.ClusterProviderEKS && utils.HasContextPrefix(connector.Context) {
		opts.RemoveContext = kube.RemoveContext
	}

	return &Services{
		Orchestrator: orchestrator.New(opts),
		Options:      opts,
		Engine:       tf,
		Connector:    connector,
		Gate:         gt,
	}, nil
}

func newConnector(c config.StackctlConfig, runner utils.Runner) *kube.Connector {
	conn := &kube.Connector{
		Provider:   kube.Provider(c.Cluster.Provider),
		AWSBinary:  c.Cluster.AWSBinary,
		Kubeconfig: c.Cluster.Kubeconfig,
		Timeout:    c.Cluster.ConnectTimeout,
		Runner:     runner,
		NewClients: kube.DefaultClientFactory(c.Kubernetes.FieldManager),
	}
	if c.Cluster.Provider == config.ClusterProviderEKS {
		conn.Context = utils.BuildContextName(c.Environment, c.Cluster.ContextAlias)
	} else {
		conn.Context = c.Cluster.ContextAlias
	}
	return conn
}
