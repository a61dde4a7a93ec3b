package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"stackctl/internal/backup"
	"stackctl/internal/config"
	"stackctl/internal/engine"
	"stackctl/internal/gate"
	"stackctl/internal/graph"
	"stackctl/internal/kube"
	"stackctl/internal/plan"
	"stackctl/internal/variables"
	"stackctl/internal/workspace"

	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var desiredResources = []string{
	"module.network.aws_vpc.main",
	"module.cluster.aws_eks_cluster.this",
	"module.database.aws_db_instance.main",
	"module.observability.aws_cloudwatch_dashboard.main",
}

func testNodes() []graph.Node {
	return []graph.Node{
		{ID: "network"},
		{ID: "cluster", DependsOn: []string{"network"}},
		{ID: "database", DependsOn: []string{"network"}},
		{ID: "observability", DependsOn: []string{"cluster"}},
	}
}

type appliedPlan struct {
	Kind    plan.Kind
	Targets []string
	Changes []plan.ResourceChange
}

// fakeEngine keeps a set of live resource addresses. Apply plans create the
// desired resources that are missing; destroy plans delete live resources,
// restricted to the requested targets.
type fakeEngine struct {
	mu          sync.Mutex
	desired     []string
	live        map[string]bool
	initialized bool
	outputs     map[string]engine.Output

	initErr     error
	validateErr error
	planErr     error
	applyErr    error
	outputsErr  error

	// onPlan runs before a plan is computed.
	onPlan func(req engine.PlanRequest)

	plans   []engine.PlanRequest
	applies []appliedPlan
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		desired: desiredResources,
		live:    map[string]bool{},
		outputs: map[string]engine.Output{
			"cluster_name":        {Value: "staging-eks"},
			"cluster_endpoint":    {Value: "https://ABC.gr7.eu-west-1.eks.amazonaws.com"},
			"db_endpoint":         {Value: "staging-db.internal:5432"},
			"cache_endpoint":      {Value: "staging-cache.internal:6379", Sensitive: true},
			"distribution_domain": {Value: "d111111abcdef8.cloudfront.net"},
		},
	}
}

func (e *fakeEngine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

func (e *fakeEngine) Init(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initErr != nil {
		return e.initErr
	}
	e.initialized = true
	return nil
}

func (e *fakeEngine) Validate(context.Context) error { return e.validateErr }

func (e *fakeEngine) Plan(_ context.Context, req engine.PlanRequest) (*plan.Plan, error) {
	if e.onPlan != nil {
		e.onPlan(req)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plans = append(e.plans, req)
	if e.planErr != nil {
		return nil, e.planErr
	}

	kind := plan.KindApply
	var changes []plan.ResourceChange
	if req.Destroy {
		kind = plan.KindDestroy
		for _, addr := range e.liveLocked() {
			if targeted(addr, req.Targets) {
				changes = append(changes, plan.ResourceChange{Address: addr, Action: plan.ActionDelete})
			}
		}
	} else {
		for _, addr := range e.desired {
			action := plan.ActionNoop
			if !e.live[addr] {
				action = plan.ActionCreate
			}
			changes = append(changes, plan.ResourceChange{Address: addr, Action: action})
		}
	}

	if err := os.WriteFile(req.Out, []byte(fmt.Sprintf("%s %v", kind, changes)), 0o600); err != nil {
		return nil, err
	}
	return plan.New(kind, req.Out, changes, req.Targets)
}

func (e *fakeEngine) Apply(_ context.Context, p *plan.Plan) error {
	if !p.Consumed() {
		return errors.New("refusing to apply a plan that was not consumed")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applies = append(e.applies, appliedPlan{Kind: p.Kind, Targets: p.Targets, Changes: p.Changes})
	if e.applyErr != nil {
		return e.applyErr
	}
	for _, c := range p.Changes {
		switch c.Action {
		case plan.ActionCreate:
			e.live[c.Address] = true
		case plan.ActionDelete:
			delete(e.live, c.Address)
		}
	}
	return nil
}

func (e *fakeEngine) Outputs(context.Context) (map[string]engine.Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.outputsErr != nil {
		return nil, e.outputsErr
	}
	if len(e.live) == 0 {
		return nil, engine.ErrNoOutputs
	}
	return e.outputs, nil
}

func (e *fakeEngine) addLive(addrs ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range addrs {
		e.live[a] = true
	}
}

func (e *fakeEngine) liveResources() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveLocked()
}

func (e *fakeEngine) liveLocked() []string {
	out := make([]string, 0, len(e.live))
	for a := range e.live {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (e *fakeEngine) appliedPlans() []appliedPlan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]appliedPlan(nil), e.applies...)
}

func (e *fakeEngine) planRequests() []engine.PlanRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.PlanRequest(nil), e.plans...)
}

func targeted(addr string, targets []string) bool {
	if len(targets) == 0 {
		return true
	}
	for _, t := range targets {
		if addr == t || strings.HasPrefix(addr, t+".") || strings.HasPrefix(addr, t+"[") {
			return true
		}
	}
	return false
}

// fakePlane is an in-memory control plane that records mutating calls.
type fakePlane struct {
	mu        sync.Mutex
	objects   map[kube.ObjectRef]*unstructured.Unstructured
	mutations []string

	applyErr  map[string]error // by kind
	deleteErr map[string]error // by kind
	listErr   error
	rollout   func(ref kube.ObjectRef) kube.RolloutStatus
}

func newFakePlane() *fakePlane {
	return &fakePlane{
		objects:   map[kube.ObjectRef]*unstructured.Unstructured{},
		applyErr:  map[string]error{},
		deleteErr: map[string]error{},
	}
}

func (p *fakePlane) Apply(_ context.Context, obj *unstructured.Unstructured) (kube.ApplyResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ref := kube.RefFor(obj)
	p.mutations = append(p.mutations, "apply "+ref.String())
	if err := p.applyErr[ref.GVK.Kind]; err != nil {
		return "", err
	}
	_, existed := p.objects[ref]
	p.objects[ref] = obj.DeepCopy()
	if existed {
		return kube.Configured, nil
	}
	return kube.Created, nil
}

func (p *fakePlane) Get(_ context.Context, ref kube.ObjectRef) (*unstructured.Unstructured, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	obj, ok := p.objects[ref]
	if !ok {
		return nil, apierrors.NewNotFound(schema.GroupResource{Group: ref.GVK.Group, Resource: strings.ToLower(ref.GVK.Kind) + "s"}, ref.Name)
	}
	return obj.DeepCopy(), nil
}

func (p *fakePlane) Delete(_ context.Context, ref kube.ObjectRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mutations = append(p.mutations, "delete "+ref.String())
	if err := p.deleteErr[ref.GVK.Kind]; err != nil {
		return err
	}
	delete(p.objects, ref)
	if ref.GVK.Kind == "Namespace" {
		for r := range p.objects {
			if r.Namespace == ref.Name {
				delete(p.objects, r)
			}
		}
	}
	return nil
}

func (p *fakePlane) RolloutStatus(_ context.Context, ref kube.ObjectRef) (kube.RolloutStatus, error) {
	p.mu.Lock()
	_, ok := p.objects[ref]
	rollout := p.rollout
	p.mu.Unlock()
	if !ok {
		return kube.RolloutStatus{}, apierrors.NewNotFound(schema.GroupResource{Resource: strings.ToLower(ref.GVK.Kind) + "s"}, ref.Name)
	}
	if rollout != nil {
		return rollout(ref), nil
	}
	return kube.RolloutStatus{Done: true, Message: "rolled out"}, nil
}

func (p *fakePlane) List(_ context.Context, gvr schema.GroupVersionResource, namespace string) ([]unstructured.Unstructured, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	var out []unstructured.Unstructured
	for ref, obj := range p.objects {
		if ref.Namespace == namespace && ref.GVK.Group == gvr.Group && strings.ToLower(ref.GVK.Kind)+"s" == gvr.Resource {
			out = append(out, *obj.DeepCopy())
		}
	}
	return out, nil
}

func (p *fakePlane) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.mutations...)
}

func (p *fakePlane) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mutations = nil
}

func (p *fakePlane) has(ref kube.ObjectRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.objects[ref]
	return ok
}

// fakeConnector hands out a handle on the fake plane.
type fakeConnector struct {
	mu    sync.Mutex
	plane *fakePlane
	err   error
	refs  []kube.ClusterRef
}

func (c *fakeConnector) Connect(_ context.Context, ref kube.ClusterRef) (*kube.ClusterHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs = append(c.refs, ref)
	if c.err != nil {
		return nil, c.err
	}
	return &kube.ClusterHandle{
		Name:       ref.Name,
		Endpoint:   ref.Endpoint,
		Context:    "stackctl-staging",
		Kubeconfig: "/tmp/kubeconfig",
		Version:    "v1.30.2",
		Nodes:      kube.NodeHealth{ReadyNodes: 3, TotalNodes: 3, Provider: "aws"},
		API:        c.plane,
	}, nil
}

func (c *fakeConnector) calls() []kube.ClusterRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]kube.ClusterRef(nil), c.refs...)
}

// fakePrompter answers per gate and records what it was asked. Gates
// without an answer are rejected.
type fakePrompter struct {
	mu      sync.Mutex
	answers map[gate.ID]bool
	asked   []gate.ID
	onAsk   func(req gate.Request)
}

func approveAll() *fakePrompter {
	return &fakePrompter{answers: map[gate.ID]bool{gate.Apply: true, gate.NamespaceDelete: true, gate.Destroy: true}}
}

func (p *fakePrompter) Confirm(_ context.Context, req gate.Request) (bool, error) {
	p.mu.Lock()
	p.asked = append(p.asked, req.Gate)
	ok := p.answers[req.Gate]
	onAsk := p.onAsk
	p.mu.Unlock()
	if onAsk != nil {
		onAsk(req)
	}
	return ok, nil
}

func (p *fakePrompter) gates() []gate.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gate.ID(nil), p.asked...)
}

type prereqFunc func(ctx context.Context) error

func (f prereqFunc) Check(ctx context.Context) error { return f(ctx) }

type failingStore struct{}

func (failingStore) Write(name string, _ []byte) (string, error) {
	return "", fmt.Errorf("write %s: no space left on device", name)
}

const tfvars = `environment = "staging"
region      = "eu-west-1"
min_nodes   = 1
max_nodes   = 3
`

const (
	namespaceYAML = `apiVersion: v1
kind: Namespace
metadata:
  name: app
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: settings
  namespace: app
data:
  LOG_LEVEL: info
`
	deploymentYAML = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: app
spec:
  replicas: 2
`
	serviceYAML = `apiVersion: v1
kind: Service
metadata:
  name: web
  namespace: app
`
	ingressYAML = `apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: web
  namespace: app
`
	monitoringYAML = `apiVersion: v1
kind: Namespace
metadata:
  name: monitoring
---
apiVersion: apps/v1
kind: DaemonSet
metadata:
  name: collector
  namespace: monitoring
`
	dashboardYAML = `apiVersion: v1
kind: ConfigMap
metadata:
  name: overview-dashboard
  namespace: monitoring
`
)

var (
	webRef       = kube.ObjectRef{GVK: schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"}, Namespace: "app", Name: "web"}
	collectorRef = kube.ObjectRef{GVK: schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "DaemonSet"}, Namespace: "monitoring", Name: "collector"}
)

// harness wires an Orchestrator over the fakes above and real plan,
// workspace, graph, gate and backup components.
type harness struct {
	t         *testing.T
	engine    *fakeEngine
	plane     *fakePlane
	connector *fakeConnector
	prompter  *fakePrompter
	out       *bytes.Buffer
	dir       string
	backupDir string
	removed   []string
	opts      Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	manifests := filepath.Join(dir, "k8s")
	require.NoError(t, os.MkdirAll(manifests, 0o755))
	for name, body := range map[string]string{
		"namespace.yaml":  namespaceYAML,
		"deployment.yaml": deploymentYAML,
		"service.yaml":    serviceYAML,
		"ingress.yaml":    ingressYAML,
		"monitoring.yaml": monitoringYAML,
		"dashboard.yaml":  dashboardYAML,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(manifests, name), []byte(body), 0o644))
	}
	varsFile := filepath.Join(dir, "terraform.tfvars")
	require.NoError(t, os.WriteFile(varsFile, []byte(tfvars), 0o644))
	require.NoError(t, os.WriteFile(varsFile+".example", []byte(tfvars), 0o644))

	g, err := graph.Build(testNodes())
	require.NoError(t, err)

	h := &harness{
		t:         t,
		engine:    newFakeEngine(),
		plane:     newFakePlane(),
		prompter:  approveAll(),
		out:       &bytes.Buffer{},
		dir:       dir,
		backupDir: filepath.Join(dir, "backups"),
	}
	h.connector = &fakeConnector{plane: h.plane}

	backupResources, err := backup.ParseResources([]string{"v1/configmaps", "apps/v1/deployments", "apps/v1/daemonsets"})
	require.NoError(t, err)

	h.opts = Options{
		Environment:   "staging",
		Out:           h.out,
		Graph:         g,
		Engine:        h.engine,
		Prerequisites: prereqFunc(func(context.Context) error { return nil }),
		Workspace:     &workspace.Workspace{Engine: h.engine, VarsFile: varsFile, VarsTemplate: varsFile + ".example"},
		Gate:          &gate.Gate{Prompter: h.prompter},
		Connector:     h.connector,
		VariableRules: variables.Rules{
			Required: []string{"environment", "region"},
			Bounds:   []variables.Bound{{Min: "min_nodes", Max: "max_nodes"}},
		},
		RegionVariable:  "region",
		PlanFile:        filepath.Join(dir, "stackctl.tfplan"),
		DestroyPlanFile: filepath.Join(dir, "stackctl-destroy.tfplan"),
		Outputs: config.OutputMapping{
			ClusterName:        "cluster_name",
			ClusterEndpoint:    "cluster_endpoint",
			DatabaseEndpoint:   "db_endpoint",
			CacheEndpoint:      "cache_endpoint",
			DistributionDomain: "distribution_domain",
		},
		ClusterNode:            "cluster",
		ManifestsDir:           manifests,
		Namespaces:             []string{"app", "monitoring"},
		CoreTimeout:            150 * time.Millisecond,
		AuxiliaryTimeout:       100 * time.Millisecond,
		PollInterval:           5 * time.Millisecond,
		NamespaceDeleteTimeout: 100 * time.Millisecond,
		BackupStore:            &backup.DirStore{Dir: filepath.Join(dir, "backups")},
		BackupResources:        backupResources,
		BackupConcurrency:      2,
		RemoveContext: func(kubeconfig, name string) error {
			h.removed = append(h.removed, name)
			return nil
		},
		Now: func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	return h
}

func (h *harness) orchestrator() *Orchestrator {
	return New(h.opts)
}

// provisioned runs a successful provision and clears the recorded calls.
func (h *harness) provisioned() {
	h.t.Helper()
	run := h.orchestrator().Provision(context.Background())
	require.NoError(h.t, run.Err)
	h.engine.mu.Lock()
	h.engine.applies = nil
	h.engine.plans = nil
	h.engine.mu.Unlock()
	h.plane.reset()
	h.prompter.mu.Lock()
	h.prompter.asked = nil
	h.prompter.mu.Unlock()
	h.out.Reset()
}

func (h *harness) backupFiles() []string {
	entries, err := os.ReadDir(h.backupDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}
