package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"stackctl/internal/kube"
	"stackctl/pkg/logging"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
)

// Stage is one step of the fixed manifest order.
type Stage struct {
	Name     string
	Critical bool
}

// Stages is the fixed apply order. It is not derived from the resource graph.
var Stages = []Stage{
	{Name: "namespace", Critical: true},
	{Name: "workload", Critical: true},
	{Name: "service", Critical: true},
	{Name: "ingress", Critical: true},
	{Name: "metrics", Critical: false},
	{Name: "dashboard", Critical: false},
}

// DefaultFiles are the files read for each stage when the config does not
// name any.
var DefaultFiles = map[string][]string{
	"namespace": {"namespace.yaml"},
	"workload":  {"deployment.yaml"},
	"service":   {"service.yaml"},
	"ingress":   {"ingress.yaml"},
	"metrics":   {"monitoring.yaml"},
	"dashboard": {"dashboard.yaml"},
}

// StageObjects holds the decoded documents of one stage.
type StageObjects struct {
	Stage   Stage
	Files   []string
	Objects []*unstructured.Unstructured

	// SkipReason is set when an auxiliary stage had nothing to load.
	SkipReason string
}

// Skipped reports whether the stage has nothing to apply.
func (s StageObjects) Skipped() bool {
	return s.SkipReason != ""
}

// Set is the ordered manifest set of one provisioning run.
type Set struct {
	Stages []StageObjects
}

// MissingFileError is returned when a critical stage's file is absent.
type MissingFileError struct {
	Stage string
	Path  string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("manifest %s for stage %s does not exist", e.Path, e.Stage)
}

// Load reads every stage's files from dir. files overrides DefaultFiles per
// stage. A missing file fails a critical stage and skips an auxiliary one.
func Load(dir string, files map[string][]string) (*Set, error) {
	set := &Set{}
	for _, stage := range Stages {
		names, ok := files[stage.Name]
		if !ok {
			names = DefaultFiles[stage.Name]
		}
		so := StageObjects{Stage: stage}

		for _, name := range names {
			path := name
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, name)
			}
			objs, err := decodeFile(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					if stage.Critical {
						return nil, &MissingFileError{Stage: stage.Name, Path: path}
					}
					logging.Warn("ManifestDeployer", "Skipping %s stage: %s not found", stage.Name, path)
					so.SkipReason = fmt.Sprintf("%s not found", path)
					so.Objects = nil
					break
				}
				return nil, fmt.Errorf("stage %s: %w", stage.Name, err)
			}
			so.Files = append(so.Files, path)
			so.Objects = append(so.Objects, objs...)
		}
		if so.SkipReason == "" && len(so.Objects) == 0 {
			if stage.Critical {
				return nil, fmt.Errorf("stage %s has no manifests", stage.Name)
			}
			so.SkipReason = "no manifests"
		}
		set.Stages = append(set.Stages, so)
	}
	return set, nil
}

func decodeFile(path string) ([]*unstructured.Unstructured, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	objs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return objs, nil
}

// Decode reads a multi-document YAML or JSON stream. Empty documents are
// ignored and List kinds are flattened.
func Decode(r io.Reader) ([]*unstructured.Unstructured, error) {
	dec := utilyaml.NewYAMLOrJSONDecoder(r, 4096)
	var out []*unstructured.Unstructured
	for i := 0; ; i++ {
		var raw runtime.RawExtension
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		doc := bytes.TrimSpace(raw.Raw)
		if len(doc) == 0 || bytes.Equal(doc, []byte("null")) {
			continue
		}

		obj, _, err := unstructured.UnstructuredJSONScheme.Decode(doc, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		switch o := obj.(type) {
		case *unstructured.UnstructuredList:
			for j := range o.Items {
				item := o.Items[j]
				if err := checkObject(&item); err != nil {
					return nil, fmt.Errorf("document %d item %d: %w", i, j, err)
				}
				out = append(out, &item)
			}
		case *unstructured.Unstructured:
			if err := checkObject(o); err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			out = append(out, o)
		default:
			return nil, fmt.Errorf("document %d: unexpected type %T", i, obj)
		}
	}
}

func checkObject(u *unstructured.Unstructured) error {
	switch {
	case u.GetAPIVersion() == "":
		return errors.New("apiVersion is not set")
	case u.GetKind() == "":
		return errors.New("kind is not set")
	case u.GetName() == "":
		return fmt.Errorf("%s has no metadata.name", u.GetKind())
	}
	return nil
}

// Target is a workload whose rollout is awaited after deployment.
type Target struct {
	Ref      kube.ObjectRef
	Stage    string
	Critical bool
}

var rolloutKinds = map[string]bool{"Deployment": true, "StatefulSet": true, "DaemonSet": true}

// Workloads lists the rollout targets in stage order.
func (s *Set) Workloads() []Target {
	var targets []Target
	for _, st := range s.Stages {
		for _, obj := range st.Objects {
			gvk := obj.GroupVersionKind()
			if gvk.Group != "apps" || !rolloutKinds[gvk.Kind] {
				continue
			}
			ref := kube.RefFor(obj)
			if ref.Namespace == "" {
				ref.Namespace = "default"
			}
			targets = append(targets, Target{Ref: ref, Stage: st.Stage.Name, Critical: st.Stage.Critical})
		}
	}
	return targets
}

// Namespaces returns the Namespace objects declared by the set.
func (s *Set) Namespaces() []string {
	var names []string
	for _, st := range s.Stages {
		for _, obj := range st.Objects {
			if obj.GetKind() == "Namespace" && obj.GroupVersionKind().Group == "" {
				names = append(names, obj.GetName())
			}
		}
	}
	return names
}

// Count returns the number of objects in the set.
func (s *Set) Count() int {
	n := 0
	for _, st := range s.Stages {
		n += len(st.Objects)
	}
	return n
}
