package backup

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
	"time"

	"stackctl/internal/kube"
	"stackctl/pkg/logging"

	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/yaml"
)

// TimestampFormat is used in artifact names.
const TimestampFormat = "20060102T150405Z"

const defaultConcurrency = 4

var secretsGVR = schema.GroupVersionResource{Version: "v1", Resource: "secrets"}

// Store persists backup artifacts.
type Store interface {
	Write(name string, data []byte) (string, error)
}

// DirStore writes artifacts into a directory.
type DirStore struct {
	Dir string
}

// Write stores data under name and returns the final path. The file appears
// atomically.
func (s DirStore) Write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	path := filepath.Join(s.Dir, name)
	tmp, err := os.CreateTemp(s.Dir, "."+name+".*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// ParseResources parses group/version/resource strings such as
// apps/v1/deployments or v1/configmaps.
func ParseResources(specs []string) ([]schema.GroupVersionResource, error) {
	out := make([]schema.GroupVersionResource, 0, len(specs))
	for _, s := range specs {
		parts := strings.Split(s, "/")
		switch len(parts) {
		case 2:
			out = append(out, schema.GroupVersionResource{Version: parts[0], Resource: parts[1]})
		case 3:
			out = append(out, schema.GroupVersionResource{Group: parts[0], Version: parts[1], Resource: parts[2]})
		default:
			return nil, fmt.Errorf("invalid backup resource %q, want [group/]version/resource", s)
		}
	}
	return out, nil
}

// Artifact is one written snapshot.
type Artifact struct {
	Namespace string
	Path      string
	Objects   int
}

// Agent is the TeardownBackupAgent.
type Agent struct {
	API            kube.ControlPlane
	Store          Store
	Environment    string
	Resources      []schema.GroupVersionResource
	IncludeSecrets bool
	Concurrency    int
	Now            func() time.Time
}

// Backup snapshots each namespace to its own artifact. It keeps going after a
// failure and returns every failure joined; callers treat the error as a
// warning.
func (a *Agent) Backup(ctx context.Context, namespaces []string) ([]Artifact, error) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	stamp := now().UTC().Format(TimestampFormat)

	var artifacts []Artifact
	var errs []error
	for _, ns := range namespaces {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		art, err := a.backupNamespace(ctx, ns, stamp)
		if err != nil {
			logging.Warn("BackupAgent", "Backup of namespace %s failed: %v", ns, err)
			errs = append(errs, fmt.Errorf("namespace %s: %w", ns, err))
			continue
		}
		logging.Info("BackupAgent", "Wrote %d objects from %s to %s", art.Objects, ns, art.Path)
		artifacts = append(artifacts, art)
	}
	return artifacts, errors.Join(errs...)
}

func (a *Agent) backupNamespace(ctx context.Context, ns, stamp string) (Artifact, error) {
	objs, err := a.collect(ctx, ns)
	if err != nil {
		return Artifact{}, err
	}
	data, err := Serialize(objs)
	if err != nil {
		return Artifact{}, err
	}
	name := fmt.Sprintf("%s-%s-%s.yaml", a.Environment, ns, stamp)
	path, err := a.Store.Write(name, data)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to write %s: %w", name, err)
	}
	return Artifact{Namespace: ns, Path: path, Objects: len(objs)}, nil
}

func (a *Agent) collect(ctx context.Context, ns string) ([]unstructured.Unstructured, error) {
	limit := a.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	var objs []unstructured.Unstructured
	for _, gvr := range a.Resources {
		if gvr == secretsGVR && !a.IncludeSecrets {
			continue
		}
		g.Go(func() error {
			items, err := a.API.List(gctx, gvr, ns)
			if err != nil {
				if apierrors.IsNotFound(err) || meta.IsNoMatchError(err) {
					logging.Debug("BackupAgent", "Skipping %s: %v", gvr.String(), err)
					return nil
				}
				return err
			}
			mu.Lock()
			objs = append(objs, items...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(objs, func(i, j int) bool {
		ki, kj := objs[i].GroupVersionKind().String(), objs[j].GroupVersionKind().String()
		if ki != kj {
			return ki < kj
		}
		return objs[i].GetName() < objs[j].GetName()
	})
	return objs, nil
}

// Serialize renders objects as a multi-document YAML stream with
// server-populated metadata and status removed.
func Serialize(objs []unstructured.Unstructured) ([]byte, error) {
	var buf bytes.Buffer
	for i := range objs {
		obj := objs[i].DeepCopy()
		strip(obj)
		out, err := yaml.Marshal(obj.Object)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize %s: %w", kube.RefFor(obj), err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(out)
	}
	return buf.Bytes(), nil
}

func strip(obj *unstructured.Unstructured) {
	obj.SetManagedFields(nil)
	obj.SetUID("")
	obj.SetResourceVersion("")
	obj.SetGeneration(0)
	obj.SetSelfLink("")
	unstructured.RemoveNestedField(obj.Object, "status")
	unstructured.RemoveNestedField(obj.Object, "metadata", "creationTimestamp")
}
