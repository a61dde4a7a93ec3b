package kube

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
)

// ObjectRef identifies one object on the control plane.
type ObjectRef struct {
	GVK       schema.GroupVersionKind
	Namespace string
	Name      string
}

// RefFor builds the reference of an object.
func RefFor(obj *unstructured.Unstructured) ObjectRef {
	return ObjectRef{GVK: obj.GroupVersionKind(), Namespace: obj.GetNamespace(), Name: obj.GetName()}
}

func (r ObjectRef) String() string {
	if r.Namespace == "" {
		return fmt.Sprintf("%s/%s", r.GVK.Kind, r.Name)
	}
	return fmt.Sprintf("%s/%s/%s", r.GVK.Kind, r.Namespace, r.Name)
}

// ApplyResult tells whether Apply created or updated the object.
type ApplyResult string

const (
	Created    ApplyResult = "created"
	Configured ApplyResult = "configured"
)

// ControlPlane is the cluster API as the orchestrator sees it.
type ControlPlane interface {
	Apply(ctx context.Context, obj *unstructured.Unstructured) (ApplyResult, error)
	Get(ctx context.Context, ref ObjectRef) (*unstructured.Unstructured, error)
	Delete(ctx context.Context, ref ObjectRef) error
	RolloutStatus(ctx context.Context, ref ObjectRef) (RolloutStatus, error)
	List(ctx context.Context, gvr schema.GroupVersionResource, namespace string) ([]unstructured.Unstructured, error)
}

// DefaultFieldManager owns the fields stackctl applies when no other manager
// is configured.
const DefaultFieldManager = "stackctl"

// Client implements ControlPlane with the dynamic client.
type Client struct {
	dynamic      dynamic.Interface
	mapper       meta.RESTMapper
	fieldManager string
}

var _ ControlPlane = (*Client)(nil)

// NewClient creates a Client from a REST config. Discovery results are
// cached for the lifetime of the client.
func NewClient(cfg *rest.Config, fieldManager string) (*Client, error) {
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	disc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(disc))
	return NewClientWith(dyn, mapper, fieldManager), nil
}

// NewClientWith assembles a Client from existing parts.
func NewClientWith(dyn dynamic.Interface, mapper meta.RESTMapper, fieldManager string) *Client {
	return &Client{dynamic: dyn, mapper: mapper, fieldManager: fieldManager}
}

func (c *Client) resourceFor(gvk schema.GroupVersionKind, namespace string) (dynamic.ResourceInterface, error) {
	mapping, err := c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		// A CRD installed earlier in the same run is not in the cache yet.
		if resettable, ok := c.mapper.(meta.ResettableRESTMapper); ok {
			resettable.Reset()
			mapping, err = c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
		}
		if err != nil {
			return nil, fmt.Errorf("no API resource for %s: %w", gvk, err)
		}
	}
	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		if namespace == "" {
			namespace = metav1.NamespaceDefault
		}
		return c.dynamic.Resource(mapping.Resource).Namespace(namespace), nil
	}
	return c.dynamic.Resource(mapping.Resource), nil
}

// Apply server-side applies the object under the client's field manager,
// taking ownership of conflicting fields. Fields owned by other managers,
// such as replicas set by an autoscaler, are left alone.
func (c *Client) Apply(ctx context.Context, obj *unstructured.Unstructured) (ApplyResult, error) {
	ri, err := c.resourceFor(obj.GroupVersionKind(), obj.GetNamespace())
	if err != nil {
		return "", err
	}

	result := Configured
	if _, err := ri.Get(ctx, obj.GetName(), metav1.GetOptions{}); err != nil {
		if !apierrors.IsNotFound(err) {
			return "", fmt.Errorf("failed to get %s: %w", RefFor(obj), err)
		}
		result = Created
	}

	manager := c.fieldManager
	if manager == "" {
		manager = DefaultFieldManager
	}
	desired := obj.DeepCopy()
	desired.SetResourceVersion("")
	desired.SetManagedFields(nil)
	if _, err := ri.Apply(ctx, desired.GetName(), desired, metav1.ApplyOptions{FieldManager: manager, Force: true}); err != nil {
		return "", fmt.Errorf("failed to apply %s: %w", RefFor(obj), err)
	}
	return result, nil
}

// Get returns the live object.
func (c *Client) Get(ctx context.Context, ref ObjectRef) (*unstructured.Unstructured, error) {
	ri, err := c.resourceFor(ref.GVK, ref.Namespace)
	if err != nil {
		return nil, err
	}
	return ri.Get(ctx, ref.Name, metav1.GetOptions{})
}

// Delete removes the object. An object that is already gone counts as
// deleted.
func (c *Client) Delete(ctx context.Context, ref ObjectRef) error {
	ri, err := c.resourceFor(ref.GVK, ref.Namespace)
	if err != nil {
		return err
	}
	policy := metav1.DeletePropagationBackground
	err = ri.Delete(ctx, ref.Name, metav1.DeleteOptions{PropagationPolicy: &policy})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete %s: %w", ref, err)
	}
	return nil
}

// RolloutStatus reads the object and evaluates its rollout.
func (c *Client) RolloutStatus(ctx context.Context, ref ObjectRef) (RolloutStatus, error) {
	obj, err := c.Get(ctx, ref)
	if err != nil {
		return RolloutStatus{}, err
	}
	return EvaluateRollout(obj)
}

// List returns every object of a resource type in a namespace.
func (c *Client) List(ctx context.Context, gvr schema.GroupVersionResource, namespace string) ([]unstructured.Unstructured, error) {
	var ri dynamic.ResourceInterface = c.dynamic.Resource(gvr)
	if namespace != "" {
		ri = c.dynamic.Resource(gvr).Namespace(namespace)
	}
	list, err := ri.List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s in %q: %w", gvr.String(), namespace, err)
	}
	return list.Items, nil
}
