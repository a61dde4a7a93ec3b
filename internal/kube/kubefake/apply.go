// Package kubefake adds server-side apply handling to the client-go dynamic
// fake so code built on kube.Client can be tested without a cluster.
package kubefake

import (
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	k8stesting "k8s.io/client-go/testing"
)

// HandleApply makes apply patches create or replace the object in the fake's
// tracker. Field ownership is not modelled.
func HandleApply(dyn *dynamicfake.FakeDynamicClient) {
	dyn.PrependReactor("patch", "*", func(action k8stesting.Action) (bool, runtime.Object, error) {
		patch, ok := action.(k8stesting.PatchAction)
		if !ok || patch.GetPatchType() != types.ApplyPatchType {
			return false, nil, nil
		}
		obj := &unstructured.Unstructured{}
		if err := obj.UnmarshalJSON(patch.GetPatch()); err != nil {
			return true, nil, fmt.Errorf("invalid apply patch: %w", err)
		}

		gvr, ns := patch.GetResource(), patch.GetNamespace()
		tracker := dyn.Tracker()
		_, err := tracker.Get(gvr, ns, patch.GetName())
		switch {
		case apierrors.IsNotFound(err):
			err = tracker.Create(gvr, obj, ns)
		case err == nil:
			err = tracker.Update(gvr, obj, ns)
		}
		if err != nil {
			return true, nil, err
		}
		return true, obj, nil
	})
}

// Applied returns the resources patched with server-side apply, in order.
func Applied(dyn *dynamicfake.FakeDynamicClient) []string {
	var out []string
	for _, a := range dyn.Actions() {
		if p, ok := a.(k8stesting.PatchAction); ok && p.GetPatchType() == types.ApplyPatchType {
			out = append(out, a.GetResource().Resource)
		}
	}
	return out
}
