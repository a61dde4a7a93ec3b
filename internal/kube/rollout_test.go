package kube

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

func toUnstructured(t *testing.T, obj runtime.Object, gvk string) *unstructured.Unstructured {
	t.Helper()
	m, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	require.NoError(t, err)
	u := &unstructured.Unstructured{Object: m}
	u.SetAPIVersion("apps/v1")
	u.SetKind(gvk)
	return u
}

func int32Ptr(i int32) *int32 { return &i }

func TestEvaluateRollout_Deployment(t *testing.T) {
	base := func() *appsv1.Deployment {
		return &appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "app", Generation: 2},
			Spec:       appsv1.DeploymentSpec{Replicas: int32Ptr(3)},
			Status: appsv1.DeploymentStatus{
				ObservedGeneration: 2,
				Replicas:           3,
				UpdatedReplicas:    3,
				AvailableReplicas:  3,
			},
		}
	}

	tests := []struct {
		name     string
		mutate   func(*appsv1.Deployment)
		wantDone bool
		wantMsg  string
		wantFail bool
	}{
		{name: "rolled out", mutate: func(*appsv1.Deployment) {}, wantDone: true, wantMsg: "successfully rolled out"},
		{name: "spec not observed", mutate: func(d *appsv1.Deployment) { d.Status.ObservedGeneration = 1 }, wantMsg: "spec update"},
		{name: "updating", mutate: func(d *appsv1.Deployment) { d.Status.UpdatedReplicas = 1 }, wantMsg: "1 out of 3 new replicas"},
		{name: "old pending", mutate: func(d *appsv1.Deployment) { d.Status.Replicas = 4 }, wantMsg: "1 old replicas"},
		{name: "unavailable", mutate: func(d *appsv1.Deployment) { d.Status.AvailableReplicas = 2 }, wantMsg: "2 of 3 updated replicas"},
		{
			name: "progress deadline exceeded",
			mutate: func(d *appsv1.Deployment) {
				d.Status.Conditions = []appsv1.DeploymentCondition{{Type: appsv1.DeploymentProgressing, Reason: "ProgressDeadlineExceeded"}}
			},
			wantFail: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base()
			tt.mutate(d)
			status, err := EvaluateRollout(toUnstructured(t, d, "Deployment"))
			if tt.wantFail {
				var failed *RolloutFailedError
				require.True(t, errors.As(err, &failed))
				assert.Equal(t, "web", failed.Ref.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDone, status.Done)
			assert.Contains(t, status.Message, tt.wantMsg)
		})
	}
}

func TestEvaluateRollout_StatefulSet(t *testing.T) {
	s := &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: "db", Generation: 1},
		Spec: appsv1.StatefulSetSpec{
			Replicas:       int32Ptr(2),
			UpdateStrategy: appsv1.StatefulSetUpdateStrategy{Type: appsv1.RollingUpdateStatefulSetStrategyType},
		},
		Status: appsv1.StatefulSetStatus{ObservedGeneration: 1, ReadyReplicas: 1, CurrentRevision: "r1", UpdateRevision: "r1"},
	}
	status, err := EvaluateRollout(toUnstructured(t, s, "StatefulSet"))
	require.NoError(t, err)
	assert.False(t, status.Done)

	s.Status.ReadyReplicas = 2
	status, err = EvaluateRollout(toUnstructured(t, s, "StatefulSet"))
	require.NoError(t, err)
	assert.True(t, status.Done)

	s.Status.UpdateRevision = "r2"
	status, err = EvaluateRollout(toUnstructured(t, s, "StatefulSet"))
	require.NoError(t, err)
	assert.False(t, status.Done)
}

func TestEvaluateRollout_DaemonSet(t *testing.T) {
	ds := &appsv1.DaemonSet{
		ObjectMeta: metav1.ObjectMeta{Name: "agent", Generation: 1},
		Spec:       appsv1.DaemonSetSpec{UpdateStrategy: appsv1.DaemonSetUpdateStrategy{Type: appsv1.RollingUpdateDaemonSetStrategyType}},
		Status:     appsv1.DaemonSetStatus{ObservedGeneration: 1, DesiredNumberScheduled: 3, UpdatedNumberScheduled: 3, NumberAvailable: 2},
	}
	status, err := EvaluateRollout(toUnstructured(t, ds, "DaemonSet"))
	require.NoError(t, err)
	assert.False(t, status.Done)
	assert.Contains(t, status.Message, "2 of 3")

	ds.Status.NumberAvailable = 3
	status, err = EvaluateRollout(toUnstructured(t, ds, "DaemonSet"))
	require.NoError(t, err)
	assert.True(t, status.Done)
}

func TestEvaluateRollout_OtherKindsAreDone(t *testing.T) {
	u := newObject(configMapGVK, "app", "settings")
	status, err := EvaluateRollout(u)
	require.NoError(t, err)
	assert.True(t, status.Done)
}
