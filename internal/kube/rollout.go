package kube

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// RolloutStatus is the result of one rollout check.
type RolloutStatus struct {
	Done    bool
	Message string
}

// RolloutFailedError is a rollout that cannot succeed without intervention.
type RolloutFailedError struct {
	Ref    ObjectRef
	Reason string
}

func (e *RolloutFailedError) Error() string {
	return fmt.Sprintf("rollout of %s failed: %s", e.Ref, e.Reason)
}

// timedOutReason is set on the Progressing condition by the deployment
// controller once progressDeadlineSeconds has passed.
const timedOutReason = "ProgressDeadlineExceeded"

// EvaluateRollout applies kubectl's rollout status rules to a Deployment,
// StatefulSet or DaemonSet. Other kinds are done as soon as they exist.
func EvaluateRollout(obj *unstructured.Unstructured) (RolloutStatus, error) {
	switch obj.GroupVersionKind().GroupKind() {
	case appsv1.SchemeGroupVersion.WithKind("Deployment").GroupKind():
		d := &appsv1.Deployment{}
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, d); err != nil {
			return RolloutStatus{}, err
		}
		return deploymentStatus(d)
	case appsv1.SchemeGroupVersion.WithKind("StatefulSet").GroupKind():
		s := &appsv1.StatefulSet{}
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, s); err != nil {
			return RolloutStatus{}, err
		}
		return statefulSetStatus(s), nil
	case appsv1.SchemeGroupVersion.WithKind("DaemonSet").GroupKind():
		ds := &appsv1.DaemonSet{}
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, ds); err != nil {
			return RolloutStatus{}, err
		}
		return daemonSetStatus(ds), nil
	default:
		return RolloutStatus{Done: true, Message: fmt.Sprintf("%s exists", RefFor(obj))}, nil
	}
}

func deploymentStatus(d *appsv1.Deployment) (RolloutStatus, error) {
	if d.Generation > d.Status.ObservedGeneration {
		return RolloutStatus{Message: "waiting for deployment spec update to be observed"}, nil
	}
	for _, c := range d.Status.Conditions {
		if c.Type == appsv1.DeploymentProgressing && c.Reason == timedOutReason {
			ref := ObjectRef{GVK: appsv1.SchemeGroupVersion.WithKind("Deployment"), Namespace: d.Namespace, Name: d.Name}
			return RolloutStatus{}, &RolloutFailedError{Ref: ref, Reason: "exceeded its progress deadline"}
		}
	}
	if d.Spec.Replicas != nil && d.Status.UpdatedReplicas < *d.Spec.Replicas {
		return RolloutStatus{Message: fmt.Sprintf("%d out of %d new replicas have been updated", d.Status.UpdatedReplicas, *d.Spec.Replicas)}, nil
	}
	if d.Status.Replicas > d.Status.UpdatedReplicas {
		return RolloutStatus{Message: fmt.Sprintf("%d old replicas are pending termination", d.Status.Replicas-d.Status.UpdatedReplicas)}, nil
	}
	if d.Status.AvailableReplicas < d.Status.UpdatedReplicas {
		return RolloutStatus{Message: fmt.Sprintf("%d of %d updated replicas are available", d.Status.AvailableReplicas, d.Status.UpdatedReplicas)}, nil
	}
	return RolloutStatus{Done: true, Message: fmt.Sprintf("deployment %q successfully rolled out", d.Name)}, nil
}

func statefulSetStatus(s *appsv1.StatefulSet) RolloutStatus {
	if s.Spec.UpdateStrategy.Type != appsv1.RollingUpdateStatefulSetStrategyType {
		return RolloutStatus{Done: true, Message: fmt.Sprintf("statefulset %q uses %s updates, not checked", s.Name, s.Spec.UpdateStrategy.Type)}
	}
	if s.Status.ObservedGeneration == 0 || s.Generation > s.Status.ObservedGeneration {
		return RolloutStatus{Message: "waiting for statefulset spec update to be observed"}
	}
	if s.Spec.Replicas != nil && s.Status.ReadyReplicas < *s.Spec.Replicas {
		return RolloutStatus{Message: fmt.Sprintf("%d of %d pods are ready", s.Status.ReadyReplicas, *s.Spec.Replicas)}
	}
	if ru := s.Spec.UpdateStrategy.RollingUpdate; ru != nil && ru.Partition != nil && *ru.Partition > 0 && s.Spec.Replicas != nil {
		if s.Status.UpdatedReplicas < *s.Spec.Replicas-*ru.Partition {
			return RolloutStatus{Message: fmt.Sprintf("%d of %d partitioned pods have been updated", s.Status.UpdatedReplicas, *s.Spec.Replicas-*ru.Partition)}
		}
		return RolloutStatus{Done: true, Message: fmt.Sprintf("partitioned roll out complete: %d new pods", s.Status.UpdatedReplicas)}
	}
	if s.Status.UpdateRevision != s.Status.CurrentRevision {
		return RolloutStatus{Message: fmt.Sprintf("%d pods at revision %s", s.Status.UpdatedReplicas, s.Status.UpdateRevision)}
	}
	return RolloutStatus{Done: true, Message: fmt.Sprintf("statefulset %q rolled out", s.Name)}
}

func daemonSetStatus(ds *appsv1.DaemonSet) RolloutStatus {
	if ds.Spec.UpdateStrategy.Type != appsv1.RollingUpdateDaemonSetStrategyType {
		return RolloutStatus{Done: true, Message: fmt.Sprintf("daemonset %q uses %s updates, not checked", ds.Name, ds.Spec.UpdateStrategy.Type)}
	}
	if ds.Generation > ds.Status.ObservedGeneration {
		return RolloutStatus{Message: "waiting for daemonset spec update to be observed"}
	}
	if ds.Status.UpdatedNumberScheduled < ds.Status.DesiredNumberScheduled {
		return RolloutStatus{Message: fmt.Sprintf("%d out of %d new pods have been updated", ds.Status.UpdatedNumberScheduled, ds.Status.DesiredNumberScheduled)}
	}
	if ds.Status.NumberAvailable < ds.Status.DesiredNumberScheduled {
		return RolloutStatus{Message: fmt.Sprintf("%d of %d updated pods are available", ds.Status.NumberAvailable, ds.Status.DesiredNumberScheduled)}
	}
	return RolloutStatus{Done: true, Message: fmt.Sprintf("daemonset %q successfully rolled out", ds.Name)}
}
