// Package kube connects stackctl to the compute cluster and exposes the
// control-plane API used to deploy and remove workloads.
//
// # Core Components
//
// Connector: obtains credentials for the cluster created by the resource
// graph (aws eks update-kubeconfig, or an existing kubeconfig context),
// verifies the API server answers and returns a ClusterHandle.
//
// Client: the four control-plane primitives (apply, get, delete,
// rollout-status) plus list, implemented with the dynamic client and a
// discovery-backed REST mapper so any manifest kind can be handled.
//
// Rollout evaluation follows kubectl rollout status for Deployments,
// StatefulSets and DaemonSets. A Deployment whose progress deadline has
// passed is reported as a RolloutFailedError.
//
// # Context Naming Convention
//
// Contexts written for an environment are named stackctl-{environment}
// unless an alias is configured. RemoveContext deletes the context again
// during teardown, along with its cluster and user entries when nothing else
// uses them.
//
// # Usage Example
//
//	conn := &kube.Connector{
//	    Provider:   kube.ProviderEKS,
//	    AWSBinary:  "aws",
//	    Region:     "eu-west-1",
//	    Context:    "stackctl-staging",
//	    Runner:     utils.NewExecRunner(),
//	    NewClients: kube.DefaultClientFactory("stackctl"),
//	}
//	handle, err := conn.Connect(ctx, kube.ClusterRef{Name: "acme-staging"})
//	if err != nil {
//	    return err
//	}
//	_, err = handle.API.Apply(ctx, namespace)
package kube
