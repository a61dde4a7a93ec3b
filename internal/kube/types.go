package kube

// ClusterRef is what the resource graph reports about the cluster. Name and
// Endpoint are opaque strings taken from engine outputs; Region comes from
// the variable set and overrides the connector's default.
type ClusterRef struct {
	Name     string
	Endpoint string
	Region   string
}

// NodeHealth summarises node readiness at connect time.
type NodeHealth struct {
	ReadyNodes int
	TotalNodes int
	Provider   string
}

// ClusterHandle is the connection established by the ClusterConnector. It
// exists only within one run.
type ClusterHandle struct {
	Name       string
	Endpoint   string
	Context    string
	Kubeconfig string
	Version    string
	Nodes      NodeHealth
	API        ControlPlane
}
