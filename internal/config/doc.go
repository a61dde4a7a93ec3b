// Package config provides configuration management for stackctl.
//
// Configuration is layered. Each layer is a YAML document decoded on top of
// the previous one, so a layer only overrides the keys it sets.
//
// # Configuration Layers
//
//  1. Default Configuration (embedded in binary)
//     - The seven-module application environment and its rollout timeouts
//
//  2. User Configuration (~/.config/stackctl/config.yaml)
//     - Personal overrides such as the terraform binary or kubeconfig path
//
//  3. Project Configuration (./.stackctl/config.yaml)
//     - Checked into the repository that holds the infrastructure code
//
//  4. Explicit file passed with --config
//     - Must exist when given
//
// Values may reference the environment with ${VAR} or ${VAR:-default}.
//
// # Configuration Structure
//
//	environment: staging
//	terraform:
//	  dir: infra
//	  varsFile: terraform.tfvars
//	  requiredVariables: [region, environment]
//	  scalingBounds:
//	    - {min: node_min_size, max: node_max_size}
//	graph:
//	  - name: network
//	  - name: cluster
//	    dependsOn: [network]
//	cluster:
//	  provider: eks
//	  node: cluster
//	kubernetes:
//	  manifestsDir: k8s
//	  manifests:
//	    workload: [deployment.yaml, worker.yaml]
//	rollout:
//	  coreTimeout: 5m
//	  auxiliaryTimeout: 3m
//	backup:
//	  dir: backups
//
// After loading, the merged configuration is validated with struct tags plus
// graph and manifest-stage checks.
package config
