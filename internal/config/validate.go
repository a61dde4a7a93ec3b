package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg StackctlConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Graph))
	for _, n := range cfg.Graph {
		if seen[n.Name] {
			return fmt.Errorf("invalid configuration: graph node %q declared twice", n.Name)
		}
		seen[n.Name] = true
	}
	if len(cfg.Graph) > 0 && !seen[cfg.Cluster.Node] {
		return fmt.Errorf("invalid configuration: cluster.node %q is not a graph node", cfg.Cluster.Node)
	}
	for stage := range cfg.Kubernetes.Manifests {
		if !knownStage(stage) {
			return fmt.Errorf("invalid configuration: unknown manifest stage %q", stage)
		}
	}
	return nil
}

// ManifestStages lists the manifest stages in apply order.
var ManifestStages = []string{"namespace", "workload", "service", "ingress", "metrics", "dashboard"}

func knownStage(s string) bool {
	for _, k := range ManifestStages {
		if k == s {
			return true
		}
	}
	return false
}
