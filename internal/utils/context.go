package utils

import (
	"regexp"
	"strings"
)

// ContextPrefix is the prefix of every kubeconfig context stackctl writes.
const ContextPrefix = "stackctl-"

var invalidContextChars = regexp.MustCompile(`[^a-z0-9.-]+`)

// HasContextPrefix checks whether a context name was created by stackctl.
func HasContextPrefix(ctx string) bool {
	return strings.HasPrefix(ctx, ContextPrefix)
}

// BuildContextName returns the kubeconfig context alias for an environment,
// e.g. "Staging EU" -> "stackctl-staging-eu". An explicit alias wins.
func BuildContextName(environment, alias string) string {
	if alias != "" {
		return alias
	}
	if environment == "" {
		return ""
	}
	name := invalidContextChars.ReplaceAllString(strings.ToLower(environment), "-")
	return ContextPrefix + strings.Trim(name, "-")
}
