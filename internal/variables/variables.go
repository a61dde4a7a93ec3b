// Package variables reads the key-value configuration input consumed by the
// resource graph (a terraform.tfvars file) and checks it before planning.
package variables

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Set is a parsed variable file.
type Set struct {
	Path   string
	values map[string]cty.Value
	ranges map[string]hcl.Range
}

// Load parses the variable file at path.
func Load(path string) (*Set, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(src, path)
}

// Parse decodes HCL attribute syntax. Blocks and expressions that reference
// other values are rejected, as they are in a tfvars file.
func Parse(src []byte, filename string) (*Set, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse variable file %s: %w", filename, diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode variable file %s: %w", filename, diags)
	}

	set := &Set{
		Path:   filename,
		values: make(map[string]cty.Value, len(attrs)),
		ranges: make(map[string]hcl.Range, len(attrs)),
	}
	for name, attr := range attrs {
		val, valDiags := attr.Expr.Value(nil)
		if valDiags.HasErrors() {
			return nil, fmt.Errorf("invalid value for %q in %s: %w", name, filename, valDiags)
		}
		set.values[name] = val
		set.ranges[name] = attr.Range
	}
	return set, nil
}

// Names returns the variable names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.values))
	for n := range s.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the raw value of a variable.
func (s *Set) Get(name string) (cty.Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// String returns a primitive variable rendered as a string.
func (s *Set) String(name string) (string, bool) {
	v, ok := s.values[name]
	if !ok || v.IsNull() || !v.IsKnown() {
		return "", false
	}
	sv, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", false
	}
	return sv.AsString(), true
}

// Bound names two numeric variables that must satisfy min <= max.
type Bound struct {
	Min string
	Max string
}

// Rules are the semantic checks applied before planning.
type Rules struct {
	Required []string
	Bounds   []Bound
}

// ValidationError lists every problem found in one pass.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("variable file %s is invalid: %s", e.Path, strings.Join(e.Problems, "; "))
}

// Validate applies rules to the set.
func (s *Set) Validate(r Rules) error {
	var problems []string
	for _, name := range r.Required {
		v, ok := s.values[name]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%s is required", name))
		case v.IsNull():
			problems = append(problems, fmt.Sprintf("%s must not be null", name))
		case v.Type() == cty.String && strings.TrimSpace(v.AsString()) == "":
			problems = append(problems, fmt.Sprintf("%s must not be empty", name))
		}
	}

	for _, b := range r.Bounds {
		minV, minOK := s.values[b.Min]
		maxV, maxOK := s.values[b.Max]
		if !minOK || !maxOK {
			continue
		}
		if minV.Type() != cty.Number || maxV.Type() != cty.Number || minV.IsNull() || maxV.IsNull() {
			problems = append(problems, fmt.Sprintf("%s and %s must be numbers", b.Min, b.Max))
			continue
		}
		if minV.AsBigFloat().Cmp(maxV.AsBigFloat()) > 0 {
			problems = append(problems, fmt.Sprintf("%s (%s) must not exceed %s (%s)",
				b.Min, minV.AsBigFloat().Text('f', -1), b.Max, maxV.AsBigFloat().Text('f', -1)))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Path: s.Path, Problems: problems}
	}
	return nil
}
