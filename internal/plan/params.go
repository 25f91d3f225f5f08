package plan

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// ErrBindingUnresolved indicates a required parameter could not be
// resolved and declared no default. It is non-retryable: the same
// context yields the same failure.
var ErrBindingUnresolved = errors.New("parameter binding unresolved")

// Transform is a pure function applied to already-resolved bindings for
// COMPUTED parameters.
type Transform func(resolved map[string]any) (any, error)

// Resolver resolves a step's declared parameter bindings into concrete
// values. Resolution is idempotent: the same bindings against an
// unchanged context always produce the same map.
type Resolver struct {
	transforms map[string]Transform
}

// NewResolver creates a resolver with the built-in transforms.
func NewResolver() *Resolver {
	r := &Resolver{transforms: make(map[string]Transform)}
	r.RegisterTransform("join", joinTransform)
	r.RegisterTransform("count", countTransform)
	return r
}

// RegisterTransform adds a named transform for COMPUTED bindings.
func (r *Resolver) RegisterTransform(name string, fn Transform) {
	r.transforms[name] = fn
}

// Resolve produces the concrete parameter map for a step. COMPUTED
// bindings run last, over the values resolved from the other sources.
// An unresolvable optional parameter is omitted; an unresolvable
// required parameter without a default fails the whole resolution.
func (r *Resolver) Resolve(bindings map[string]models.ParameterBinding, ec *ExecutionContext) (map[string]any, error) {
	resolved := make(map[string]any, len(bindings))

	// Deterministic order keeps failures stable across runs.
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	var computed []string
	for _, name := range names {
		b := bindings[name]
		if b.Source == models.SourceComputed {
			computed = append(computed, name)
			continue
		}
		value, found, err := r.resolveOne(b, ec)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		value, found = applyDefault(b, value, found)
		if !found {
			if b.Required {
				return nil, fmt.Errorf("parameter %s: %w: %s from %s", name, ErrBindingUnresolved, b.Reference, b.Source)
			}
			continue
		}
		resolved[name] = value
	}

	for _, name := range computed {
		b := bindings[name]
		fn, ok := r.transforms[b.Reference]
		if !ok {
			return nil, fmt.Errorf("parameter %s: %w: unknown transform %q", name, ErrBindingUnresolved, b.Reference)
		}
		value, err := fn(resolved)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: transform %s: %w", name, b.Reference, err)
		}
		resolved[name] = value
	}

	return resolved, nil
}

// resolveOne resolves a single non-computed binding. The found flag is
// false when the reference resolves to nothing.
func (r *Resolver) resolveOne(b models.ParameterBinding, ec *ExecutionContext) (any, bool, error) {
	switch b.Source {
	case models.SourceContext:
		return lookupPath(ec.Request.Context, b.Reference)
	case models.SourcePreviousStep:
		return r.resolvePreviousStep(b.Reference, ec)
	case models.SourceUserInput:
		return resolveUserInput(b.Reference, ec), true, nil
	case models.SourceMemory:
		return lookupPath(ec.Memory.Items, b.Reference)
	case models.SourceConstant:
		return b.Default, b.Default != nil, nil
	default:
		return nil, false, fmt.Errorf("unknown parameter source %s", b.Source)
	}
}

// resolvePreviousStep dereferences a dotted path into a recorded step
// result, e.g. "verify.result.account_number". The leading segment is
// the step ID; an optional "result" or "output" segment is accepted for
// readability.
func (r *Resolver) resolvePreviousStep(ref string, ec *ExecutionContext) (any, bool, error) {
	if ref == "" {
		return nil, false, fmt.Errorf("empty previous-step reference")
	}
	segments := strings.Split(ref, ".")
	stepID := segments[0]
	rest := segments[1:]
	if len(rest) > 0 && (rest[0] == "result" || rest[0] == "output") {
		rest = rest[1:]
	}

	res := ec.Result(stepID)
	if res == nil {
		return nil, false, nil
	}
	if len(rest) == 0 {
		if res.Output != nil {
			return res.Output, true, nil
		}
		return res.Text, true, nil
	}
	return navigate(res.Output, rest)
}

// resolveUserInput extracts verbatim values from the original request.
// An empty reference or "text" yields the raw text; otherwise the
// reference names an extracted entity.
func resolveUserInput(ref string, ec *ExecutionContext) any {
	switch ref {
	case "", "text":
		return ec.Request.Text
	case "id":
		return ec.Request.ID
	case "conversation_id":
		return ec.Request.ConversationID
	}
	for _, ent := range ec.Intent.Entities {
		if ent.Name == ref {
			return ent.Value
		}
	}
	return nil
}

// lookupPath navigates a dotted path into a map. A missing key is not
// an error, just not found.
func lookupPath(root map[string]any, ref string) (any, bool, error) {
	if ref == "" {
		return nil, false, nil
	}
	return navigate(root, strings.Split(ref, "."))
}

// navigate walks nested map[string]any values segment by segment.
func navigate(root map[string]any, segments []string) (any, bool, error) {
	var current any = root
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		current, ok = m[seg]
		if !ok {
			return nil, false, nil
		}
	}
	if current == nil {
		return nil, false, nil
	}
	return current, true, nil
}

// applyDefault substitutes the declared default when resolution found
// nothing. USER_INPUT may resolve to nil, which also falls through.
func applyDefault(b models.ParameterBinding, value any, found bool) (any, bool) {
	if found && value != nil {
		return value, true
	}
	if b.Default != nil {
		return b.Default, true
	}
	return nil, false
}

// joinTransform concatenates the string values of resolved parameters
// in key order.
func joinTransform(resolved map[string]any) (any, error) {
	keys := make([]string, 0, len(resolved))
	for k := range resolved {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprint(resolved[k]))
	}
	return strings.Join(parts, " "), nil
}

// countTransform returns the number of resolved parameters.
func countTransform(resolved map[string]any) (any, error) {
	return len(resolved), nil
}
