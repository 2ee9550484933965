// Package definition loads and validates workflow definition documents.
package definition

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/RealZimboGuy/gopherstep/internal/datapath"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

//go:embed definition.schema.json
var schemaDocument []byte

var documentSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaDocument))
})

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load parses and validates a JSON definition document. The same document
// always yields an equal definition with the same Digest.
func Load(raw []byte) (*domain.WorkflowDefinition, error) {
	return load("", raw)
}

// LoadYAML accepts the same structure written as YAML.
func LoadYAML(raw []byte) (*domain.WorkflowDefinition, error) {
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, &DefinitionError{Problems: []error{fmt.Errorf("yaml: %w", err)}}
	}
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return nil, &DefinitionError{Problems: []error{fmt.Errorf("yaml: %w", err)}}
	}
	return load("", asJSON)
}

// LoadFile loads a .json, .yaml or .yml document. The definition is named
// after the file without its extension.
func LoadFile(path string) (*domain.WorkflowDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def *domain.WorkflowDefinition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		def, err = LoadYAML(raw)
	default:
		def, err = Load(raw)
	}
	if err != nil {
		var de *DefinitionError
		if errors.As(err, &de) {
			de.Source = filepath.Base(path)
		}
		return nil, err
	}
	def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return def, nil
}

// LoadDir loads every definition document in dir keyed by definition name.
func LoadDir(dir string) (map[string]*domain.WorkflowDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	defs := make(map[string]*domain.WorkflowDefinition)
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		def, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := defs[def.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate definition name %q in %s", def.Name, dir))
			continue
		}
		defs[def.Name] = def
	}
	return defs, errors.Join(errs...)
}

func load(source string, raw []byte) (*domain.WorkflowDefinition, error) {
	fail := func(problems ...error) error {
		return &DefinitionError{Source: source, Problems: problems}
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fail(fmt.Errorf("json: %w", err))
	}
	if problems := duplicateKeys(raw); len(problems) > 0 {
		return nil, fail(problems...)
	}

	schema, err := documentSchema()
	if err != nil {
		return nil, fmt.Errorf("compile definition schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(generic))
	if err != nil {
		return nil, fail(err)
	}
	if !result.Valid() {
		problems := make([]error, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			problems = append(problems, fmt.Errorf("schema: %s", re.String()))
		}
		return nil, fail(problems...)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fail(fmt.Errorf("json: %w", err))
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fail(err)
	}
	sum := blake2b.Sum256(canonical)

	def := &domain.WorkflowDefinition{
		Comment:     doc.Comment,
		StartState:  doc.StartState,
		States:      make(map[string]domain.StateSpec, len(doc.States)),
		InputSchema: doc.InputSchema,
		Digest:      hex.EncodeToString(sum[:]),
		Document:    canonical,
	}

	var problems []error
	if doc.InputSchema != nil {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc.InputSchema)); err != nil {
			problems = append(problems, fmt.Errorf("inputSchema: %w", err))
		}
	}

	for _, name := range sortedNames(doc.States) {
		spec, errs := buildState(name, doc.States[name])
		problems = append(problems, errs...)
		if spec != nil {
			def.States[name] = spec
		}
	}
	problems = append(problems, checkGraph(def)...)

	if len(problems) > 0 {
		return nil, fail(problems...)
	}
	return def, nil
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// duplicateKeys reports repeated top level keys and repeated state names,
// which encoding/json would otherwise silently collapse.
func duplicateKeys(raw []byte) []error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var problems []error
	top := map[string]bool{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return problems
		}
		key, _ := tok.(string)
		if top[key] {
			problems = append(problems, fmt.Errorf("duplicate key %q", key))
		}
		top[key] = true
		if key != "states" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return problems
			}
			continue
		}
		if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
			return problems
		}
		seen := map[string]bool{}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return problems
			}
			name, _ := tok.(string)
			if seen[name] {
				problems = append(problems, fmt.Errorf("duplicate state name %q", name))
			}
			seen[name] = true
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return problems
			}
		}
		if _, err := dec.Token(); err != nil {
			return problems
		}
	}
	return problems
}

func buildState(name string, sd stateDocument) (domain.StateSpec, []error) {
	switch domain.StateType(sd.Type) {
	case domain.StateTask:
		return buildTask(name, sd)
	case domain.StatePass:
		return buildPass(name, sd)
	case domain.StateChoice:
		return buildChoice(name, sd)
	default:
		return nil, []error{stateErrorf(name, "unknown type %q", sd.Type)}
	}
}

func buildPaths(name string, sd stateDocument) (domain.DataPaths, []error) {
	var problems []error
	dp := domain.DataPaths{InputPath: datapath.Root, ResultPath: datapath.Root, OutputPath: datapath.Root}
	if sd.InputPath != nil {
		dp.InputPath = *sd.InputPath
	}
	if sd.OutputPath != nil {
		dp.OutputPath = *sd.OutputPath
	}
	rp, discard, err := resultPath(sd.ResultPath)
	if err != nil {
		problems = append(problems, stateErrorf(name, "resultPath: %v", err))
	}
	dp.ResultPath, dp.DiscardResult = rp, discard
	for field, p := range map[string]string{"inputPath": dp.InputPath, "resultPath": dp.ResultPath, "outputPath": dp.OutputPath} {
		if _, err := datapath.Parse(p); err != nil {
			problems = append(problems, stateErrorf(name, "%s: %v", field, err))
		}
	}
	sortErrors(problems)
	return dp, problems
}

// resultPath decodes an absent, null or string resultPath.
func resultPath(raw json.RawMessage) (string, bool, error) {
	if len(raw) == 0 {
		return datapath.Root, false, nil
	}
	if string(bytes.TrimSpace(raw)) == "null" {
		return datapath.Root, true, nil
	}
	var p string
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", false, err
	}
	return p, false, nil
}

func checkNextEnd(name, next string, end bool) error {
	switch {
	case next != "" && end:
		return stateErrorf(name, "must not set both next and end")
	case next == "" && !end:
		return stateErrorf(name, "must set either next or end")
	}
	return nil
}

func checkTemplate(name, field string, tmpl any) []error {
	var problems []error
	for _, ref := range datapath.TemplateRefs(tmpl) {
		if _, err := datapath.Parse(ref); err != nil {
			problems = append(problems, stateErrorf(name, "%s: %v", field, err))
		}
	}
	for _, key := range datapath.TemplateCollisions(tmpl) {
		problems = append(problems, stateErrorf(name, "%s: key %q is set both as a literal and as %q", field, key, key+datapath.RefSuffix))
	}
	return problems
}

func buildTask(name string, sd stateDocument) (domain.StateSpec, []error) {
	paths, problems := buildPaths(name, sd)
	t := &domain.TaskState{
		DataPaths:      paths,
		Comment:        sd.Comment,
		Resource:       sd.Resource,
		Parameters:     sd.Parameters,
		TimeoutSeconds: sd.TimeoutSeconds,
		Next:           sd.Next,
		End:            sd.End,
	}
	if err := checkNextEnd(name, sd.Next, sd.End); err != nil {
		problems = append(problems, err)
	}
	problems = append(problems, checkTemplate(name, "parameters", sd.Parameters)...)

	for _, rd := range sd.Retry {
		p := domain.RetryPolicy{
			ErrorEquals:     rd.ErrorEquals,
			IntervalSeconds: DefaultIntervalSeconds,
			MaxAttempts:     DefaultMaxAttempts,
			BackoffRate:     DefaultBackoffRate,
			MaxDelaySeconds: rd.MaxDelaySeconds,
		}
		if rd.IntervalSeconds != nil {
			p.IntervalSeconds = *rd.IntervalSeconds
		}
		if rd.MaxAttempts != nil {
			p.MaxAttempts = *rd.MaxAttempts
		}
		if rd.BackoffRate != nil {
			p.BackoffRate = *rd.BackoffRate
		}
		t.Retry = append(t.Retry, p)
	}
	for i, cd := range sd.Catch {
		rp, discard, err := resultPath(cd.ResultPath)
		if err != nil {
			problems = append(problems, stateErrorf(name, "catch[%d].resultPath: %v", i, err))
		} else if _, err := datapath.Parse(rp); err != nil {
			problems = append(problems, stateErrorf(name, "catch[%d].resultPath: %v", i, err))
		}
		t.Catch = append(t.Catch, domain.Catcher{
			ErrorEquals:   cd.ErrorEquals,
			Next:          cd.Next,
			ResultPath:    rp,
			DiscardResult: discard,
		})
	}

	if err := validate.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, stateErrorf(name, "%s must satisfy %s %s (got %v)",
					strings.TrimPrefix(fe.Namespace(), "TaskState."), fe.Tag(), fe.Param(), fe.Value()))
			}
		} else {
			problems = append(problems, stateErrorf(name, "%v", err))
		}
	}
	return t, problems
}

func buildPass(name string, sd stateDocument) (domain.StateSpec, []error) {
	paths, problems := buildPaths(name, sd)
	if sd.Resource != "" || len(sd.Retry) > 0 || len(sd.Catch) > 0 {
		problems = append(problems, stateErrorf(name, "pass states take no resource, retry or catch"))
	}
	if err := checkNextEnd(name, sd.Next, sd.End); err != nil {
		problems = append(problems, err)
	}
	problems = append(problems, checkTemplate(name, "result", sd.Result)...)
	return &domain.PassState{
		DataPaths: paths,
		Comment:   sd.Comment,
		Result:    sd.Result,
		Next:      sd.Next,
		End:       sd.End,
	}, problems
}

func buildChoice(name string, sd stateDocument) (domain.StateSpec, []error) {
	var problems []error
	c := &domain.ChoiceState{Comment: sd.Comment, Default: sd.Default}
	for i, cd := range sd.Choices {
		where := fmt.Sprintf("choices[%d]", i)
		if cd.Next == "" {
			problems = append(problems, stateErrorf(name, "%s: next is required", where))
		}
		cond, errs := buildCondition(name, where, cd)
		problems = append(problems, errs...)
		c.Choices = append(c.Choices, domain.ChoiceRule{Condition: cond, Next: cd.Next})
	}
	if c.Default == "" {
		problems = append(problems, &RoutingError{State: name})
	}
	return c, problems
}

func buildCondition(name, where string, cd conditionDocument) (domain.Condition, []error) {
	var problems []error
	cond := domain.Condition{Variable: cd.Variable, Operator: cd.Operator, Value: cd.Value}

	forms := 0
	if cd.Operator != "" || cd.Variable != "" {
		forms++
	}
	if len(cd.And) > 0 {
		forms++
	}
	if len(cd.Or) > 0 {
		forms++
	}
	if cd.Not != nil {
		forms++
	}
	if forms != 1 {
		return cond, []error{stateErrorf(name, "%s: exactly one of a comparison, and, or, not is required", where)}
	}

	nested := func(kind string, docs []conditionDocument) []domain.Condition {
		out := make([]domain.Condition, 0, len(docs))
		for i, d := range docs {
			at := fmt.Sprintf("%s.%s[%d]", where, kind, i)
			if d.Next != "" {
				problems = append(problems, stateErrorf(name, "%s: nested conditions take no next", at))
			}
			sub, errs := buildCondition(name, at, d)
			problems = append(problems, errs...)
			out = append(out, sub)
		}
		return out
	}

	switch {
	case len(cd.And) > 0:
		cond.And = nested("and", cd.And)
	case len(cd.Or) > 0:
		cond.Or = nested("or", cd.Or)
	case cd.Not != nil:
		sub := nested("not", []conditionDocument{*cd.Not})
		cond.Not = &sub[0]
	default:
		if cd.Variable == "" || cd.Operator == "" {
			problems = append(problems, stateErrorf(name, "%s: variable and operator are required", where))
			break
		}
		if _, err := datapath.Parse(cd.Variable); err != nil {
			problems = append(problems, stateErrorf(name, "%s: %v", where, err))
		}
		kind, ok := domain.OperatorOperand(cd.Operator)
		if !ok {
			problems = append(problems, stateErrorf(name, "%s: unknown operator %q", where, cd.Operator))
			break
		}
		if !operandMatches(kind, cd.Value) {
			problems = append(problems, stateErrorf(name, "%s: operator %s needs a %s value, got %v",
				where, cd.Operator, operandName(kind), cd.Value))
		}
	}
	return cond, problems
}

func operandMatches(kind domain.OperandKind, v any) bool {
	switch kind {
	case domain.OperandString:
		_, ok := v.(string)
		return ok
	case domain.OperandNumber:
		_, ok := v.(float64)
		return ok
	default:
		_, ok := v.(bool)
		return ok
	}
}

func operandName(kind domain.OperandKind) string {
	switch kind {
	case domain.OperandString:
		return "string"
	case domain.OperandNumber:
		return "numeric"
	default:
		return "boolean"
	}
}

// checkGraph verifies references, reachability and termination.
func checkGraph(def *domain.WorkflowDefinition) []error {
	var problems []error
	if _, ok := def.States[def.StartState]; !ok {
		problems = append(problems, fmt.Errorf("start state %q does not exist", def.StartState))
	}
	for _, name := range sortedNames(def.States) {
		for _, next := range def.States[name].Transitions() {
			if _, ok := def.States[next]; !ok {
				problems = append(problems, stateErrorf(name, "transition to unknown state %q", next))
			}
		}
	}
	if len(problems) > 0 {
		return problems
	}

	reached := map[string]bool{def.StartState: true}
	queue := []string{def.StartState}
	terminal := false
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		spec := def.States[name]
		if spec.Terminal() {
			terminal = true
		}
		for _, next := range spec.Transitions() {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, name := range sortedNames(def.States) {
		if !reached[name] {
			problems = append(problems, stateErrorf(name, "unreachable from start state %q", def.StartState))
		}
	}
	if !terminal {
		problems = append(problems, errors.New("no terminal state is reachable from the start state"))
	}
	return problems
}

func sortErrors(errs []error) {
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
}
