package definition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderFlow = `{
  "comment": "order flow",
  "startState": "Validate",
  "states": {
    "Validate": {
      "type": "Task",
      "resource": "validate",
      "parameters": {"order.$": "$.order", "strict": true},
      "resultPath": "$.validation",
      "retry": [{"errorEquals": ["Transient"], "maxAttempts": 2}],
      "catch": [{"errorEquals": ["States.ALL"], "next": "Failed", "resultPath": "$.error"}],
      "next": "Route"
    },
    "Route": {
      "type": "Choice",
      "choices": [
        {"variable": "$.validation.ok", "operator": "BooleanEquals", "value": true, "next": "Done"},
        {"and": [
          {"variable": "$.order.total", "operator": "NumericGreaterThan", "value": 100},
          {"not": {"variable": "$.order.vip", "operator": "IsPresent", "value": true}}
        ], "next": "Failed"}
      ],
      "default": "Failed"
    },
    "Done": {"type": "Pass", "result": {"status": "ok"}, "resultPath": "$.summary", "end": true},
    "Failed": {"type": "Pass", "resultPath": null, "end": true}
  }
}`

const orderFlowYAML = `
comment: order flow
startState: Validate
states:
  Validate:
    type: Task
    resource: validate
    parameters:
      order.$: $.order
      strict: true
    resultPath: $.validation
    retry:
      - errorEquals: [Transient]
        maxAttempts: 2
    catch:
      - errorEquals: [States.ALL]
        next: Failed
        resultPath: $.error
    next: Route
  Route:
    type: Choice
    choices:
      - variable: $.validation.ok
        operator: BooleanEquals
        value: true
        next: Done
      - and:
          - variable: $.order.total
            operator: NumericGreaterThan
            value: 100
          - not:
              variable: $.order.vip
              operator: IsPresent
              value: true
        next: Failed
    default: Failed
  Done:
    type: Pass
    result:
      status: ok
    resultPath: $.summary
    end: true
  Failed:
    type: Pass
    resultPath: null
    end: true
`

func problemsOf(t *testing.T, err error) []error {
	t.Helper()
	var de *DefinitionError
	require.ErrorAs(t, err, &de)
	require.NotEmpty(t, de.Problems)
	return de.Problems
}

func TestLoadBuildsStates(t *testing.T) {
	def, err := Load([]byte(orderFlow))
	require.NoError(t, err)

	assert.Equal(t, "Validate", def.StartState)
	assert.Len(t, def.States, 4)
	assert.Len(t, def.Digest, 64)

	task, ok := def.States["Validate"].(*domain.TaskState)
	require.True(t, ok)
	assert.Equal(t, "validate", task.Resource)
	assert.Equal(t, "$", task.InputPath)
	assert.Equal(t, "$.validation", task.ResultPath)
	assert.Equal(t, "$", task.OutputPath)
	require.Len(t, task.Retry, 1)
	assert.Equal(t, domain.RetryPolicy{
		ErrorEquals:     []string{"Transient"},
		IntervalSeconds: DefaultIntervalSeconds,
		MaxAttempts:     2,
		BackoffRate:     DefaultBackoffRate,
	}, task.Retry[0])
	require.Len(t, task.Catch, 1)
	assert.Equal(t, "$.error", task.Catch[0].ResultPath)

	choice, ok := def.States["Route"].(*domain.ChoiceState)
	require.True(t, ok)
	require.Len(t, choice.Choices, 2)
	assert.Equal(t, domain.OpBooleanEquals, choice.Choices[0].Operator)
	require.Len(t, choice.Choices[1].And, 2)
	require.NotNil(t, choice.Choices[1].And[1].Not)
	assert.Equal(t, "Failed", choice.Default)

	failed := def.States["Failed"].(*domain.PassState)
	assert.True(t, failed.DiscardResult)
	assert.True(t, failed.End)
}

func TestLoadIsDeterministic(t *testing.T) {
	a, err := Load([]byte(orderFlow))
	require.NoError(t, err)
	b, err := Load([]byte(orderFlow))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLoadYAMLMatchesJSON(t *testing.T) {
	fromJSON, err := Load([]byte(orderFlow))
	require.NoError(t, err)
	fromYAML, err := LoadYAML([]byte(orderFlowYAML))
	require.NoError(t, err)
	assert.Equal(t, fromJSON.Digest, fromYAML.Digest)
	assert.Equal(t, fromJSON.States, fromYAML.States)
}

func TestRetryDefaults(t *testing.T) {
	def, err := Load([]byte(`{"startState":"A","states":{
		"A":{"type":"Task","resource":"r","retry":[{"errorEquals":["States.ALL"]}],"end":true}}}`))
	require.NoError(t, err)
	p := def.States["A"].(*domain.TaskState).Retry[0]
	assert.Equal(t, 1.0, p.IntervalSeconds)
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2.0, p.BackoffRate)
}

func TestUnreachableState(t *testing.T) {
	_, err := Load([]byte(`{"startState":"A","states":{
		"A":{"type":"Pass","end":true},
		"Orphan":{"type":"Pass","end":true}}}`))
	problems := problemsOf(t, err)
	var se *StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Orphan", se.State)
	assert.Contains(t, problems[0].Error(), "unreachable")
}

func TestDanglingTransition(t *testing.T) {
	_, err := Load([]byte(`{"startState":"A","states":{
		"A":{"type":"Pass","next":"Nowhere"}}}`))
	problems := problemsOf(t, err)
	assert.Contains(t, problems[0].Error(), `unknown state "Nowhere"`)
}

func TestMissingStartState(t *testing.T) {
	_, err := Load([]byte(`{"startState":"Missing","states":{"A":{"type":"Pass","end":true}}}`))
	problems := problemsOf(t, err)
	assert.Contains(t, problems[0].Error(), `start state "Missing"`)
}

func TestChoiceWithoutDefault(t *testing.T) {
	_, err := Load([]byte(`{"startState":"C","states":{
		"C":{"type":"Choice","choices":[{"variable":"$.x","operator":"NumericEquals","value":1,"next":"A"}]},
		"A":{"type":"Pass","end":true}}}`))
	var re *RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "C", re.State)
}

func TestDuplicateStateNames(t *testing.T) {
	_, err := Load([]byte(`{"startState":"A","states":{
		"A":{"type":"Pass","end":true},
		"A":{"type":"Pass","end":true}}}`))
	problems := problemsOf(t, err)
	assert.Contains(t, problems[0].Error(), `duplicate state name "A"`)
}

func TestNextAndEndAreExclusive(t *testing.T) {
	_, err := Load([]byte(`{"startState":"A","states":{
		"A":{"type":"Pass","next":"B","end":true},
		"B":{"type":"Pass","end":true}}}`))
	problemsOf(t, err)

	_, err = Load([]byte(`{"startState":"A","states":{"A":{"type":"Pass"}}}`))
	problemsOf(t, err)
}

func TestNoTerminalState(t *testing.T) {
	_, err := Load([]byte(`{"startState":"A","states":{
		"A":{"type":"Pass","next":"B"},
		"B":{"type":"Pass","next":"A"}}}`))
	problems := problemsOf(t, err)
	assert.Contains(t, problems[0].Error(), "no terminal state")
}

func TestOperandTypeMismatch(t *testing.T) {
	_, err := Load([]byte(`{"startState":"C","states":{
		"C":{"type":"Choice","choices":[{"variable":"$.x","operator":"NumericEquals","value":"1","next":"A"}],"default":"A"},
		"A":{"type":"Pass","end":true}}}`))
	problems := problemsOf(t, err)
	assert.Contains(t, problems[0].Error(), "numeric")
}

func TestUnknownOperator(t *testing.T) {
	_, err := Load([]byte(`{"startState":"C","states":{
		"C":{"type":"Choice","choices":[{"variable":"$.x","operator":"Approximately","value":1,"next":"A"}],"default":"A"},
		"A":{"type":"Pass","end":true}}}`))
	problems := problemsOf(t, err)
	assert.Contains(t, problems[0].Error(), "unknown operator")
}

func TestSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown state type": `{"startState":"A","states":{"A":{"type":"Wait","end":true}}}`,
		"task without resource": `{"startState":"A","states":{"A":{"type":"Task","end":true}}}`,
		"choice with next": `{"startState":"C","states":{"C":{"type":"Choice","choices":[{"variable":"$.x","operator":"IsNull","value":true,"next":"A"}],"default":"A","next":"A"},"A":{"type":"Pass","end":true}}}`,
		"unknown field":    `{"startState":"A","states":{"A":{"type":"Pass","end":true,"bogus":1}}}`,
		"bad path":         `{"startState":"A","states":{"A":{"type":"Pass","inputPath":"a.b","end":true}}}`,
		"not json":         `{"startState":`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(doc))
			problemsOf(t, err)
		})
	}
}

func TestInvalidRetryValues(t *testing.T) {
	_, err := Load([]byte(`{"startState":"A","states":{
		"A":{"type":"Task","resource":"r","retry":[{"errorEquals":["X"],"backoffRate":0.5,"intervalSeconds":0}],"end":true}}}`))
	problems := problemsOf(t, err)
	assert.Len(t, problems, 2)
}

func TestInvalidTemplateReference(t *testing.T) {
	_, err := Load([]byte(`{"startState":"A","states":{
		"A":{"type":"Pass","result":{"x.$":"not-a-path"},"end":true}}}`))
	problemsOf(t, err)
}

func TestTemplateKeySetTwice(t *testing.T) {
	_, err := Load([]byte(`{"startState":"A","states":{
		"A":{"type":"Task","resource":"r","parameters":{"nested":[{"id":"x","id.$":"$.id"}]},"next":"B"},
		"B":{"type":"Pass","result":{"a":"literal","a.$":"$.x"},"end":true}}}`))
	problems := problemsOf(t, err)
	require.Len(t, problems, 2)
	states := []string{}
	for _, p := range problems {
		var se *StateError
		require.ErrorAs(t, p, &se)
		states = append(states, se.State)
	}
	assert.ElementsMatch(t, []string{"A", "B"}, states)
	assert.Contains(t, err.Error(), `key "a" is set both as a literal and as "a.$"`)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.json"), []byte(orderFlow), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders_yaml.yaml"), []byte(orderFlowYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

	defs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "orders", defs["orders"].Name)
	assert.Equal(t, "orders_yaml", defs["orders_yaml"].Name)
}

func TestLoadFileReportsSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"startState":"A","states":{"A":{"type":"Pass"}}}`), 0o600))

	_, err := LoadFile(path)
	var de *DefinitionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "broken.json", de.Source)
}
