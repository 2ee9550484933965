package domain

import "time"

type StateType string

const (
	StateTask   StateType = "Task"
	StateChoice StateType = "Choice"
	StatePass   StateType = "Pass"
)

// Well known error kinds.
const (
	ErrorKindAll          = "States.ALL" // matches every error kind
	ErrorKindTimeout      = "States.Timeout"
	ErrorKindTaskFailed   = "States.TaskFailed"
	ErrorKindRuntime      = "States.Runtime"
	ErrorKindExecutorLost = "States.ExecutorLost"
)

// WorkflowDefinition is the validated, immutable graph an execution interprets.
// States are kept in a name keyed map so cycles need no special handling.
type WorkflowDefinition struct {
	Name        string
	Comment     string
	StartState  string
	States      map[string]StateSpec
	InputSchema map[string]any
	Digest      string
	Document    []byte // canonical JSON of the source document
}

// State returns the named state and whether it exists.
func (d *WorkflowDefinition) State(name string) (StateSpec, bool) {
	s, ok := d.States[name]
	return s, ok
}

// StateSpec is implemented by *TaskState, *ChoiceState and *PassState.
type StateSpec interface {
	StateType() StateType
	// Transitions lists every state name this state may move to.
	Transitions() []string
	// Terminal reports whether the state ends the execution on success.
	Terminal() bool
}

// Paths shared by Task and Pass states.
type DataPaths struct {
	InputPath     string
	ResultPath    string
	DiscardResult bool // resultPath was explicitly null
	OutputPath    string
}

type TaskState struct {
	DataPaths
	Comment        string
	Resource       string        `validate:"required"`
	Parameters     any
	TimeoutSeconds float64       `validate:"gte=0"`
	Retry          []RetryPolicy `validate:"dive"`
	Catch          []Catcher     `validate:"dive"`
	Next           string
	End            bool
}

func (t *TaskState) StateType() StateType { return StateTask }

func (t *TaskState) Transitions() []string {
	out := make([]string, 0, len(t.Catch)+1)
	if t.Next != "" {
		out = append(out, t.Next)
	}
	for _, c := range t.Catch {
		out = append(out, c.Next)
	}
	return out
}

func (t *TaskState) Terminal() bool { return t.End }

// Timeout returns the invocation timeout, zero when none is configured.
func (t *TaskState) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds * float64(time.Second))
}

type RetryPolicy struct {
	ErrorEquals     []string `validate:"min=1"`
	IntervalSeconds float64  `validate:"gt=0"`
	MaxAttempts     int      `validate:"gte=0"`
	BackoffRate     float64  `validate:"gte=1"`
	MaxDelaySeconds float64  `validate:"gte=0"`
}

// Matches reports whether the policy applies to the given error kind.
func (p RetryPolicy) Matches(kind string) bool {
	return matchKind(p.ErrorEquals, kind)
}

type Catcher struct {
	ErrorEquals   []string `validate:"min=1"`
	Next          string   `validate:"required"`
	ResultPath    string
	DiscardResult bool
}

func (c Catcher) Matches(kind string) bool {
	return matchKind(c.ErrorEquals, kind)
}

func matchKind(filter []string, kind string) bool {
	for _, k := range filter {
		if k == ErrorKindAll || k == kind {
			return true
		}
	}
	return false
}

type ChoiceState struct {
	Comment string
	Choices []ChoiceRule
	Default string
}

func (c *ChoiceState) StateType() StateType { return StateChoice }

func (c *ChoiceState) Transitions() []string {
	out := make([]string, 0, len(c.Choices)+1)
	for _, r := range c.Choices {
		out = append(out, r.Next)
	}
	if c.Default != "" {
		out = append(out, c.Default)
	}
	return out
}

func (c *ChoiceState) Terminal() bool { return false }

// ChoiceRule pairs a condition with the state to move to when it holds.
type ChoiceRule struct {
	Condition
	Next string
}

// Condition is either a leaf comparison (Variable, Operator, Value) or a
// compound of And, Or or Not.
type Condition struct {
	Variable string
	Operator string
	Value    any
	And      []Condition
	Or       []Condition
	Not      *Condition
}

type PassState struct {
	DataPaths
	Comment string
	Result  any
	Next    string
	End     bool
}

func (p *PassState) StateType() StateType { return StatePass }

func (p *PassState) Transitions() []string {
	if p.Next == "" {
		return nil
	}
	return []string{p.Next}
}

func (p *PassState) Terminal() bool { return p.End }
