package definition

import "encoding/json"

// document mirrors the persisted format. Pointer and raw fields tell absent
// values (defaults apply) apart from explicit ones.
type document struct {
	Comment     string                   `json:"comment"`
	StartState  string                   `json:"startState"`
	InputSchema map[string]any           `json:"inputSchema"`
	States      map[string]stateDocument `json:"states"`
}

type stateDocument struct {
	Type           string              `json:"type"`
	Comment        string              `json:"comment"`
	InputPath      *string             `json:"inputPath"`
	ResultPath     json.RawMessage     `json:"resultPath"`
	OutputPath     *string             `json:"outputPath"`
	Next           string              `json:"next"`
	End            bool                `json:"end"`
	Resource       string              `json:"resource"`
	Parameters     any                 `json:"parameters"`
	TimeoutSeconds float64             `json:"timeoutSeconds"`
	Retry          []retryDocument     `json:"retry"`
	Catch          []catchDocument     `json:"catch"`
	Choices        []conditionDocument `json:"choices"`
	Default        string              `json:"default"`
	Result         any                 `json:"result"`
}

type retryDocument struct {
	ErrorEquals     []string `json:"errorEquals"`
	IntervalSeconds *float64 `json:"intervalSeconds"`
	MaxAttempts     *int     `json:"maxAttempts"`
	BackoffRate     *float64 `json:"backoffRate"`
	MaxDelaySeconds float64  `json:"maxDelaySeconds"`
}

type catchDocument struct {
	ErrorEquals []string        `json:"errorEquals"`
	Next        string          `json:"next"`
	ResultPath  json.RawMessage `json:"resultPath"`
}

type conditionDocument struct {
	Variable string              `json:"variable"`
	Operator string              `json:"operator"`
	Value    any                 `json:"value"`
	And      []conditionDocument `json:"and"`
	Or       []conditionDocument `json:"or"`
	Not      *conditionDocument  `json:"not"`
	Next     string              `json:"next"`
}

const (
	DefaultIntervalSeconds = 1.0
	DefaultMaxAttempts     = 3
	DefaultBackoffRate     = 2.0
)
