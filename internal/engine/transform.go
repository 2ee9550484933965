package engine

import (
	"fmt"

	"github.com/RealZimboGuy/gopherstep/internal/datapath"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// selectInput narrows the state input to inputPath.
func selectInput(p domain.DataPaths, data any) (any, *domain.TaskError) {
	path, err := datapath.Parse(p.InputPath)
	if err != nil {
		return nil, runtimeError("inputPath: %v", err)
	}
	v, ok := path.Get(data)
	if !ok {
		return nil, runtimeError("inputPath %s not found in state input", p.InputPath)
	}
	return v, nil
}

// render assembles a parameters or result template against the effective input.
func render(tmpl, input any) (any, *domain.TaskError) {
	if tmpl == nil {
		return input, nil
	}
	v, err := datapath.Render(tmpl, input)
	if err != nil {
		return nil, runtimeError("%v", err)
	}
	return v, nil
}

// applyResult merges result into the original state input at resultPath and
// then narrows the merged value to outputPath. A discarded result passes the
// input through unchanged.
func applyResult(p domain.DataPaths, data, result any) (any, *domain.TaskError) {
	merged := data
	if !p.DiscardResult {
		path, err := datapath.Parse(p.ResultPath)
		if err != nil {
			return nil, runtimeError("resultPath: %v", err)
		}
		merged, err = path.Set(data, result)
		if err != nil {
			return nil, runtimeError("resultPath %s: %v", p.ResultPath, err)
		}
	}
	out, err := datapath.Parse(p.OutputPath)
	if err != nil {
		return nil, runtimeError("outputPath: %v", err)
	}
	v, ok := out.Get(merged)
	if !ok {
		return nil, runtimeError("outputPath %s not found in state output", p.OutputPath)
	}
	return v, nil
}

func runtimeError(format string, args ...any) *domain.TaskError {
	return &domain.TaskError{Kind: domain.ErrorKindRuntime, Message: fmt.Sprintf(format, args...)}
}
