package tasks

import (
	"context"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

const (
	ResourceProcessData = "process_data"

	ErrorKindValidation = "ValidationError"
	ErrorKindProcessing = "ProcessingError"
)

type window struct{ min, max float64 }

var processingTimes = map[string]window{
	"sales_data":     {1, 2},
	"customer_data":  {0.5, 1.5},
	"inventory_data": {2, 3},
	"analytics_data": {1.5, 2.5},
	"general":        {1, 2},
}

var successRates = map[string]float64{
	"sales_data":     0.9,
	"customer_data":  0.85,
	"inventory_data": 0.8,
	"analytics_data": 0.75,
	"general":        0.8,
}

var processingFailures = []string{"data_corruption", "timeout", "validation_error", "resource_unavailable"}

// ProcessData simulates a batch job over a user's records. It succeeds with
// a per data type probability and fails with ProcessingError otherwise.
func (e *Env) ProcessData(ctx context.Context, _ string, input any) (any, error) {
	log := logger(ctx)
	in, _ := input.(map[string]any)
	userID, err := stringField(in, "userId", "unknown")
	if err != nil {
		return nil, err
	}
	dataType, err := stringField(in, "dataType", "general")
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "Processing data", "user_id", userID, "data_type", dataType)

	w, ok := processingTimes[dataType]
	if !ok {
		w = window{1, 2}
	}
	duration := e.uniform(w.min, w.max)
	if err := e.Sleep(ctx, seconds(duration)); err != nil {
		return nil, err
	}

	rate, ok := successRates[dataType]
	if !ok {
		rate = 0.8
	}
	if e.Rand.Float64() >= rate {
		failure := processingFailures[e.Rand.IntN(len(processingFailures))]
		log.WarnContext(ctx, "Data processing failed", "user_id", userID, "error_type", failure)
		return nil, domain.NewTaskError(ErrorKindProcessing, "Data processing failed: %s", failure)
	}

	records := 100 + e.Rand.IntN(901)
	score := e.uniform(0.7, 0.99)
	log.InfoContext(ctx, "Data processing successful", "records", records, "score", round(score, 3))
	return map[string]any{
		"userId":             userID,
		"dataType":           dataType,
		"status":             "SUCCESS",
		"processedAt":        e.Clock.Now().Unix(),
		"recordsProcessed":   records,
		"processingDuration": round(duration, 2),
		"processingScore":    round(score, 3),
		"nextStep":           ResourceSendNotification,
		"metadata": map[string]any{
			"username": e.Username,
			"resource": ResourceProcessData,
		},
	}, nil
}

// stringField reads a string field, using def when absent. Present but empty
// or non string values are a ValidationError.
func stringField(in map[string]any, key, def string) (string, error) {
	v, ok := in[key]
	if !ok || v == nil {
		return def, nil
	}
	s, isString := v.(string)
	if !isString || s == "" {
		return "", domain.NewTaskError(ErrorKindValidation, "Missing required fields: userId or dataType")
	}
	return s, nil
}
