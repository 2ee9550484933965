package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxBodyBytes caps request bodies read by DecodeJSONBody.
const maxBodyBytes = 4 << 20

// DecodeJSONBody decodes a request body into T, rejecting unknown fields and
// trailing data.
func DecodeJSONBody[T any](r *http.Request) (T, error) {
	defer r.Body.Close()
	return decodeStrict[T](http.MaxBytesReader(nil, r.Body, maxBodyBytes))
}

func DecodeJSONBodyResponse[T any](r *http.Response) (T, error) {
	defer r.Body.Close()
	var data T
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		var zero T
		return zero, fmt.Errorf("json decode error: %w", err)
	}
	return data, nil
}

func decodeStrict[T any](body io.Reader) (T, error) {
	var data T
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	// keep free-form numbers exact until the engine normalizes them
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		var zero T
		return zero, fmt.Errorf("json decode error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var zero T
		return zero, errors.New("json decode error: unexpected data after the JSON value")
	}
	return data, nil
}

func WriteJSONResponse[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
