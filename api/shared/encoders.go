package shared

import (
	"context"
	"encoding/json"
	"net/http"
)

// Locator is implemented by created resources that know their own uri.
type Locator interface {
	Location() string
}

func encodeJson(w http.ResponseWriter, status int, response interface{}) error {
	if response == nil {
		w.WriteHeader(status)
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(response)
}

func EncodeResponse200(_ context.Context, w http.ResponseWriter, response interface{}) error {
	return encodeJson(w, http.StatusOK, response)
}

func EncodeResponse201(_ context.Context, w http.ResponseWriter, response interface{}) error {
	if locator, ok := response.(Locator); ok {
		w.Header().Set("Location", locator.Location())
	}
	return encodeJson(w, http.StatusCreated, response)
}

func EncodeResponse204(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// EncodeErrorWithStatus writes the canonical error body.
func EncodeErrorWithStatus(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}
