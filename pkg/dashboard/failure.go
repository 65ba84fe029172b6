package dashboard

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/modelzoo-client/pkg/catalog"
	"github.com/Sternrassler/modelzoo-client/pkg/client"
	"github.com/Sternrassler/modelzoo-client/pkg/pagination"
)

// FailureKind tags why a reload failed.
type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureStatus    FailureKind = "status"
	FailureShape     FailureKind = "shape"
	FailurePageLimit FailureKind = "page_limit"
	FailureTimeout   FailureKind = "timeout"
	FailureCanceled  FailureKind = "canceled"
)

// Failure is the tagged result of a failed reload. It is never folded into
// an empty result.
type Failure struct {
	Kind       FailureKind  `json:"kind"`
	Resource   catalog.Kind `json:"resource,omitempty"`
	StatusCode int          `json:"status_code,omitempty"`
	Message    string       `json:"message"`
	Retryable  bool         `json:"retryable"`

	err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Resource != "" {
		return fmt.Sprintf("%s reload failed (%s): %s", f.Resource, f.Kind, f.Message)
	}
	return fmt.Sprintf("reload failed (%s): %s", f.Kind, f.Message)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.err
}

// NewFailure classifies err raised while loading resource.
func NewFailure(resource catalog.Kind, err error) *Failure {
	var existing *Failure
	if errors.As(err, &existing) {
		return existing
	}

	f := &Failure{Resource: resource, Message: err.Error(), err: err}

	var apiErr *client.APIError
	hasAPIErr := errors.As(err, &apiErr)
	if hasAPIErr {
		f.StatusCode = apiErr.StatusCode
	}

	switch {
	case errors.Is(err, pagination.ErrPageLimitExceeded):
		f.Kind = FailurePageLimit
	case errors.Is(err, pagination.ErrRequestTimeout):
		f.Kind = FailureTimeout
		f.Retryable = true
	case errors.Is(err, pagination.ErrEmptyResponse), errors.Is(err, catalog.ErrMalformedPage):
		f.Kind = FailureShape
	default:
		switch client.Classify(err) {
		case client.ErrorClassShape:
			f.Kind = FailureShape
		case client.ErrorClassClient:
			f.Kind = FailureStatus
		case client.ErrorClassServer, client.ErrorClassRateLimit:
			f.Kind = FailureStatus
			f.Retryable = true
		case client.ErrorClassTimeout:
			f.Kind = FailureTimeout
			f.Retryable = true
		case client.ErrorClassCanceled:
			f.Kind = FailureCanceled
			f.Retryable = true
		default:
			f.Kind = FailureTransport
			f.Retryable = true
		}
	}

	if f.Kind == FailureStatus && !hasAPIErr {
		f.StatusCode = http.StatusBadGateway
	}
	return f
}
