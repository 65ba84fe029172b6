package server

import (
	"errors"
	"net/http"

	"github.com/Sternrassler/modelzoo-client/pkg/client"
	"github.com/Sternrassler/modelzoo-client/pkg/dashboard"
	"github.com/Sternrassler/modelzoo-client/pkg/detail"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error   string             `json:"error"`
	Class   client.ErrorClass  `json:"class,omitempty"`
	Failure *dashboard.Failure `json:"failure,omitempty"`
}

func badRequest(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

// upstreamError maps a failed call to the artifact API to a response.
// Upstream 404s pass through; everything else is a bad gateway.
func upstreamError(err error) error {
	if errors.Is(err, detail.ErrInvalidID) {
		return badRequest(err)
	}

	body := ErrorResponse{Error: err.Error(), Class: client.Classify(err)}
	status := http.StatusBadGateway

	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		status = http.StatusNotFound
	case body.Class == client.ErrorClassTimeout:
		status = http.StatusGatewayTimeout
	}
	return echo.NewHTTPError(status, body)
}
