package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"https-json-proxy/internal/model"
	"https-json-proxy/internal/service"
)

// Response messages returned to callers.
const (
	msgURLRequired = "URL query parameter is required"
	msgHTTPSOnly   = "Invalid URL format. Only HTTPS URLs are allowed"
	msgTimeout     = "Request timed out"
	msgFetchFailed = "Error fetching data"
)

// ProxyHandler fetches the URL named by the "url" query parameter and relays its JSON.
type ProxyHandler struct {
	service *service.FetchService
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.FetchService) *ProxyHandler {
	return &ProxyHandler{service: svc}
}

// Handle serves GET /proxy?url=<target>. On success the upstream JSON is
// written unchanged with status 200.
func (h *ProxyHandler) Handle(c echo.Context) error {
	data, err := h.service.Fetch(c.Request().Context(), c.QueryParam("url"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSONBlob(http.StatusOK, data)
}

// mapError writes the JSON error body for err. The service has already
// logged the failure.
func mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrURLRequired) {
		return c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: msgURLRequired})
	}

	if errors.Is(err, service.ErrHTTPSOnly) {
		return c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: msgHTTPSOnly})
	}

	if errors.Is(err, service.ErrTimeout) {
		return c.JSON(http.StatusRequestTimeout, model.ErrorResponse{Error: msgTimeout})
	}

	var se *service.StatusError
	if errors.As(err, &se) {
		return c.JSON(se.Code, model.ErrorResponse{
			Error: fmt.Sprintf("Failed to fetch data. Status: %d %s", se.Code, se.Reason),
		})
	}

	return c.JSON(http.StatusInternalServerError, model.ErrorResponse{
		Error:   msgFetchFailed,
		Details: err.Error(),
	})
}
