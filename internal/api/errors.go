package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// errorBody is the wire shape of every non-2xx response, per spec.md §6:
// {"status":"error","error":{"error_code":...,"description":...}}.
type errorBody struct {
	Status string      `json:"status"`
	Error  errorDetail `json:"error"`
}

type errorDetail struct {
	ErrorCode   string `json:"error_code"`
	Description string `json:"description"`
}

func writeError(c *echo.Context, status int, code, description string) error {
	return c.JSON(status, &errorBody{
		Status: "error",
		Error:  errorDetail{ErrorCode: code, Description: description},
	})
}

func unauthenticated(c *echo.Context, description string) error {
	return writeError(c, http.StatusUnauthorized, "unauthenticated", description)
}

func forbidden(c *echo.Context, description string) error {
	return writeError(c, http.StatusForbidden, "unauthorized", description)
}

func notFound(c *echo.Context, description string) error {
	return writeError(c, http.StatusNotFound, "not_found", description)
}

func badRequest(c *echo.Context, description string) error {
	return writeError(c, http.StatusBadRequest, "bad_request", description)
}

func internalError(c *echo.Context, description string) error {
	return writeError(c, http.StatusInternalServerError, "internal_error", description)
}
