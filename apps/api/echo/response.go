package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core"
)

// Response is the envelope of every API response.
type Response struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       interface{}       `json:"data,omitempty"`
	Error      string            `json:"error,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
	Pagination *core.Pagination  `json:"pagination,omitempty"`
}

func respond(ctx echo.Context, code int, msg string, data interface{}) error {
	return ctx.JSON(code, Response{Success: true, Message: msg, Data: data})
}

func ok(ctx echo.Context, msg string, data interface{}) error {
	return respond(ctx, http.StatusOK, msg, data)
}

func created(ctx echo.Context, msg string, data interface{}) error {
	return respond(ctx, http.StatusCreated, msg, data)
}

func deleted(ctx echo.Context, msg string) error {
	return ctx.JSON(http.StatusOK, Response{Success: true, Message: msg})
}

// page responds with a list; nil slices are sent as `[]`.
func page[T any](ctx echo.Context, msg string, items []T, p core.Pagination) error {
	if items == nil {
		items = []T{}
	}
	return ctx.JSON(http.StatusOK, Response{Success: true, Message: msg, Data: items, Pagination: &p})
}

func list[T any](ctx echo.Context, msg string, items []T) error {
	if items == nil {
		items = []T{}
	}
	return ok(ctx, msg, items)
}
