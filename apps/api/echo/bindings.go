package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// List query params
const (
	pageParam      = "page"
	limitParam     = "limit"
	searchParam    = "search"
	sortByParam    = "sortBy"
	sortOrderParam = "sortOrder"
	startDateParam = "startDate"
	endDateParam   = "endDate"
)

// bindPageQuery binds `page, limit, search, sortBy, sortOrder`.
func bindPageQuery(ctx echo.Context) (core.PageQuery, error) {
	var pq core.PageQuery
	err := echo.QueryParamsBinder(ctx).
		Int(pageParam, &pq.Page).
		Int(limitParam, &pq.Limit).
		String(searchParam, &pq.Search).
		String(sortByParam, &pq.SortBy).
		String(sortOrderParam, &pq.SortOrder).
		BindError()
	return pq, err
}

// bindPeriod binds the optional `startDate` and `endDate` (YYYY-MM-DD).
func bindPeriod(b *echo.ValueBinder, start, end *core.Date) *echo.ValueBinder {
	return b.BindUnmarshaler(startDateParam, start).BindUnmarshaler(endDateParam, end)
}

// pathID parses the positive int64 path param `name` (default "id").
func pathID(ctx echo.Context, name ...string) (int64, error) {
	param := "id"
	if len(name) > 0 {
		param = name[0]
	}
	var id int64
	if err := echo.PathParamsBinder(ctx).Int64(param, &id).BindError(); err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// bindBody binds the JSON request body into `data`.
func bindBody(ctx echo.Context, data interface{}) error {
	if err := (&echo.DefaultBinder{}).BindBody(ctx, data); err != nil {
		return errors.Wrap(err, "binding request body")
	}
	return nil
}

// optionalBool binds the query param `name` if it is present.
func optionalBool(ctx echo.Context, name string) (*bool, error) {
	if ctx.QueryParam(name) == "" {
		return nil, nil
	}
	var b bool
	if err := echo.QueryParamsBinder(ctx).Bool(name, &b).BindError(); err != nil {
		return nil, err
	}
	return &b, nil
}
