package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
)

const (
	studentIDParam = "studentId"
	statusParam    = "status"
)

type attendanceApi struct {
	svc      *attendance.Service
	access   access
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, acc access, svc *attendance.Service, validate *validator.Validate) {
	api := attendanceApi{svc: svc, access: acc, validate: validate}

	ag := g.Group("/attendance", jwt)
	ag.POST("", api.mark, staffOnly)
	ag.GET("", api.query)
	ag.GET("/students/:studentId/summary", api.studentSummary)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update, staffOnly)
	ag.DELETE("/:id", api.destroy, adminOnly)
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data attendance.MarkAttendance
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	records, err := api.svc.MarkAttendance(ctx.Request().Context(), data, claims.UserID)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	if records == nil {
		records = []attendance.Attendance{}
	}
	return created(ctx, "Attendance marked successfully", records)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	filter := attendance.QueryFilter{PageQuery: pq}
	b := echo.QueryParamsBinder(ctx).
		Int64(studentIDParam, &filter.StudentID).
		Int64(sectionIDParam, &filter.SectionID).
		String(statusParam, &filter.Status)
	if err := bindPeriod(b, &filter.StartDate, &filter.EndDate).BindError(); err != nil {
		return err
	}
	if err := api.access.studentFilter(ctx, &filter.StudentID); err != nil {
		return err
	}

	records, p, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return page(ctx, "Attendance retrieved successfully", records, p)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	record, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding attendance")
	}
	if err := api.access.student(ctx, record.StudentID); err != nil {
		return err
	}
	return ok(ctx, "Attendance retrieved successfully", record)
}

func (api *attendanceApi) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data attendance.UpdateAttendance
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	record, err := api.svc.Update(ctx.Request().Context(), id, data, claims.UserID)
	if err != nil {
		return errors.Wrap(err, "updating attendance")
	}
	return ok(ctx, "Attendance updated successfully", record)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting attendance")
	}
	return deleted(ctx, "Attendance deleted successfully")
}

func (api *attendanceApi) studentSummary(ctx echo.Context) error {
	studentID, err := pathID(ctx, studentIDParam)
	if err != nil {
		return err
	}
	if err := api.access.student(ctx, studentID); err != nil {
		return err
	}
	var start, end core.Date
	if err := bindPeriod(echo.QueryParamsBinder(ctx), &start, &end).BindError(); err != nil {
		return err
	}
	summary, err := api.svc.GetStudentSummary(ctx.Request().Context(), studentID, start, end)
	if err != nil {
		return errors.Wrap(err, "getting attendance summary")
	}
	return ok(ctx, "Attendance summary retrieved successfully", summary)
}
