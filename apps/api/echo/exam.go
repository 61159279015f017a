package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/exam"
)

const (
	examTypeIDParam = "examTypeId"
	termIDParam     = "termId"
)

type examApi struct {
	svc      *exam.Service
	access   access
	validate *validator.Validate
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, acc access, svc *exam.Service, validate *validator.Validate) {
	api := examApi{svc: svc, access: acc, validate: validate}

	eg := g.Group("/exams", jwt)

	tg := eg.Group("/types")
	tg.GET("", api.queryTypes)
	tg.POST("", api.createType, adminOnly)
	tg.GET("/:id", api.retrieveType)
	tg.PUT("/:id", api.updateType, adminOnly)
	tg.DELETE("/:id", api.destroyType, adminOnly)

	xg := eg.Group("/examinations")
	xg.GET("", api.queryExaminations)
	xg.POST("", api.createExamination, staffOnly)
	xg.GET("/:id", api.retrieveExamination)
	xg.PUT("/:id", api.updateExamination, staffOnly)
	xg.DELETE("/:id", api.destroyExamination, adminOnly)
	xg.GET("/:id/results", api.examinationResults, staffOnly)
	xg.GET("/:id/stats", api.examinationStats, staffOnly)

	rg := eg.Group("/results")
	rg.POST("", api.addResult, staffOnly)
	rg.GET("/students/:studentId", api.studentResults)
	rg.GET("/:id", api.retrieveResult)
	rg.PUT("/:id", api.updateResult, staffOnly)
	rg.DELETE("/:id", api.destroyResult, staffOnly)
}

// Exam Types

func (api *examApi) createType(ctx echo.Context) error {
	var data exam.NewExamType
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	et, err := api.svc.CreateExamType(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating exam type")
	}
	return created(ctx, "Exam type created successfully", et)
}

func (api *examApi) queryTypes(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	types, p, err := api.svc.QueryExamTypes(ctx.Request().Context(), exam.ExamTypeFilter{PageQuery: pq})
	if err != nil {
		return errors.Wrap(err, "querying exam types")
	}
	return page(ctx, "Exam types retrieved successfully", types, p)
}

func (api *examApi) retrieveType(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	et, err := api.svc.GetExamType(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding exam type")
	}
	return ok(ctx, "Exam type retrieved successfully", et)
}

func (api *examApi) updateType(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data exam.UpdateExamType
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	et, err := api.svc.UpdateExamType(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating exam type")
	}
	return ok(ctx, "Exam type updated successfully", et)
}

func (api *examApi) destroyType(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteExamType(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting exam type")
	}
	return deleted(ctx, "Exam type deleted successfully")
}

// Examinations

func (api *examApi) createExamination(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data exam.NewExamination
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	e, err := api.svc.CreateExamination(ctx.Request().Context(), data, claims.UserID)
	if err != nil {
		return errors.Wrap(err, "creating examination")
	}
	return created(ctx, "Examination created successfully", e)
}

func (api *examApi) queryExaminations(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	filter := exam.ExaminationFilter{PageQuery: pq}
	b := echo.QueryParamsBinder(ctx).
		Int64(examTypeIDParam, &filter.ExamTypeID).
		Int64(subjectIDParam, &filter.SubjectID).
		Int64(gradeIDParam, &filter.GradeID).
		Int64(sectionIDParam, &filter.SectionID).
		Int64(academicYearIDParam, &filter.AcademicYearID).
		Int64(termIDParam, &filter.TermID)
	if err := bindPeriod(b, &filter.StartDate, &filter.EndDate).BindError(); err != nil {
		return err
	}

	exams, p, err := api.svc.QueryExaminations(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying examinations")
	}
	return page(ctx, "Examinations retrieved successfully", exams, p)
}

func (api *examApi) retrieveExamination(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.GetExamination(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding examination")
	}
	return ok(ctx, "Examination retrieved successfully", e)
}

func (api *examApi) updateExamination(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data exam.UpdateExamination
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	e, err := api.svc.UpdateExamination(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating examination")
	}
	return ok(ctx, "Examination updated successfully", e)
}

func (api *examApi) destroyExamination(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteExamination(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting examination")
	}
	return deleted(ctx, "Examination deleted successfully")
}

func (api *examApi) examinationResults(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	results, err := api.svc.GetExaminationResults(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting examination results")
	}
	return list(ctx, "Exam results retrieved successfully", results)
}

func (api *examApi) examinationStats(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.GetExaminationStats(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting examination stats")
	}
	return ok(ctx, "Exam statistics retrieved successfully", stats)
}

// Results

func (api *examApi) addResult(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data exam.NewResult
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	r, err := api.svc.AddResult(ctx.Request().Context(), data, claims.UserID)
	if err != nil {
		return errors.Wrap(err, "adding exam result")
	}
	return created(ctx, "Exam result added successfully", r)
}

func (api *examApi) studentResults(ctx echo.Context) error {
	studentID, err := pathID(ctx, studentIDParam)
	if err != nil {
		return err
	}
	if err := api.access.student(ctx, studentID); err != nil {
		return err
	}
	filter := exam.ResultFilter{StudentID: studentID}
	err = echo.QueryParamsBinder(ctx).
		Int64(academicYearIDParam, &filter.AcademicYearID).
		Int64(termIDParam, &filter.TermID).
		BindError()
	if err != nil {
		return err
	}

	results, err := api.svc.GetStudentResults(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "getting student results")
	}
	return list(ctx, "Student exam results retrieved successfully", results)
}

func (api *examApi) retrieveResult(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	r, err := api.svc.GetResult(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding exam result")
	}
	if err := api.access.student(ctx, r.StudentID); err != nil {
		return err
	}
	return ok(ctx, "Exam result retrieved successfully", r)
}

func (api *examApi) updateResult(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data exam.UpdateResult
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	r, err := api.svc.UpdateResult(ctx.Request().Context(), id, data, claims.UserID)
	if err != nil {
		return errors.Wrap(err, "updating exam result")
	}
	return ok(ctx, "Exam result updated successfully", r)
}

func (api *examApi) destroyResult(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteResult(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting exam result")
	}
	return deleted(ctx, "Exam result deleted successfully")
}
