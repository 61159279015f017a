package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/academic"
)

const (
	gradeIDParam        = "gradeId"
	academicYearIDParam = "academicYearId"
	subjectIDParam      = "subjectId"
)

type academicApi struct {
	svc      *academic.Service
	validate *validator.Validate
}

func registerAcademicAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *academic.Service, validate *validator.Validate) {
	api := academicApi{svc: svc, validate: validate}

	ag := g.Group("/academic", jwt)

	gg := ag.Group("/grades")
	gg.GET("", api.queryGrades)
	gg.POST("", api.createGrade, adminOnly)
	gg.GET("/:id", api.retrieveGrade)
	gg.PUT("/:id", api.updateGrade, adminOnly)
	gg.DELETE("/:id", api.destroyGrade, adminOnly)
	gg.GET("/:id/subjects", api.gradeSubjects)
	gg.POST("/:id/subjects", api.assignSubject, adminOnly)
	gg.DELETE("/:id/subjects/:subjectId", api.removeSubject, adminOnly)

	sg := ag.Group("/sections")
	sg.GET("", api.querySections)
	sg.POST("", api.createSection, adminOnly)
	sg.GET("/:id", api.retrieveSection)
	sg.PUT("/:id", api.updateSection, adminOnly)
	sg.DELETE("/:id", api.destroySection, adminOnly)

	subg := ag.Group("/subjects")
	subg.GET("", api.querySubjects)
	subg.POST("", api.createSubject, adminOnly)
	subg.GET("/:id", api.retrieveSubject)
	subg.PUT("/:id", api.updateSubject, adminOnly)
	subg.DELETE("/:id", api.destroySubject, adminOnly)

	yg := ag.Group("/academic-years")
	yg.GET("", api.queryAcademicYears)
	yg.POST("", api.createAcademicYear, adminOnly)
	yg.GET("/current", api.currentAcademicYear)
	yg.GET("/:id", api.retrieveAcademicYear)
	yg.PUT("/:id", api.updateAcademicYear, adminOnly)
	yg.PUT("/:id/set-current", api.setCurrentAcademicYear, adminOnly)
	yg.DELETE("/:id", api.destroyAcademicYear, adminOnly)

	tg := ag.Group("/terms")
	tg.GET("", api.queryTerms)
	tg.POST("", api.createTerm, adminOnly)
	tg.GET("/current", api.currentTerm)
	tg.GET("/:id", api.retrieveTerm)
	tg.PUT("/:id", api.updateTerm, adminOnly)
	tg.PUT("/:id/set-current", api.setCurrentTerm, adminOnly)
	tg.DELETE("/:id", api.destroyTerm, adminOnly)
}

// Grades

func (api *academicApi) createGrade(ctx echo.Context) error {
	var data academic.NewGrade
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	grade, err := api.svc.CreateGrade(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating grade")
	}
	return created(ctx, "Grade created successfully", grade)
}

func (api *academicApi) queryGrades(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	grades, p, err := api.svc.QueryGrades(ctx.Request().Context(), academic.GradeFilter{PageQuery: pq})
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return page(ctx, "Grades retrieved successfully", grades, p)
}

func (api *academicApi) retrieveGrade(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	grade, err := api.svc.GetGrade(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding grade")
	}
	return ok(ctx, "Grade retrieved successfully", grade)
}

func (api *academicApi) updateGrade(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data academic.UpdateGrade
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	grade, err := api.svc.UpdateGrade(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating grade")
	}
	return ok(ctx, "Grade updated successfully", grade)
}

func (api *academicApi) destroyGrade(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteGrade(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return deleted(ctx, "Grade deleted successfully")
}

func (api *academicApi) gradeSubjects(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	subjects, err := api.svc.GetGradeSubjects(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting grade subjects")
	}
	return list(ctx, "Grade subjects retrieved successfully", subjects)
}

func (api *academicApi) assignSubject(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data academic.AssignSubject
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	gs, err := api.svc.AssignSubjectToGrade(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "assigning subject to grade")
	}
	return created(ctx, "Subject assigned to grade successfully", gs)
}

func (api *academicApi) removeSubject(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	subjectID, err := pathID(ctx, subjectIDParam)
	if err != nil {
		return err
	}
	if err := api.svc.RemoveSubjectFromGrade(ctx.Request().Context(), id, subjectID); err != nil {
		return errors.Wrap(err, "removing subject from grade")
	}
	return deleted(ctx, "Subject removed from grade successfully")
}

// Sections

func (api *academicApi) createSection(ctx echo.Context) error {
	var data academic.NewSection
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	section, err := api.svc.CreateSection(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating section")
	}
	return created(ctx, "Section created successfully", section)
}

func (api *academicApi) querySections(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	filter := academic.SectionFilter{PageQuery: pq}
	err = echo.QueryParamsBinder(ctx).
		Int64(gradeIDParam, &filter.GradeID).
		Int64(academicYearIDParam, &filter.AcademicYearID).
		BindError()
	if err != nil {
		return err
	}

	sections, p, err := api.svc.QuerySections(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying sections")
	}
	return page(ctx, "Sections retrieved successfully", sections, p)
}

func (api *academicApi) retrieveSection(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	section, err := api.svc.GetSection(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding section")
	}
	return ok(ctx, "Section retrieved successfully", section)
}

func (api *academicApi) updateSection(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data academic.UpdateSection
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	section, err := api.svc.UpdateSection(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating section")
	}
	return ok(ctx, "Section updated successfully", section)
}

func (api *academicApi) destroySection(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteSection(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting section")
	}
	return deleted(ctx, "Section deleted successfully")
}

// Subjects

func (api *academicApi) createSubject(ctx echo.Context) error {
	var data academic.NewSubject
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	subject, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return created(ctx, "Subject created successfully", subject)
}

func (api *academicApi) querySubjects(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	filter := academic.SubjectFilter{PageQuery: pq}
	if err := echo.QueryParamsBinder(ctx).Int64(gradeIDParam, &filter.GradeID).BindError(); err != nil {
		return err
	}

	subjects, p, err := api.svc.QuerySubjects(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return page(ctx, "Subjects retrieved successfully", subjects, p)
}

func (api *academicApi) retrieveSubject(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	subject, err := api.svc.GetSubject(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding subject")
	}
	return ok(ctx, "Subject retrieved successfully", subject)
}

func (api *academicApi) updateSubject(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data academic.UpdateSubject
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	subject, err := api.svc.UpdateSubject(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ok(ctx, "Subject updated successfully", subject)
}

func (api *academicApi) destroySubject(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteSubject(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return deleted(ctx, "Subject deleted successfully")
}

// Academic Years

func (api *academicApi) createAcademicYear(ctx echo.Context) error {
	var data academic.NewAcademicYear
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	year, err := api.svc.CreateAcademicYear(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating academic year")
	}
	return created(ctx, "Academic year created successfully", year)
}

func (api *academicApi) queryAcademicYears(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	years, p, err := api.svc.QueryAcademicYears(ctx.Request().Context(), academic.AcademicYearFilter{PageQuery: pq})
	if err != nil {
		return errors.Wrap(err, "querying academic years")
	}
	return page(ctx, "Academic years retrieved successfully", years, p)
}

func (api *academicApi) currentAcademicYear(ctx echo.Context) error {
	year, err := api.svc.GetCurrentAcademicYear(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "finding current academic year")
	}
	return ok(ctx, "Current academic year retrieved successfully", year)
}

func (api *academicApi) retrieveAcademicYear(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	year, err := api.svc.GetAcademicYear(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding academic year")
	}
	return ok(ctx, "Academic year retrieved successfully", year)
}

func (api *academicApi) updateAcademicYear(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data academic.UpdateAcademicYear
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	year, err := api.svc.UpdateAcademicYear(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating academic year")
	}
	return ok(ctx, "Academic year updated successfully", year)
}

func (api *academicApi) setCurrentAcademicYear(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	year, err := api.svc.SetCurrentAcademicYear(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "setting current academic year")
	}
	return ok(ctx, "Current academic year set successfully", year)
}

func (api *academicApi) destroyAcademicYear(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteAcademicYear(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting academic year")
	}
	return deleted(ctx, "Academic year deleted successfully")
}

// Terms

func (api *academicApi) createTerm(ctx echo.Context) error {
	var data academic.NewTerm
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	term, err := api.svc.CreateTerm(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating term")
	}
	return created(ctx, "Term created successfully", term)
}

func (api *academicApi) queryTerms(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	filter := academic.TermFilter{PageQuery: pq}
	if err := echo.QueryParamsBinder(ctx).Int64(academicYearIDParam, &filter.AcademicYearID).BindError(); err != nil {
		return err
	}

	terms, p, err := api.svc.QueryTerms(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying terms")
	}
	return page(ctx, "Terms retrieved successfully", terms, p)
}

func (api *academicApi) currentTerm(ctx echo.Context) error {
	term, err := api.svc.GetCurrentTerm(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "finding current term")
	}
	return ok(ctx, "Current term retrieved successfully", term)
}

func (api *academicApi) retrieveTerm(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	term, err := api.svc.GetTerm(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding term")
	}
	return ok(ctx, "Term retrieved successfully", term)
}

func (api *academicApi) updateTerm(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data academic.UpdateTerm
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	term, err := api.svc.UpdateTerm(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating term")
	}
	return ok(ctx, "Term updated successfully", term)
}

func (api *academicApi) setCurrentTerm(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	term, err := api.svc.SetCurrentTerm(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "setting current term")
	}
	return ok(ctx, "Current term set successfully", term)
}

func (api *academicApi) destroyTerm(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteTerm(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting term")
	}
	return deleted(ctx, "Term deleted successfully")
}
