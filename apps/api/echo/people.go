package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/people"
)

const (
	sectionIDParam = "sectionId"
	parentIDParam  = "parentId"
	isActiveParam  = "isActive"
)

type peopleApi struct {
	svc      *people.Service
	access   access
	validate *validator.Validate
}

func registerPeopleAPI(g *echo.Group, jwt echo.MiddlewareFunc, acc access, svc *people.Service, validate *validator.Validate) {
	api := peopleApi{svc: svc, access: acc, validate: validate}

	sg := g.Group("/students", jwt)
	sg.GET("", api.queryStudents, staffOnly)
	sg.POST("", api.createStudent, adminOnly)
	sg.GET("/me", api.myStudentProfile, studentOnly)
	sg.GET("/:id", api.retrieveStudent)
	sg.PUT("/:id", api.updateStudent, adminOnly)
	sg.DELETE("/:id", api.destroyStudent, adminOnly)

	tg := g.Group("/teachers", jwt)
	tg.GET("", api.queryTeachers, noParents)
	tg.POST("", api.createTeacher, adminOnly)
	tg.GET("/me", api.myTeacherProfile, teacherOnly)
	tg.GET("/:id", api.retrieveTeacher, noParents)
	tg.PUT("/:id", api.updateTeacher, adminOnly)
	tg.DELETE("/:id", api.destroyTeacher, adminOnly)

	pg := g.Group("/parents", jwt)
	pg.GET("", api.queryParents, staffOnly)
	pg.POST("", api.createParent, adminOnly)
	pg.GET("/me", api.myParentProfile, parentOnly)
	pg.GET("/:id", api.retrieveParent, adminOrParents)
	pg.GET("/:id/children", api.parentChildren, adminOrParents)
	pg.PUT("/:id", api.updateParent, adminOnly)
	pg.DELETE("/:id", api.destroyParent, adminOnly)
}

// Students

func (api *peopleApi) createStudent(ctx echo.Context) error {
	var data people.NewStudent
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	st, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return created(ctx, "Student created successfully", st)
}

func (api *peopleApi) queryStudents(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	filter := people.StudentFilter{PageQuery: pq}
	err = echo.QueryParamsBinder(ctx).
		Int64(sectionIDParam, &filter.SectionID).
		Int64(gradeIDParam, &filter.GradeID).
		Int64(parentIDParam, &filter.ParentID).
		BindError()
	if err != nil {
		return err
	}
	if filter.IsActive, err = optionalBool(ctx, isActiveParam); err != nil {
		return err
	}

	students, p, err := api.svc.QueryStudents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return page(ctx, "Students retrieved successfully", students, p)
}

func (api *peopleApi) myStudentProfile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	st, err := api.svc.GetStudentByUserID(ctx.Request().Context(), claims.UserID)
	if err != nil {
		return errors.Wrap(err, "finding student by user ID")
	}
	return ok(ctx, "Student retrieved successfully", st)
}

func (api *peopleApi) retrieveStudent(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.access.student(ctx, id); err != nil {
		return err
	}
	st, err := api.svc.GetStudent(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	return ok(ctx, "Student retrieved successfully", st)
}

func (api *peopleApi) updateStudent(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data people.UpdateStudent
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	st, err := api.svc.UpdateStudent(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ok(ctx, "Student updated successfully", st)
}

func (api *peopleApi) destroyStudent(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteStudent(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return deleted(ctx, "Student deleted successfully")
}

// Teachers

func (api *peopleApi) createTeacher(ctx echo.Context) error {
	var data people.NewTeacher
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	teacher, err := api.svc.CreateTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return created(ctx, "Teacher created successfully", teacher)
}

func (api *peopleApi) queryTeachers(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	filter := people.TeacherFilter{PageQuery: pq}
	if filter.IsActive, err = optionalBool(ctx, isActiveParam); err != nil {
		return err
	}

	teachers, p, err := api.svc.QueryTeachers(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return page(ctx, "Teachers retrieved successfully", teachers, p)
}

func (api *peopleApi) myTeacherProfile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	teacher, err := api.svc.GetTeacherByUserID(ctx.Request().Context(), claims.UserID)
	if err != nil {
		return errors.Wrap(err, "finding teacher by user ID")
	}
	return ok(ctx, "Teacher retrieved successfully", teacher)
}

func (api *peopleApi) retrieveTeacher(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	teacher, err := api.svc.GetTeacher(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding teacher")
	}
	return ok(ctx, "Teacher retrieved successfully", teacher)
}

func (api *peopleApi) updateTeacher(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data people.UpdateTeacher
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	teacher, err := api.svc.UpdateTeacher(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ok(ctx, "Teacher updated successfully", teacher)
}

func (api *peopleApi) destroyTeacher(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteTeacher(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return deleted(ctx, "Teacher deleted successfully")
}

// Parents

func (api *peopleApi) createParent(ctx echo.Context) error {
	var data people.NewParent
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	parent, err := api.svc.CreateParent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating parent")
	}
	return created(ctx, "Parent created successfully", parent)
}

func (api *peopleApi) queryParents(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	parents, p, err := api.svc.QueryParents(ctx.Request().Context(), people.ParentFilter{PageQuery: pq})
	if err != nil {
		return errors.Wrap(err, "querying parents")
	}
	return page(ctx, "Parents retrieved successfully", parents, p)
}

func (api *peopleApi) myParentProfile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	parent, err := api.svc.GetParentByUserID(ctx.Request().Context(), claims.UserID)
	if err != nil {
		return errors.Wrap(err, "finding parent by user ID")
	}
	return ok(ctx, "Parent retrieved successfully", parent)
}

func (api *peopleApi) retrieveParent(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.access.parent(ctx, id); err != nil {
		return err
	}
	parent, err := api.svc.GetParent(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding parent")
	}
	return ok(ctx, "Parent retrieved successfully", parent)
}

func (api *peopleApi) parentChildren(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.access.parent(ctx, id); err != nil {
		return err
	}
	children, err := api.svc.GetParentChildren(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting parent children")
	}
	return list(ctx, "Children retrieved successfully", children)
}

func (api *peopleApi) updateParent(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data people.UpdateParent
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	parent, err := api.svc.UpdateParent(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating parent")
	}
	return ok(ctx, "Parent updated successfully", parent)
}

func (api *peopleApi) destroyParent(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteParent(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting parent")
	}
	return deleted(ctx, "Parent deleted successfully")
}
