package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/payment"
)

const (
	feeStructureIDParam = "feeStructureId"
	feeTypeParam        = "feeType"
	receiptNumberParam  = "receiptNumber"
)

type paymentApi struct {
	svc      *payment.Service
	access   access
	validate *validator.Validate
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, acc access, svc *payment.Service, validate *validator.Validate) {
	api := paymentApi{svc: svc, access: acc, validate: validate}

	pg := g.Group("/payments", jwt)

	fg := pg.Group("/fee-structures")
	fg.GET("", api.queryFeeStructures)
	fg.POST("", api.createFeeStructure, adminOnly)
	fg.GET("/:id", api.retrieveFeeStructure)
	fg.PUT("/:id", api.updateFeeStructure, adminOnly)
	fg.DELETE("/:id", api.destroyFeeStructure, adminOnly)

	pg.GET("", api.query)
	pg.POST("", api.create, adminOnly)
	pg.GET("/outstanding", api.outstanding)
	pg.GET("/stats", api.stats, adminOnly)
	pg.POST("/refresh-statuses", api.refreshStatuses, adminOnly)
	pg.GET("/receipt/:receiptNumber", api.retrieveByReceipt)
	pg.GET("/students/:studentId", api.studentPayments)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update, adminOnly)
	pg.DELETE("/:id", api.destroy, adminOnly)
}

// Fee Structures

func (api *paymentApi) createFeeStructure(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data payment.NewFeeStructure
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	fs, err := api.svc.CreateFeeStructure(ctx.Request().Context(), data, claims.UserID)
	if err != nil {
		return errors.Wrap(err, "creating fee structure")
	}
	return created(ctx, "Fee structure created successfully", fs)
}

func (api *paymentApi) queryFeeStructures(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	filter := payment.FeeStructureFilter{PageQuery: pq}
	err = echo.QueryParamsBinder(ctx).
		Int64(gradeIDParam, &filter.GradeID).
		Int64(academicYearIDParam, &filter.AcademicYearID).
		Int64(termIDParam, &filter.TermID).
		String(feeTypeParam, &filter.FeeType).
		BindError()
	if err != nil {
		return err
	}

	structures, p, err := api.svc.QueryFeeStructures(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	return page(ctx, "Fee structures retrieved successfully", structures, p)
}

func (api *paymentApi) retrieveFeeStructure(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	fs, err := api.svc.GetFeeStructure(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding fee structure")
	}
	return ok(ctx, "Fee structure retrieved successfully", fs)
}

func (api *paymentApi) updateFeeStructure(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data payment.UpdateFeeStructure
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	fs, err := api.svc.UpdateFeeStructure(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating fee structure")
	}
	return ok(ctx, "Fee structure updated successfully", fs)
}

func (api *paymentApi) destroyFeeStructure(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteFeeStructure(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	return deleted(ctx, "Fee structure deleted successfully")
}

// Payments

func (api *paymentApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data payment.NewPayment
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.CreatePayment(ctx.Request().Context(), data, claims.UserID)
	if err != nil {
		return errors.Wrap(err, "creating payment")
	}
	return created(ctx, "Payment recorded successfully", p)
}

func (api *paymentApi) query(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	filter := payment.QueryFilter{PageQuery: pq}
	b := echo.QueryParamsBinder(ctx).
		Int64(studentIDParam, &filter.StudentID).
		Int64(feeStructureIDParam, &filter.FeeStructureID).
		String(statusParam, &filter.Status)
	if err := bindPeriod(b, &filter.StartDate, &filter.EndDate).BindError(); err != nil {
		return err
	}
	if err := api.access.studentFilter(ctx, &filter.StudentID); err != nil {
		return err
	}

	payments, p, err := api.svc.QueryPayments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return page(ctx, "Payments retrieved successfully", payments, p)
}

func (api *paymentApi) outstanding(ctx echo.Context) error {
	var filter payment.OutstandingFilter
	err := echo.QueryParamsBinder(ctx).
		Int64(gradeIDParam, &filter.GradeID).
		Int64(studentIDParam, &filter.StudentID).
		Int64(academicYearIDParam, &filter.AcademicYearID).
		Int64(termIDParam, &filter.TermID).
		BindError()
	if err != nil {
		return err
	}
	if err := api.access.studentFilter(ctx, &filter.StudentID); err != nil {
		return err
	}

	rows, err := api.svc.GetOutstandingPayments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "getting outstanding payments")
	}
	return list(ctx, "Outstanding payments retrieved successfully", rows)
}

func (api *paymentApi) stats(ctx echo.Context) error {
	var start, end core.Date
	if err := bindPeriod(echo.QueryParamsBinder(ctx), &start, &end).BindError(); err != nil {
		return err
	}
	stats, err := api.svc.GetPaymentStats(ctx.Request().Context(), start, end)
	if err != nil {
		return errors.Wrap(err, "getting payment stats")
	}
	return ok(ctx, "Payment statistics retrieved successfully", stats)
}

func (api *paymentApi) refreshStatuses(ctx echo.Context) error {
	n, err := api.svc.RefreshStatuses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "refreshing payment statuses")
	}
	return ok(ctx, "Payment statuses refreshed successfully", echo.Map{"updated": n})
}

func (api *paymentApi) retrieveByReceipt(ctx echo.Context) error {
	p, err := api.svc.GetPaymentByReceipt(ctx.Request().Context(), ctx.Param(receiptNumberParam))
	if err != nil {
		return errors.Wrap(err, "finding payment by receipt")
	}
	if err := api.access.student(ctx, p.StudentID); err != nil {
		return err
	}
	return ok(ctx, "Payment retrieved successfully", p)
}

func (api *paymentApi) studentPayments(ctx echo.Context) error {
	studentID, err := pathID(ctx, studentIDParam)
	if err != nil {
		return err
	}
	if err := api.access.student(ctx, studentID); err != nil {
		return err
	}
	payments, err := api.svc.GetStudentPayments(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "getting student payments")
	}
	return list(ctx, "Student payments retrieved successfully", payments)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.GetPayment(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding payment")
	}
	if err := api.access.student(ctx, p.StudentID); err != nil {
		return err
	}
	return ok(ctx, "Payment retrieved successfully", p)
}

func (api *paymentApi) update(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data payment.UpdatePayment
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.UpdatePayment(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating payment")
	}
	return ok(ctx, "Payment updated successfully", p)
}

func (api *paymentApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeletePayment(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting payment")
	}
	return deleted(ctx, "Payment deleted successfully")
}
