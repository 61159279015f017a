package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/people"
	"github.com/trezcool/shule/core/user"
)

// access scopes student records: staff see every student, a student only themselves,
// a parent only their children.
type access struct {
	peopleSvc *people.Service
}

// student fails with errHttpForbidden unless the context user may read the records of `studentID`.
func (acc access) student(ctx echo.Context, studentID int64) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	switch claims.Role {
	case user.RoleAdmin, user.RoleTeacher:
		return nil
	case user.RoleStudent:
		st, err := acc.peopleSvc.GetStudentByUserID(ctx.Request().Context(), claims.UserID)
		if err != nil {
			if errors.Cause(err) == people.ErrStudentNotFound {
				return errHttpForbidden
			}
			return errors.Wrap(err, "finding student by user ID")
		}
		if st.ID == studentID {
			return nil
		}
	case user.RoleParent:
		isParent, err := acc.peopleSvc.IsParentOf(ctx.Request().Context(), claims.UserID, studentID)
		if err != nil {
			return errors.Wrap(err, "checking parent link")
		}
		if isParent {
			return nil
		}
	}
	return errHttpForbidden
}

// studentFilter restricts a list filter to the records the context user may read:
// students are pinned to themselves, parents must name one of their children.
func (acc access) studentFilter(ctx echo.Context, studentID *int64) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	switch claims.Role {
	case user.RoleAdmin, user.RoleTeacher:
		return nil
	case user.RoleStudent:
		st, err := acc.peopleSvc.GetStudentByUserID(ctx.Request().Context(), claims.UserID)
		if err != nil {
			if errors.Cause(err) == people.ErrStudentNotFound {
				return errHttpForbidden
			}
			return errors.Wrap(err, "finding student by user ID")
		}
		*studentID = st.ID
		return nil
	default:
		if *studentID == 0 {
			return errHttpForbidden
		}
		return acc.student(ctx, *studentID)
	}
}

// parent fails with errHttpForbidden unless the context user is an admin or the parent `parentID`.
func (acc access) parent(ctx echo.Context, parentID int64) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.Role == user.RoleAdmin {
		return nil
	}
	if claims.Role == user.RoleParent {
		p, err := acc.peopleSvc.GetParentByUserID(ctx.Request().Context(), claims.UserID)
		if err != nil && errors.Cause(err) != people.ErrParentNotFound {
			return errors.Wrap(err, "finding parent by user ID")
		}
		if err == nil && p.ID == parentID {
			return nil
		}
	}
	return errHttpForbidden
}
