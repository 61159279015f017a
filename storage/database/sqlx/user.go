package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const usersTable = "users"

var (
	userColumns = []string{
		"id", "first_name", "last_name", "email", "role", "is_active", "password_hash",
		"last_login", "created_at", "updated_at",
	}
	userOrdering = map[string]string{
		"first_name": "first_name",
		"last_name":  "last_name",
		"email":      "email",
		"role":       "role",
		"last_login": "last_login",
		"created_at": "created_at",
	}
)

type userRepository struct {
	store
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{store: newStore(db)}
}

func (repo *userRepository) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	return repo.existsWhere(ctx, usersTable, sq.Eq{"email": email}, excludeID)
}

func (repo *userRepository) insertUser(ctx context.Context, exec sqlx.ExtContext, usr user.User) (int64, error) {
	id, err := repo.insert(ctx, exec, repo.sb.Insert(usersTable).
		Columns("first_name", "last_name", "email", "role", "is_active", "password_hash", "created_at", "updated_at").
		Values(usr.FirstName, usr.LastName, usr.Email, usr.Role, usr.IsActive, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt))
	if err != nil {
		return 0, trapConstraint(err, user.ErrEmailExists, "inserting user")
	}
	return id, nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	id, err := repo.insertUser(ctx, repo.db, usr)
	if err != nil {
		return user.User{}, err
	}
	return repo.GetUserByID(ctx, id)
}

func (repo *userRepository) getUser(ctx context.Context, pred interface{}) (user.User, error) {
	var usr user.User
	err := repo.get(ctx, repo.db, &usr, repo.sb.Select(userColumns...).From(usersTable).Where(pred))
	if err != nil {
		return user.User{}, trapNoRows(err, user.ErrNotFound, "finding user")
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int64) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"id": id})
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"email": email})
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "first_name", "last_name", "email"))
	}
	if filter.Role != "" {
		where = append(where, sq.Eq{"role": filter.Role})
	}
	if filter.IsActive != nil {
		where = append(where, sq.Eq{"is_active": *filter.IsActive})
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").From(usersTable).Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting users")
	}

	users := make([]user.User, 0)
	ord := filter.Ordering(userOrdering, core.DBOrdering{Field: "created_at"})
	q := page(repo.sb.Select(userColumns...).From(usersTable).Where(where), filter.PageQuery, ord)
	if err = repo.sel(ctx, repo.db, &users, q); err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	return users, total, nil
}

func (repo *userRepository) updateUser(ctx context.Context, exec sqlx.ExecerContext, usr user.User) error {
	return repo.updateByID(ctx, exec, usersTable, usr.ID, map[string]interface{}{
		"first_name":    usr.FirstName,
		"last_name":     usr.LastName,
		"email":         usr.Email,
		"role":          usr.Role,
		"is_active":     usr.IsActive,
		"password_hash": usr.PasswordHash,
		"last_login":    usr.LastLogin,
		"updated_at":    usr.UpdatedAt,
	}, user.ErrNotFound, user.ErrEmailExists)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.updateUser(ctx, repo.db, usr); err != nil {
		return user.User{}, err
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) DeleteUser(ctx context.Context, id int64) error {
	return repo.deleteByID(ctx, repo.db, usersTable, id, user.ErrNotFound)
}
