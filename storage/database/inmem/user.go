package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/people"
	"github.com/trezcool/shule/core/user"
)

var userOrderings = orderings[user.User]{
	"first_name": func(a, b user.User) int { return compareStrings(a.FirstName, b.FirstName) },
	"last_name":  func(a, b user.User) int { return compareStrings(a.LastName, b.LastName) },
	"email":      func(a, b user.User) int { return compareStrings(a.Email, b.Email) },
	"role":       func(a, b user.User) int { return compareStrings(a.Role, b.Role) },
	"last_login": func(a, b user.User) int { return compareTimePtrs(a.LastLogin, b.LastLogin) },
	"created_at": func(a, b user.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) EmailExists(_ context.Context, email string, excludeID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.emailExists(email, excludeID), nil
}

func (db *DB) emailExists(email string, excludeID int64) bool {
	return exists(db.users, excludeID, func(u user.User) bool { return u.Email == email })
}

// insertUser must be called with the write lock held.
func (db *DB) insertUser(usr user.User) (user.User, error) {
	if db.emailExists(usr.Email, 0) {
		return user.User{}, user.ErrEmailExists
	}
	usr.ID = db.nextID()
	db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.db.insertUser(usr)
}

func (repo *userRepository) GetUserByID(_ context.Context, id int64) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter) ([]user.User, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := where(rows(repo.db.users), func(u user.User) bool {
		return (filter.Search == "" || matches(filter.Search, u.FirstName, u.LastName, u.Email)) &&
			(filter.Role == "" || u.Role == filter.Role) &&
			(filter.IsActive == nil || u.IsActive == *filter.IsActive)
	})
	users, total := paginate(users, filter.PageQuery, userOrderings, "created_at", false)
	return users, total, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.db.emailExists(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) DeleteUser(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.db.deleteUser(id)
}

// deleteUser deletes the user along with its profile, unless other records reference the profile.
// It must be called with the write lock held.
func (db *DB) deleteUser(id int64) error {
	if _, ok := db.users[id]; !ok {
		return user.ErrNotFound
	}

	for stID, st := range db.students {
		if st.UserID == id {
			if db.studentReferenced(stID) {
				return errReferenced
			}
			db.deleteStudent(stID)
		}
	}
	for tID, t := range db.teachers {
		if t.UserID == id {
			if count(db.sections, func(s academic.Section) bool { return eqPtr(s.ClassTeacherID, tID) }) > 0 {
				return errReferenced
			}
			delete(db.teachers, tID)
		}
	}
	for pID, p := range db.parents {
		if p.UserID == id {
			if count(db.students, func(st people.Student) bool { return eqPtr(st.ParentID, pID) }) > 0 {
				return errReferenced
			}
			delete(db.parents, pID)
		}
	}

	delete(db.users, id)
	return nil
}

func compareTimePtrs(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
