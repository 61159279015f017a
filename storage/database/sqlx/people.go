package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/people"
	"github.com/trezcool/shule/core/user"
)

const (
	studentsTable = "students"
	teachersTable = "teachers"
	parentsTable  = "parents"
)

var (
	personColumns  = []string{"u.first_name", "u.last_name", "u.email", "u.is_active"}
	studentColumns = append([]string{
		"st.id", "st.user_id", "st.admission_number", "st.gender", "st.date_of_birth", "st.section_id",
		"st.parent_id", "st.address", "st.phone", "st.admission_date", "st.created_at", "st.updated_at",
		"COALESCE(sec.name, '') AS section_name", "sec.grade_id", "COALESCE(g.name, '') AS grade_name",
	}, personColumns...)
	teacherColumns = append([]string{
		"t.id", "t.user_id", "t.employee_number", "t.phone", "t.qualification", "t.specialization",
		"t.hire_date", "t.created_at", "t.updated_at",
	}, personColumns...)
	parentColumns = append([]string{
		"p.id", "p.user_id", "p.phone", "p.occupation", "p.address", "p.created_at", "p.updated_at",
		"(SELECT COUNT(*) FROM students c WHERE c.parent_id = p.id) AS children_count",
	}, personColumns...)

	studentOrdering = map[string]string{
		"first_name":       "u.first_name",
		"last_name":        "u.last_name",
		"admission_number": "st.admission_number",
		"admission_date":   "st.admission_date",
		"created_at":       "st.created_at",
	}
	teacherOrdering = map[string]string{
		"first_name":      "u.first_name",
		"last_name":       "u.last_name",
		"employee_number": "t.employee_number",
		"hire_date":       "t.hire_date",
		"created_at":      "t.created_at",
	}
	parentOrdering = map[string]string{
		"first_name": "u.first_name",
		"last_name":  "u.last_name",
		"created_at": "p.created_at",
	}
)

type peopleRepository struct {
	store
	users *userRepository
}

var _ people.Repository = (*peopleRepository)(nil) // interface compliance check

func NewPeopleRepository(db *sqlx.DB) *peopleRepository {
	return &peopleRepository{store: newStore(db), users: NewUserRepository(db)}
}

// updatePerson saves the user attributes shown on the profile.
func (repo *peopleRepository) updatePerson(ctx context.Context, tx *sqlx.Tx, p people.Person) error {
	return repo.updateByID(ctx, tx, usersTable, p.UserID, map[string]interface{}{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"email":      p.Email,
		"is_active":  p.IsActive,
		"updated_at": sq.Expr("CURRENT_TIMESTAMP"),
	}, user.ErrNotFound, user.ErrEmailExists)
}

// deleteProfile deletes a profile row and then its user.
func (repo *peopleRepository) deleteProfile(ctx context.Context, table string, id, userID int64, notFound error) error {
	return repo.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := repo.deleteByID(ctx, tx, table, id, notFound); err != nil {
			return err
		}
		return repo.deleteByID(ctx, tx, usersTable, userID, user.ErrNotFound)
	})
}

// Students

func (repo *peopleRepository) selectStudents() sq.SelectBuilder {
	return repo.sb.Select(studentColumns...).
		From(studentsTable + " st").
		Join(usersTable + " u ON u.id = st.user_id").
		LeftJoin(sectionsTable + " sec ON sec.id = st.section_id").
		LeftJoin(gradesTable + " g ON g.id = sec.grade_id")
}

func (repo *peopleRepository) AdmissionNumberExists(ctx context.Context, number string, excludeID int64) (bool, error) {
	return repo.existsWhere(ctx, studentsTable, sq.Eq{"admission_number": number}, excludeID)
}

func (repo *peopleRepository) CreateStudent(ctx context.Context, usr user.User, st people.Student) (people.Student, error) {
	var id int64
	err := repo.withTx(ctx, func(tx *sqlx.Tx) error {
		userID, err := repo.users.insertUser(ctx, tx, usr)
		if err != nil {
			return err
		}
		id, err = repo.insert(ctx, tx, repo.sb.Insert(studentsTable).
			Columns("user_id", "admission_number", "gender", "date_of_birth", "section_id", "parent_id",
				"address", "phone", "admission_date", "created_at", "updated_at").
			Values(userID, st.AdmissionNumber, st.Gender, st.DateOfBirth, st.SectionID, st.ParentID,
				st.Address, st.Phone, st.AdmissionDate, st.CreatedAt, st.UpdatedAt))
		return trapConstraint(err, people.ErrAdmissionNumberExists, "inserting student")
	})
	if err != nil {
		return people.Student{}, err
	}
	return repo.GetStudentByID(ctx, id)
}

func (repo *peopleRepository) getStudent(ctx context.Context, pred interface{}) (people.Student, error) {
	var st people.Student
	if err := repo.get(ctx, repo.db, &st, repo.selectStudents().Where(pred)); err != nil {
		return people.Student{}, trapNoRows(err, people.ErrStudentNotFound, "finding student")
	}
	return st, nil
}

func (repo *peopleRepository) GetStudentByID(ctx context.Context, id int64) (people.Student, error) {
	return repo.getStudent(ctx, sq.Eq{"st.id": id})
}

func (repo *peopleRepository) GetStudentByUserID(ctx context.Context, userID int64) (people.Student, error) {
	return repo.getStudent(ctx, sq.Eq{"st.user_id": userID})
}

func (repo *peopleRepository) QueryStudents(ctx context.Context, filter people.StudentFilter) ([]people.Student, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "u.first_name", "u.last_name", "u.email", "st.admission_number"))
	}
	if filter.SectionID > 0 {
		where = append(where, sq.Eq{"st.section_id": filter.SectionID})
	}
	if filter.GradeID > 0 {
		where = append(where, sq.Eq{"sec.grade_id": filter.GradeID})
	}
	if filter.ParentID > 0 {
		where = append(where, sq.Eq{"st.parent_id": filter.ParentID})
	}
	if filter.IsActive != nil {
		where = append(where, sq.Eq{"u.is_active": *filter.IsActive})
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").
		From(studentsTable+" st").
		Join(usersTable+" u ON u.id = st.user_id").
		LeftJoin(sectionsTable+" sec ON sec.id = st.section_id").
		Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting students")
	}

	students := make([]people.Student, 0)
	ord := filter.Ordering(studentOrdering, core.DBOrdering{Field: "st.created_at"})
	if err = repo.sel(ctx, repo.db, &students, page(repo.selectStudents().Where(where), filter.PageQuery, ord)); err != nil {
		return nil, 0, errors.Wrap(err, "querying students")
	}
	return students, total, nil
}

func (repo *peopleRepository) UpdateStudent(ctx context.Context, st people.Student) (people.Student, error) {
	err := repo.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := repo.updatePerson(ctx, tx, st.Person); err != nil {
			return err
		}
		return repo.updateByID(ctx, tx, studentsTable, st.ID, map[string]interface{}{
			"admission_number": st.AdmissionNumber,
			"gender":           st.Gender,
			"date_of_birth":    st.DateOfBirth,
			"section_id":       st.SectionID,
			"parent_id":        st.ParentID,
			"address":          st.Address,
			"phone":            st.Phone,
			"admission_date":   st.AdmissionDate,
			"updated_at":       st.UpdatedAt,
		}, people.ErrStudentNotFound, people.ErrAdmissionNumberExists)
	})
	if err != nil {
		return people.Student{}, err
	}
	return repo.GetStudentByID(ctx, st.ID)
}

func (repo *peopleRepository) DeleteStudent(ctx context.Context, id int64) error {
	st, err := repo.GetStudentByID(ctx, id)
	if err != nil {
		return err
	}
	return repo.deleteProfile(ctx, studentsTable, id, st.UserID, people.ErrStudentNotFound)
}

func (repo *peopleRepository) CountStudentPayments(ctx context.Context, studentID int64) (int, error) {
	return repo.countWhere(ctx, paymentsTable, sq.Eq{"student_id": studentID})
}

func (repo *peopleRepository) CountStudentExamResults(ctx context.Context, studentID int64) (int, error) {
	return repo.countWhere(ctx, resultsTable, sq.Eq{"student_id": studentID})
}

// Teachers

func (repo *peopleRepository) selectTeachers() sq.SelectBuilder {
	return repo.sb.Select(teacherColumns...).
		From(teachersTable + " t").
		Join(usersTable + " u ON u.id = t.user_id")
}

func (repo *peopleRepository) EmployeeNumberExists(ctx context.Context, number string, excludeID int64) (bool, error) {
	return repo.existsWhere(ctx, teachersTable, sq.Eq{"employee_number": number}, excludeID)
}

func (repo *peopleRepository) CreateTeacher(ctx context.Context, usr user.User, t people.Teacher) (people.Teacher, error) {
	var id int64
	err := repo.withTx(ctx, func(tx *sqlx.Tx) error {
		userID, err := repo.users.insertUser(ctx, tx, usr)
		if err != nil {
			return err
		}
		id, err = repo.insert(ctx, tx, repo.sb.Insert(teachersTable).
			Columns("user_id", "employee_number", "phone", "qualification", "specialization", "hire_date",
				"created_at", "updated_at").
			Values(userID, t.EmployeeNumber, t.Phone, t.Qualification, t.Specialization, t.HireDate,
				t.CreatedAt, t.UpdatedAt))
		return trapConstraint(err, people.ErrEmployeeNumberExists, "inserting teacher")
	})
	if err != nil {
		return people.Teacher{}, err
	}
	return repo.GetTeacherByID(ctx, id)
}

func (repo *peopleRepository) getTeacher(ctx context.Context, pred interface{}) (people.Teacher, error) {
	var t people.Teacher
	if err := repo.get(ctx, repo.db, &t, repo.selectTeachers().Where(pred)); err != nil {
		return people.Teacher{}, trapNoRows(err, people.ErrTeacherNotFound, "finding teacher")
	}
	return t, nil
}

func (repo *peopleRepository) GetTeacherByID(ctx context.Context, id int64) (people.Teacher, error) {
	return repo.getTeacher(ctx, sq.Eq{"t.id": id})
}

func (repo *peopleRepository) GetTeacherByUserID(ctx context.Context, userID int64) (people.Teacher, error) {
	return repo.getTeacher(ctx, sq.Eq{"t.user_id": userID})
}

func (repo *peopleRepository) QueryTeachers(ctx context.Context, filter people.TeacherFilter) ([]people.Teacher, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "u.first_name", "u.last_name", "u.email", "t.employee_number"))
	}
	if filter.IsActive != nil {
		where = append(where, sq.Eq{"u.is_active": *filter.IsActive})
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").
		From(teachersTable+" t").
		Join(usersTable+" u ON u.id = t.user_id").
		Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting teachers")
	}

	teachers := make([]people.Teacher, 0)
	ord := filter.Ordering(teacherOrdering, core.DBOrdering{Field: "t.created_at"})
	if err = repo.sel(ctx, repo.db, &teachers, page(repo.selectTeachers().Where(where), filter.PageQuery, ord)); err != nil {
		return nil, 0, errors.Wrap(err, "querying teachers")
	}
	return teachers, total, nil
}

func (repo *peopleRepository) UpdateTeacher(ctx context.Context, t people.Teacher) (people.Teacher, error) {
	err := repo.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := repo.updatePerson(ctx, tx, t.Person); err != nil {
			return err
		}
		return repo.updateByID(ctx, tx, teachersTable, t.ID, map[string]interface{}{
			"employee_number": t.EmployeeNumber,
			"phone":           t.Phone,
			"qualification":   t.Qualification,
			"specialization":  t.Specialization,
			"hire_date":       t.HireDate,
			"updated_at":      t.UpdatedAt,
		}, people.ErrTeacherNotFound, people.ErrEmployeeNumberExists)
	})
	if err != nil {
		return people.Teacher{}, err
	}
	return repo.GetTeacherByID(ctx, t.ID)
}

func (repo *peopleRepository) DeleteTeacher(ctx context.Context, id int64) error {
	t, err := repo.GetTeacherByID(ctx, id)
	if err != nil {
		return err
	}
	return repo.deleteProfile(ctx, teachersTable, id, t.UserID, people.ErrTeacherNotFound)
}

func (repo *peopleRepository) CountTeacherSections(ctx context.Context, teacherID int64) (int, error) {
	return repo.countWhere(ctx, sectionsTable, sq.Eq{"class_teacher_id": teacherID})
}

// Parents

func (repo *peopleRepository) selectParents() sq.SelectBuilder {
	return repo.sb.Select(parentColumns...).
		From(parentsTable + " p").
		Join(usersTable + " u ON u.id = p.user_id")
}

func (repo *peopleRepository) CreateParent(ctx context.Context, usr user.User, p people.Parent) (people.Parent, error) {
	var id int64
	err := repo.withTx(ctx, func(tx *sqlx.Tx) error {
		userID, err := repo.users.insertUser(ctx, tx, usr)
		if err != nil {
			return err
		}
		id, err = repo.insert(ctx, tx, repo.sb.Insert(parentsTable).
			Columns("user_id", "phone", "occupation", "address", "created_at", "updated_at").
			Values(userID, p.Phone, p.Occupation, p.Address, p.CreatedAt, p.UpdatedAt))
		return errors.Wrap(err, "inserting parent")
	})
	if err != nil {
		return people.Parent{}, err
	}
	return repo.GetParentByID(ctx, id)
}

func (repo *peopleRepository) getParent(ctx context.Context, pred interface{}) (people.Parent, error) {
	var p people.Parent
	if err := repo.get(ctx, repo.db, &p, repo.selectParents().Where(pred)); err != nil {
		return people.Parent{}, trapNoRows(err, people.ErrParentNotFound, "finding parent")
	}
	return p, nil
}

func (repo *peopleRepository) GetParentByID(ctx context.Context, id int64) (people.Parent, error) {
	return repo.getParent(ctx, sq.Eq{"p.id": id})
}

func (repo *peopleRepository) GetParentByUserID(ctx context.Context, userID int64) (people.Parent, error) {
	return repo.getParent(ctx, sq.Eq{"p.user_id": userID})
}

func (repo *peopleRepository) QueryParents(ctx context.Context, filter people.ParentFilter) ([]people.Parent, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "u.first_name", "u.last_name", "u.email", "p.phone"))
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").
		From(parentsTable+" p").
		Join(usersTable+" u ON u.id = p.user_id").
		Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting parents")
	}

	parents := make([]people.Parent, 0)
	ord := filter.Ordering(parentOrdering, core.DBOrdering{Field: "p.created_at"})
	if err = repo.sel(ctx, repo.db, &parents, page(repo.selectParents().Where(where), filter.PageQuery, ord)); err != nil {
		return nil, 0, errors.Wrap(err, "querying parents")
	}
	return parents, total, nil
}

func (repo *peopleRepository) UpdateParent(ctx context.Context, p people.Parent) (people.Parent, error) {
	err := repo.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := repo.updatePerson(ctx, tx, p.Person); err != nil {
			return err
		}
		return repo.updateByID(ctx, tx, parentsTable, p.ID, map[string]interface{}{
			"phone":      p.Phone,
			"occupation": p.Occupation,
			"address":    p.Address,
			"updated_at": p.UpdatedAt,
		}, people.ErrParentNotFound, errReferenced)
	})
	if err != nil {
		return people.Parent{}, err
	}
	return repo.GetParentByID(ctx, p.ID)
}

func (repo *peopleRepository) DeleteParent(ctx context.Context, id int64) error {
	p, err := repo.GetParentByID(ctx, id)
	if err != nil {
		return err
	}
	return repo.deleteProfile(ctx, parentsTable, id, p.UserID, people.ErrParentNotFound)
}

func (repo *peopleRepository) CountParentChildren(ctx context.Context, parentID int64) (int, error) {
	return repo.countWhere(ctx, studentsTable, sq.Eq{"parent_id": parentID})
}
