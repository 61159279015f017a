package inmemdb

import (
	"context"

	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/people"
	"github.com/trezcool/shule/core/user"
)

var (
	studentOrderings = orderings[people.Student]{
		"first_name":       func(a, b people.Student) int { return compareStrings(a.FirstName, b.FirstName) },
		"last_name":        func(a, b people.Student) int { return compareStrings(a.LastName, b.LastName) },
		"admission_number": func(a, b people.Student) int { return compareStrings(a.AdmissionNumber, b.AdmissionNumber) },
		"admission_date":   func(a, b people.Student) int { return compareDates(a.AdmissionDate, b.AdmissionDate) },
		"created_at":       func(a, b people.Student) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
	teacherOrderings = orderings[people.Teacher]{
		"first_name":      func(a, b people.Teacher) int { return compareStrings(a.FirstName, b.FirstName) },
		"last_name":       func(a, b people.Teacher) int { return compareStrings(a.LastName, b.LastName) },
		"employee_number": func(a, b people.Teacher) int { return compareStrings(a.EmployeeNumber, b.EmployeeNumber) },
		"hire_date":       func(a, b people.Teacher) int { return compareDates(a.HireDate, b.HireDate) },
		"created_at":      func(a, b people.Teacher) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
	parentOrderings = orderings[people.Parent]{
		"first_name": func(a, b people.Parent) int { return compareStrings(a.FirstName, b.FirstName) },
		"last_name":  func(a, b people.Parent) int { return compareStrings(a.LastName, b.LastName) },
		"created_at": func(a, b people.Parent) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
)

type peopleRepository struct {
	db *DB
}

var _ people.Repository = (*peopleRepository)(nil) // interface compliance check

func NewPeopleRepository(db *DB) *peopleRepository {
	return &peopleRepository{db: db}
}

func (db *DB) person(userID int64) people.Person {
	if usr, ok := db.users[userID]; ok {
		return people.PersonOf(*usr)
	}
	return people.Person{UserID: userID}
}

// savePerson saves the user attributes shown on a profile. It must be called with the write lock held.
func (db *DB) savePerson(p people.Person) error {
	usr, ok := db.users[p.UserID]
	if !ok {
		return user.ErrNotFound
	}
	if db.emailExists(p.Email, p.UserID) {
		return user.ErrEmailExists
	}
	usr.FirstName, usr.LastName, usr.Email, usr.IsActive = p.FirstName, p.LastName, p.Email, p.IsActive
	return nil
}

// Students

func (db *DB) student(st people.Student) people.Student {
	st.Person = db.person(st.UserID)
	st.SectionName, st.GradeID, st.GradeName = "", nil, ""
	if st.SectionID != nil {
		if sec, ok := db.sections[*st.SectionID]; ok {
			gradeID := sec.GradeID
			st.SectionName, st.GradeID = sec.Name, &gradeID
			if g, ok := db.grades[gradeID]; ok {
				st.GradeName = g.Name
			}
		}
	}
	return st
}

func (db *DB) admissionNumberExists(number string, excludeID int64) bool {
	return exists(db.students, excludeID, func(st people.Student) bool { return st.AdmissionNumber == number })
}

func (db *DB) checkStudentRefs(st people.Student) error {
	if st.SectionID != nil {
		if _, ok := db.sections[*st.SectionID]; !ok {
			return errReferenced
		}
	}
	if st.ParentID != nil {
		if _, ok := db.parents[*st.ParentID]; !ok {
			return errReferenced
		}
	}
	return nil
}

func (repo *peopleRepository) AdmissionNumberExists(_ context.Context, number string, excludeID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.admissionNumberExists(number, excludeID), nil
}

func (repo *peopleRepository) CreateStudent(_ context.Context, usr user.User, st people.Student) (people.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.admissionNumberExists(st.AdmissionNumber, 0) {
		return people.Student{}, people.ErrAdmissionNumberExists
	}
	if err := repo.db.checkStudentRefs(st); err != nil {
		return people.Student{}, err
	}
	usr, err := repo.db.insertUser(usr)
	if err != nil {
		return people.Student{}, err
	}
	st.ID, st.UserID = repo.db.nextID(), usr.ID
	repo.db.students[st.ID] = &st
	return repo.db.student(st), nil
}

func (repo *peopleRepository) GetStudentByID(_ context.Context, id int64) (people.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if st, ok := repo.db.students[id]; ok {
		return repo.db.student(*st), nil
	}
	return people.Student{}, people.ErrStudentNotFound
}

func (repo *peopleRepository) GetStudentByUserID(_ context.Context, userID int64) (people.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, st := range repo.db.students {
		if st.UserID == userID {
			return repo.db.student(*st), nil
		}
	}
	return people.Student{}, people.ErrStudentNotFound
}

func (repo *peopleRepository) QueryStudents(_ context.Context, filter people.StudentFilter) ([]people.Student, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := rows(repo.db.students)
	for i := range students {
		students[i] = repo.db.student(students[i])
	}
	students = where(students, func(st people.Student) bool {
		return (filter.Search == "" || matches(filter.Search, st.FirstName, st.LastName, st.Email, st.AdmissionNumber)) &&
			(filter.SectionID == 0 || eqPtr(st.SectionID, filter.SectionID)) &&
			(filter.GradeID == 0 || eqPtr(st.GradeID, filter.GradeID)) &&
			(filter.ParentID == 0 || eqPtr(st.ParentID, filter.ParentID)) &&
			(filter.IsActive == nil || st.IsActive == *filter.IsActive)
	})
	students, total := paginate(students, filter.PageQuery, studentOrderings, "created_at", false)
	return students, total, nil
}

func (repo *peopleRepository) UpdateStudent(_ context.Context, st people.Student) (people.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.students[st.ID]
	if !ok {
		return people.Student{}, people.ErrStudentNotFound
	}
	if repo.db.admissionNumberExists(st.AdmissionNumber, st.ID) {
		return people.Student{}, people.ErrAdmissionNumberExists
	}
	if err := repo.db.checkStudentRefs(st); err != nil {
		return people.Student{}, err
	}
	if err := repo.db.savePerson(st.Person); err != nil {
		return people.Student{}, err
	}
	st.UserID, st.CreatedAt = orig.UserID, orig.CreatedAt
	repo.db.students[st.ID] = &st
	return repo.db.student(st), nil
}

func (db *DB) studentReferenced(id int64) bool {
	return count(db.payments, func(p payment.Payment) bool { return p.StudentID == id }) > 0 ||
		count(db.results, func(r exam.Result) bool { return r.StudentID == id }) > 0
}

// deleteStudent deletes the student profile and its attendance. It must be called with the write lock held.
func (db *DB) deleteStudent(id int64) {
	for aID, a := range db.attendance {
		if a.StudentID == id {
			delete(db.attendance, aID)
		}
	}
	delete(db.students, id)
}

func (repo *peopleRepository) DeleteStudent(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	st, ok := repo.db.students[id]
	if !ok {
		return people.ErrStudentNotFound
	}
	if repo.db.studentReferenced(id) {
		return errReferenced
	}
	userID := st.UserID
	repo.db.deleteStudent(id)
	delete(repo.db.users, userID)
	return nil
}

func (repo *peopleRepository) CountStudentPayments(_ context.Context, studentID int64) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return count(repo.db.payments, func(p payment.Payment) bool { return p.StudentID == studentID }), nil
}

func (repo *peopleRepository) CountStudentExamResults(_ context.Context, studentID int64) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return count(repo.db.results, func(r exam.Result) bool { return r.StudentID == studentID }), nil
}

// Teachers

func (db *DB) teacher(t people.Teacher) people.Teacher {
	t.Person = db.person(t.UserID)
	return t
}

func (db *DB) employeeNumberExists(number string, excludeID int64) bool {
	return exists(db.teachers, excludeID, func(t people.Teacher) bool { return t.EmployeeNumber == number })
}

func (repo *peopleRepository) EmployeeNumberExists(_ context.Context, number string, excludeID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.employeeNumberExists(number, excludeID), nil
}

func (repo *peopleRepository) CreateTeacher(_ context.Context, usr user.User, t people.Teacher) (people.Teacher, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.employeeNumberExists(t.EmployeeNumber, 0) {
		return people.Teacher{}, people.ErrEmployeeNumberExists
	}
	usr, err := repo.db.insertUser(usr)
	if err != nil {
		return people.Teacher{}, err
	}
	t.ID, t.UserID = repo.db.nextID(), usr.ID
	repo.db.teachers[t.ID] = &t
	return repo.db.teacher(t), nil
}

func (repo *peopleRepository) GetTeacherByID(_ context.Context, id int64) (people.Teacher, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.teachers[id]; ok {
		return repo.db.teacher(*t), nil
	}
	return people.Teacher{}, people.ErrTeacherNotFound
}

func (repo *peopleRepository) GetTeacherByUserID(_ context.Context, userID int64) (people.Teacher, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.teachers {
		if t.UserID == userID {
			return repo.db.teacher(*t), nil
		}
	}
	return people.Teacher{}, people.ErrTeacherNotFound
}

func (repo *peopleRepository) QueryTeachers(_ context.Context, filter people.TeacherFilter) ([]people.Teacher, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	teachers := rows(repo.db.teachers)
	for i := range teachers {
		teachers[i] = repo.db.teacher(teachers[i])
	}
	teachers = where(teachers, func(t people.Teacher) bool {
		return (filter.Search == "" || matches(filter.Search, t.FirstName, t.LastName, t.Email, t.EmployeeNumber)) &&
			(filter.IsActive == nil || t.IsActive == *filter.IsActive)
	})
	teachers, total := paginate(teachers, filter.PageQuery, teacherOrderings, "created_at", false)
	return teachers, total, nil
}

func (repo *peopleRepository) UpdateTeacher(_ context.Context, t people.Teacher) (people.Teacher, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.teachers[t.ID]
	if !ok {
		return people.Teacher{}, people.ErrTeacherNotFound
	}
	if repo.db.employeeNumberExists(t.EmployeeNumber, t.ID) {
		return people.Teacher{}, people.ErrEmployeeNumberExists
	}
	if err := repo.db.savePerson(t.Person); err != nil {
		return people.Teacher{}, err
	}
	t.UserID, t.CreatedAt = orig.UserID, orig.CreatedAt
	repo.db.teachers[t.ID] = &t
	return repo.db.teacher(t), nil
}

func (repo *peopleRepository) DeleteTeacher(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.teachers[id]
	if !ok {
		return people.ErrTeacherNotFound
	}
	if count(repo.db.sections, func(s academic.Section) bool { return eqPtr(s.ClassTeacherID, id) }) > 0 {
		return errReferenced
	}
	delete(repo.db.teachers, id)
	delete(repo.db.users, t.UserID)
	return nil
}

func (repo *peopleRepository) CountTeacherSections(_ context.Context, teacherID int64) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return count(repo.db.sections, func(s academic.Section) bool { return eqPtr(s.ClassTeacherID, teacherID) }), nil
}

// Parents

func (db *DB) parent(p people.Parent) people.Parent {
	p.Person = db.person(p.UserID)
	p.ChildrenCount = count(db.students, func(st people.Student) bool { return eqPtr(st.ParentID, p.ID) })
	return p
}

func (repo *peopleRepository) CreateParent(_ context.Context, usr user.User, p people.Parent) (people.Parent, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, err := repo.db.insertUser(usr)
	if err != nil {
		return people.Parent{}, err
	}
	p.ID, p.UserID = repo.db.nextID(), usr.ID
	repo.db.parents[p.ID] = &p
	return repo.db.parent(p), nil
}

func (repo *peopleRepository) GetParentByID(_ context.Context, id int64) (people.Parent, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.parents[id]; ok {
		return repo.db.parent(*p), nil
	}
	return people.Parent{}, people.ErrParentNotFound
}

func (repo *peopleRepository) GetParentByUserID(_ context.Context, userID int64) (people.Parent, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, p := range repo.db.parents {
		if p.UserID == userID {
			return repo.db.parent(*p), nil
		}
	}
	return people.Parent{}, people.ErrParentNotFound
}

func (repo *peopleRepository) QueryParents(_ context.Context, filter people.ParentFilter) ([]people.Parent, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	parents := rows(repo.db.parents)
	for i := range parents {
		parents[i] = repo.db.parent(parents[i])
	}
	parents = where(parents, func(p people.Parent) bool {
		return filter.Search == "" || matches(filter.Search, p.FirstName, p.LastName, p.Email, p.Phone)
	})
	parents, total := paginate(parents, filter.PageQuery, parentOrderings, "created_at", false)
	return parents, total, nil
}

func (repo *peopleRepository) UpdateParent(_ context.Context, p people.Parent) (people.Parent, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.parents[p.ID]
	if !ok {
		return people.Parent{}, people.ErrParentNotFound
	}
	if err := repo.db.savePerson(p.Person); err != nil {
		return people.Parent{}, err
	}
	p.UserID, p.CreatedAt = orig.UserID, orig.CreatedAt
	repo.db.parents[p.ID] = &p
	return repo.db.parent(p), nil
}

func (repo *peopleRepository) DeleteParent(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.parents[id]
	if !ok {
		return people.ErrParentNotFound
	}
	if count(repo.db.students, func(st people.Student) bool { return eqPtr(st.ParentID, id) }) > 0 {
		return errReferenced
	}
	delete(repo.db.parents, id)
	delete(repo.db.users, p.UserID)
	return nil
}

func (repo *peopleRepository) CountParentChildren(_ context.Context, parentID int64) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return count(repo.db.students, func(st people.Student) bool { return eqPtr(st.ParentID, parentID) }), nil
}
