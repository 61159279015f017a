package people

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/user"
)

var (
	ErrStudentNotFound = core.NewNotFoundError("student")
	ErrTeacherNotFound = core.NewNotFoundError("teacher")
	ErrParentNotFound  = core.NewNotFoundError("parent")

	ErrAdmissionNumberExists = core.NewConflictError("a student with this admission number already exists")
	ErrEmployeeNumberExists  = core.NewConflictError("a teacher with this employee number already exists")

	ErrStudentHasPayments    = core.NewConflictError("cannot delete student with recorded payments")
	ErrStudentHasExamResults = core.NewConflictError("cannot delete student with exam results")
	ErrTeacherHasSections    = core.NewConflictError("cannot delete teacher assigned as class teacher")
	ErrParentHasChildren     = core.NewConflictError("cannot delete parent with linked students")

	ErrNoFieldsToUpdate = core.NewValidationError(errors.New("no fields to update"))

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// students
		AdmissionNumberExists(ctx context.Context, number string, excludeID int64) (bool, error)
		// CreateStudent inserts the user and its student profile in one transaction.
		CreateStudent(ctx context.Context, usr user.User, st Student) (Student, error)
		GetStudentByID(ctx context.Context, id int64) (Student, error)
		GetStudentByUserID(ctx context.Context, userID int64) (Student, error)
		// QueryStudents: QueryFilter.Search does a case-insensitive match on names, email or admission number.
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, int, error)
		// UpdateStudent saves the student profile and its user attributes in one transaction.
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		// DeleteStudent deletes the student profile and its user in one transaction.
		DeleteStudent(ctx context.Context, id int64) error
		CountStudentPayments(ctx context.Context, studentID int64) (int, error)
		CountStudentExamResults(ctx context.Context, studentID int64) (int, error)

		// teachers
		EmployeeNumberExists(ctx context.Context, number string, excludeID int64) (bool, error)
		CreateTeacher(ctx context.Context, usr user.User, t Teacher) (Teacher, error)
		GetTeacherByID(ctx context.Context, id int64) (Teacher, error)
		GetTeacherByUserID(ctx context.Context, userID int64) (Teacher, error)
		QueryTeachers(ctx context.Context, filter TeacherFilter) ([]Teacher, int, error)
		UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		DeleteTeacher(ctx context.Context, id int64) error
		CountTeacherSections(ctx context.Context, teacherID int64) (int, error)

		// parents
		CreateParent(ctx context.Context, usr user.User, p Parent) (Parent, error)
		GetParentByID(ctx context.Context, id int64) (Parent, error)
		GetParentByUserID(ctx context.Context, userID int64) (Parent, error)
		QueryParents(ctx context.Context, filter ParentFilter) ([]Parent, int, error)
		UpdateParent(ctx context.Context, p Parent) (Parent, error)
		DeleteParent(ctx context.Context, id int64) error
		CountParentChildren(ctx context.Context, parentID int64) (int, error)
	}

	Service struct {
		repo        Repository
		usrSvc      *user.Service
		academicSvc *academic.Service
	}
)

func NewService(repo Repository, usrSvc *user.Service, academicSvc *academic.Service) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, academicSvc: academicSvc}
}

func now() time.Time { return nowFunc().UTC() }

func (svc *Service) checkExists(exists func() (bool, error), conflict error, msg string) error {
	ok, err := exists()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if ok {
		return conflict
	}
	return nil
}

func (svc *Service) checkNoDependents(count func() (int, error), conflict error, msg string) error {
	n, err := count()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n > 0 {
		return conflict
	}
	return nil
}

// updatePerson applies `up` onto `p`, checking the new email if it changes.
func (svc *Service) updatePerson(ctx context.Context, up UpdatePerson, p *Person) error {
	if up.Email != nil && *up.Email != p.Email {
		if err := svc.usrSvc.CheckEmail(ctx, *up.Email, p.UserID); err != nil {
			return err
		}
	}
	up.apply(p)
	return nil
}

// checkStudentLinks checks that the referenced section and parent exist.
func (svc *Service) checkStudentLinks(ctx context.Context, sectionID, parentID *int64) error {
	if sectionID != nil {
		if _, err := svc.academicSvc.GetSection(ctx, *sectionID); err != nil {
			return err
		}
	}
	if parentID != nil {
		if _, err := svc.repo.GetParentByID(ctx, *parentID); err != nil {
			return err
		}
	}
	return nil
}

// Students

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	usr, err := svc.usrSvc.Build(ctx, ns.NewUser)
	if err != nil {
		return Student{}, err
	}
	if err := svc.checkExists(func() (bool, error) { return svc.repo.AdmissionNumberExists(ctx, ns.AdmissionNumber, 0) },
		ErrAdmissionNumberExists, "checking admission number"); err != nil {
		return Student{}, err
	}
	if err := svc.checkStudentLinks(ctx, ns.SectionID, ns.ParentID); err != nil {
		return Student{}, err
	}

	admissionDate := ns.AdmissionDate
	if admissionDate.IsZero() {
		admissionDate = core.DateOf(now())
	}
	st, err := svc.repo.CreateStudent(ctx, usr, Student{
		AdmissionNumber: ns.AdmissionNumber,
		Gender:          ns.Gender,
		DateOfBirth:     ns.DateOfBirth,
		SectionID:       ns.SectionID,
		ParentID:        ns.ParentID,
		Address:         ns.Address,
		Phone:           ns.Phone,
		AdmissionDate:   admissionDate,
		CreatedAt:       usr.CreatedAt,
		UpdatedAt:       usr.UpdatedAt,
	})
	return st, errors.Wrap(err, "creating student")
}

func (svc *Service) GetStudent(ctx context.Context, id int64) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) GetStudentByUserID(ctx context.Context, userID int64) (Student, error) {
	return svc.repo.GetStudentByUserID(ctx, userID)
}

func (svc *Service) QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, core.Pagination, error) {
	filter.Clean()
	students, total, err := svc.repo.QueryStudents(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying students")
	}
	return students, core.NewPagination(filter.PageQuery, total), nil
}

func (svc *Service) UpdateStudent(ctx context.Context, id int64, us UpdateStudent) (Student, error) {
	if us.IsEmpty() {
		return Student{}, ErrNoFieldsToUpdate
	}
	st, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}

	if err := svc.updatePerson(ctx, us.UpdatePerson, &st.Person); err != nil {
		return Student{}, err
	}
	if us.AdmissionNumber != nil && *us.AdmissionNumber != st.AdmissionNumber {
		if err := svc.checkExists(func() (bool, error) { return svc.repo.AdmissionNumberExists(ctx, *us.AdmissionNumber, id) },
			ErrAdmissionNumberExists, "checking admission number"); err != nil {
			return Student{}, err
		}
		st.AdmissionNumber = *us.AdmissionNumber
	}
	if err := svc.checkStudentLinks(ctx, us.SectionID, us.ParentID); err != nil {
		return Student{}, err
	}
	if us.SectionID != nil {
		st.SectionID = us.SectionID
	}
	if us.ParentID != nil {
		st.ParentID = us.ParentID
	}
	if us.Gender != nil {
		st.Gender = *us.Gender
	}
	if us.DateOfBirth != nil {
		st.DateOfBirth = *us.DateOfBirth
	}
	if us.Address != nil {
		st.Address = *us.Address
	}
	if us.Phone != nil {
		st.Phone = *us.Phone
	}
	if us.AdmissionDate != nil {
		st.AdmissionDate = *us.AdmissionDate
	}
	st.UpdatedAt = now()

	st, err = svc.repo.UpdateStudent(ctx, st)
	return st, errors.Wrap(err, "updating student")
}

func (svc *Service) DeleteStudent(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetStudentByID(ctx, id); err != nil {
		return err
	}
	if err := svc.checkNoDependents(func() (int, error) { return svc.repo.CountStudentPayments(ctx, id) },
		ErrStudentHasPayments, "counting student payments"); err != nil {
		return err
	}
	if err := svc.checkNoDependents(func() (int, error) { return svc.repo.CountStudentExamResults(ctx, id) },
		ErrStudentHasExamResults, "counting student exam results"); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteStudent(ctx, id), "deleting student")
}

// Teachers

func (svc *Service) CreateTeacher(ctx context.Context, nt NewTeacher) (Teacher, error) {
	usr, err := svc.usrSvc.Build(ctx, nt.NewUser)
	if err != nil {
		return Teacher{}, err
	}
	if err := svc.checkExists(func() (bool, error) { return svc.repo.EmployeeNumberExists(ctx, nt.EmployeeNumber, 0) },
		ErrEmployeeNumberExists, "checking employee number"); err != nil {
		return Teacher{}, err
	}

	t, err := svc.repo.CreateTeacher(ctx, usr, Teacher{
		EmployeeNumber: nt.EmployeeNumber,
		Phone:          nt.Phone,
		Qualification:  nt.Qualification,
		Specialization: nt.Specialization,
		HireDate:       nt.HireDate,
		CreatedAt:      usr.CreatedAt,
		UpdatedAt:      usr.UpdatedAt,
	})
	return t, errors.Wrap(err, "creating teacher")
}

func (svc *Service) GetTeacher(ctx context.Context, id int64) (Teacher, error) {
	return svc.repo.GetTeacherByID(ctx, id)
}

func (svc *Service) GetTeacherByUserID(ctx context.Context, userID int64) (Teacher, error) {
	return svc.repo.GetTeacherByUserID(ctx, userID)
}

func (svc *Service) QueryTeachers(ctx context.Context, filter TeacherFilter) ([]Teacher, core.Pagination, error) {
	filter.Clean()
	teachers, total, err := svc.repo.QueryTeachers(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying teachers")
	}
	return teachers, core.NewPagination(filter.PageQuery, total), nil
}

func (svc *Service) UpdateTeacher(ctx context.Context, id int64, ut UpdateTeacher) (Teacher, error) {
	if ut.IsEmpty() {
		return Teacher{}, ErrNoFieldsToUpdate
	}
	t, err := svc.repo.GetTeacherByID(ctx, id)
	if err != nil {
		return Teacher{}, err
	}

	if err := svc.updatePerson(ctx, ut.UpdatePerson, &t.Person); err != nil {
		return Teacher{}, err
	}
	if ut.EmployeeNumber != nil && *ut.EmployeeNumber != t.EmployeeNumber {
		if err := svc.checkExists(func() (bool, error) { return svc.repo.EmployeeNumberExists(ctx, *ut.EmployeeNumber, id) },
			ErrEmployeeNumberExists, "checking employee number"); err != nil {
			return Teacher{}, err
		}
		t.EmployeeNumber = *ut.EmployeeNumber
	}
	if ut.Phone != nil {
		t.Phone = *ut.Phone
	}
	if ut.Qualification != nil {
		t.Qualification = *ut.Qualification
	}
	if ut.Specialization != nil {
		t.Specialization = *ut.Specialization
	}
	if ut.HireDate != nil {
		t.HireDate = *ut.HireDate
	}
	t.UpdatedAt = now()

	t, err = svc.repo.UpdateTeacher(ctx, t)
	return t, errors.Wrap(err, "updating teacher")
}

func (svc *Service) DeleteTeacher(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetTeacherByID(ctx, id); err != nil {
		return err
	}
	if err := svc.checkNoDependents(func() (int, error) { return svc.repo.CountTeacherSections(ctx, id) },
		ErrTeacherHasSections, "counting teacher sections"); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteTeacher(ctx, id), "deleting teacher")
}

// Parents

func (svc *Service) CreateParent(ctx context.Context, np NewParent) (Parent, error) {
	usr, err := svc.usrSvc.Build(ctx, np.NewUser)
	if err != nil {
		return Parent{}, err
	}
	p, err := svc.repo.CreateParent(ctx, usr, Parent{
		Phone:      np.Phone,
		Occupation: np.Occupation,
		Address:    np.Address,
		CreatedAt:  usr.CreatedAt,
		UpdatedAt:  usr.UpdatedAt,
	})
	return p, errors.Wrap(err, "creating parent")
}

func (svc *Service) GetParent(ctx context.Context, id int64) (Parent, error) {
	return svc.repo.GetParentByID(ctx, id)
}

func (svc *Service) GetParentByUserID(ctx context.Context, userID int64) (Parent, error) {
	return svc.repo.GetParentByUserID(ctx, userID)
}

func (svc *Service) QueryParents(ctx context.Context, filter ParentFilter) ([]Parent, core.Pagination, error) {
	filter.Clean()
	parents, total, err := svc.repo.QueryParents(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying parents")
	}
	return parents, core.NewPagination(filter.PageQuery, total), nil
}

// GetParentChildren returns every student linked to the parent.
func (svc *Service) GetParentChildren(ctx context.Context, parentID int64) ([]Student, error) {
	if _, err := svc.repo.GetParentByID(ctx, parentID); err != nil {
		return nil, err
	}
	filter := StudentFilter{ParentID: parentID}
	filter.Clean()
	students, err := core.QueryAll(filter.PageQuery, func(pq core.PageQuery) ([]Student, int, error) {
		filter.PageQuery = pq
		return svc.repo.QueryStudents(ctx, filter)
	})
	return students, errors.Wrap(err, "querying parent children")
}

// IsParentOf reports whether the student `studentID` is linked to the parent profile of `userID`.
func (svc *Service) IsParentOf(ctx context.Context, userID, studentID int64) (bool, error) {
	p, err := svc.repo.GetParentByUserID(ctx, userID)
	if err != nil {
		if errors.Cause(err) == ErrParentNotFound {
			return false, nil
		}
		return false, err
	}
	st, err := svc.repo.GetStudentByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == ErrStudentNotFound {
			return false, nil
		}
		return false, err
	}
	return st.ParentID != nil && *st.ParentID == p.ID, nil
}

func (svc *Service) UpdateParent(ctx context.Context, id int64, up UpdateParent) (Parent, error) {
	if up.IsEmpty() {
		return Parent{}, ErrNoFieldsToUpdate
	}
	p, err := svc.repo.GetParentByID(ctx, id)
	if err != nil {
		return Parent{}, err
	}

	if err := svc.updatePerson(ctx, up.UpdatePerson, &p.Person); err != nil {
		return Parent{}, err
	}
	if up.Phone != nil {
		p.Phone = *up.Phone
	}
	if up.Occupation != nil {
		p.Occupation = *up.Occupation
	}
	if up.Address != nil {
		p.Address = *up.Address
	}
	p.UpdatedAt = now()

	p, err = svc.repo.UpdateParent(ctx, p)
	return p, errors.Wrap(err, "updating parent")
}

func (svc *Service) DeleteParent(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetParentByID(ctx, id); err != nil {
		return err
	}
	if err := svc.checkNoDependents(func() (int, error) { return svc.repo.CountParentChildren(ctx, id) },
		ErrParentHasChildren, "counting parent children"); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteParent(ctx, id), "deleting parent")
}
