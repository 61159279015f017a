// Package testutil wires the services on top of the in-memory store (or a SQL database, see NewSQLEnv)
// and creates fixtures for tests.
package testutil

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/people"
	"github.com/trezcool/shule/core/user"
	appfs "github.com/trezcool/shule/fs"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

// Password satisfies the password policy for every fixture user.
const Password = "Sh0ule!Pass"

var loadOnce sync.Once

// Env holds the services of one test, all sharing a fresh DB.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB // nil on SQL envs
	SQLDB      *sqlx.DB    // nil on in-memory envs
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Mailer     core.EmailService

	UserSvc       *user.Service
	AcademicSvc   *academic.Service
	PeopleSvc     *people.Service
	AttendanceSvc *attendance.Service
	ExamSvc       *exam.Service
	PaymentSvc    *payment.Service
}

type repositories struct {
	user       user.Repository
	academic   academic.Repository
	people     people.Repository
	attendance attendance.Repository
	exam       exam.Repository
	payment    payment.Repository
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	db := inmemdb.Open()
	env := newEnv(t, core.NewTestConfig(), repositories{
		user:       inmemdb.NewUserRepository(db),
		academic:   inmemdb.NewAcademicRepository(db),
		people:     inmemdb.NewPeopleRepository(db),
		attendance: inmemdb.NewAttendanceRepository(db),
		exam:       inmemdb.NewExamRepository(db),
		payment:    inmemdb.NewPaymentRepository(db),
	})
	env.DB = db
	return env
}

// sqlTables lists the app tables, children first.
var sqlTables = []string{
	"payments", "fee_structures", "exam_results", "examinations", "exam_types", "attendance",
	"students", "parents", "sections", "teachers", "grade_subjects", "subjects", "terms",
	"academic_years", "grades", "users",
}

// NewSQLEnv wires the services on the database described by the TEST_DATABASE_* env vars
// (ENGINE, HOST, PORT, NAME, USER, PASSWORD, ADMINUSER, ADMINPASSWORD, DISABLETLS).
// The database is created and migrated when needed, and emptied before the test.
// The test is skipped when TEST_DATABASE_ENGINE is not set.
func NewSQLEnv(t *testing.T) *Env {
	t.Helper()

	v := viper.New()
	v.SetEnvPrefix("TEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.name", "shule_test")
	v.SetDefault("database.disableTLS", true)

	engine := v.GetString("database.engine")
	if engine == "" || engine == database.EngineMemory {
		t.Skip("TEST_DATABASE_ENGINE is not set")
	}
	port := v.GetString("database.port")
	if port == "" {
		port = "5432"
		if engine == database.EngineMySQL {
			port = "3306"
		}
	}

	conf := core.NewTestConfig()
	conf.Database = core.DatabaseConfig{
		Engine:        engine,
		Host:          v.GetString("database.host"),
		Port:          port,
		Name:          v.GetString("database.name"),
		User:          v.GetString("database.user"),
		Password:      v.GetString("database.password"),
		AdminUser:     v.GetString("database.adminUser"),
		AdminPassword: v.GetString("database.adminPassword"),
		DisableTLS:    v.GetBool("database.disableTLS"),
	}
	if conf.Database.AdminUser == "" {
		conf.Database.AdminUser, conf.Database.AdminPassword = conf.Database.User, conf.Database.Password
	}

	require.NoError(t, database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	for _, table := range sqlTables {
		_, err := db.Exec("DELETE FROM " + table)
		require.NoError(t, err, "emptying %s", table)
	}

	env := newEnv(t, conf, repositories{
		user:       sqlxrepos.NewUserRepository(db),
		academic:   sqlxrepos.NewAcademicRepository(db),
		people:     sqlxrepos.NewPeopleRepository(db),
		attendance: sqlxrepos.NewAttendanceRepository(db),
		exam:       sqlxrepos.NewExamRepository(db),
		payment:    sqlxrepos.NewPaymentRepository(db),
	})
	env.SQLDB = db
	return env
}

func newEnv(t *testing.T, conf *core.Config, repos repositories) *Env {
	t.Helper()

	rl := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	rl.Enable(false)
	var logger core.Logger = rl

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	people.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	payment.InitValidators(validate, translator)

	loadOnce.Do(func() {
		core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true, logger)
		user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswordsFile, logger)
	})
	emailsvc.ResetSentMessages()

	mailer := emailsvc.NewConsoleServiceMock(conf, logger)

	usrSvc := user.NewService(repos.user, mailer, conf)
	academicSvc := academic.NewService(repos.academic)
	peopleSvc := people.NewService(repos.people, usrSvc, academicSvc)

	return &Env{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		Mailer:        mailer,
		UserSvc:       usrSvc,
		AcademicSvc:   academicSvc,
		PeopleSvc:     peopleSvc,
		AttendanceSvc: attendance.NewService(repos.attendance, academicSvc, peopleSvc),
		ExamSvc:       exam.NewService(repos.exam, academicSvc, peopleSvc),
		PaymentSvc:    payment.NewService(repos.payment, academicSvc, peopleSvc, mailer, conf),
	}
}

func newUser(first, last, email, role string) user.NewUser {
	return user.NewUser{
		FirstName:       first,
		LastName:        last,
		Email:           email,
		Role:            role,
		Password:        Password,
		PasswordConfirm: Password,
	}
}

func (env *Env) CreateUser(t *testing.T, first, last, email, role string) user.User {
	t.Helper()
	usr, err := env.UserSvc.Create(context.Background(), newUser(first, last, email, role))
	require.NoError(t, err, "creating user")
	return usr
}

func (env *Env) CreateAdmin(t *testing.T, email string) user.User {
	t.Helper()
	return env.CreateUser(t, "Ada", "Admin", email, user.RoleAdmin)
}

// Academic

func (env *Env) CreateGrade(t *testing.T, name string, level int) academic.Grade {
	t.Helper()
	g, err := env.AcademicSvc.CreateGrade(context.Background(), academic.NewGrade{Name: name, Level: level})
	require.NoError(t, err, "creating grade")
	return g
}

func (env *Env) CreateAcademicYear(t *testing.T, name string, start, end core.Date) academic.AcademicYear {
	t.Helper()
	y, err := env.AcademicSvc.CreateAcademicYear(context.Background(), academic.NewAcademicYear{
		Name: name, StartDate: start, EndDate: end,
	})
	require.NoError(t, err, "creating academic year")
	return y
}

func (env *Env) CreateTerm(t *testing.T, yearID int64, name string, start, end core.Date) academic.Term {
	t.Helper()
	term, err := env.AcademicSvc.CreateTerm(context.Background(), academic.NewTerm{
		AcademicYearID: yearID, Name: name, StartDate: start, EndDate: end,
	})
	require.NoError(t, err, "creating term")
	return term
}

func (env *Env) CreateSection(t *testing.T, gradeID, yearID int64, name string) academic.Section {
	t.Helper()
	s, err := env.AcademicSvc.CreateSection(context.Background(), academic.NewSection{
		GradeID: gradeID, AcademicYearID: yearID, Name: name,
	})
	require.NoError(t, err, "creating section")
	return s
}

func (env *Env) CreateSubject(t *testing.T, name, code string) academic.Subject {
	t.Helper()
	s, err := env.AcademicSvc.CreateSubject(context.Background(), academic.NewSubject{Name: name, Code: code})
	require.NoError(t, err, "creating subject")
	return s
}

// People

func (env *Env) CreateStudent(t *testing.T, first, email, admissionNumber string, sectionID, parentID *int64) people.Student {
	t.Helper()
	st, err := env.PeopleSvc.CreateStudent(context.Background(), people.NewStudent{
		NewUser:         newUser(first, "Student", email, user.RoleStudent),
		AdmissionNumber: admissionNumber,
		SectionID:       sectionID,
		ParentID:        parentID,
	})
	require.NoError(t, err, "creating student")
	return st
}

func (env *Env) CreateTeacher(t *testing.T, first, email, employeeNumber string) people.Teacher {
	t.Helper()
	teacher, err := env.PeopleSvc.CreateTeacher(context.Background(), people.NewTeacher{
		NewUser:        newUser(first, "Teacher", email, user.RoleTeacher),
		EmployeeNumber: employeeNumber,
	})
	require.NoError(t, err, "creating teacher")
	return teacher
}

func (env *Env) CreateParent(t *testing.T, first, email string) people.Parent {
	t.Helper()
	p, err := env.PeopleSvc.CreateParent(context.Background(), people.NewParent{
		NewUser: newUser(first, "Parent", email, user.RoleParent),
	})
	require.NoError(t, err, "creating parent")
	return p
}

// School is a minimal school: one grade with one section in the current year and term.
type School struct {
	Grade   academic.Grade
	Year    academic.AcademicYear
	Term    academic.Term
	Section academic.Section
	Subject academic.Subject
}

func (env *Env) CreateSchool(t *testing.T) School {
	t.Helper()
	ctx := context.Background()

	var s School
	s.Grade = env.CreateGrade(t, "Grade 10", 10)
	s.Year = env.CreateAcademicYear(t, "2024-2025", core.NewDate(2024, 9, 1), core.NewDate(2025, 6, 30))
	s.Term = env.CreateTerm(t, s.Year.ID, "Term 1", core.NewDate(2024, 9, 1), core.NewDate(2024, 12, 20))
	s.Section = env.CreateSection(t, s.Grade.ID, s.Year.ID, "A")
	s.Subject = env.CreateSubject(t, "Mathematics", "MATH101")

	var err error
	s.Year, err = env.AcademicSvc.SetCurrentAcademicYear(ctx, s.Year.ID)
	require.NoError(t, err)
	s.Term, err = env.AcademicSvc.SetCurrentTerm(ctx, s.Term.ID)
	require.NoError(t, err)
	return s
}

// Exams

func (env *Env) CreateExamType(t *testing.T, name string) exam.ExamType {
	t.Helper()
	et, err := env.ExamSvc.CreateExamType(context.Background(), exam.NewExamType{Name: name, Weight: 30})
	require.NoError(t, err, "creating exam type")
	return et
}

func (env *Env) CreateExamination(t *testing.T, s School, examTypeID int64, title string, total, passing float64, actorID int64) exam.Examination {
	t.Helper()
	e, err := env.ExamSvc.CreateExamination(context.Background(), exam.NewExamination{
		Title:          title,
		ExamTypeID:     examTypeID,
		SubjectID:      s.Subject.ID,
		GradeID:        s.Grade.ID,
		SectionID:      s.Section.ID,
		AcademicYearID: s.Year.ID,
		TermID:         s.Term.ID,
		ExamDate:       core.NewDate(2024, 10, 15),
		TotalMarks:     total,
		PassingMarks:   passing,
	}, actorID)
	require.NoError(t, err, "creating examination")
	return e
}

// Payments

func (env *Env) CreateFeeStructure(t *testing.T, s School, feeType string, amount float64, due core.Date, actorID int64) payment.FeeStructure {
	t.Helper()
	fs, err := env.PaymentSvc.CreateFeeStructure(context.Background(), payment.NewFeeStructure{
		GradeID:        s.Grade.ID,
		AcademicYearID: s.Year.ID,
		TermID:         s.Term.ID,
		FeeType:        feeType,
		Amount:         amount,
		DueDate:        due,
	}, actorID)
	require.NoError(t, err, "creating fee structure")
	return fs
}
