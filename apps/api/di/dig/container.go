package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/people"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/services/ratelimit"
	"github.com/trezcool/shule/storage/database"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger("api", log.LstdFlags, conf), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger("db", log.LstdFlags|log.Lmicroseconds|log.Lshortfile, conf), conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newDB sets up the SQL database. It returns a nil DB for the in-memory engine.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	if conf.Database.Engine == database.EngineMemory {
		loggerParam.Logger.Warn("using the in-memory database: data is lost on shutdown")
		return nil
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

// Repositories are the storage implementations of the configured DB engine.
type Repositories struct {
	dig.Out

	User       user.Repository
	Academic   academic.Repository
	People     people.Repository
	Attendance attendance.Repository
	Exam       exam.Repository
	Payment    payment.Repository

	HealthCheck func(ctx context.Context) error
}

func newRepositories(db *sqlx.DB) Repositories {
	if db == nil {
		mem := inmemdb.Open()
		return Repositories{
			User:        inmemdb.NewUserRepository(mem),
			Academic:    inmemdb.NewAcademicRepository(mem),
			People:      inmemdb.NewPeopleRepository(mem),
			Attendance:  inmemdb.NewAttendanceRepository(mem),
			Exam:        inmemdb.NewExamRepository(mem),
			Payment:     inmemdb.NewPaymentRepository(mem),
			HealthCheck: func(context.Context) error { return nil },
		}
	}
	return Repositories{
		User:        sqlxrepos.NewUserRepository(db),
		Academic:    sqlxrepos.NewAcademicRepository(db),
		People:      sqlxrepos.NewPeopleRepository(db),
		Attendance:  sqlxrepos.NewAttendanceRepository(db),
		Exam:        sqlxrepos.NewExamRepository(db),
		Payment:     sqlxrepos.NewPaymentRepository(db),
		HealthCheck: func(context.Context) error { return database.StatusCheck(db) },
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	people.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	payment.InitValidators(validate, translator)
	return validate
}

// newRedisClient returns a nil client when Redis is not configured or unreachable.
func newRedisClient(conf *core.Config, logger core.Logger) *redis.Client {
	client, err := ratelimit.NewRedisClient(conf)
	if err != nil {
		logger.Error("redis unavailable, rate limiting falls back to process memory", err)
		return nil
	}
	return client
}

func newLoginRateLimitStore(conf *core.Config, client *redis.Client) middleware.RateLimiterStore {
	return ratelimit.NewStore(client, conf.Server.LoginRateLimit)
}

type serverParams struct {
	dig.In

	Conf                *core.Config
	Logger              core.Logger
	Validate            *validator.Validate
	Translator          ut.Translator
	LoginRateLimitStore middleware.RateLimiterStore
	HealthCheck         func(ctx context.Context) error

	UserSvc       *user.Service
	AcademicSvc   *academic.Service
	PeopleSvc     *people.Service
	AttendanceSvc *attendance.Service
	ExamSvc       *exam.Service
	PaymentSvc    *payment.Service
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:                p.Conf,
		Logger:              p.Logger,
		Validate:            p.Validate,
		Translator:          p.Translator,
		LoginRateLimitStore: p.LoginRateLimitStore,
		HealthCheck:         p.HealthCheck,
		UserSvc:             p.UserSvc,
		AcademicSvc:         p.AcademicSvc,
		PeopleSvc:           p.PeopleSvc,
		AttendanceSvc:       p.AttendanceSvc,
		ExamSvc:             p.ExamSvc,
		PaymentSvc:          p.PaymentSvc,
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newRedisClient))
	must(c.Provide(newLoginRateLimitStore))
	must(c.Provide(user.NewService))
	must(c.Provide(academic.NewService))
	must(c.Provide(people.NewService))
	must(c.Provide(attendance.NewService))
	must(c.Provide(exam.NewService))
	must(c.Provide(payment.NewService))
	must(c.Provide(newServer))

	if os.Getenv("DIG_VISUALIZE") != "" {
		_ = dig.Visualize(c, os.Stdout)
	}
	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
