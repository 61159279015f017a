package main

import (
	"log"
	"os"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/people"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger("admin", log.LstdFlags|log.Lmicroseconds|log.Lshortfile, conf), conf)
	logger.Enable(!conf.Debug)

	if conf.Database.Engine == database.EngineMemory {
		logger.Fatal("the admin CLI needs a SQL database engine")
	}

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("setting up database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// set up services
	validate := newValidator(logger)
	mailSvc := emailsvc.NewConsoleService(conf, logger)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf)
	academicSvc := academic.NewService(sqlxrepos.NewAcademicRepository(db))
	peopleSvc := people.NewService(sqlxrepos.NewPeopleRepository(db), usrSvc, academicSvc)
	paymentSvc := payment.NewService(sqlxrepos.NewPaymentRepository(db), academicSvc, peopleSvc, mailSvc, conf)

	// start CLI
	cli := commandLine{
		runMigrations: func(command string, args ...string) error {
			return database.RunMigrations(db, command, args...)
		},
		usrSvc:     usrSvc,
		paymentSvc: paymentSvc,
		validate:   validate,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
