package database

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/shule/core"
	appfs "github.com/trezcool/shule/fs"
)

const (
	EngineMySQL    = "mysql"
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

var gooseRunFunc = goose.Run // mockable

// dsn returns the data source name of `dbName` (server-level connection when empty).
func dsn(dbName string, admin bool, conf *core.Config) (string, error) {
	usr, pwd := conf.Database.User, conf.Database.Password
	if admin && conf.Database.AdminUser != "" {
		usr, pwd = conf.Database.AdminUser, conf.Database.AdminPassword
	}

	switch conf.Database.Engine {
	case EngineMySQL:
		mc := mysql.NewConfig()
		mc.User = usr
		mc.Passwd = pwd
		mc.Net = "tcp"
		mc.Addr = conf.Database.Address()
		mc.DBName = dbName
		mc.ParseTime = true
		mc.ClientFoundRows = true // UPDATEs report matched rows, like PostgreSQL
		mc.Loc = time.UTC
		mc.Params = map[string]string{"charset": "utf8mb4"}
		if !conf.Database.DisableTLS {
			mc.TLSConfig = "true"
		}
		return mc.FormatDSN(), nil

	case EnginePostgres:
		if dbName == "" {
			dbName = "postgres"
		}
		sslMode := "require"
		if conf.Database.DisableTLS {
			sslMode = "disable"
		}
		q := make(url.Values)
		q.Set("sslmode", sslMode)
		q.Set("timezone", "utc")

		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(usr, pwd),
			Host:     conf.Database.Address(),
			Path:     dbName,
			RawQuery: q.Encode(),
		}
		return u.String(), nil

	default:
		return "", errors.Errorf("unsupported database engine %q", conf.Database.Engine)
	}
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	src, err := dsn(dbName, admin, conf)
	if err != nil {
		return nil, err
	}
	return sqlx.Open(conf.Database.Engine, src)
}

// Open connects to the app database and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if conf.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(conf.Database.MaxOpenConns)
	}
	if conf.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(conf.Database.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// StatusCheck reports whether the database answers a trivial query.
func StatusCheck(db *sqlx.DB) error {
	var one int
	return db.Get(&one, "SELECT 1")
}

func exists(db *sqlx.DB, query string, args ...interface{}) (bool, error) {
	var n int
	if err := db.Get(&n, db.Rebind(query), args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" || conf.Database.User == conf.Database.AdminUser {
		return nil
	}

	switch conf.Database.Engine {
	case EngineMySQL:
		q := fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s'", conf.Database.User, conf.Database.Password)
		if _, err := db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
		q = fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%%'", conf.Database.Name, conf.Database.User)
		if _, err := db.Exec(q); err != nil {
			return errors.Wrap(err, "granting app user privileges")
		}

	case EnginePostgres:
		ok, err := exists(db, "SELECT COUNT(*) FROM pg_roles WHERE rolname = ?", conf.Database.User)
		if err != nil {
			return errors.Wrap(err, "checking app user")
		}
		if !ok {
			q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
			if _, err = db.Exec(q); err != nil {
				return errors.Wrap(err, "creating app user")
			}
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	switch conf.Database.Engine {
	case EngineMySQL:
		q := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", conf.Database.Name)
		if _, err := db.Exec(q); err != nil {
			return errors.Wrap(err, "creating database")
		}

	case EnginePostgres:
		ok, err := exists(db, "SELECT COUNT(*) FROM pg_database WHERE datname = ?", conf.Database.Name)
		if err != nil {
			return errors.Wrap(err, "checking DB")
		}
		if !ok {
			if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
				return errors.Wrap(err, "creating database")
			}
		}
	}
	return nil
}

// CreateIfNotExist creates the app database (and the app user) using the admin credentials.
func CreateIfNotExist(conf *core.Config) error {
	db, err := open("", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createDB(db, conf); err != nil {
		return err
	}
	return createAppUser(db, conf)
}

// Migrate applies every pending migration of the DB engine.
func Migrate(db *sqlx.DB) error {
	return RunMigrations(db, "up")
}

// RunMigrations runs the goose `command` (up, down, status, redo, version...) against the
// migrations of the DB engine.
func RunMigrations(db *sqlx.DB, command string, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(db.DriverName()); err != nil {
		return errors.Wrap(err, "setting migrations dialect")
	}
	if err := gooseRunFunc(command, db.DB, appfs.MigrationsDir(db.DriverName()), args...); err != nil {
		return errors.Wrapf(err, "running migrations %s", command)
	}
	return nil
}
