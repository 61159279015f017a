package logsvc

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// NewStdLogger returns a std logger writing to stdout and, unless `conf.Log.Dir` is empty,
// to the rotating file `<dir>/<name>.log`.
func NewStdLogger(name string, flags int, conf *core.Config) *log.Logger {
	var w io.Writer = os.Stdout
	if conf.Log.Dir != "" && !conf.TestMode {
		dir := conf.Log.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(conf.WorkDir, dir)
		}
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(dir, strings.ToLower(name)+".log"),
			MaxSize:    conf.Log.MaxSizeMB,
			MaxBackups: conf.Log.MaxBackups,
			MaxAge:     conf.Log.MaxAgeDays,
			Compress:   true,
		})
	}
	return log.New(w, strings.ToUpper(name)+" : ", flags)
}

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in User
		if usr, ok := arg.(user.User); ok {
			if !usrSet { // only set one User
				rollbar.SetPerson(strconv.FormatInt(usr.ID, 10), usr.FullName(), usr.Email)
				usrSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			l.std.Printf("  user: %d <%s>", usr.ID, usr.Email)
			continue
		}
		l.std.Printf("  %+v", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
