package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	dig_container "github.com/trezcool/shule/apps/api/di/dig"
	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/user"
	appfs "github.com/trezcool/shule/fs"
	"github.com/trezcool/shule/services/scheduler"
)

func main() {
	c := dig_container.New(core.NewConfig)

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		db *sqlx.DB,
		redisClient *redis.Client,
		paymentSvc *payment.Service,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, false, apiLogger)
		user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswordsFile, apiLogger)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if db == nil {
				return
			}
			if err := db.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
		defer func() {
			if redisClient != nil {
				_ = redisClient.Close()
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.
		// /metrics - Prometheus metrics of the API server.

		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		http.Handle("/metrics", server.MetricsHandler())

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start Background Jobs

		jobsCtx, stopJobs := context.WithCancel(context.Background())
		jobs := scheduler.New(apiLogger, scheduler.Job{
			Name:     "refresh payment statuses",
			Interval: conf.Payments.StatusRefreshInterval,
			Run: func(ctx context.Context) error {
				n, err := paymentSvc.RefreshStatuses(ctx)
				if err == nil && n > 0 {
					apiLogger.Info(fmt.Sprintf("%d payments marked overdue", n))
				}
				return err
			},
		})
		jobs.Start(jobsCtx)
		defer func() {
			stopJobs()
			jobs.Wait()
		}()

		// =========================================================================
		// Start API Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
