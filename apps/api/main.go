package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	dig_container "github.com/trezcool/ratiba/apps/api/di/dig"
	echoapi "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/assets"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/metrics"
	"github.com/trezcool/ratiba/core/user"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		sink *zap.Logger,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		db core.DB,
		validate *validator.Validate,
		translator ut.Translator,
		server *echoapi.Server,
	) {
		defer func() { _ = sink.Sync() }()

		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)

		core.ParseEmailTemplates(assets.FS, conf, apiLogger)

		user.LoadCommonPasswords(assets.FS, assets.CommonPasswordsFile, apiLogger)

		if err := metrics.Register(nil); err != nil {
			apiLogger.Fatal(fmt.Sprintf("registering metrics: %v", err), err)
		}

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.
		// /debug/health - Database reachability.
		// /metrics - Prometheus collectors.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		http.Handle("/metrics", promhttp.Handler())
		http.HandleFunc("/debug/health", func(w http.ResponseWriter, r *http.Request) {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
		debugSrv := &http.Server{Addr: conf.Server.DebugHost, Handler: http.DefaultServeMux}

		// =========================================================================
		// Start API Service

		g, gctx := errgroup.WithContext(context.Background())

		g.Go(func() error {
			if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
			return nil
		})

		g.Go(func() error {
			server.Start()
			return nil
		})

		// =========================================================================
		// Shutdown

		g.Go(func() error {
			var runErr error
			select {
			case runErr = <-server.Errors():
				apiLogger.Error(fmt.Sprintf("server error: %v", runErr), runErr)

			case sig := <-server.ShutdownSignal():
				apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			case <-gctx.Done():
			}

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			_ = debugSrv.Shutdown(ctx)

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
			return runErr
		})

		if err := g.Wait(); err != nil {
			apiLogger.Error(fmt.Sprintf("application stopped with error: %v", err), err)
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
