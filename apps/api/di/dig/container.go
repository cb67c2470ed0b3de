package dig_container

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/otp"
	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/settings"
	"github.com/trezcool/ratiba/core/user"
	emailsvc "github.com/trezcool/ratiba/services/email"
	logsvc "github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/storage/cache/memcache"
	"github.com/trezcool/ratiba/storage/cache/rediscache"
	"github.com/trezcool/ratiba/storage/database"
	"github.com/trezcool/ratiba/storage/database/sqlxrepos"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	Tokens      *user.TokenIssuer
	UserSvc     *user.Service
	ProfileSvc  *profile.Service
	SettingsSvc *settings.Service
	OTPSvc      otp.Service
	Swapper     *schedule.Swapper
	Cache       core.Cache
}

func newZap(conf *core.Config) (*zap.Logger, error) {
	return logsvc.NewZap(conf)
}

func newLogger(conf *core.Config, sink *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(sink.Named("api"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config, sink *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(sink.Named("db"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func(ctx context.Context) (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp(context.Background())
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

// newCache returns the shared redis cache when configured, an in-process one otherwise.
// Flags kept in process are lost on restart: every device then verifies again.
func newCache(conf *core.Config, logger core.Logger) core.Cache {
	if conf.Redis.Addr == "" {
		logger.Warn("no redis address configured, using an in-memory cache")
		return memcache.New(conf.OTP.TTL)
	}

	c := rediscache.New(conf.Redis.Addr, conf.Redis.DB, conf.OTP.TTL)
	if err := c.Ping(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	return c
}

func newOTPService(conf *core.Config, cache core.Cache, mailSvc core.EmailService, logger core.Logger) otp.Service {
	return otp.NewMailService(cache, mailSvc, logger, otp.OptionsFromConfig(conf))
}

func newProvisioner(svc *profile.Service) user.Provisioner { return svc }

func newClassRepository(store schedule.Store) schedule.Repository { return store }

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		Tokens:      p.Tokens,
		UserSvc:     p.UserSvc,
		ProfileSvc:  p.ProfileSvc,
		SettingsSvc: p.SettingsSvc,
		OTPSvc:      p.OTPSvc,
		Swapper:     p.Swapper,
		Cache:       p.Cache,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZap))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newCache))
	must(c.Provide(emailsvc.New))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewProfileRepository))
	must(c.Provide(sqlxrepos.NewSettingsRepository))
	must(c.Provide(sqlxrepos.NewClassRepository))
	must(c.Provide(newClassRepository))

	// services
	must(c.Provide(user.NewTokenIssuer))
	must(c.Provide(profile.NewService))
	must(c.Provide(newProvisioner))
	must(c.Provide(user.NewService))
	must(c.Provide(settings.NewService))
	must(c.Provide(newOTPService))
	must(c.Provide(schedule.NewSwapper))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
