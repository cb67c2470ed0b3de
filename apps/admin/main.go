package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/assets"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/settings"
	"github.com/trezcool/ratiba/core/user"
	emailsvc "github.com/trezcool/ratiba/services/email"
	logsvc "github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/storage/database"
	"github.com/trezcool/ratiba/storage/database/sqlxrepos"
)

func main() {
	conf := core.NewConfig()

	sink, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("creating zap logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(sink.Named("admin"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	defer logger.Sync()

	// set up DB
	ctx := context.Background()
	if err = database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up validation
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(assets.FS, assets.CommonPasswordsFile, logger)

	// set up services
	profSvc := profile.NewService(sqlxrepos.NewProfileRepository(db))
	classes := sqlxrepos.NewClassRepository(db)
	cli := commandLine{
		db: db,
		usrSvc: user.NewService(
			sqlxrepos.NewUserRepository(db),
			profSvc,
			user.NewTokenIssuer(conf),
			emailsvc.New(conf, logger),
			logger,
		),
		profSvc:  profSvc,
		setSvc:   settings.NewService(sqlxrepos.NewSettingsRepository(db)),
		classes:  classes,
		validate: validate,
		out:      os.Stdout,
	}

	// start CLI
	err = cli.run(ctx, os.Args[1:])
	_ = db.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
