package main

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	dig_container "github.com/classhub/lms/apps/api/di/dig"
	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/class"
	"github.com/classhub/lms/core/dashboard"
	"github.com/classhub/lms/core/user"
	logsvc "github.com/classhub/lms/services/logger"
)

func main() {
	c := dig_container.New()

	var runErr error
	err := c.Invoke(func(
		baseLogger *logsvc.Logger,
		storage *dig_container.Storage,
		events core.EventPublisher,
		validate *validator.Validate,
		translator ut.Translator,
		usrSvc *user.Service,
		classSvc *class.Service,
		dashSvc *dashboard.Service,
	) {
		defer baseLogger.Sync()
		defer func() {
			if err := storage.Close(); err != nil {
				log.Printf("closing storage: %v", err)
			}
		}()
		defer func() {
			if closer, ok := events.(interface{ Close() }); ok {
				closer.Close()
			}
		}()

		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		class.InitValidators(validate, translator)

		cli := &commandLine{
			usrSvc:     usrSvc,
			classSvc:   classSvc,
			dashSvc:    dashSvc,
			validate:   validate,
			translator: translator,
		}
		if storage.DB != nil {
			cli.db = storage.DB.DB
		}
		runErr = cli.newRootCommand().Execute()
	})
	if err != nil {
		log.Fatal(err)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}
