package dig_container

import (
	"context"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/classhub/lms/apps/api/echo"
	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/class"
	"github.com/classhub/lms/core/dashboard"
	"github.com/classhub/lms/core/progress"
	"github.com/classhub/lms/core/user"
	emailsvc "github.com/classhub/lms/services/email"
	eventsvc "github.com/classhub/lms/services/events"
	"github.com/classhub/lms/services/filestore"
	logsvc "github.com/classhub/lms/services/logger"
	"github.com/classhub/lms/storage/database"
	sqlxrepos "github.com/classhub/lms/storage/database/sqlx"
	"github.com/classhub/lms/storage/kv"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is the backend selected by the database engine; one of its fields is set.
type Storage struct {
	KV *kv.Store
	DB *sqlx.DB
}

func (s *Storage) Close() error {
	if s.KV != nil {
		return s.KV.Close()
	}
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

type Repositories struct {
	dig.Out
	Storage  *Storage
	Users    user.Repository
	Classes  class.Repository
	Progress progress.Repository
}

type Services struct {
	dig.Out
	Users     *user.Service
	Classes   *class.Service
	Progress  *progress.Service
	Dashboard *dashboard.Service
}

type ServicesParam struct {
	dig.In
	Conf     *core.Config
	Logger   core.Logger
	Users    user.Repository
	Classes  class.Repository
	Progress progress.Repository
	Files    core.FileStore
	Mail     core.EmailService
	Events   core.EventPublisher
}

type ServerParam struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Users      *user.Service
	Classes    *class.Service
	Progress   *progress.Service
	Sessions   *progress.SessionManager
	Dashboard  *dashboard.Service
}

func newBaseLogger(zl *zap.Logger, conf *core.Config) *logsvc.Logger {
	return logsvc.NewLogger(zl, conf)
}

func newLogger(base *logsvc.Logger) core.Logger {
	return base.Named("api")
}

func newDBLogger(base *logsvc.Logger) core.Logger {
	return base.Named("db")
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) (Repositories, error) {
	switch conf.Database.Engine {
	case core.EngineKV, "":
		store, err := kv.Open(kv.NewConfig(conf, loggerParam.Logger))
		if err != nil {
			return Repositories{}, errors.Wrap(err, "opening kv store")
		}
		return Repositories{
			Storage:  &Storage{KV: store},
			Users:    kv.NewUserRepository(store),
			Classes:  kv.NewClassRepository(store),
			Progress: kv.NewProgressRepository(store),
		}, nil

	case core.EnginePostgres:
		ctx := context.Background()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return Repositories{}, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			return Repositories{}, errors.Wrap(err, "opening database")
		}
		if err = database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return Repositories{}, err
		}
		return Repositories{
			Storage:  &Storage{DB: db},
			Users:    sqlxrepos.NewUserRepository(db),
			Classes:  sqlxrepos.NewClassRepository(db),
			Progress: sqlxrepos.NewProgressRepository(db),
		}, nil
	}
	return Repositories{}, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newEventPublisher(conf *core.Config, logger core.Logger) (core.EventPublisher, error) {
	if conf.Debug && conf.Nats.URL == "" {
		return eventsvc.NewRecorder(logger), nil
	}
	return eventsvc.NewNatsPublisher(conf, logger)
}

func newFileStore(conf *core.Config) (core.FileStore, error) {
	return filestore.New(context.Background(), conf)
}

func newValidator() *validator.Validate {
	return validator.New()
}

func newServices(p ServicesParam) Services {
	users := user.NewService(p.Conf, p.Users, p.Mail, p.Events)
	classes := class.NewService(p.Classes, users, p.Files, p.Mail, p.Events, p.Logger)
	prog := progress.NewService(p.Conf, p.Progress, classes, p.Events)
	return Services{
		Users:     users,
		Classes:   classes,
		Progress:  prog,
		Dashboard: dashboard.NewService(users, classes, prog),
	}
}

func newServer(p ServerParam) *echoapi.Server {
	return echoapi.NewServer(echoapi.Options{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		UserSvc:      p.Users,
		ClassSvc:     p.Classes,
		ProgressSvc:  p.Progress,
		Sessions:     p.Sessions,
		DashboardSvc: p.Dashboard,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(logsvc.NewZap))
	must(c.Provide(newBaseLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newEventPublisher))
	must(c.Provide(newFileStore))
	must(c.Provide(newValidator))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newServices))
	must(c.Provide(progress.NewSessionManager))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
