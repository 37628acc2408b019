package logsvc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/user"
)

// rollbar keeps the person in global state
var rollbarMu sync.Mutex

// NewZap builds the JSON zap logger of the app, or a console one in debug mode.
func NewZap(conf *core.Config) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(strings.ToLower(strings.TrimSpace(conf.LogLevel))); err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if conf.Debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig.TimeKey = "ts"
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.InitialFields = map[string]interface{}{"env": conf.Env, "build": conf.Build}
	return cfg.Build(zap.AddCallerSkip(1))
}

// Logger writes structured logs with zap and reports warnings and errors to Rollbar when enabled.
type Logger struct {
	zl      *zap.Logger
	rollbar bool
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(zl *zap.Logger, conf *core.Config) *Logger {
	l := &Logger{zl: zl}
	if conf.RollbarToken != "" {
		rollbar.SetToken(conf.RollbarToken)
		rollbar.SetEnvironment(conf.Env)
		rollbar.SetServerHost(conf.Server.Host)
		rollbar.SetCodeVersion(conf.Build)
		rollbar.SetStackTracer(rollbarerrors.StackTracer)
		l.Enable(!conf.Debug && !conf.TestMode)
	}
	return l
}

// Named returns a child logger, e.g. for the db layer.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zl: l.zl.Named(name), rollbar: l.rollbar}
}

func (l *Logger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
	l.rollbar = enabled
}

// Sync flushes buffered logs and pending Rollbar items.
func (l *Logger) Sync() {
	_ = l.zl.Sync()
	if l.rollbar {
		rollbar.Wait()
	}
}

// fields converts args into zap fields.
// expected fmt: error, map[string]interface{}, user.User; anything else is logged as is.
func fields(args []interface{}) ([]zap.Field, *user.User) {
	var usr *user.User
	flds := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		switch a := arg.(type) {
		case nil:
		case error:
			flds = append(flds, zap.Error(a))
		case map[string]interface{}:
			for k, v := range a {
				flds = append(flds, zap.Any(k, v))
			}
		case user.User:
			if usr == nil { // only log one User
				u := a
				usr = &u
				flds = append(flds, zap.String("user_id", a.ID), zap.String("username", a.Username))
			}
		default:
			flds = append(flds, zap.Any(fmt.Sprintf("arg%d", i), a))
		}
	}
	return flds, usr
}

// report sends msg and its args to Rollbar, the User as person.
func (l *Logger) report(level string, msg string, args []interface{}, usr *user.User) {
	if !l.rollbar {
		return
	}
	items := make([]interface{}, 0, len(args)+1)
	items = append(items, msg)
	for _, arg := range args {
		if _, ok := arg.(user.User); !ok {
			items = append(items, arg)
		}
	}

	rollbarMu.Lock()
	defer rollbarMu.Unlock()
	if usr != nil {
		rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, items...)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	flds, _ := fields(args)
	l.zl.Debug(msg, flds...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	flds, _ := fields(args)
	l.zl.Info(msg, flds...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	flds, usr := fields(args)
	l.zl.Warn(msg, flds...)
	l.report(rollbar.WARN, msg, args, usr)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	flds, usr := fields(args)
	l.zl.Error(msg, flds...)
	l.report(rollbar.ERR, msg, args, usr)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	flds, usr := fields(args)
	l.report(rollbar.CRIT, msg, args, usr)
	if l.rollbar {
		rollbar.Wait()
	}
	l.zl.Fatal(msg, flds...)
}
