// Package testutil wires the services on an in-memory store for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/class"
	"github.com/classhub/lms/core/dashboard"
	"github.com/classhub/lms/core/progress"
	"github.com/classhub/lms/core/user"
	"github.com/classhub/lms/services/email"
	"github.com/classhub/lms/services/events"
	"github.com/classhub/lms/services/filestore"
	"github.com/classhub/lms/storage/kv"
)

// Password satisfies the password policy.
const Password = "Pa$$w0rd!"

// App holds every service wired on a fresh in-memory store.
type App struct {
	Conf     *core.Config
	Store    *kv.Store
	Files    core.FileStore
	Mail     *emailsvc.ConsoleService
	Events   *eventsvc.Recorder
	UserRepo user.Repository

	UserSvc      *user.Service
	ClassSvc     *class.Service
	ProgressSvc  *progress.Service
	DashboardSvc *dashboard.Service
}

// NewApp returns an App closed at the end of the test.
func NewApp(t *testing.T) *App {
	t.Helper()

	conf := core.NewTestConfig()
	store, err := kv.OpenInMemory()
	if err != nil {
		t.Fatalf("kv.OpenInMemory() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	app := &App{
		Conf:     conf,
		Store:    store,
		Files:    filestore.NewMemStore(),
		Mail:     emailsvc.NewConsoleServiceMock(conf),
		Events:   eventsvc.NewRecorder(nil),
		UserRepo: kv.NewUserRepository(store),
	}
	app.UserSvc = user.NewService(conf, app.UserRepo, app.Mail, app.Events)
	app.ClassSvc = class.NewService(kv.NewClassRepository(store), app.UserSvc, app.Files, app.Mail, app.Events, core.NewNopLogger())
	app.ProgressSvc = progress.NewService(conf, kv.NewProgressRepository(store), app.ClassSvc, app.Events)
	app.DashboardSvc = dashboard.NewService(app.UserSvc, app.ClassSvc, app.ProgressSvc)
	return app
}

// NewValidator returns a validator with every custom validation registered.
func NewValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	class.InitValidators(validate, translator)
	return validate
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (app *App) CreateClass(t *testing.T, title, profID string) class.Class {
	t.Helper()
	cls, err := app.ClassSvc.Create(context.Background(), class.NewClass{Title: title, ProfID: profID})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func (app *App) CreateLecture(t *testing.T, classID, title string) class.Lecture {
	t.Helper()
	lec, err := app.ClassSvc.CreateLecture(context.Background(), class.NewLecture{
		ClassID:     classID,
		Title:       title,
		YoutubeLink: "https://youtu.be/dQw4w9WgXcQ",
	})
	if err != nil {
		t.Fatalf("CreateLecture() failed: %v", err)
	}
	return lec
}

func (app *App) Enroll(t *testing.T, classID, studentID string) class.Enrollment {
	t.Helper()
	enr, err := app.ClassSvc.Enroll(context.Background(), class.NewEnrollment{ClassID: classID, StudentID: studentID})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}

func (app *App) SetProgress(t *testing.T, classID, lectureID, studentID string, rate int) progress.LectureView {
	t.Helper()
	view, err := app.ProgressSvc.UpdateProgress(context.Background(), classID, lectureID, studentID, rate, nil)
	if err != nil {
		t.Fatalf("SetProgress() failed: %v", err)
	}
	return view
}
