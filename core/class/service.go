package class

import (
	"context"
	"io"
	"net/mail"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/user"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound           = core.NewNotFoundError("class")
	ErrLectureNotFound    = core.NewNotFoundError("lecture")
	ErrResourceNotFound   = core.NewNotFoundError("resource")
	ErrQnANotFound        = core.NewNotFoundError("qna")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
	ErrFileNotStored      = core.NewNotFoundError("resource file")
	ErrAlreadyEnrolled    = errors.New("already enrolled in this class")

	errNotAProf      = "this user is not a professor"
	errNotAStudent   = "this user is not a student"
	errWrongClass    = "this lecture does not belong to the class"
	errProfRequired  = "this field is required"
	errNoFileContent = "a filename or a file is required"
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		// QueryClasses returns classes ordered by creation date.
		QueryClasses(ctx context.Context, filter ClassFilter) ([]Class, error)
		GetClassByID(ctx context.Context, id string) (Class, error)
		UpdateClass(ctx context.Context, cls Class) (Class, error)
		// DeleteClass also deletes the class lectures, resources, QnAs, enrollments and lecture views.
		DeleteClass(ctx context.Context, id string) error

		CreateLecture(ctx context.Context, lec Lecture) (Lecture, error)
		GetLecturesByClass(ctx context.Context, classID string) ([]Lecture, error)
		GetLectureByID(ctx context.Context, id string) (Lecture, error)
		UpdateLecture(ctx context.Context, lec Lecture) (Lecture, error)
		// DeleteLecture also deletes the lecture resources and views.
		DeleteLecture(ctx context.Context, id string) error

		CreateResource(ctx context.Context, res Resource) (Resource, error)
		GetResourcesByClass(ctx context.Context, classID string) ([]Resource, error)
		GetResourceByID(ctx context.Context, id string) (Resource, error)
		UpdateResource(ctx context.Context, res Resource) (Resource, error)
		DeleteResource(ctx context.Context, id string) error

		CreateQnA(ctx context.Context, qna QnA) (QnA, error)
		GetQnAsByClass(ctx context.Context, classID string) ([]QnA, error)
		GetQnAByID(ctx context.Context, id string) (QnA, error)
		DeleteQnA(ctx context.Context, id string) error

		// CreateEnrollment fails with ErrAlreadyEnrolled when the pair exists.
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollmentsByClass(ctx context.Context, classID string) ([]Enrollment, error)
		GetEnrollmentsByStudent(ctx context.Context, studentID string) ([]Enrollment, error)
		GetEnrollment(ctx context.Context, classID, studentID string) (Enrollment, error)
	}

	// UserGetter finds users, satisfied by *user.Service.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo    Repository
		users   UserGetter
		files   core.FileStore
		mailSvc core.EmailService
		events  core.EventPublisher
		logger  core.Logger
	}
)

func NewService(
	repo Repository,
	users UserGetter,
	files core.FileStore,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		files:   files,
		mailSvc: mailSvc,
		events:  events,
		logger:  logger,
	}
}

// Classes

func (svc *Service) checkProf(ctx context.Context, profID string) error {
	usr, err := svc.users.GetByID(ctx, profID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "prof_id", Error: errNotAProf})
		}
		return errors.Wrap(err, "finding professor")
	}
	if !usr.IsProf() {
		return core.NewValidationError(nil, core.FieldError{Field: "prof_id", Error: errNotAProf})
	}
	return nil
}

func (svc *Service) GetAll(ctx context.Context) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, ClassFilter{})
}

func (svc *Service) Query(ctx context.Context, filter ClassFilter) ([]Class, error) {
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryClasses(ctx, filter)
}

func (svc *Service) GetByProf(ctx context.Context, profID string) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, ClassFilter{ProfID: profID})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClassByID(ctx, id)
}

// Create creates a class owned by nc.ProfID, which must be a professor.
func (svc *Service) Create(ctx context.Context, nc NewClass) (Class, error) {
	if nc.ProfID == "" {
		return Class{}, core.NewValidationError(nil, core.FieldError{Field: "prof_id", Error: errProfRequired})
	}
	if err := svc.checkProf(ctx, nc.ProfID); err != nil {
		return Class{}, err
	}

	now := nowFunc().UTC()
	cls, err := svc.repo.CreateClass(ctx, Class{
		ID:          uuid.NewString(),
		Title:       nc.Title,
		Description: nc.Description,
		ProfID:      nc.ProfID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return cls, errors.Wrap(err, "creating class")
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateClass) (Class, error) {
	cls, err := svc.repo.GetClassByID(ctx, id)
	if err != nil {
		return Class{}, errors.Wrap(err, "finding class by ID")
	}
	if uc.Title != nil {
		cls.Title = *uc.Title
	}
	if uc.Description != nil {
		cls.Description = *uc.Description
	}
	if uc.ProfID != nil && *uc.ProfID != cls.ProfID {
		if err := svc.checkProf(ctx, *uc.ProfID); err != nil {
			return Class{}, err
		}
		cls.ProfID = *uc.ProfID
	}
	cls.UpdatedAt = nowFunc().UTC()
	cls, err = svc.repo.UpdateClass(ctx, cls)
	return cls, errors.Wrap(err, "updating class")
}

// Delete deletes the class with all its content, stored files included.
func (svc *Service) Delete(ctx context.Context, id string) error {
	resources, err := svc.repo.GetResourcesByClass(ctx, id)
	if err != nil {
		return errors.Wrap(err, "finding class resources")
	}
	if err := svc.repo.DeleteClass(ctx, id); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	svc.deleteFiles(ctx, resources...)
	return nil
}

func (svc *Service) deleteFiles(ctx context.Context, resources ...Resource) {
	for _, res := range resources {
		if !res.Stored {
			continue
		}
		if err := svc.files.Delete(ctx, res.FileKey()); err != nil && !core.IsNotFound(err) {
			svc.logger.Warn("deleting resource file", errors.Wrap(err, res.FileKey()))
		}
	}
}

// Lectures

func (svc *Service) GetLectures(ctx context.Context, classID string) ([]Lecture, error) {
	return svc.repo.GetLecturesByClass(ctx, classID)
}

func (svc *Service) GetLecture(ctx context.Context, id string) (Lecture, error) {
	return svc.repo.GetLectureByID(ctx, id)
}

func (svc *Service) CreateLecture(ctx context.Context, nl NewLecture) (Lecture, error) {
	if _, err := svc.repo.GetClassByID(ctx, nl.ClassID); err != nil {
		return Lecture{}, errors.Wrap(err, "finding class by ID")
	}

	now := nowFunc().UTC()
	lec, err := svc.repo.CreateLecture(ctx, Lecture{
		ID:          uuid.NewString(),
		ClassID:     nl.ClassID,
		Title:       nl.Title,
		Description: nl.Description,
		YoutubeLink: nl.YoutubeLink,
		VideoID:     ExtractVideoID(nl.YoutubeLink),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return lec, errors.Wrap(err, "creating lecture")
}

func (svc *Service) UpdateLecture(ctx context.Context, id string, ul UpdateLecture) (Lecture, error) {
	lec, err := svc.repo.GetLectureByID(ctx, id)
	if err != nil {
		return Lecture{}, errors.Wrap(err, "finding lecture by ID")
	}
	if ul.Title != nil {
		lec.Title = *ul.Title
	}
	if ul.Description != nil {
		lec.Description = *ul.Description
	}
	if ul.YoutubeLink != nil {
		lec.YoutubeLink = *ul.YoutubeLink
		lec.VideoID = ExtractVideoID(lec.YoutubeLink)
	}
	lec.UpdatedAt = nowFunc().UTC()
	lec, err = svc.repo.UpdateLecture(ctx, lec)
	return lec, errors.Wrap(err, "updating lecture")
}

func (svc *Service) DeleteLecture(ctx context.Context, id string) error {
	lec, err := svc.repo.GetLectureByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "finding lecture by ID")
	}
	resources, err := svc.repo.GetResourcesByClass(ctx, lec.ClassID)
	if err != nil {
		return errors.Wrap(err, "finding class resources")
	}
	if err := svc.repo.DeleteLecture(ctx, id); err != nil {
		return errors.Wrap(err, "deleting lecture")
	}

	lecResources := make([]Resource, 0, len(resources))
	for _, res := range resources {
		if res.LectureID == id {
			lecResources = append(lecResources, res)
		}
	}
	svc.deleteFiles(ctx, lecResources...)
	return nil
}

// Resources

func (svc *Service) GetResources(ctx context.Context, classID string) ([]Resource, error) {
	return svc.repo.GetResourcesByClass(ctx, classID)
}

func (svc *Service) GetResource(ctx context.Context, id string) (Resource, error) {
	return svc.repo.GetResourceByID(ctx, id)
}

// CreateResource creates a resource, storing the upload body when given.
func (svc *Service) CreateResource(ctx context.Context, nr NewResource, upload *Upload) (Resource, error) {
	if _, err := svc.repo.GetClassByID(ctx, nr.ClassID); err != nil {
		return Resource{}, errors.Wrap(err, "finding class by ID")
	}
	if nr.LectureID != "" {
		lec, err := svc.repo.GetLectureByID(ctx, nr.LectureID)
		if err != nil {
			return Resource{}, errors.Wrap(err, "finding lecture by ID")
		}
		if lec.ClassID != nr.ClassID {
			return Resource{}, core.NewValidationError(nil, core.FieldError{Field: "lecture_id", Error: errWrongClass})
		}
	}
	if nr.Filename == "" && upload == nil {
		return Resource{}, core.NewValidationError(nil, core.FieldError{Field: "filename", Error: errNoFileContent})
	}

	res := Resource{
		ID:          uuid.NewString(),
		ClassID:     nr.ClassID,
		LectureID:   nr.LectureID,
		Title:       nr.Title,
		Description: nr.Description,
		Filename:    nr.Filename,
		CreatedAt:   nowFunc().UTC(),
	}
	if upload != nil {
		if res.Filename == "" {
			res.Filename = path.Base(upload.Filename)
		}
		size, err := svc.files.Save(ctx, res.FileKey(), upload.Body, upload.ContentType)
		if err != nil {
			return Resource{}, errors.Wrap(err, "saving resource file")
		}
		res.Stored = true
		res.Size = size
		res.ContentType = upload.ContentType
	}

	created, err := svc.repo.CreateResource(ctx, res)
	if err != nil {
		svc.deleteFiles(ctx, res)
		return Resource{}, errors.Wrap(err, "creating resource")
	}
	return created, nil
}

func (svc *Service) UpdateResource(ctx context.Context, id string, ur UpdateResource) (Resource, error) {
	res, err := svc.repo.GetResourceByID(ctx, id)
	if err != nil {
		return Resource{}, errors.Wrap(err, "finding resource by ID")
	}
	if ur.Title != nil {
		res.Title = *ur.Title
	}
	if ur.Description != nil {
		res.Description = *ur.Description
	}
	res, err = svc.repo.UpdateResource(ctx, res)
	return res, errors.Wrap(err, "updating resource")
}

func (svc *Service) DeleteResource(ctx context.Context, id string) error {
	res, err := svc.repo.GetResourceByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "finding resource by ID")
	}
	if err := svc.repo.DeleteResource(ctx, id); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	svc.deleteFiles(ctx, res)
	return nil
}

// OpenResource opens the stored body of a resource. The caller must close it.
func (svc *Service) OpenResource(ctx context.Context, res Resource) (io.ReadCloser, error) {
	if !res.Stored {
		return nil, ErrFileNotStored
	}
	rc, err := svc.files.Open(ctx, res.FileKey())
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrFileNotStored
		}
		return nil, errors.Wrap(err, "opening resource file")
	}
	return rc, nil
}

// QnAs

func (svc *Service) GetQnAs(ctx context.Context, classID string) ([]QnA, error) {
	return svc.repo.GetQnAsByClass(ctx, classID)
}

func (svc *Service) GetQnA(ctx context.Context, id string) (QnA, error) {
	return svc.repo.GetQnAByID(ctx, id)
}

func (svc *Service) CreateQnA(ctx context.Context, authorID string, nq NewQnA) (QnA, error) {
	if _, err := svc.repo.GetClassByID(ctx, nq.ClassID); err != nil {
		return QnA{}, errors.Wrap(err, "finding class by ID")
	}
	qna, err := svc.repo.CreateQnA(ctx, QnA{
		ID:        uuid.NewString(),
		ClassID:   nq.ClassID,
		AuthorID:  authorID,
		Title:     nq.Title,
		Content:   nq.Content,
		CreatedAt: nowFunc().UTC(),
	})
	return qna, errors.Wrap(err, "creating qna")
}

func (svc *Service) DeleteQnA(ctx context.Context, id string) error {
	return errors.Wrap(svc.repo.DeleteQnA(ctx, id), "deleting qna")
}

// Enrollments

func (svc *Service) GetEnrollments(ctx context.Context, classID string) ([]Enrollment, error) {
	return svc.repo.GetEnrollmentsByClass(ctx, classID)
}

func (svc *Service) GetStudentEnrollments(ctx context.Context, studentID string) ([]Enrollment, error) {
	return svc.repo.GetEnrollmentsByStudent(ctx, studentID)
}

// IsEnrolled tells whether the student is enrolled in the class.
func (svc *Service) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	_, err := svc.repo.GetEnrollment(ctx, classID, studentID)
	if err != nil {
		if errors.Cause(err) == ErrEnrollmentNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "finding enrollment")
	}
	return true, nil
}

type enrollmentData struct {
	StudentName string
	ClassTitle  string
	ClassID     string
}

// Enroll enrolls a student in a class.
func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	cls, err := svc.repo.GetClassByID(ctx, ne.ClassID)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "finding class by ID")
	}
	student, err := svc.users.GetByID(ctx, ne.StudentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: errNotAStudent})
		}
		return Enrollment{}, errors.Wrap(err, "finding student")
	}
	if !student.IsStudent() {
		return Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: errNotAStudent})
	}

	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:         uuid.NewString(),
		ClassID:    cls.ID,
		StudentID:  student.ID,
		EnrolledAt: nowFunc().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return Enrollment{}, core.NewValidationError(ErrAlreadyEnrolled)
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}

	svc.events.Publish(core.EventEnrollmentCreated, student.ID, map[string]interface{}{"class_id": cls.ID})
	if student.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: student.Name, Address: student.Email}},
			Subject:      "Enrollment: " + cls.Title,
			TemplateName: core.TemplateEnrollment,
			TemplateData: enrollmentData{StudentName: student.Name, ClassTitle: cls.Title, ClassID: cls.ID},
		})
	}
	return enr, nil
}

// Authorization

// IsOwner tells whether usr is the professor owning cls.
func IsOwner(cls Class, usr user.User) bool {
	return usr.IsProf() && cls.ProfID == usr.ID
}

// CanManage tells whether usr may change cls and its content.
func CanManage(cls Class, usr user.User) bool {
	return usr.IsAdmin() || IsOwner(cls, usr)
}

// CanRead tells whether usr may see the content of cls: admin, owner or enrolled student.
func (svc *Service) CanRead(ctx context.Context, cls Class, usr user.User) (bool, error) {
	if CanManage(cls, usr) {
		return true, nil
	}
	if !usr.IsStudent() {
		return false, nil
	}
	return svc.IsEnrolled(ctx, cls.ID, usr.ID)
}
