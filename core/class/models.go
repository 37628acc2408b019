package class

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/classhub/lms/core"
)

type Class struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	ProfID      string    `json:"prof_id" db:"prof_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type Lecture struct {
	ID          string    `json:"id" db:"id"`
	ClassID     string    `json:"class_id" db:"class_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	YoutubeLink string    `json:"youtube_link" db:"youtube_link"`
	VideoID     string    `json:"video_id" db:"video_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Resource struct {
	ID          string    `json:"id" db:"id"`
	ClassID     string    `json:"class_id" db:"class_id"`
	LectureID   string    `json:"lecture_id,omitempty" db:"lecture_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Filename    string    `json:"filename" db:"filename"`
	Stored      bool      `json:"stored" db:"stored"` // the file body is in the FileStore
	Size        int64     `json:"size" db:"size"`
	ContentType string    `json:"content_type" db:"content_type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// FileKey is the FileStore key of the resource body.
func (r Resource) FileKey() string {
	return "resources/" + r.ClassID + "/" + r.ID
}

type QnA struct {
	ID        string    `json:"id" db:"id"`
	ClassID   string    `json:"class_id" db:"class_id"`
	AuthorID  string    `json:"author_id" db:"author_id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Enrollment struct {
	ID         string    `json:"id" db:"id"`
	ClassID    string    `json:"class_id" db:"class_id"`
	StudentID  string    `json:"student_id" db:"student_id"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	ProfID      string `json:"prof_id"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.ProfID = core.CleanString(nc.ProfID)
	return validate.Struct(nc)
}

// UpdateClass defines what may be changed on a Class. nil fields are left as is.
type UpdateClass struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	ProfID      *string `json:"prof_id" validate:"omitempty,notblank"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	cleanPtr(uc.Title, uc.Description, uc.ProfID)
	return validate.Struct(uc)
}

type NewLecture struct {
	ClassID     string `json:"class_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	YoutubeLink string `json:"youtube_link" validate:"required,youtube"`
}

func (nl *NewLecture) Validate(validate *validator.Validate) error {
	nl.ClassID = core.CleanString(nl.ClassID)
	nl.Title = core.CleanString(nl.Title)
	nl.Description = core.CleanString(nl.Description)
	nl.YoutubeLink = core.CleanString(nl.YoutubeLink)
	return validate.Struct(nl)
}

type UpdateLecture struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	YoutubeLink *string `json:"youtube_link" validate:"omitempty,youtube"`
}

func (ul *UpdateLecture) Validate(validate *validator.Validate) error {
	cleanPtr(ul.Title, ul.Description, ul.YoutubeLink)
	return validate.Struct(ul)
}

type NewResource struct {
	ClassID     string `json:"class_id" form:"class_id" validate:"required"`
	LectureID   string `json:"lecture_id" form:"lecture_id"`
	Title       string `json:"title" form:"title" validate:"required,max=200"`
	Description string `json:"description" form:"description" validate:"max=5000"`
	Filename    string `json:"filename" form:"filename" validate:"max=255"`
}

func (nr *NewResource) Validate(validate *validator.Validate) error {
	nr.ClassID = core.CleanString(nr.ClassID)
	nr.LectureID = core.CleanString(nr.LectureID)
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.Filename = core.CleanString(nr.Filename)
	return validate.Struct(nr)
}

// Upload is the optional file body of a new resource.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type UpdateResource struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

func (ur *UpdateResource) Validate(validate *validator.Validate) error {
	cleanPtr(ur.Title, ur.Description)
	return validate.Struct(ur)
}

type NewQnA struct {
	ClassID string `json:"class_id" validate:"required"`
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=10000"`
}

func (nq *NewQnA) Validate(validate *validator.Validate) error {
	nq.ClassID = core.CleanString(nq.ClassID)
	nq.Title = core.CleanString(nq.Title)
	nq.Content = core.CleanString(nq.Content)
	return validate.Struct(nq)
}

type NewEnrollment struct {
	ClassID   string `json:"class_id" validate:"required"`
	StudentID string `json:"student_id"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.ClassID = core.CleanString(ne.ClassID)
	ne.StudentID = core.CleanString(ne.StudentID)
	return validate.Struct(ne)
}

type ClassFilter struct {
	ProfID string `query:"prof_id"`
	Search string `query:"search"`
}

func cleanPtr(fields ...*string) {
	for _, f := range fields {
		if f != nil {
			*f = core.CleanString(*f)
		}
	}
}
