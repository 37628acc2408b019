package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core/class"
	"github.com/classhub/lms/core/user"
)

const formFileField = "file"

type classApi struct {
	apiBase
	svc *class.Service
}

func registerClassAPI(g *echo.Group, jwt echo.MiddlewareFunc, api classApi) {
	staff := roleMiddleware(user.RoleProf, user.RoleAdmin)

	cg := g.Group("/classes", jwt)
	cg.GET("", api.queryClasses)
	cg.POST("", api.createClass, staff)
	cg.GET("/:id", api.retrieveClass)
	cg.PATCH("/:id", api.updateClass, staff)
	cg.DELETE("/:id", api.destroyClass, staff)
	cg.GET("/:id/lectures", api.classLectures)
	cg.GET("/:id/resources", api.classResources)
	cg.GET("/:id/qnas", api.classQnAs)
	cg.GET("/:id/enrollments", api.classEnrollments, staff)

	lg := g.Group("/lectures", jwt)
	lg.POST("", api.createLecture, staff)
	lg.GET("/:id", api.retrieveLecture)
	lg.PATCH("/:id", api.updateLecture, staff)
	lg.DELETE("/:id", api.destroyLecture, staff)

	rg := g.Group("/resources", jwt)
	rg.POST("", api.createResource, staff)
	rg.GET("/:id", api.retrieveResource)
	rg.GET("/:id/download", api.downloadResource)
	rg.PATCH("/:id", api.updateResource, staff)
	rg.DELETE("/:id", api.destroyResource, staff)

	qg := g.Group("/qnas", jwt)
	qg.POST("", api.createQnA)
	qg.DELETE("/:id", api.destroyQnA)

	g.POST("/enrollments", api.enroll, jwt, roleMiddleware(user.RoleStudent, user.RoleAdmin))
	g.GET("/students/:id/enrollments", api.studentEnrollments, jwt)
}

// Access helpers

// classForRead returns the class when the requester may see its content.
func (api *classApi) classForRead(ctx echo.Context, classID string) (class.Class, user.User, error) {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return class.Class{}, user.User{}, err
	}
	cls, err := api.svc.GetByID(ctx.Request().Context(), classID)
	if err != nil {
		return class.Class{}, user.User{}, errors.Wrap(err, "finding class by ID")
	}
	ok, err := api.svc.CanRead(ctx.Request().Context(), cls, usr)
	if err != nil {
		return class.Class{}, user.User{}, errors.Wrap(err, "checking class access")
	}
	if !ok {
		return class.Class{}, user.User{}, errHttpForbidden
	}
	return cls, usr, nil
}

// classForManage returns the class when the requester owns it or is an admin.
func (api *classApi) classForManage(ctx echo.Context, classID string) (class.Class, user.User, error) {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return class.Class{}, user.User{}, err
	}
	cls, err := api.svc.GetByID(ctx.Request().Context(), classID)
	if err != nil {
		return class.Class{}, user.User{}, errors.Wrap(err, "finding class by ID")
	}
	if !class.CanManage(cls, usr) {
		return class.Class{}, user.User{}, errHttpForbidden
	}
	return cls, usr, nil
}

// Classes

func (api *classApi) queryClasses(ctx echo.Context) error {
	var filter class.ClassFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []class.Class{})
	}
	classes, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) createClass(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	// professors create their own classes, admins name the professor
	if usr.IsProf() {
		data.ProfID = usr.ID
	}

	cls, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) retrieveClass(ctx echo.Context) error {
	cls, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class by ID")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) updateClass(ctx echo.Context) error {
	cls, usr, err := api.classForManage(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data class.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	// only admins hand a class over to another professor
	if data.ProfID != nil && *data.ProfID != cls.ProfID && !usr.IsAdmin() {
		return errHttpForbidden
	}

	cls, err = api.svc.Update(ctx.Request().Context(), cls.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) destroyClass(ctx echo.Context) error {
	cls, _, err := api.classForManage(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), cls.ID); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) classLectures(ctx echo.Context) error {
	cls, _, err := api.classForRead(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	lectures, err := api.svc.GetLectures(ctx.Request().Context(), cls.ID)
	if err != nil {
		return errors.Wrap(err, "finding class lectures")
	}
	return ctx.JSON(http.StatusOK, lectures)
}

func (api *classApi) classResources(ctx echo.Context) error {
	cls, _, err := api.classForRead(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	resources, err := api.svc.GetResources(ctx.Request().Context(), cls.ID)
	if err != nil {
		return errors.Wrap(err, "finding class resources")
	}
	return ctx.JSON(http.StatusOK, resources)
}

func (api *classApi) classQnAs(ctx echo.Context) error {
	cls, _, err := api.classForRead(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	qnas, err := api.svc.GetQnAs(ctx.Request().Context(), cls.ID)
	if err != nil {
		return errors.Wrap(err, "finding class qnas")
	}
	return ctx.JSON(http.StatusOK, qnas)
}

func (api *classApi) classEnrollments(ctx echo.Context) error {
	cls, _, err := api.classForManage(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	enrollments, err := api.svc.GetEnrollments(ctx.Request().Context(), cls.ID)
	if err != nil {
		return errors.Wrap(err, "finding class enrollments")
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

// Lectures

func (api *classApi) createLecture(ctx echo.Context) error {
	var data class.NewLecture
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLecture")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if _, _, err := api.classForManage(ctx, data.ClassID); err != nil {
		return err
	}

	lec, err := api.svc.CreateLecture(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lecture")
	}
	return ctx.JSON(http.StatusCreated, lec)
}

func (api *classApi) retrieveLecture(ctx echo.Context) error {
	lec, err := api.svc.GetLecture(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding lecture by ID")
	}
	if _, _, err := api.classForRead(ctx, lec.ClassID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lec)
}

func (api *classApi) updateLecture(ctx echo.Context) error {
	lec, err := api.svc.GetLecture(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding lecture by ID")
	}
	if _, _, err := api.classForManage(ctx, lec.ClassID); err != nil {
		return err
	}

	var data class.UpdateLecture
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLecture")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	lec, err = api.svc.UpdateLecture(ctx.Request().Context(), lec.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating lecture")
	}
	return ctx.JSON(http.StatusOK, lec)
}

func (api *classApi) destroyLecture(ctx echo.Context) error {
	lec, err := api.svc.GetLecture(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding lecture by ID")
	}
	if _, _, err := api.classForManage(ctx, lec.ClassID); err != nil {
		return err
	}
	if err := api.svc.DeleteLecture(ctx.Request().Context(), lec.ID); err != nil {
		return errors.Wrap(err, "deleting lecture")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Resources

// createResource accepts JSON metadata, or a multipart form carrying the file body in `file`.
func (api *classApi) createResource(ctx echo.Context) error {
	var data class.NewResource
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResource")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if _, _, err := api.classForManage(ctx, data.ClassID); err != nil {
		return err
	}

	var upload *class.Upload
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := ctx.FormFile(formFileField)
		if err != nil && err != http.ErrMissingFile {
			return errors.Wrap(err, "reading uploaded file")
		}
		if fh != nil {
			f, err := fh.Open()
			if err != nil {
				return errors.Wrap(err, "opening uploaded file")
			}
			defer f.Close()
			upload = &class.Upload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(echo.HeaderContentType),
				Body:        f,
			}
		}
	}

	res, err := api.svc.CreateResource(ctx.Request().Context(), data, upload)
	if err != nil {
		return errors.Wrap(err, "creating resource")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *classApi) retrieveResource(ctx echo.Context) error {
	res, err := api.svc.GetResource(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding resource by ID")
	}
	if _, _, err := api.classForRead(ctx, res.ClassID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *classApi) downloadResource(ctx echo.Context) error {
	res, err := api.svc.GetResource(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding resource by ID")
	}
	if _, _, err := api.classForRead(ctx, res.ClassID); err != nil {
		return err
	}

	rc, err := api.svc.OpenResource(ctx.Request().Context(), res)
	if err != nil {
		return errors.Wrap(err, "opening resource")
	}
	defer rc.Close()

	contentType := res.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", res.Filename))
	return ctx.Stream(http.StatusOK, contentType, rc)
}

func (api *classApi) updateResource(ctx echo.Context) error {
	res, err := api.svc.GetResource(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding resource by ID")
	}
	if _, _, err := api.classForManage(ctx, res.ClassID); err != nil {
		return err
	}

	var data class.UpdateResource
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateResource")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err = api.svc.UpdateResource(ctx.Request().Context(), res.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating resource")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *classApi) destroyResource(ctx echo.Context) error {
	res, err := api.svc.GetResource(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding resource by ID")
	}
	if _, _, err := api.classForManage(ctx, res.ClassID); err != nil {
		return err
	}
	if err := api.svc.DeleteResource(ctx.Request().Context(), res.ID); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// QnAs

func (api *classApi) createQnA(ctx echo.Context) error {
	var data class.NewQnA
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQnA")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	_, usr, err := api.classForRead(ctx, data.ClassID)
	if err != nil {
		return err
	}

	qna, err := api.svc.CreateQnA(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating qna")
	}
	return ctx.JSON(http.StatusCreated, qna)
}

func (api *classApi) destroyQnA(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	qna, err := api.svc.GetQnA(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding qna by ID")
	}

	// the author, the owning professor and admins may delete a post
	if qna.AuthorID != usr.ID {
		cls, err := api.svc.GetByID(ctx.Request().Context(), qna.ClassID)
		if err != nil {
			return errors.Wrap(err, "finding class by ID")
		}
		if !class.CanManage(cls, usr) {
			return errHttpForbidden
		}
	}

	if err := api.svc.DeleteQnA(ctx.Request().Context(), qna.ID); err != nil {
		return errors.Wrap(err, "deleting qna")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollments

func (api *classApi) enroll(ctx echo.Context) error {
	var data class.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	// students enroll themselves only
	if usr.IsStudent() {
		if data.StudentID != "" && data.StudentID != usr.ID {
			return errHttpForbidden
		}
		data.StudentID = usr.ID
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *classApi) studentEnrollments(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	studentID := ctx.Param("id")
	if studentID != usr.ID && !usr.IsAdmin() {
		return errHttpForbidden
	}

	enrollments, err := api.svc.GetStudentEnrollments(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "finding student enrollments")
	}
	return ctx.JSON(http.StatusOK, enrollments)
}
