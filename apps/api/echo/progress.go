package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core/class"
	"github.com/classhub/lms/core/progress"
	"github.com/classhub/lms/core/user"
)

type progressApi struct {
	apiBase
	svc      *progress.Service
	classes  *class.Service
	sessions *progress.SessionManager
}

// ViewResponse is a lecture view with its completion status.
type ViewResponse struct {
	progress.LectureView
	Status string `json:"status"`
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, api progressApi) {
	student := roleMiddleware(user.RoleStudent)

	g.POST("/views/progress", api.updatePosition, jwt, student)
	g.GET("/classes/:id/views", api.classViews, jwt, roleMiddleware(user.RoleProf, user.RoleAdmin))
	g.GET("/classes/:id/students/:sid/views", api.studentViews, jwt)

	g.POST("/lectures/:id/playback", api.startPlayback, jwt, student)
	pg := g.Group("/playback/:sid", jwt, student)
	pg.POST("/heartbeat", api.heartbeat)
	pg.DELETE("", api.stopPlayback)
}

func (api *progressApi) viewResponses(views []progress.LectureView) []ViewResponse {
	resp := make([]ViewResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, ViewResponse{LectureView: v, Status: api.svc.Status(v.ProgressRate)})
	}
	return resp
}

func (api *progressApi) updatePosition(ctx echo.Context) error {
	var data progress.UpdatePosition
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePosition")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	view, err := api.svc.SavePosition(ctx.Request().Context(), data.ClassID, data.LectureID, usr.ID, *data.LastPosition)
	if err != nil {
		return errors.Wrap(err, "saving position")
	}
	return ctx.JSON(http.StatusOK, ViewResponse{LectureView: view, Status: api.svc.Status(view.ProgressRate)})
}

func (api *progressApi) classViews(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	cls, err := api.classes.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class by ID")
	}
	if !class.CanManage(cls, usr) {
		return errHttpForbidden
	}

	views, err := api.svc.GetByClass(ctx.Request().Context(), cls.ID)
	if err != nil {
		return errors.Wrap(err, "finding class views")
	}
	return ctx.JSON(http.StatusOK, api.viewResponses(views))
}

func (api *progressApi) studentViews(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	cls, err := api.classes.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class by ID")
	}
	studentID := ctx.Param("sid")
	if studentID != usr.ID && !class.CanManage(cls, usr) {
		return errHttpForbidden
	}

	views, err := api.svc.GetByClassAndStudent(ctx.Request().Context(), cls.ID, studentID)
	if err != nil {
		return errors.Wrap(err, "finding student views")
	}
	return ctx.JSON(http.StatusOK, api.viewResponses(views))
}

// Playback

func (api *progressApi) startPlayback(ctx echo.Context) error {
	var data progress.StartPlayback
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartPlayback")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	res, err := api.sessions.Start(ctx.Request().Context(), data.ClassID, ctx.Param("id"), usr.ID, data.Duration)
	if err != nil {
		return errors.Wrap(err, "starting playback")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *progressApi) heartbeat(ctx echo.Context) error {
	var data progress.Heartbeat
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Heartbeat")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	res, err := api.sessions.Heartbeat(ctx.Request().Context(), ctx.Param("sid"), usr.ID, *data.CurrentTime, data.State)
	if err != nil {
		return errors.Wrap(err, "playback heartbeat")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *progressApi) stopPlayback(ctx echo.Context) error {
	var data progress.StopPlayback
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StopPlayback")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	res, err := api.sessions.Stop(ctx.Request().Context(), ctx.Param("sid"), usr.ID, data.CurrentTime)
	if err != nil {
		return errors.Wrap(err, "stopping playback")
	}
	return ctx.JSON(http.StatusOK, res)
}
