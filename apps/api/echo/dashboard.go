package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core/class"
	"github.com/classhub/lms/core/dashboard"
	"github.com/classhub/lms/core/progress"
	"github.com/classhub/lms/core/user"
)

type dashboardApi struct {
	apiBase
	svc     *dashboard.Service
	classes *class.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, api dashboardApi) {
	dg := g.Group("/dashboard", jwt)
	dg.GET("/admin", api.admin, roleMiddleware(user.RoleAdmin))

	pg := dg.Group("/professor", roleMiddleware(user.RoleProf, user.RoleAdmin))
	pg.GET("", api.professor)
	pg.GET("/classes/:id", api.professorClass)

	sg := dg.Group("/student", roleMiddleware(user.RoleStudent))
	sg.GET("/explore", api.explore)
	sg.GET("/classes", api.studentClasses)
	sg.GET("/classes/:id", api.studentClass)

	g.GET("/lectures/:id/stats", api.lectureStats, jwt, roleMiddleware(user.RoleProf, user.RoleAdmin))
}

// manageableClass returns the class when the requester owns it or is an admin.
func (api *dashboardApi) manageableClass(ctx echo.Context, classID string) (class.Class, error) {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return class.Class{}, err
	}
	cls, err := api.classes.GetByID(ctx.Request().Context(), classID)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "finding class by ID")
	}
	if !class.CanManage(cls, usr) {
		return class.Class{}, errHttpForbidden
	}
	return cls, nil
}

func (api *dashboardApi) admin(ctx echo.Context) error {
	dash, err := api.svc.Admin(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building admin dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *dashboardApi) professor(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	classes, err := api.svc.ProfessorClasses(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "building professor dashboard")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *dashboardApi) professorClass(ctx echo.Context) error {
	cls, err := api.manageableClass(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	dash, err := api.svc.Class(ctx.Request().Context(), cls.ID)
	if err != nil {
		return errors.Wrap(err, "building class dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *dashboardApi) lectureStats(ctx echo.Context) error {
	lec, err := api.classes.GetLecture(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding lecture by ID")
	}
	if _, err := api.manageableClass(ctx, lec.ClassID); err != nil {
		return err
	}
	stats, err := api.svc.LectureStats(ctx.Request().Context(), lec.ID)
	if err != nil {
		return errors.Wrap(err, "building lecture stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *dashboardApi) explore(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	classes, err := api.svc.Explore(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "exploring classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *dashboardApi) studentClasses(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	classes, err := api.svc.StudentClasses(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "building student dashboard")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *dashboardApi) studentClass(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	classID := ctx.Param("id")
	enrolled, err := api.classes.IsEnrolled(ctx.Request().Context(), classID, usr.ID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		if _, err := api.classes.GetByID(ctx.Request().Context(), classID); err != nil {
			return errors.Wrap(err, "finding class by ID")
		}
		return progress.ErrNotEnrolled
	}

	dash, err := api.svc.StudentClass(ctx.Request().Context(), classID, usr.ID)
	if err != nil {
		return errors.Wrap(err, "building student class dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}
