package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/classhub/lms/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the `?ordering=name,-created_at` query parameter.
func (ord *Ordering) Bind(ctx echo.Context) {
	ord.Orderings = core.ParseOrdering(ctx.QueryParam(orderingParam))
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	IDsRequest struct {
		IDs []string `query:"id"`
	}
)
