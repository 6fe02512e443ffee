package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	pkgcommon "github.com/driveyard/driveyard/pkg/common"
)

// Ping reports liveness.
func Ping(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]string{"message": "pong"})
}

func writeBadRequest(c *app.RequestContext, err error) {
	c.JSON(consts.StatusBadRequest, pkgcommon.CommonResponse{
		Code:  consts.StatusBadRequest,
		Msg:   err.Error(),
		Error: err.Error(),
	})
}

func writeNotFound(c *app.RequestContext, err error) {
	c.JSON(consts.StatusNotFound, pkgcommon.CommonResponse{
		Code:  consts.StatusNotFound,
		Msg:   err.Error(),
		Error: err.Error(),
	})
}

func writeInternalError(c *app.RequestContext, err error) {
	c.JSON(consts.StatusInternalServerError, pkgcommon.CommonResponse{
		Code:  consts.StatusInternalServerError,
		Msg:   "internal error",
		Error: err.Error(),
	})
}

func writeOK(c *app.RequestContext, data interface{}) {
	c.JSON(consts.StatusOK, pkgcommon.CommonResponse{
		Code: consts.StatusOK,
		Data: data,
	})
}
