package handlers

import (
	"net/http"

	"github.com/sylvexn/nexus/scheduler"
	"github.com/sylvexn/nexus/services"
	"github.com/sylvexn/nexus/utils"

	"github.com/gin-gonic/gin"
)

var appServices *services.Container
var appScheduler *scheduler.Scheduler

func SetServices(container *services.Container) {
	appServices = container
}

func SetScheduler(s *scheduler.Scheduler) {
	appScheduler = s
}

func getServices() *services.Container {
	if appServices == nil {
		panic("services container is not initialized")
	}
	return appServices
}

func respondServiceError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := err.(*services.AppError); ok {
		if appErr.Data != nil {
			utils.ErrorWithData(c, appErr.HTTPCode, appErr.Code, appErr.Message, appErr.Data)
		} else {
			utils.Error(c, appErr.HTTPCode, appErr.Code, appErr.Message)
		}
		return true
	}
	utils.Error(c, http.StatusInternalServerError, services.CodeInternal, "服务器内部错误")
	return true
}
