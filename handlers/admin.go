package handlers

import (
	"net/http"

	"github.com/sylvexn/nexus/services"
	"github.com/sylvexn/nexus/utils"

	"github.com/gin-gonic/gin"
)

// RunExpiryGC 立即触发一次过期回收，与调度器的周期触发互不影响。
func RunExpiryGC(c *gin.Context) {
	result, err := getServices().Cleanup.RunExpiryGC(c.Request.Context())
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, services.CodeInternal, "过期回收执行失败")
		return
	}
	utils.Success(c, result)
}

func RunOrphanSweep(c *gin.Context) {
	result, err := getServices().Cleanup.RunOrphanSweep(c.Request.Context())
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, services.CodeInternal, "孤儿清扫执行失败")
		return
	}
	utils.Success(c, result)
}

func SchedulerStatus(c *gin.Context) {
	if appScheduler == nil {
		utils.Error(c, http.StatusServiceUnavailable, services.CodeInternal, "调度器未初始化")
		return
	}
	utils.Success(c, appScheduler.Status())
}
