package handlers

import (
	"github.com/sylvexn/nexus/utils"

	"github.com/gin-gonic/gin"
)

func HealthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "nexus",
	})
}
