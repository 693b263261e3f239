package handlers

import (
	"net/http"
	"strconv"

	"github.com/sylvexn/nexus/middleware"
	"github.com/sylvexn/nexus/services"
	"github.com/sylvexn/nexus/utils"

	"github.com/gin-gonic/gin"
)

type createCollectionRequest struct {
	Name string `json:"name" binding:"required"`
}

func CreateCollection(c *gin.Context) {
	var req createCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, services.CodeInvalidInput, "请求参数错误")
		return
	}

	collection, err := getServices().Collection.CreateCollection(c.Request.Context(), middleware.OwnerID(c), req.Name)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, collection)
}

func DeleteCollection(c *gin.Context) {
	collectionID, ok := collectionIDParam(c)
	if !ok {
		return
	}
	err := getServices().Collection.DeleteCollection(c.Request.Context(), middleware.OwnerID(c), collectionID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, nil)
}

type collectionFileRequest struct {
	FileID string `json:"file_id" binding:"required"`
}

func AddFileToCollection(c *gin.Context) {
	collectionID, ok := collectionIDParam(c)
	if !ok {
		return
	}
	var req collectionFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, services.CodeInvalidInput, "请求参数错误")
		return
	}

	err := getServices().Collection.AddFile(c.Request.Context(), middleware.OwnerID(c), collectionID, req.FileID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, nil)
}

func RemoveFileFromCollection(c *gin.Context) {
	collectionID, ok := collectionIDParam(c)
	if !ok {
		return
	}
	err := getServices().Collection.RemoveFile(c.Request.Context(), middleware.OwnerID(c), collectionID, c.Param("file_id"))
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, nil)
}

func ListCollectionFiles(c *gin.Context) {
	collectionID, ok := collectionIDParam(c)
	if !ok {
		return
	}
	files, err := getServices().Collection.ListFiles(c.Request.Context(), middleware.OwnerID(c), collectionID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, files)
}

func collectionIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, services.CodeInvalidInput, "集合标识不合法")
		return 0, false
	}
	return uint(id), true
}
