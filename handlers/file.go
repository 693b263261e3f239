package handlers

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sylvexn/nexus/middleware"
	"github.com/sylvexn/nexus/services"
	"github.com/sylvexn/nexus/utils"

	"github.com/gin-gonic/gin"
)

func UploadFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, services.CodeInvalidInput, "缺少上传文件")
		return
	}
	defer file.Close()

	var tags []string
	if raw := c.PostForm("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	in := services.IngestInput{
		Reader:        file,
		Filename:      header.Filename,
		DeclaredSize:  header.Size,
		ExpiryDays:    intForm(c, "expiry_days"),
		DownloadLimit: int64(intForm(c, "download_limit")),
		Tags:          tags,
		CollectionID:  uint(intForm(c, "collection_id")),
	}

	out, err := getServices().File.Ingest(c.Request.Context(), middleware.OwnerID(c), in)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, out)
}

// DownloadFile 处理公开下载路径 /f/<id><ext>，标识从路径段中截取。
func DownloadFile(c *gin.Context) {
	fileID := fileIDFromPath(c.Param("name"))

	out, err := getServices().File.GetDownloadInfo(c.Request.Context(), fileID, c.ClientIP(), c.Request.UserAgent())
	if respondServiceError(c, err) {
		return
	}
	c.FileAttachment(out.AbsPath, out.DownloadName)
}

func PreviewFile(c *gin.Context) {
	fileID := fileIDFromPath(c.Param("name"))

	out, err := getServices().File.GetPreviewInfo(c.Request.Context(), fileID, c.ClientIP(), c.Request.UserAgent())
	if respondServiceError(c, err) {
		return
	}
	c.Header("Content-Type", out.ContentType)
	c.File(out.AbsPath)
}

func GetThumbnail(c *gin.Context) {
	preset := c.DefaultQuery("preset", "small")

	out, err := getServices().Thumbnail.GetThumbnail(c.Request.Context(), c.Param("id"), preset)
	if respondServiceError(c, err) {
		return
	}
	if out.Unsupported {
		utils.Success(c, gin.H{"unsupported": true})
		return
	}
	c.Header("Content-Type", out.ContentType)
	c.File(out.Path)
}

func DeleteFile(c *gin.Context) {
	err := getServices().File.Delete(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, nil)
}

type bulkDeleteRequest struct {
	FileIDs []string `json:"file_ids" binding:"required"`
}

func BulkDeleteFiles(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, services.CodeInvalidInput, "请求参数错误")
		return
	}

	out, err := getServices().File.BulkDelete(c.Request.Context(), middleware.OwnerID(c), req.FileIDs)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, out)
}

type renameRequest struct {
	NewID string `json:"new_id" binding:"required"`
}

func RenameFile(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, services.CodeInvalidInput, "请求参数错误")
		return
	}

	err := getServices().File.Rename(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), req.NewID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, gin.H{"file_id": req.NewID})
}

type updateFileRequest struct {
	ExpiryDays    *int     `json:"expiry_days"`
	DownloadLimit *int64   `json:"download_limit"`
	Tags          []string `json:"tags"`
}

func UpdateFile(c *gin.Context) {
	var req updateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, services.CodeInvalidInput, "请求参数错误")
		return
	}

	err := getServices().File.UpdateFile(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), services.UpdateFileInput{
		ExpiryDays:    req.ExpiryDays,
		DownloadLimit: req.DownloadLimit,
		Tags:          req.Tags,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, nil)
}

func ListFileTags(c *gin.Context) {
	tags, err := getServices().File.ListTags(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, tags)
}

func intForm(c *gin.Context, key string) int {
	raw := c.PostForm(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func fileIDFromPath(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
