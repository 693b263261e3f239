package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/sylvexn/nexus/config"
	"github.com/sylvexn/nexus/logger"
	"github.com/sylvexn/nexus/models"
	"github.com/sylvexn/nexus/repositories"
	"github.com/sylvexn/nexus/storage"

	"github.com/disintegration/imaging"
	"gorm.io/gorm"
)

type ThumbnailPreset struct {
	Name   string
	Width  int
	Height int
}

// 预设集合是封闭的：缩略图磁盘布局由 (id, 宽, 高) 推导，新增预设不影响旧产物。
var thumbnailPresets = map[string]ThumbnailPreset{
	"small":  {Name: "small", Width: 128, Height: 128},
	"medium": {Name: "medium", Width: 320, Height: 320},
}

func ThumbnailPresets() []ThumbnailPreset {
	presets := make([]ThumbnailPreset, 0, len(thumbnailPresets))
	for _, p := range thumbnailPresets {
		presets = append(presets, p)
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets
}

type ThumbnailOutput struct {
	Path        string
	ContentType string
	Unsupported bool
}

type ThumbnailService interface {
	GetThumbnail(ctx context.Context, fileID string, preset string) (ThumbnailOutput, error)
	// SweepOrphans 删除已无对应账本记录的缩略图产物，返回删除数量。
	SweepOrphans(ctx context.Context, liveIDs map[string]struct{}) (int, error)
}

type thumbnailService struct {
	files repositories.FileRepository
	store *storage.Store
}

func NewThumbnailService(files repositories.FileRepository, store *storage.Store) ThumbnailService {
	return &thumbnailService{files: files, store: store}
}

func (s *thumbnailService) GetThumbnail(ctx context.Context, fileID string, preset string) (ThumbnailOutput, error) {
	p, ok := thumbnailPresets[preset]
	if !ok {
		return ThumbnailOutput{}, newAppError(CodeInvalidInput, http.StatusBadRequest, "未知的缩略图规格", nil)
	}

	file, err := s.files.GetActiveByID(ctx, nil, fileID, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ThumbnailOutput{}, newAppError(CodeNotFound, http.StatusNotFound, "文件不存在", nil)
		}
		return ThumbnailOutput{}, newAppError(CodeInternal, http.StatusInternalServerError, "查询文件失败", err)
	}

	if file.Category != models.CategoryImage && file.Category != models.CategoryVideo {
		return ThumbnailOutput{Unsupported: true}, nil
	}

	thumbPath := s.store.ThumbPath(fileID, p.Width, p.Height)
	if _, err := os.Stat(thumbPath); err == nil {
		// 源文件内容不会在同一标识下变化，已有产物直接复用。
		return ThumbnailOutput{Path: thumbPath, ContentType: "image/jpeg"}, nil
	}

	srcPath := s.store.BlobPath(file.Category, file.ID, file.Extension)
	if _, err := os.Stat(srcPath); os.IsNotExist(err) {
		return ThumbnailOutput{}, newAppError(CodeNotFound, http.StatusNotFound, "文件不存在于存储中", nil)
	}

	if file.Category == models.CategoryVideo {
		err = s.generateFromVideo(ctx, srcPath, thumbPath, p)
	} else {
		err = s.generateFromImage(srcPath, thumbPath, p)
	}
	if err != nil {
		return ThumbnailOutput{}, newAppError(CodeGenerationFailed, http.StatusInternalServerError, "生成缩略图失败", err)
	}

	return ThumbnailOutput{Path: thumbPath, ContentType: "image/jpeg"}, nil
}

// generateFromImage 解码、等比缩放并重新压缩为 JPEG；写临时文件后重命名，
// 并发生成同一产物时后写者覆盖同样的字节。
func (s *thumbnailService) generateFromImage(srcPath, dstPath string, p ThumbnailPreset) error {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return fmt.Errorf("打开图片失败: %w", err)
	}

	thumb := imaging.Fit(img, p.Width, p.Height, imaging.Lanczos)

	tmpPath := s.store.TempPath() + ".jpg"
	if err := imaging.Save(thumb, tmpPath, imaging.JPEGQuality(config.AppConfig.Thumbnail.Quality)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("写入缩略图失败: %w", err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("落盘缩略图失败: %w", err)
	}
	return nil
}

// generateFromVideo 用 ffmpeg 在固定偏移处抽取单帧，再按图片路径缩放。
func (s *thumbnailService) generateFromVideo(ctx context.Context, srcPath, dstPath string, p ThumbnailPreset) error {
	cfg := config.AppConfig.Thumbnail

	framePath := s.store.TempPath() + ".jpg"
	defer os.Remove(framePath)

	cmd := exec.CommandContext(ctx, cfg.FFmpegPath,
		"-y",
		"-ss", fmt.Sprintf("%.2f", *cfg.FrameOffset),
		"-i", srcPath,
		"-frames:v", "1",
		"-q:v", "2",
		framePath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		logger.Debugf("ffmpeg 输出: %s", output)
		return fmt.Errorf("抽取视频帧失败: %w", err)
	}

	return s.generateFromImage(framePath, dstPath, p)
}

func (s *thumbnailService) SweepOrphans(_ context.Context, liveIDs map[string]struct{}) (int, error) {
	thumbs, err := s.store.ListThumbs()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-orphanGraceWindow)
	removed := 0
	for name, id := range thumbs {
		if _, ok := liveIDs[id]; ok {
			continue
		}
		info, err := os.Stat(s.store.ThumbFilePath(name))
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := s.store.RemoveThumbFile(name); err != nil {
			logger.Warnf("删除孤儿缩略图失败 %s: %v", name, err)
			continue
		}
		removed++
	}
	return removed, nil
}
