package services

import (
	"crypto/rand"
	"path/filepath"
	"strings"

	"github.com/sylvexn/nexus/models"
)

const fileIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewFileID 生成定长随机文件标识，62 字符字母表下长度 10 的碰撞概率可忽略。
func NewFileID(length int) (string, error) {
	if length <= 0 {
		length = 10
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = fileIDAlphabet[int(b)%len(fileIDAlphabet)]
	}
	return string(buf), nil
}

// IsValidFileID 校验重命名时调用方提供的标识：仅限字母数字，长度 4~16。
func IsValidFileID(id string) bool {
	if len(id) < 4 || len(id) > 16 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	replacer := strings.NewReplacer("..", "_", "/", "_", "\\", "_")
	return replacer.Replace(name)
}

// normalizeExtension 优先使用原始文件名的扩展名，缺失或不合法时回退到嗅探结果。
func normalizeExtension(filename, sniffedExt string) string {
	ext := strings.ToLower(filepath.Ext(sanitizeFilename(filename)))
	if !isCleanExtension(ext) {
		return sniffedExt
	}
	return ext
}

func isCleanExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > 10 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// dedupeTags 去重并保持原有顺序，同一文件上 (file_id, name) 有唯一索引。
func dedupeTags(names []string) []string {
	if len(names) < 2 {
		return names
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func mediaCategory(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.CategoryImage
	case strings.HasPrefix(mimeType, "video/"):
		return models.CategoryVideo
	default:
		return models.CategoryOther
	}
}
