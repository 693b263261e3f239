package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store 负责文件字节与缩略图在磁盘上的确定性布局：
//
//	files/<category>/<id><ext>
//	thumbnails/<id>_<w>x<h>.jpg
//
// 路径只由账本行内容推导，重启后保持稳定。
type Store struct {
	basePath string
}

func NewStore(basePath string) *Store {
	return &Store{basePath: basePath}
}

func (s *Store) BasePath() string {
	return s.basePath
}

func (s *Store) EnsureDirs() error {
	dirs := []string{
		filepath.Join(s.basePath, "files", "image"),
		filepath.Join(s.basePath, "files", "video"),
		filepath.Join(s.basePath, "files", "other"),
		filepath.Join(s.basePath, "thumbnails"),
		filepath.Join(s.basePath, "temp"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) BlobRelPath(category, id, ext string) string {
	return filepath.Join("files", category, id+ext)
}

func (s *Store) BlobPath(category, id, ext string) string {
	return filepath.Join(s.basePath, s.BlobRelPath(category, id, ext))
}

func (s *Store) ThumbPath(id string, width, height int) string {
	return filepath.Join(s.basePath, "thumbnails", fmt.Sprintf("%s_%dx%d.jpg", id, width, height))
}

func (s *Store) TempPath() string {
	return filepath.Join(s.basePath, "temp", uuid.New().String())
}

// WriteBlob 先写临时文件再重命名，失败时不留下半成品。
func (s *Store) WriteBlob(category, id, ext string, r io.Reader) (int64, error) {
	tmpPath := s.TempPath()
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}

	dst := s.BlobPath(category, id, ext)
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	return written, nil
}

func (s *Store) RemoveBlob(category, id, ext string) error {
	return os.Remove(s.BlobPath(category, id, ext))
}

func (s *Store) RenameBlob(category, oldID, newID, ext string) error {
	return os.Rename(s.BlobPath(category, oldID, ext), s.BlobPath(category, newID, ext))
}

// ListThumbs 返回缩略图目录下 文件名 -> 文件ID 的映射，供孤儿清理使用。
func (s *Store) ListThumbs() (map[string]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, "thumbnails"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	result := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := ParseThumbID(entry.Name())
		if !ok {
			continue
		}
		result[entry.Name()] = id
	}
	return result, nil
}

func (s *Store) ThumbFilePath(name string) string {
	return filepath.Join(s.basePath, "thumbnails", name)
}

func (s *Store) RemoveThumbFile(name string) error {
	return os.Remove(s.ThumbFilePath(name))
}

// ListBlobs 返回各分类目录下 相对路径 -> 文件ID 的映射。
func (s *Store) ListBlobs() (map[string]string, error) {
	result := map[string]string{}
	for _, category := range []string{"image", "video", "other"} {
		dir := filepath.Join(s.basePath, "files", category)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			id := strings.TrimSuffix(name, filepath.Ext(name))
			result[filepath.Join("files", category, name)] = id
		}
	}
	return result, nil
}

func (s *Store) RemoveRel(relPath string) error {
	return os.Remove(filepath.Join(s.basePath, relPath))
}

func (s *Store) StatRel(relPath string) (os.FileInfo, error) {
	return os.Stat(filepath.Join(s.basePath, relPath))
}

// ParseThumbID 从 <id>_<w>x<h>.jpg 形式的文件名中解析文件ID。
func ParseThumbID(name string) (string, bool) {
	if !strings.HasSuffix(name, ".jpg") {
		return "", false
	}
	base := strings.TrimSuffix(name, ".jpg")
	idx := strings.LastIndex(base, "_")
	if idx <= 0 {
		return "", false
	}
	dims := base[idx+1:]
	if !strings.Contains(dims, "x") {
		return "", false
	}
	return base[:idx], true
}
