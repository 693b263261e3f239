package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sylvexn/nexus/config"
	"github.com/sylvexn/nexus/models"
	"github.com/sylvexn/nexus/storage"

	"gorm.io/gorm"
)

func setupTestConfig(t *testing.T) *storage.Store {
	t.Helper()

	base := t.TempDir()
	frameOffset := 1.0
	config.AppConfig = &config.Config{
		Storage: config.StorageConfig{
			BasePath:          base,
			MaxFileSize:       1024 * 1024,
			DefaultUserQuota:  10 * 1024 * 1024,
			DefaultExpiryDays: 7,
			MaxExpiryDays:     30,
			FileIDLength:      10,
		},
		Thumbnail: config.ThumbnailConfig{
			Quality:     85,
			FFmpegPath:  "ffmpeg",
			FrameOffset: &frameOffset,
		},
		GC: config.GCConfig{
			BatchSize: 100,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:          false,
			UploadsPerMinute: 30,
		},
	}

	store := storage.NewStore(base)
	if err := store.EnsureDirs(); err != nil {
		t.Fatalf("ensure dirs failed: %v", err)
	}
	return store
}

type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// fakeUserRepo 加锁模拟真实仓库条件更新的原子性，并发测试依赖这一点。
type fakeUserRepo struct {
	mu           sync.Mutex
	usersByID    map[uint]models.User
	reserveCalls []int64
	subCalls     []int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{usersByID: map[uint]models.User{}}
}

func (r *fakeUserRepo) GetByID(_ context.Context, _ *gorm.DB, userID uint) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.usersByID[userID]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByAPIKey(_ context.Context, _ *gorm.DB, apiKey string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.usersByID {
		if user.APIKey == apiKey {
			return user, nil
		}
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) TryReserveStorage(_ context.Context, _ *gorm.DB, userID uint, delta int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.usersByID[userID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	r.reserveCalls = append(r.reserveCalls, delta)
	if user.StorageUsed+delta > user.StorageQuota {
		return false, nil
	}
	user.StorageUsed += delta
	r.usersByID[userID] = user
	return true, nil
}

func (r *fakeUserRepo) SubStorageUsed(_ context.Context, _ *gorm.DB, userID uint, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.usersByID[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.subCalls = append(r.subCalls, delta)
	user.StorageUsed -= delta
	if user.StorageUsed < 0 {
		user.StorageUsed = 0
	}
	r.usersByID[userID] = user
	return nil
}

func (r *fakeUserRepo) storageUsed(userID uint) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usersByID[userID].StorageUsed
}

func (r *fakeUserRepo) RecalcStorageUsed(context.Context, *gorm.DB, uint) error {
	return nil
}

type fakeFileRepo struct {
	mu    sync.Mutex
	files map[string]models.File
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: map[string]models.File{}}
}

func (r *fakeFileRepo) Create(_ context.Context, _ *gorm.DB, file *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.files[file.ID]; exists {
		return gorm.ErrDuplicatedKey
	}
	file.CreatedAt = time.Now()
	r.files[file.ID] = *file
	return nil
}

func (r *fakeFileRepo) GetActiveByID(_ context.Context, _ *gorm.DB, fileID string, now time.Time) (models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[fileID]
	if !ok || !file.ExpiresAt.After(now) {
		return models.File{}, gorm.ErrRecordNotFound
	}
	return file, nil
}

func (r *fakeFileRepo) GetActiveByIDAndOwner(ctx context.Context, tx *gorm.DB, fileID string, ownerID uint, now time.Time) (models.File, error) {
	file, err := r.GetActiveByID(ctx, tx, fileID, now)
	if err != nil || file.OwnerID != ownerID {
		return models.File{}, gorm.ErrRecordNotFound
	}
	return file, nil
}

func (r *fakeFileRepo) GetActiveByIDsAndOwner(ctx context.Context, tx *gorm.DB, ownerID uint, fileIDs []string, now time.Time) ([]models.File, error) {
	var result []models.File
	for _, id := range fileIDs {
		file, err := r.GetActiveByIDAndOwner(ctx, tx, id, ownerID, now)
		if err != nil {
			continue
		}
		result = append(result, file)
	}
	return result, nil
}

func (r *fakeFileRepo) ExistsID(_ context.Context, _ *gorm.DB, fileID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.files[fileID]
	return ok, nil
}

func (r *fakeFileRepo) UpdateByIDAndOwner(_ context.Context, _ *gorm.DB, fileID string, ownerID uint, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[fileID]
	if !ok || file.OwnerID != ownerID {
		return gorm.ErrRecordNotFound
	}
	if newID, ok := updates["id"].(string); ok {
		if _, exists := r.files[newID]; exists {
			return gorm.ErrDuplicatedKey
		}
		delete(r.files, fileID)
		file.ID = newID
		r.files[newID] = file
		return nil
	}
	if expiresAt, ok := updates["expires_at"].(time.Time); ok {
		file.ExpiresAt = expiresAt
	}
	if limit, ok := updates["download_limit"].(int64); ok {
		file.DownloadLimit = limit
	}
	r.files[fileID] = file
	return nil
}

func (r *fakeFileRepo) DeleteByIDs(_ context.Context, _ *gorm.DB, fileIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range fileIDs {
		delete(r.files, id)
	}
	return nil
}

func (r *fakeFileRepo) ListExpired(_ context.Context, _ *gorm.DB, now time.Time, limit int) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.File
	for _, file := range r.files {
		if !file.ExpiresAt.After(now) {
			result = append(result, file)
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *fakeFileRepo) ListIDs(context.Context, *gorm.DB) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.files))
	for id := range r.files {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeFileRepo) IncrementViews(_ context.Context, _ *gorm.DB, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[fileID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	file.Views++
	r.files[fileID] = file
	return nil
}

func (r *fakeFileRepo) TryIncrementDownloads(_ context.Context, _ *gorm.DB, fileID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[fileID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if file.DownloadLimit > 0 && file.Downloads >= file.DownloadLimit {
		return false, nil
	}
	file.Downloads++
	r.files[fileID] = file
	return true, nil
}

type fakeTagRepo struct {
	mu     sync.Mutex
	byFile map[string][]models.Tag
}

func newFakeTagRepo() *fakeTagRepo {
	return &fakeTagRepo{byFile: map[string][]models.Tag{}}
}

// CreateAll 和真实表一样在 (file_id, name) 上强制唯一。
func (r *fakeTagRepo) CreateAll(_ context.Context, _ *gorm.DB, fileID string, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		for _, existing := range r.byFile[fileID] {
			if existing.Name == name {
				return gorm.ErrDuplicatedKey
			}
		}
		r.byFile[fileID] = append(r.byFile[fileID], models.Tag{FileID: fileID, Name: name})
	}
	return nil
}

func (r *fakeTagRepo) ReplaceForFile(ctx context.Context, tx *gorm.DB, fileID string, names []string) error {
	r.mu.Lock()
	delete(r.byFile, fileID)
	r.mu.Unlock()
	return r.CreateAll(ctx, tx, fileID, names)
}

func (r *fakeTagRepo) ListByFileID(_ context.Context, _ *gorm.DB, fileID string) ([]models.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byFile[fileID], nil
}

func (r *fakeTagRepo) DeleteByFileIDs(_ context.Context, _ *gorm.DB, fileIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range fileIDs {
		delete(r.byFile, id)
	}
	return nil
}

type fakeCollectionRepo struct {
	collections map[uint]models.Collection
	memberships map[uint][]string
	nextID      uint
}

func newFakeCollectionRepo() *fakeCollectionRepo {
	return &fakeCollectionRepo{
		collections: map[uint]models.Collection{},
		memberships: map[uint][]string{},
		nextID:      1,
	}
}

func (r *fakeCollectionRepo) Create(_ context.Context, _ *gorm.DB, collection *models.Collection) error {
	collection.ID = r.nextID
	r.nextID++
	r.collections[collection.ID] = *collection
	return nil
}

func (r *fakeCollectionRepo) GetByIDAndOwner(_ context.Context, _ *gorm.DB, collectionID uint, ownerID uint) (models.Collection, error) {
	collection, ok := r.collections[collectionID]
	if !ok || collection.OwnerID != ownerID {
		return models.Collection{}, gorm.ErrRecordNotFound
	}
	return collection, nil
}

func (r *fakeCollectionRepo) DeleteByID(_ context.Context, _ *gorm.DB, collectionID uint) error {
	delete(r.collections, collectionID)
	return nil
}

func (r *fakeCollectionRepo) AddFile(_ context.Context, _ *gorm.DB, collectionID uint, fileID string) error {
	for _, id := range r.memberships[collectionID] {
		if id == fileID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.memberships[collectionID] = append(r.memberships[collectionID], fileID)
	return nil
}

func (r *fakeCollectionRepo) RemoveFile(_ context.Context, _ *gorm.DB, collectionID uint, fileID string) error {
	members := r.memberships[collectionID]
	for i, id := range members {
		if id == fileID {
			r.memberships[collectionID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeCollectionRepo) ListFileIDs(_ context.Context, _ *gorm.DB, collectionID uint) ([]string, error) {
	return r.memberships[collectionID], nil
}

func (r *fakeCollectionRepo) DeleteMembershipsByCollectionID(_ context.Context, _ *gorm.DB, collectionID uint) error {
	delete(r.memberships, collectionID)
	return nil
}

func (r *fakeCollectionRepo) DeleteMembershipsByFileIDs(_ context.Context, _ *gorm.DB, fileIDs []string) error {
	drop := map[string]bool{}
	for _, id := range fileIDs {
		drop[id] = true
	}
	for collectionID, members := range r.memberships {
		kept := members[:0]
		for _, id := range members {
			if !drop[id] {
				kept = append(kept, id)
			}
		}
		r.memberships[collectionID] = kept
	}
	return nil
}

type fakeAccessLogRepo struct {
	entries []models.FileAccessLog
}

func (r *fakeAccessLogRepo) Create(_ context.Context, _ *gorm.DB, entry *models.FileAccessLog) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAccessLogRepo) DeleteByFileIDs(_ context.Context, _ *gorm.DB, fileIDs []string) error {
	drop := map[string]bool{}
	for _, id := range fileIDs {
		drop[id] = true
	}
	kept := r.entries[:0]
	for _, entry := range r.entries {
		if !drop[entry.FileID] {
			kept = append(kept, entry)
		}
	}
	r.entries = kept
	return nil
}

type fakeAuditRepo struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (r *fakeAuditRepo) Create(_ context.Context, _ *gorm.DB, event *models.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

type fakeRateLimiter struct {
	allowed bool
	calls   int
}

func (r *fakeRateLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	r.calls++
	return r.allowed, nil
}
