package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sylvexn/nexus/models"
)

type collectionFixture struct {
	files       *fakeFileRepo
	collections *fakeCollectionRepo
	audit       *fakeAuditRepo
	svc         CollectionService
}

func newCollectionFixture(t *testing.T) *collectionFixture {
	t.Helper()

	fx := &collectionFixture{
		files:       newFakeFileRepo(),
		collections: newFakeCollectionRepo(),
		audit:       &fakeAuditRepo{},
	}
	fx.svc = NewCollectionService(fakeTxManager{}, fx.files, fx.collections, fx.audit)
	return fx
}

func (fx *collectionFixture) seedFile(id string, ownerID uint) {
	fx.files.files[id] = models.File{
		ID:        id,
		OwnerID:   ownerID,
		Category:  models.CategoryImage,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
}

func TestCreateCollection(t *testing.T) {
	fx := newCollectionFixture(t)

	collection, err := fx.svc.CreateCollection(context.Background(), 1, "vacation")
	if err != nil {
		t.Fatalf("CreateCollection returned error: %v", err)
	}
	if collection.ID == 0 || collection.Name != "vacation" {
		t.Fatalf("unexpected collection: %+v", collection)
	}
	if len(fx.audit.events) != 1 || fx.audit.events[0].Action != AuditActionCollectionCreate {
		t.Fatalf("expected collection_create audit event, got %+v", fx.audit.events)
	}

	_, err = fx.svc.CreateCollection(context.Background(), 1, "")
	mustAppError(t, err, CodeInvalidInput)
}

func TestDeleteCollectionKeepsFiles(t *testing.T) {
	fx := newCollectionFixture(t)
	fx.seedFile("member1234", 1)

	collection, err := fx.svc.CreateCollection(context.Background(), 1, "stuff")
	if err != nil {
		t.Fatalf("CreateCollection returned error: %v", err)
	}
	if err := fx.svc.AddFile(context.Background(), 1, collection.ID, "member1234"); err != nil {
		t.Fatalf("AddFile returned error: %v", err)
	}

	if err := fx.svc.DeleteCollection(context.Background(), 1, collection.ID); err != nil {
		t.Fatalf("DeleteCollection returned error: %v", err)
	}

	if _, ok := fx.collections.collections[collection.ID]; ok {
		t.Fatalf("expected collection removed")
	}
	if len(fx.collections.memberships[collection.ID]) != 0 {
		t.Fatalf("expected memberships removed")
	}
	// 集合解散不影响文件本身。
	if _, ok := fx.files.files["member1234"]; !ok {
		t.Fatalf("file must survive collection deletion")
	}

	// 删除事件不带明细，details 仍须是合法 JSON。
	deleteEvent := fx.audit.events[len(fx.audit.events)-1]
	if deleteEvent.Action != AuditActionCollectionDelete {
		t.Fatalf("expected collection_delete audit event, got %s", deleteEvent.Action)
	}
	if deleteEvent.Details == "" || !json.Valid([]byte(deleteEvent.Details)) {
		t.Fatalf("audit details must be valid JSON, got %q", deleteEvent.Details)
	}
}

func TestAddFileIsIdempotent(t *testing.T) {
	fx := newCollectionFixture(t)
	fx.seedFile("member5678", 1)

	collection, err := fx.svc.CreateCollection(context.Background(), 1, "stuff")
	if err != nil {
		t.Fatalf("CreateCollection returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := fx.svc.AddFile(context.Background(), 1, collection.ID, "member5678"); err != nil {
			t.Fatalf("AddFile attempt %d returned error: %v", i+1, err)
		}
	}
	if got := len(fx.collections.memberships[collection.ID]); got != 1 {
		t.Fatalf("expected single membership, got %d", got)
	}
}

func TestAddFileChecksOwnership(t *testing.T) {
	fx := newCollectionFixture(t)
	fx.seedFile("foreign123", 2)

	collection, err := fx.svc.CreateCollection(context.Background(), 1, "mine")
	if err != nil {
		t.Fatalf("CreateCollection returned error: %v", err)
	}

	err = fx.svc.AddFile(context.Background(), 1, collection.ID, "foreign123")
	mustAppError(t, err, CodeNotFound)

	err = fx.svc.AddFile(context.Background(), 2, collection.ID, "foreign123")
	mustAppError(t, err, CodeNotFound)
}

func TestListFilesSkipsExpiredMembers(t *testing.T) {
	fx := newCollectionFixture(t)
	fx.seedFile("alivefile1", 1)
	fx.files.files["stalefile2"] = models.File{
		ID:        "stalefile2",
		OwnerID:   1,
		Category:  models.CategoryImage,
		ExpiresAt: time.Now().Add(-time.Minute),
	}

	collection, err := fx.svc.CreateCollection(context.Background(), 1, "mixed")
	if err != nil {
		t.Fatalf("CreateCollection returned error: %v", err)
	}
	fx.collections.memberships[collection.ID] = []string{"alivefile1", "stalefile2"}

	files, err := fx.svc.ListFiles(context.Background(), 1, collection.ID)
	if err != nil {
		t.Fatalf("ListFiles returned error: %v", err)
	}
	if len(files) != 1 || files[0].ID != "alivefile1" {
		t.Fatalf("expected only the live member, got %+v", files)
	}
}

func TestRemoveFileFromCollection(t *testing.T) {
	fx := newCollectionFixture(t)
	fx.seedFile("member9999", 1)

	collection, err := fx.svc.CreateCollection(context.Background(), 1, "stuff")
	if err != nil {
		t.Fatalf("CreateCollection returned error: %v", err)
	}
	if err := fx.svc.AddFile(context.Background(), 1, collection.ID, "member9999"); err != nil {
		t.Fatalf("AddFile returned error: %v", err)
	}

	if err := fx.svc.RemoveFile(context.Background(), 1, collection.ID, "member9999"); err != nil {
		t.Fatalf("RemoveFile returned error: %v", err)
	}
	if got := len(fx.collections.memberships[collection.ID]); got != 0 {
		t.Fatalf("expected membership removed, got %d", got)
	}
}
