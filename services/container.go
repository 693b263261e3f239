package services

import (
	"github.com/sylvexn/nexus/repositories"
	"github.com/sylvexn/nexus/storage"
)

type Container struct {
	File       FileService
	Thumbnail  ThumbnailService
	Collection CollectionService
	Cleanup    CleanupService
}

func NewContainer(repos repositories.Container, store *storage.Store) *Container {
	thumbnail := NewThumbnailService(repos.Files, store)
	return &Container{
		File: NewFileService(repos.TxManager, store, repos.Users, repos.Files, repos.Tags,
			repos.Collections, repos.AccessLogs, repos.Audit, repos.RateLimiter),
		Thumbnail:  thumbnail,
		Collection: NewCollectionService(repos.TxManager, repos.Files, repos.Collections, repos.Audit),
		Cleanup: NewCleanupService(repos.TxManager, store, repos.Users, repos.Files, repos.Tags,
			repos.Collections, repos.AccessLogs, repos.Audit, thumbnail),
	}
}
