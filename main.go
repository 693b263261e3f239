package main

import (
	"context"
	"fmt"
	"log"

	"github.com/sylvexn/nexus/config"
	"github.com/sylvexn/nexus/database"
	"github.com/sylvexn/nexus/handlers"
	"github.com/sylvexn/nexus/logger"
	"github.com/sylvexn/nexus/middleware"
	"github.com/sylvexn/nexus/models"
	"github.com/sylvexn/nexus/repositories"
	"github.com/sylvexn/nexus/scheduler"
	"github.com/sylvexn/nexus/services"
	"github.com/sylvexn/nexus/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("starting nexus service")

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	if err := database.InitMySQL(&cfg.Database); err != nil {
		log.Fatalf("init mysql failed: %v", err)
	}

	database.DB.AutoMigrate(
		&models.User{},
		&models.File{},
		&models.Tag{},
		&models.Collection{},
		&models.CollectionFile{},
		&models.FileAccessLog{},
		&models.AuditEvent{},
	)
	log.Println("database migration completed")

	if err := database.InitRedis(&cfg.Redis); err != nil {
		log.Fatalf("init redis failed: %v", err)
	}

	store := storage.NewStore(cfg.Storage.BasePath)
	if err := store.EnsureDirs(); err != nil {
		log.Fatalf("create storage dirs failed: %v", err)
	}

	repoContainer := repositories.NewGormRepositories(database.DB, database.RedisClient).BuildContainer()
	serviceContainer := services.NewContainer(repoContainer, store)
	handlers.SetServices(serviceContainer)

	sched := scheduler.New()
	if err := sched.Register("expiry-gc", scheduler.DailyAt(*cfg.GC.DailyHour), func(ctx context.Context) error {
		_, err := serviceContainer.Cleanup.RunExpiryGC(ctx)
		return err
	}); err != nil {
		log.Fatalf("register expiry-gc job failed: %v", err)
	}
	if err := sched.Register("orphan-sweep", scheduler.EveryNMinutes(cfg.GC.SweepEveryNMinutes), func(ctx context.Context) error {
		_, err := serviceContainer.Cleanup.RunOrphanSweep(ctx)
		return err
	}); err != nil {
		log.Fatalf("register orphan-sweep job failed: %v", err)
	}
	sched.Start()
	defer sched.Stop()
	handlers.SetScheduler(sched)

	r := gin.Default()
	r.Use(middleware.RequestLogger())
	setupRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("server listening on http://%s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}

func setupRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/health", handlers.HealthCheck)

	// 公开读路径：拿到链接即可下载或预览。
	r.GET("/f/:name", handlers.DownloadFile)
	r.GET("/p/:name", handlers.PreviewFile)
	api.GET("/files/:id/thumbnail", handlers.GetThumbnail)

	protected := api.Group("")
	protected.Use(middleware.APIKeyAuth())
	{
		protected.POST("/files/upload", handlers.UploadFile)
		protected.DELETE("/files/:id", handlers.DeleteFile)
		protected.POST("/files/batch/delete", handlers.BulkDeleteFiles)
		protected.PUT("/files/:id/rename", handlers.RenameFile)
		protected.PUT("/files/:id", handlers.UpdateFile)
		protected.GET("/files/:id/tags", handlers.ListFileTags)

		protected.POST("/collections", handlers.CreateCollection)
		protected.DELETE("/collections/:id", handlers.DeleteCollection)
		protected.GET("/collections/:id/files", handlers.ListCollectionFiles)
		protected.POST("/collections/:id/files", handlers.AddFileToCollection)
		protected.DELETE("/collections/:id/files/:file_id", handlers.RemoveFileFromCollection)

		protected.POST("/admin/gc", handlers.RunExpiryGC)
		protected.POST("/admin/sweep", handlers.RunOrphanSweep)
		protected.GET("/admin/scheduler", handlers.SchedulerStatus)
	}
}
