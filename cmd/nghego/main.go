package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nghego/nghego/internal/api"
	"github.com/nghego/nghego/internal/auth"
	"github.com/nghego/nghego/internal/config"
	"github.com/nghego/nghego/internal/database"
	nfs "github.com/nghego/nghego/internal/fs"
	"github.com/nghego/nghego/internal/jobs"
	"github.com/nghego/nghego/internal/library"
	"github.com/nghego/nghego/internal/models"
	"github.com/nghego/nghego/internal/playlist"
	"github.com/nghego/nghego/internal/scanner"
	"github.com/nghego/nghego/internal/search"
	"github.com/nghego/nghego/internal/stream"
	"github.com/nghego/nghego/migrations"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal("failed to load configuration: ", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.Pool)
	if err := migrator.Migrate(context.Background()); err != nil {
		log.Fatal("failed to run database migrations: ", err)
	}

	store := library.New(db, cfg.Scan.IgnoredArticles)
	authService := auth.New(store, cfg.Auth.ServerSecret)

	searchIndexPath := os.Getenv("APP_SEARCH__INDEX_PATH")
	if searchIndexPath == "" {
		searchIndexPath = "./data/search.bleve"
	}
	searchIndex, err := search.New(searchIndexPath)
	if err != nil {
		log.Fatal("failed to open search index: ", err)
	}
	defer searchIndex.Close()

	scannerService := scanner.New(db, store, searchIndex, cfg.Scan)
	playlistStore := playlist.New(db)
	transcoder := stream.NewTranscoder()
	queue := jobs.NewQueue(db)

	deps := &api.Deps{
		Store:          store,
		Auth:           authService,
		Scanner:        scannerService,
		Search:         searchIndex,
		Playlist:       playlistStore,
		Queue:          queue,
		Transcoder:     transcoder,
		S3:             cfg.S3,
		ServerSecret:   cfg.Auth.ServerSecret,
		AuthRateCount:  cfg.Auth.RateLimitAuthCount,
		AuthRateWindow: cfg.Auth.RateLimitAuthWindow,
	}

	backendResolver := func(folder models.MusicFolder) (nfs.Backend, error) {
		return deps.ResolveBackend(context.Background(), folder)
	}

	workerPool := jobs.NewWorkerPool(cfg.Scan.WorkerConcurrency, db)
	workerPool.RegisterHandler(jobs.JobTypeScanFolder, jobs.NewScanFolderHandler(scannerService, store, backendResolver))
	workerPool.RegisterHandler(jobs.JobTypeDetectLyricLanguage, jobs.NewDetectLyricLanguageHandler(store))
	workerPool.RegisterHandler(jobs.JobTypeCleanup, jobs.NewCleanupHandler(workerPool.GetQueue()))

	ctx := context.Background()
	if err := workerPool.Start(ctx); err != nil {
		log.Fatal("failed to start worker pool: ", err)
	}
	defer workerPool.Stop()

	if err := workerPool.StartNotificationListener(ctx, db); err != nil {
		log.Printf("job notification listener unavailable: %v", err)
	}

	stopWatchers, err := startFolderWatchers(ctx, scannerService, store, backendResolver, cfg)
	if err != nil {
		log.Printf("folder watch setup error: %v", err)
	}
	defer stopWatchers()

	gin.SetMode(gin.ReleaseMode)
	if os.Getenv("APP_ENV") != "production" {
		gin.SetMode(gin.DebugMode)
	}

	router := api.NewRouter(deps)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming/transcode responses can run long
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		fmt.Printf("nghego server starting on %s\n", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown: ", err)
	}
	fmt.Println("shutdown complete")
}

// startFolderWatchers launches a scanner.Watcher for every local-backed
// folder that has Watch enabled; s3-backed folders rely on manual or
// periodic scans instead. Returns a function that stops every watcher.
func startFolderWatchers(ctx context.Context, svc *scanner.Service, store *library.Store, backends func(models.MusicFolder) (nfs.Backend, error), cfg config.Config) (func(), error) {
	folders, err := store.ListMusicFolders(ctx)
	if err != nil {
		return func() {}, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	for _, folder := range folders {
		if !folder.Watch || folder.Backend == "s3" {
			continue
		}
		backend, err := backends(folder)
		if err != nil {
			log.Printf("watch %q: resolve backend: %v", folder.Name, err)
			continue
		}
		watcher, err := scanner.NewWatcher(svc, folder, backend, cfg.Scan.WatchDebounce)
		if err != nil {
			log.Printf("watch %q: %v", folder.Name, err)
			continue
		}
		go func(name string) {
			if err := watcher.Run(watchCtx); err != nil {
				log.Printf("watch %q stopped: %v", name, err)
			}
		}(folder.Name)
	}
	return cancel, nil
}
