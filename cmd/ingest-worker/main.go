package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/ingestion"
	"bitbucket.org/mmdatafocus/contacts_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8081"

// Standalone pull worker. Serves only /healthz over HTTP; all real work
// happens on the Pub/Sub subscription.
func main() {
	port := os.Getenv("INGEST_WORKER_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	workerErrCh := make(chan error, 1)
	go func() {
		workerErrCh <- ingestion.StartIngestWorker(workerCtx)
	}()

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-workerErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.WithFields(logrus.Fields{"field": "worker"}).Error("ingest worker stopped: " + err.Error())
		}
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
