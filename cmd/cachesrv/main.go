package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stockcache/cachesrv/internal/adminapi"
	"github.com/stockcache/cachesrv/internal/buildinfo"
	"github.com/stockcache/cachesrv/internal/config"
	"github.com/stockcache/cachesrv/internal/persistence"
	"github.com/stockcache/cachesrv/internal/subsystem"
)

func main() {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fatalf("%v", err)
	}

	db, err := persistence.Bootstrap(envCfg.StateDir)
	if err != nil {
		fatalf("persistence bootstrap: %v", err)
	}
	defer db.Close()
	log.Println("Persistence bootstrap complete")

	handle, err := subsystem.Build(envCfg, db, log.New(os.Stderr, "", log.LstdFlags))
	if err != nil {
		fatalf("build cache subsystem: %v", err)
	}
	log.Printf("Cache regions registered: %v", handle.Manager.RegionNames())

	handle.Start()
	log.Println("Syncer started")

	if envCfg.AdminToken == "" {
		log.Println("Admin surface running with no token auth (CACHESRV_ADMIN_TOKEN unset)")
	} else if envCfg.AdminTokenWeak {
		log.Println("Warning: CACHESRV_ADMIN_TOKEN is weak")
	}

	adminSrv := adminapi.NewServer(envCfg.AdminListenAddress, handle.Facade, envCfg.AdminToken)
	serverErrCh := make(chan error, 1)
	go func() {
		log.Printf("Admin surface starting on %s", envCfg.AdminListenAddress)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case serverErrCh <- fmt.Errorf("admin server: %w", err):
			default:
			}
		}
	}()

	log.Printf("cachesrv %s (commit %s, built %s) ready", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runtimeErr error
	select {
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down...", sig)
	case err := <-serverErrCh:
		runtimeErr = err
		log.Printf("Received server runtime error (%v), shutting down...", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := adminSrv.Shutdown(ctx); err != nil {
		log.Printf("Admin server shutdown error: %v", err)
	}
	log.Println("Admin server stopped")

	handle.Stop() // forces a final sync of dirty sessions and buffered audit records
	log.Println("Syncer stopped")

	log.Println("Server stopped")
	if runtimeErr != nil {
		_ = db.Close()
		fatalf("runtime server error: %v", runtimeErr)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
