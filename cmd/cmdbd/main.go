package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-cmdbform/internal/devserver"
	"github.com/goliatone/go-cmdbform/internal/store"
	"github.com/goliatone/go-cmdbform/pkg/fieldtypes"
	"github.com/goliatone/go-cmdbform/pkg/loader"
	"github.com/goliatone/go-cmdbform/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (listen, store, dsn, log_level, catalog, seed)")
	listen := flag.String("listen", "", "listen address, overrides the config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.listen = *listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.store, cfg.dsn)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	registry := fieldtypes.NewRegistry()
	if err := seed(ctx, st, registry, cfg.seed); err != nil {
		log.Fatalf("Failed to seed store: %v", err)
	}

	srv := devserver.New(st,
		devserver.WithRegistry(registry),
		devserver.WithCatalog(cfg.catalog),
		devserver.WithLogLevel(cfg.logLevel),
	)

	errs := make(chan error, 1)
	go func() {
		srv.Logger().Infof("cmdbd: %s store on %s%s", cfg.store, cfg.listen, devserver.Prefix)
		errs <- srv.Start(cfg.listen)
	}()

	select {
	case err := <-errs:
		if err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}
}

// seed creates the Types of every document in paths in order; the store
// assigns fresh ids. Types whose name is already taken are skipped.
func seed(ctx context.Context, st store.Store, registry *fieldtypes.Registry, paths []string) error {
	l := loader.New(loader.WithChecker(registry.Checker()), loader.WithLogger(logging.Default()))
	for _, path := range paths {
		src, err := loader.SourceFor(path)
		if err != nil {
			return err
		}
		types, err := l.LoadTypes(ctx, src)
		if err != nil {
			return err
		}
		for _, t := range types {
			if _, err := st.CreateType(ctx, t); err != nil {
				if errors.Is(err, store.ErrConflict) {
					continue
				}
				return fmt.Errorf("seed %s: %w", path, err)
			}
		}
	}
	return nil
}
