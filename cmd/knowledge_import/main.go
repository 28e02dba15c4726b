package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/yungbote/haven-backend/internal/app"
	"github.com/yungbote/haven-backend/internal/data/repos"
	"github.com/yungbote/haven-backend/internal/modules/ingestion"
	"github.com/yungbote/haven-backend/internal/platform/gcp"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

func main() {
	var source, emulator string
	var dryRun bool
	flag.StringVar(&source, "source", "", "file, directory, or gs://bucket/prefix holding YAML/JSON documents")
	flag.StringVar(&emulator, "storage-emulator", os.Getenv("STORAGE_EMULATOR_HOST"), "Cloud Storage emulator host")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and report without writing")
	flag.Parse()

	if strings.TrimSpace(source) == "" {
		fmt.Println("-source is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := app.LoadConfig(log)
	if err != nil {
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}
	store, err := app.OpenStore(ctx, log, cfg)
	if err != nil {
		fmt.Printf("open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	var src ingestion.Source = ingestion.DirSource{Root: source}
	if strings.HasPrefix(source, "gs://") {
		reader, err := gcp.NewBucketReader(ctx, log, gcp.BucketConfig{EmulatorHost: emulator})
		if err != nil {
			fmt.Printf("init bucket reader: %v\n", err)
			os.Exit(1)
		}
		defer reader.Close()
		bs, err := ingestion.NewBucketSource(reader, source)
		if err != nil {
			fmt.Printf("parse source: %v\n", err)
			os.Exit(1)
		}
		src = bs
	}

	importer := ingestion.NewImporter(repos.NewKnowledgeRepo(store, log), log, dryRun)
	st, err := importer.Import(ctx, src)
	if err != nil {
		fmt.Printf("import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("done; files=%d imported=%d skipped=%d failed=%d\n", st.Files, st.Imported, st.Skipped, st.Failed)
	if cfg.StoreDriver == "memory" {
		fmt.Println("note: STORE_DRIVER=memory, imported documents are not persisted")
	}
}
