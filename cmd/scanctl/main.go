package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"asset-catalog/internal/catalog"
	"asset-catalog/internal/scanner"
	"asset-catalog/internal/volume"
)

const defaultCatalogDir = "/catalog"

func main() {
	var (
		catalogDir = flag.String("catalog", envOr("CATALOG_DIR", defaultCatalogDir), "catalog directory")
		label      = flag.String("volume", "", "volume label to scan (required)")
		subPath    = flag.String("path", "", "volume-relative subfolder to scan")
		recursive  = flag.Bool("recursive", true, "recurse into subdirectories")
		force      = flag.Bool("force", false, "rehash files even when size and mtime are unchanged")
		policy     = flag.String("policy", "", "duplicate policy: reject, warn, or merge (default: merge)")
	)
	flag.Parse()

	if *label == "" {
		fmt.Fprintln(os.Stderr, "Error: -volume is required")
		flag.Usage()
		os.Exit(2)
	}
	p := catalog.DuplicatePolicy(*policy)
	if *policy != "" && !catalog.ValidPolicy(p) {
		fmt.Fprintf(os.Stderr, "Error: invalid policy %q\n", *policy)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	cat, err := catalog.Open(ctx, filepath.Join(*catalogDir, "catalog.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open catalog: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure CATALOG_DIR is set correctly (current: %s)\n", *catalogDir)
		os.Exit(1)
	}
	defer func() {
		if err := cat.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close catalog: %v\n", err)
		}
	}()

	vol, err := cat.GetVolumeByLabel(ctx, *label)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if vol == nil {
		fmt.Fprintf(os.Stderr, "Error: unknown volume %q\n", *label)
		os.Exit(1)
	}
	if vol.Type != catalog.VolumeLocal {
		fmt.Fprintf(os.Stderr, "Error: only local volumes can be scanned from the CLI (volume %q is %s)\n", *label, vol.Type)
		os.Exit(1)
	}

	src := volume.NewLocalSource()
	defer src.Close()

	res, err := scanner.New(cat).Scan(ctx, &scanner.Request{
		Volume:    vol,
		Source:    src,
		Path:      *subPath,
		Recursive: *recursive,
		Force:     *force,
		Policy:    p,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: scan failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if res.Errors > 0 {
		os.Exit(3)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
