package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"photo-album/internal/database"
	"photo-album/internal/storage"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default directory paths, matching the server defaults
	defaultDatabaseDir = "/database"
	defaultMediaDir    = "/media"
)

func main() {
	var (
		statusFlag  = flag.Bool("status", false, "Show item counts by processing state")
		retryFlag   = flag.Bool("retry-failed", false, "Reset failed items of the given kind back to pending")
		orphansFlag = flag.Bool("orphans", false, "List pending items whose media file is missing")
		kindFlag    = flag.String("kind", "photo", "Media kind: photo or video")
	)
	flag.Usage = printUsage
	flag.Parse()

	if !*statusFlag && !*retryFlag && !*orphansFlag {
		printUsage()
		os.Exit(1)
	}

	kind := database.Kind(*kindFlag)
	if !kind.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown media kind %q\n", *kindFlag)
		os.Exit(1)
	}

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	mediaDir := os.Getenv("MEDIA_DIR")
	if mediaDir == "" {
		mediaDir = defaultMediaDir
	}

	db, err := database.New(ctx, filepath.Join(databaseDir, "album.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	files := storage.NewDisk(mediaDir)

	ok := true
	switch {
	case *statusFlag:
		ok = showStatus(ctx, os.Stdout, db, files)
	case *retryFlag:
		ok = retryFailed(ctx, os.Stdout, db, kind)
	case *orphansFlag:
		ok = listOrphans(ctx, os.Stdout, db, files, kind)
	}
	if !ok {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Photo Album Processing Management")
	fmt.Println("")
	fmt.Println("Usage: albumctl [flags]")
	fmt.Println("")
	fmt.Println("Flags:")
	fmt.Println("  -status        Show item counts by processing state")
	fmt.Println("  -retry-failed  Reset failed items back to pending")
	fmt.Println("  -orphans       List pending items whose media file is missing")
	fmt.Println("  -kind          Media kind for -retry-failed and -orphans (photo or video)")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
	fmt.Printf("  MEDIA_DIR    - Path to media directory (default: %s)\n", defaultMediaDir)
}

func showStatus(ctx context.Context, out io.Writer, db *database.Database, files *storage.Disk) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	for _, kind := range []database.Kind{database.KindPhoto, database.KindVideo} {
		counts, err := db.StatusCounts(ctx, database.Scope{Kind: kind})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to collect status for %s: %v\n", kind, err)
			return false
		}

		orphans, err := countOrphans(ctx, db, files, kind)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to screen orphans for %s: %v\n", kind, err)
			return false
		}

		fmt.Fprintf(out, "%s: total=%d pending=%d processing=%d completed=%d failed=%d orphaned=%d\n",
			kind, counts.Total, counts.Pending-orphans, counts.Processing, counts.Completed, counts.Failed, orphans)
	}
	return true
}

func retryFailed(ctx context.Context, out io.Writer, db *database.Database, kind database.Kind) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := db.ResetFailed(ctx, kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to reset failed items: %v\n", err)
		return false
	}
	fmt.Fprintf(out, "Reset %d failed %s item(s) back to pending.\n", n, kind)
	return true
}

func listOrphans(ctx context.Context, out io.Writer, db *database.Database, files *storage.Disk, kind database.Kind) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pending, err := db.PendingItems(ctx, database.Scope{Kind: kind})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list pending items: %v\n", err)
		return false
	}

	orphans := 0
	for i := range pending {
		item := &pending[i]
		// Screen the file analysis reads: the thumbnail for videos.
		path := item.AnalysisPath()
		if path != "" && files.Exists(path) {
			continue
		}
		orphans++
		fmt.Fprintf(out, "%d\t%s\n", item.ID, path)
	}
	fmt.Fprintf(out, "%d orphaned %s item(s).\n", orphans, kind)
	return true
}

func countOrphans(ctx context.Context, db *database.Database, files *storage.Disk, kind database.Kind) (int, error) {
	pending, err := db.PendingItems(ctx, database.Scope{Kind: kind})
	if err != nil {
		return 0, err
	}
	orphans := 0
	for i := range pending {
		item := &pending[i]
		if path := item.AnalysisPath(); path == "" || !files.Exists(path) {
			orphans++
		}
	}
	return orphans, nil
}
