package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"lidarflow/internal/logging"
)

// copyInputs copies every file into dst under its base name, at most limit
// files at a time. Destination names are unique because discovery rejects
// duplicate base names.
func copyInputs(ctx context.Context, files []string, dst string, limit int, audit *logging.AuditLogger) error {
	if limit < 1 {
		limit = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, src := range files {
		src := src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			target := filepath.Join(dst, filepath.Base(src))
			n, err := copyFile(src, target)
			if audit != nil {
				audit.FileCopy(src, n, err)
			}
			if err != nil {
				return fmt.Errorf("copy %s: %w", src, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return n, err
	}
	return n, out.Close()
}
