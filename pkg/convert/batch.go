package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// BatchResult is the result of one recording.
type BatchResult struct {
	Input  string
	Output string
	Err    error
}

// FindRecordings returns the recordings under dir
// that do not have an output in format yet.
func FindRecordings(dir string, format string) ([]string, error) {
	var recordings []string

	walkFunc := func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%v %w", path, err)
		}
		if info.IsDir() || !strings.HasSuffix(path, InputExt) {
			return nil
		}

		output, _ := OutputPath(path, format)
		_, err = os.Stat(output)
		if !errors.Is(err, os.ErrNotExist) {
			return nil
		}

		recordings = append(recordings, path)
		return nil
	}
	if err := filepath.WalkDir(dir, walkFunc); err != nil {
		return nil, err
	}
	return recordings, nil
}

// Batch converts every new recording under dir on a pool of workers
// and writes one progress line per recording to w. Results are
// returned in the order they finished. Mp4 is used if no format is set.
func (c *Converter) Batch(ctx context.Context, dir string, w io.Writer) ([]BatchResult, error) {
	format := c.config.Format
	if format == "" {
		format = FormatMP4
	}

	recordings, err := FindRecordings(dir, format)
	if err != nil {
		return nil, err
	}

	nRecordings := len(recordings)
	fmt.Fprintf(w, "Found %v new recordings.\n", nRecordings)

	chResults := make(chan BatchResult, nRecordings)

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(c.config.Workers, func(arg interface{}) {
		defer wg.Done()
		input := arg.(string)
		chResults <- c.batchConvert(ctx, input, format)
	})
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	for _, recording := range recordings {
		wg.Add(1)
		if err := pool.Invoke(recording); err != nil {
			wg.Done()
			chResults <- BatchResult{Input: recording, Err: err}
		}
	}

	results := make([]BatchResult, 0, nRecordings)
	for i := 1; i <= nRecordings; i++ {
		result := <-chResults
		results = append(results, result)

		fmt.Fprintf(w, "[%v/%v]", i, nRecordings)
		if result.Err != nil {
			fmt.Fprintf(w, "[ERR] %v %v\n", result.Input, result.Err)
			continue
		}
		fmt.Fprintf(w, "[OK] %v\n", result.Output)
	}
	wg.Wait()

	return results, nil
}

func (c *Converter) batchConvert(ctx context.Context, input string, format string) BatchResult {
	output, ok := OutputPath(input, format)
	target := Target{Path: output, Format: format, KnownExt: ok}

	_, err := c.convert(ctx, input, target)
	return BatchResult{Input: input, Output: output, Err: err}
}
