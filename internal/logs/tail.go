package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	pollInterval = 200 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// Options controls a Tail call. A negative Offset reads the last MaxLines
// lines of the file; otherwise reading starts at Offset. With Follow set and
// nothing new to read, Tail polls until Wait elapses or the context is done.
type Options struct {
	Offset   int64
	MaxLines int
	Follow   bool
	Wait     time.Duration
}

// Result carries the lines read and the offset to pass to the next call.
type Result struct {
	Lines  []string
	Offset int64
}

// Tail reads log lines from path according to opts. A missing file is not an
// error: the result carries offset zero so callers can retry once the daemon
// creates it.
func Tail(ctx context.Context, path string, opts Options) (Result, error) {
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	var (
		result Result
		err    error
	)
	if opts.Offset < 0 {
		result, err = lastLines(path, opts.MaxLines)
	} else {
		result, err = readFrom(path, opts.Offset)
	}
	if err != nil || len(result.Lines) > 0 || !opts.Follow || opts.Wait == 0 {
		return result, err
	}
	return pollForLines(ctx, path, result.Offset, opts.Wait)
}

// lastLines scans the whole file keeping a sliding window of the final limit
// lines and returns the end-of-file offset for follow-up reads.
func lastLines(path string, limit int) (Result, error) {
	var result Result

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return result, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		result.Offset = info.Size()
		return result, nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var window []string
	for scanner.Scan() {
		window = append(window, scanner.Text())
		if len(window) > limit {
			window = window[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read log file: %w", err)
	}

	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return result, fmt.Errorf("determine log offset: %w", err)
	}
	result.Lines = window
	result.Offset = end
	return result, nil
}

// readFrom returns the complete lines written after offset. An offset beyond
// the current size means the file was rotated or truncated, in which case
// reading restarts from the top.
func readFrom(path string, offset int64) (Result, error) {
	result := Result{Offset: offset}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Offset = 0
			return result, nil
		}
		return result, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}
	if offset > info.Size() {
		offset = 0
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return result, fmt.Errorf("seek log file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read log file: %w", err)
	}

	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return result, fmt.Errorf("determine log offset: %w", err)
	}
	result.Lines = lines
	result.Offset = end
	return result, nil
}

// pollForLines rereads from offset until new lines appear, the wait budget is
// spent, or the context is cancelled.
func pollForLines(ctx context.Context, path string, offset int64, wait time.Duration) (Result, error) {
	budget := time.NewTimer(wait)
	defer budget.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	result := Result{Offset: offset}
	for {
		chunk, err := readFrom(path, result.Offset)
		if err != nil {
			return result, err
		}
		result.Offset = chunk.Offset
		if len(chunk.Lines) > 0 {
			result.Lines = chunk.Lines
			return result, nil
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-budget.C:
			return result, nil
		case <-ticker.C:
		}
	}
}
