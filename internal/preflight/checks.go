package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"journaltail/internal/journal"
)

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
}

// CheckJournalDirectory verifies the configured journal scope resolves to
// readable files. The local-only scope accepts either standard location.
func CheckJournalDirectory(opts journal.OpenOptions) Result {
	const name = "Journal directory"
	src, err := opts.Resolve()
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	switch {
	case src.Directory != "":
		return CheckDirectoryReadable(name, src.Directory)
	case !src.LocalOnly:
		for _, file := range src.Files {
			if err := unix.Access(file, unix.R_OK); err != nil {
				return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", file, err)}
			}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s, %s (read ok)", opts.Flags, src)}
	}
	var details []string
	for _, dir := range []string{journal.SystemDir, journal.RuntimeDir} {
		r := CheckDirectoryReadable(name, dir)
		if r.Passed {
			return r
		}
		details = append(details, r.Detail)
	}
	return Result{Name: name, Detail: fmt.Sprintf("no readable journal: %v", details)}
}

// CheckJournalOpen opens and closes the journal through the sd-journal binding.
func CheckJournalOpen(opts journal.OpenOptions) Result {
	const name = "Journal reader"
	reader, err := journal.Open(opts)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer reader.Close()
	if _, err := reader.BootID(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("opened, but boot id unavailable: %v", err), Optional: true}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("opened (%s)", opts.Flags)}
}

// CheckSincedbWritable verifies the sincedb file, or its directory when the
// file does not exist yet, is writable.
func CheckSincedbWritable(path string) Result {
	const name = "Sincedb"
	if path == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	return checkFileWritable(name, path)
}

// CheckOutputWritable verifies the record output destination is writable.
func CheckOutputWritable(path string) Result {
	return checkFileWritable("Output", path)
}

func checkFileWritable(name, path string) Result {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
		}
		if err := unix.Access(path, unix.W_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not writable: %v)", path, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (write ok)", path)}
	case errors.Is(err, os.ErrNotExist):
		dir := nearestExistingDir(filepath.Dir(path))
		if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create in %s: %v)", path, dir, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
}

func nearestExistingDir(dir string) string {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// CheckSincedbLock reports whether another process holds the sincedb lock.
func CheckSincedbLock(path string) Result {
	const name = "Sincedb lock"
	if path == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	lockPath := path + ".lock"
	if _, err := os.Stat(filepath.Dir(lockPath)); err != nil {
		return Result{Name: name, Passed: true, Detail: "not held"}
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryRLock()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", lockPath, err)}
	}
	if !locked {
		return Result{Name: name, Detail: fmt.Sprintf("%s (held by another journaltail process)", lockPath)}
	}
	_ = lock.Unlock()
	return Result{Name: name, Passed: true, Detail: "not held"}
}

// CheckAPIBind verifies the status API address can be bound.
func CheckAPIBind(ctx context.Context, bind string) Result {
	const name = "Status API"
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", bind)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bind, err)}
	}
	_ = listener.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", bind)}
}
