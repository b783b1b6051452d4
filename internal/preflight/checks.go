package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"stacks/internal/config"
	"stacks/internal/credential"
)

// MinFreeBytes is the free space required on the output filesystem.
const MinFreeBytes uint64 = 64 << 20

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
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
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least minBytes available.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	available := stat.Bavail * uint64(stat.Bsize)
	if available < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s free, need %s)", path, formatBytes(available), formatBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s free)", path, formatBytes(available))}
}

// CheckInputFile verifies that the configured prior dataset is a readable regular file.
func CheckInputFile(path string) Result {
	const name = "Input dataset"

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, formatBytes(uint64(info.Size())))}
}

// CheckCredential verifies that the provider currently holds a credential.
// The value itself is never reported, only its fingerprint.
func CheckCredential(ctx context.Context, provider credential.Provider) Result {
	const name = "Credential"

	source := credential.Describe(provider)
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	token, err := provider.Current(checkCtx)
	if err != nil {
		if errors.Is(err, credential.ErrMissing) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not set)", source)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", source, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (fingerprint %s)", source, token.Fingerprint())}
}

// CheckUpstream verifies that the provider endpoint is configured and well formed.
// It does not contact the provider.
func CheckUpstream(cfg *config.Config) Result {
	const name = "Upstream"

	if err := cfg.RequireUpstream(); err != nil {
		return Result{Name: name, Detail: "missing base_url"}
	}
	parsed, err := url.Parse(strings.TrimSpace(cfg.Upstream.BaseURL))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not an http(s) url)", cfg.Upstream.BaseURL)}
	}
	return Result{Name: name, Passed: true, Detail: parsed.Scheme + "://" + parsed.Host}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
