package paths

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// HomeEnvVar overrides the directory holding the cache, logs and global
// configuration.
const HomeEnvVar = "NIXLSP_HOME"

// ProjectDirName is the per-workspace configuration directory.
const ProjectDirName = ".nixlsp"

// GetHome returns the nixlsp data directory: $NIXLSP_HOME when set,
// otherwise <user cache dir>/nixlsp.
func GetHome() (string, error) {
	if home := os.Getenv(HomeEnvVar); home != "" {
		return home, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "nixlsp"), nil
}

// GetUserConfigDir returns <user config dir>/nixlsp.
func GetUserConfigDir() (string, error) {
	if home := os.Getenv(HomeEnvVar); home != "" {
		return home, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "nixlsp"), nil
}

// GetLogsDir returns the directory for log files.
func GetLogsDir() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "logs"), nil
}

// EnsureLogsDir creates the logs directory if needed and returns it.
func EnsureLogsDir() (string, error) {
	dir, err := GetLogsDir()
	if err != nil {
		return "", err
	}
	return dir, os.MkdirAll(dir, 0755)
}

// GetServerLogPath returns the language server log file.
func GetServerLogPath() (string, error) {
	dir, err := GetLogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "server.log"), nil
}

// GetIndexLogPath returns the log file used by `nixlsp index` and
// `nixlsp kb build`.
func GetIndexLogPath() (string, error) {
	dir, err := GetLogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "index.log"), nil
}

// CanonicalizePath converts an absolute path to a root-relative path with
// forward slashes, resolving symlinks where the path exists.
func CanonicalizePath(absolutePath string, root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		resolved = absolutePath
	}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		rootResolved = root
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// IsWithinRoot checks if a path is inside root.
func IsWithinRoot(path string, root string) bool {
	canonical, err := CanonicalizePath(path, root)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// NormalizePath converts backslashes to forward slashes.
func NormalizePath(path string) string {
	return filepath.ToSlash(path)
}

var errNotFileURI = errors.New("not a file:// URI")

// URIToPath converts a file:// URI to a local filesystem path.
func URIToPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", errNotFileURI
	}
	p := u.Path
	if runtime.GOOS == "windows" {
		p = strings.TrimPrefix(p, "/")
	}
	return filepath.FromSlash(p), nil
}

// PathToURI converts an absolute filesystem path to a file:// URI.
func PathToURI(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}

// ResolveNixPath resolves a path literal written in the document at baseURI.
// anchor is one of "relative", "absolute" or "home"; other anchors are not
// resolvable without an evaluator. A directory resolves to its default.nix
// when that file exists.
func ResolveNixPath(baseURI string, anchor string, p string) (string, bool) {
	var target string
	switch anchor {
	case "relative":
		base, err := URIToPath(baseURI)
		if err != nil {
			return "", false
		}
		target = filepath.Join(filepath.Dir(base), filepath.FromSlash(p))
	case "absolute":
		target = filepath.FromSlash(p)
	case "home":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false
		}
		target = filepath.Join(home, filepath.FromSlash(p))
	default:
		return "", false
	}

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		if def := filepath.Join(target, "default.nix"); fileExists(def) {
			target = def
		}
	}
	return PathToURI(filepath.Clean(target)), true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// NixFiles lists the .nix files below root in lexical order, skipping
// hidden directories. A root that is a file is returned as is.
func NixFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".nix") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
