package gitlib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/repominer/pkg/observability"
)

var (
	// ErrInvalidLocator is returned for locators that are neither a local
	// path nor a GitHub or GitLab repository URL.
	ErrInvalidLocator = errors.New("invalid repository locator")
	// ErrNotFound is returned for missing directories, branches and commits.
	ErrNotFound = errors.New("not found")
)

var (
	scpLike      = regexp.MustCompile(`^[A-Za-z]\w*@[A-Za-z0-9][\w.]*:`)
	hostedRemote = regexp.MustCompile(`(?:github|gitlab)\.com[/:]([\w.-]+)/([\w.-]+)$`)
)

// Locator is a parsed repository location.
type Locator struct {
	// URL is the remote to clone from; empty for local repositories.
	URL string
	// Path is the repository directory on disk.
	Path string
}

// Remote reports whether the repository comes from a URL.
func (l Locator) Remote() bool {
	return l.URL != ""
}

// ParseLocator resolves a local path or a github.com/gitlab.com URL. URLs
// resolve to <cloneDir>/<repository name>, and cloneDir must exist.
func ParseLocator(locator, cloneDir string) (Locator, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return Locator{}, fmt.Errorf("%w: empty locator", ErrInvalidLocator)
	}

	if !isRemote(locator) {
		info, err := os.Stat(locator)
		if err != nil || !info.IsDir() {
			return Locator{}, fmt.Errorf("%w: repository directory %s", ErrNotFound, locator)
		}

		return Locator{Path: filepath.Clean(locator)}, nil
	}

	trimmed := strings.TrimSuffix(strings.TrimSuffix(locator, "/"), ".git")

	match := hostedRemote.FindStringSubmatch(trimmed)
	if match == nil {
		return Locator{}, fmt.Errorf("%w: %s is not a github.com or gitlab.com repository", ErrInvalidLocator, locator)
	}

	info, err := os.Stat(cloneDir)
	if cloneDir == "" || err != nil || !info.IsDir() {
		return Locator{}, fmt.Errorf("%w: clone directory %q", ErrNotFound, cloneDir)
	}

	return Locator{URL: locator, Path: filepath.Join(cloneDir, match[2])}, nil
}

func isRemote(locator string) bool {
	return strings.Contains(locator, "://") || scpLike.MatchString(locator)
}

// Open opens the repository, cloning it first when a remote locator points
// to a directory that does not exist yet.
func (l Locator) Open(ctx context.Context) (*Repository, error) {
	if !l.Remote() {
		return OpenRepository(l.Path)
	}

	if _, err := os.Stat(l.Path); err == nil {
		return OpenRepository(l.Path)
	}

	_, span := otel.Tracer(observability.GitTracerName).Start(ctx, "repominer.gitlib.clone",
		trace.WithAttributes(attribute.String("repominer.clone_path", l.Path)))
	defer span.End()

	native, err := git2go.Clone(l.URL, l.Path, &git2go.CloneOptions{Bare: true})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clone failed")

		return nil, fmt.Errorf("clone %s: %w", l.URL, err)
	}

	return &Repository{repo: native, path: l.Path}, nil
}
