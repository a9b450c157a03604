package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/colonyops/holdpoint/internal/core/review"
)

// SourceType selects which files a review session covers.
type SourceType string

// Supported source types.
const (
	// SourceUncommitted reviews all uncommitted changes (staged + working tree).
	SourceUncommitted SourceType = "uncommitted"
	// SourceCommit reviews the patch introduced by a single commit.
	SourceCommit SourceType = "commit"
	// SourceBranch reviews the diff of head against the merge base with base.
	SourceBranch SourceType = "branch"
	// SourceLocal reviews an explicit list of files, glob patterns allowed.
	SourceLocal SourceType = "local"
)

// SourceSpec is the discriminated input describing which files to review.
type SourceSpec struct {
	Type   SourceType `json:"type"`
	Dir    string     `json:"dir,omitempty"`    // repository or base directory, defaults to cwd
	Commit string     `json:"commit,omitempty"` // required for commit sources
	Base   string     `json:"base,omitempty"`   // required for branch sources
	Head   string     `json:"head,omitempty"`   // branch sources, defaults to HEAD
	Paths  []string   `json:"paths,omitempty"`  // required for local sources
}

// Validate checks the spec's required fields for its type.
func (s SourceSpec) Validate() error {
	switch s.Type {
	case SourceUncommitted:
		return nil
	case SourceCommit:
		if s.Commit == "" {
			return fmt.Errorf("%w: commit hash required for commit source", review.ErrInvalidRequest)
		}
		return nil
	case SourceBranch:
		if s.Base == "" {
			return fmt.Errorf("%w: base branch required for branch source", review.ErrInvalidRequest)
		}
		return nil
	case SourceLocal:
		if len(s.Paths) == 0 {
			return fmt.Errorf("%w: file paths required for local source", review.ErrInvalidRequest)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown source type %q", review.ErrInvalidRequest, s.Type)
	}
}

// Extractor resolves source specs into ordered review file snapshots.
type Extractor struct {
	git *Executor
	log zerolog.Logger
}

// NewExtractor creates a file extractor backed by the given git executor.
func NewExtractor(git *Executor, logger zerolog.Logger) *Extractor {
	return &Extractor{git: git, log: logger}
}

// Extract resolves the spec into the ordered file list reviewed by a
// session. Binary files are skipped. Old content is best-effort: when a
// prior revision of a file cannot be read, the file is included without it.
func (e *Extractor) Extract(ctx context.Context, spec SourceSpec) ([]review.File, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	dir := spec.Dir
	if dir == "" {
		dir = "."
	}

	if spec.Type == SourceLocal {
		return e.extractLocal(dir, spec.Paths)
	}

	if !e.git.IsRepo(ctx, dir) {
		return nil, fmt.Errorf("%s is not a git repository", dir)
	}

	switch spec.Type {
	case SourceUncommitted:
		return e.extractUncommitted(ctx, dir)
	case SourceCommit:
		return e.extractCommit(ctx, dir, spec.Commit)
	default:
		return e.extractBranch(ctx, dir, spec.Base, spec.Head)
	}
}

func (e *Extractor) extractUncommitted(ctx context.Context, dir string) ([]review.File, error) {
	patch, err := e.git.Diff(ctx, dir, "HEAD")
	if err != nil {
		return nil, err
	}

	return e.filesFromPatch(ctx, dir, patch,
		func(f *gitdiff.File) (string, error) {
			data, err := os.ReadFile(filepath.Join(dir, f.NewName))
			return string(data), err
		},
		func(f *gitdiff.File) (string, error) {
			return e.git.ShowFile(ctx, dir, "HEAD", f.OldName)
		},
	)
}

func (e *Extractor) extractCommit(ctx context.Context, dir, commit string) ([]review.File, error) {
	patch, err := e.git.ShowPatch(ctx, dir, commit)
	if err != nil {
		return nil, err
	}

	return e.filesFromPatch(ctx, dir, patch,
		func(f *gitdiff.File) (string, error) {
			return e.git.ShowFile(ctx, dir, commit, f.NewName)
		},
		func(f *gitdiff.File) (string, error) {
			return e.git.ShowFile(ctx, dir, commit+"^", f.OldName)
		},
	)
}

func (e *Extractor) extractBranch(ctx context.Context, dir, base, head string) ([]review.File, error) {
	if head == "" {
		head = "HEAD"
	}

	// Compare against the merge base so unrelated changes on base don't
	// show up in the review, matching three-dot diff semantics.
	oldRev := base
	if mb, err := e.git.MergeBase(ctx, dir, base, head); err == nil && mb != "" {
		oldRev = mb
	}

	patch, err := e.git.Diff(ctx, dir, base+"..."+head)
	if err != nil {
		return nil, err
	}

	return e.filesFromPatch(ctx, dir, patch,
		func(f *gitdiff.File) (string, error) {
			return e.git.ShowFile(ctx, dir, head, f.NewName)
		},
		func(f *gitdiff.File) (string, error) {
			return e.git.ShowFile(ctx, dir, oldRev, f.OldName)
		},
	)
}

// filesFromPatch parses a unified diff and materializes file contents using
// the provided per-file loaders.
func (e *Extractor) filesFromPatch(
	_ context.Context,
	dir, patch string,
	loadNew func(*gitdiff.File) (string, error),
	loadOld func(*gitdiff.File) (string, error),
) ([]review.File, error) {
	parsed, _, err := gitdiff.Parse(strings.NewReader(patch))
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	files := make([]review.File, 0, len(parsed))
	for _, f := range parsed {
		if f.IsBinary {
			e.log.Debug().Str("path", f.NewName).Msg("skipping binary file")
			continue
		}

		path := f.NewName
		if f.IsDelete {
			path = f.OldName
		}

		rf := review.File{
			Path:     path,
			Language: DetectLanguage(path),
		}

		if !f.IsDelete {
			content, err := loadNew(f)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", f.NewName, err)
			}
			rf.NewContent = content
		}

		if !f.IsNew {
			content, err := loadOld(f)
			if err != nil {
				e.log.Warn().Err(err).Str("path", f.OldName).Str("dir", dir).Msg("prior content unavailable")
			} else {
				rf.OldContent = content
			}
		}

		files = append(files, rf)
	}

	return files, nil
}

func (e *Extractor) extractLocal(dir string, patterns []string) ([]review.File, error) {
	seen := make(map[string]bool)
	var files []review.File

	for _, pattern := range patterns {
		full := pattern
		if !filepath.IsAbs(full) {
			full = filepath.Join(dir, full)
		}

		matches, err := doublestar.FilepathGlob(full)
		if err != nil {
			return nil, fmt.Errorf("%w: bad file pattern %q: %v", review.ErrInvalidRequest, pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", match, err)
			}
			if info.IsDir() {
				continue
			}

			path := match
			if rel, err := filepath.Rel(dir, match); err == nil && !strings.HasPrefix(rel, "..") {
				path = rel
			}
			if seen[path] {
				continue
			}
			seen[path] = true

			data, err := os.ReadFile(match)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", match, err)
			}

			files = append(files, review.File{
				Path:       path,
				NewContent: string(data),
				Language:   DetectLanguage(path),
			})
		}
	}

	return files, nil
}
