package walk

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/sidecar"
)

// IgnoreFile is an optional project-root pattern file in gitignore syntax.
const IgnoreFile = ".damignore"

// CacheDirName holds generated previews and index snapshots; it never
// appears in the asset namespace.
const CacheDirName = ".cache"

type ignoreMatcher struct {
	matcher gitignore.Matcher
}

func loadIgnoreMatcher(root string) (*ignoreMatcher, error) {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &ignoreMatcher{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return &ignoreMatcher{}, nil
	}
	return &ignoreMatcher{matcher: gitignore.NewMatcher(patterns)}, nil
}

func (m *ignoreMatcher) isIgnored(relPath string, isDir bool) bool {
	if m == nil || m.matcher == nil {
		return false
	}
	relPath = strings.Trim(relPath, "/")
	if relPath == "" {
		return false
	}
	return m.matcher.Match(strings.Split(relPath, "/"), isDir)
}

// skipName applies the fixed ignore rules at every level: dotfiles (which
// covers the .cache directory), sidecar metadata and bundle markers.
func skipName(name string, isDir bool) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if !isDir && sidecar.IsSidecarName(name) {
		return true
	}
	return false
}
