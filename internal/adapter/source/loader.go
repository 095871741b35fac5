package source

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"finrag/internal/domain"
)

// Files names the three optional source inputs.
type Files struct {
	News    string
	Stocks  string
	Reports string
}

// Paths returns the source paths in their fixed order: news, stocks, reports.
func (f Files) Paths() []string {
	return []string{f.News, f.Stocks, f.Reports}
}

// Loader turns the raw source files into a uniform document list.
type Loader struct {
	files  Files
	logger *zap.Logger
}

// NewLoader creates a loader for the given files.
func NewLoader(files Files, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{files: files, logger: logger}
}

// Files returns the files this loader reads.
func (l *Loader) Files() Files {
	return l.files
}

// Load reads every present source and returns news, then stock, then report
// documents. A missing file contributes no documents; a malformed one is an error.
func (l *Loader) Load() ([]domain.Document, error) {
	var docs []domain.Document

	steps := []struct {
		name string
		path string
		load func(string) ([]domain.Document, error)
	}{
		{"news", l.files.News, loadNews},
		{"stocks", l.files.Stocks, loadStocks},
		{"reports", l.files.Reports, loadReports},
	}

	for _, step := range steps {
		if !exists(step.path) {
			l.logger.Warn("source file not found", zap.String("source", step.name), zap.String("path", step.path))
			continue
		}
		loaded, err := step.load(step.path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s from %s: %w", step.name, step.path, err)
		}
		l.logger.Debug("source loaded", zap.String("source", step.name), zap.Int("documents", len(loaded)))
		docs = append(docs, loaded...)
	}

	return docs, nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return !errors.Is(err, os.ErrNotExist)
	}
	return !info.IsDir()
}
