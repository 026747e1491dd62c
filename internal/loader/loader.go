// Package loader reads knowledge-base files into domain documents.
package loader

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"

	"kbqa/internal/domain"
)

// DefaultExtensions are the file types read from a knowledge directory.
var DefaultExtensions = []string{".txt", ".md", ".pdf"}

// Loader reads every supported file under a directory.
type Loader struct {
	extensions []string
	logger     *slog.Logger
}

func New(extensions []string, logger *slog.Logger) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	norm := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		norm = append(norm, ext)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{extensions: norm, logger: logger}
}

// Load returns the documents found in dir, sorted by path. An unreadable
// directory is an *domain.IngestionFatalError; files that fail to read are
// returned as *domain.IngestionItemError values alongside the documents.
func (l *Loader) Load(dir string) ([]domain.Document, []error, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, &domain.IngestionFatalError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, nil, &domain.IngestionFatalError{Path: dir, Err: errors.New("not a directory")}
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			l.logger.Warn("loader: skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if l.supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, &domain.IngestionFatalError{Path: dir, Err: err}
	}
	slices.Sort(paths)

	var (
		docs  []domain.Document
		skips []error
	)
	for _, p := range paths {
		doc, err := l.LoadFile(p)
		if err != nil {
			skips = append(skips, &domain.IngestionItemError{Source: filepath.Base(p), Chunk: -1, Err: err})
			continue
		}
		docs = append(docs, doc)
	}
	l.logger.Info("loader: knowledge directory read", "dir", dir, "documents", len(docs), "skipped", len(skips))
	return docs, skips, nil
}

// LoadFile reads a single file, extracting text from PDFs.
func (l *Loader) LoadFile(path string) (domain.Document, error) {
	var (
		text string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = readPDF(path)
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	}
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		ID:      hashString(path),
		Path:    path,
		Source:  filepath.Base(path),
		Content: text,
	}, nil
}

func (l *Loader) supported(path string) bool {
	return slices.Contains(l.extensions, strings.ToLower(filepath.Ext(path)))
}

func readPDF(path string) (text string, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if f != nil {
		defer f.Close()
	}
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
