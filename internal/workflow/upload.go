package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dyike/TradeLens/internal/logger"
	"github.com/dyike/TradeLens/internal/models"
)

// DefaultAllowedExtensions are the trade-history formats the service reads.
var DefaultAllowedExtensions = []string{".csv", ".xlsx", ".xls"}

// Ingester transfers a file to the service, which ties it to the session.
type Ingester interface {
	Ingest(ctx context.Context, name string, data []byte) (string, error)
}

// Pipeline owns the pending file and the status of the last upload.
// Callers gate it behind an authenticated session.
type Pipeline struct {
	ingester Ingester
	allowed  []string
	log      *logger.Logger

	mu       sync.RWMutex
	pending  *models.PendingFile
	status   models.UploadStatus
	inFlight bool
}

func NewPipeline(ingester Ingester, allowed []string, log *logger.Logger) *Pipeline {
	if len(allowed) == 0 {
		allowed = DefaultAllowedExtensions
	}
	normalized := make([]string, 0, len(allowed))
	for _, ext := range allowed {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	return &Pipeline{
		ingester: ingester,
		allowed:  normalized,
		log:      log.Component("upload"),
		status:   models.UploadStatus{Kind: models.UploadNone},
	}
}

// Select makes file the pending file, replacing any previous one, and
// clears the last upload status.
func (p *Pipeline) Select(file models.PendingFile) error {
	if !p.Accepts(file.Name) {
		return fmt.Errorf("%w: %s (allowed: %s)", ErrUnsupportedFile, file.Name, strings.Join(p.allowed, ", "))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	f := file
	p.pending = &f
	p.status = models.UploadStatus{Kind: models.UploadNone}
	p.log.Debug().Str("file", file.Name).Int("bytes", file.Size()).Msg("file selected")
	return nil
}

// SelectPath reads a file from disk and selects it. Paths pasted from a
// terminal drag and drop are normalised first.
func (p *Pipeline) SelectPath(path string) error {
	path = NormalizePath(path)
	if path == "" {
		return ErrNoPendingFile
	}
	if !p.Accepts(path) {
		return fmt.Errorf("%w: %s (allowed: %s)", ErrUnsupportedFile, filepath.Base(path), strings.Join(p.allowed, ", "))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return p.Select(models.PendingFile{Name: filepath.Base(path), Data: data})
}

// Accepts reports whether name has an allowed extension.
func (p *Pipeline) Accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range p.allowed {
		if a == ext {
			return true
		}
	}
	return false
}

func (p *Pipeline) AllowedExtensions() []string {
	return append([]string(nil), p.allowed...)
}

// Upload sends the pending file. Without a pending file it does nothing and
// returns the unchanged status. A failed upload keeps the file for retry.
func (p *Pipeline) Upload(ctx context.Context) (models.UploadStatus, error) {
	p.mu.Lock()
	if p.pending == nil {
		status := p.status
		p.mu.Unlock()
		return status, nil
	}
	if p.inFlight {
		status := p.status
		p.mu.Unlock()
		return status, ErrUploadInFlight
	}
	p.inFlight = true
	file := p.pending
	p.mu.Unlock()

	p.log.Info().Str("file", file.Name).Int("bytes", file.Size()).Msg("uploading")
	msg, err := p.ingester.Ingest(ctx, file.Name, file.Data)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	if err != nil {
		uerr := newUploadError(file.Name, err)
		p.status = models.UploadStatus{Kind: models.UploadFailure, Message: uerr.Message}
		p.log.Warn().Err(err).Str("file", file.Name).Msg("upload failed")
		return p.status, uerr
	}
	// A file selected while the transfer ran is kept.
	if p.pending == file {
		p.pending = nil
	}
	p.status = models.UploadStatus{Kind: models.UploadSuccess, Message: msg}
	return p.status, nil
}

// Pending returns a copy of the pending file, or nil.
func (p *Pipeline) Pending() *models.PendingFile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pending == nil {
		return nil
	}
	f := *p.pending
	return &f
}

func (p *Pipeline) Status() models.UploadStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Pipeline) InFlight() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inFlight
}

// NormalizePath cleans a path typed or dropped into a terminal: surrounding
// quotes, a file:// prefix, escaped spaces and a leading ~.
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	if len(path) >= 2 {
		if (path[0] == '"' && path[len(path)-1] == '"') || (path[0] == '\'' && path[len(path)-1] == '\'') {
			path = path[1 : len(path)-1]
		}
	}
	path = strings.TrimPrefix(path, "file://")
	path = strings.ReplaceAll(path, `\ `, " ")
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}
