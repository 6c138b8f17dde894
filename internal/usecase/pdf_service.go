package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/medch24/distribution-annuelle/internal/adapter/converter"
	"github.com/medch24/distribution-annuelle/internal/adapter/staging"
	"github.com/medch24/distribution-annuelle/internal/domain"
)

// PDFService runs the document-conversion pipeline: stage the uploaded
// document, call the remote converter, persist and read back the rendering.
// Both staged blobs are private to one invocation and are removed on every
// exit path.
type PDFService struct {
	area      *staging.Area
	converter domain.DocumentConverter
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewPDFService creates a PDFService. limiter may be nil to disable rate
// limiting (tests).
func NewPDFService(area *staging.Area, conv domain.DocumentConverter, limiter *rate.Limiter, logger *slog.Logger) *PDFService {
	return &PDFService{
		area:      area,
		converter: conv,
		limiter:   limiter,
		logger:    logger.With("component", "pdf_pipeline"),
	}
}

// GeneratePDF converts an in-memory document to PDF and returns the rendered
// bytes.
func (s *PDFService) GeneratePDF(ctx context.Context, doc []byte, fileName string) ([]byte, error) {
	if len(doc) == 0 {
		return nil, errors.New("document payload is missing")
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("conversion rate limit: %w", err)
		}
	}

	base := filepath.Base(fileName)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "document.docx"
	}
	// Unix millis plus a uuid fragment keeps concurrent invocations from
	// ever colliding in the shared staging area.
	token := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	inName := fmt.Sprintf("docx-in-%s-%s", token, base)
	outName := fmt.Sprintf("pdf-out-%s.pdf", token)

	// Independent best-effort removals on every exit path; neither failure
	// masks the other or the primary error.
	defer func() {
		if err := s.area.Remove(inName); err != nil {
			s.logger.Warn("failed to remove staged input", "blob", inName, "error", err)
		}
	}()
	defer func() {
		if err := s.area.Remove(outName); err != nil {
			s.logger.Warn("failed to remove staged output", "blob", outName, "error", err)
		}
	}()

	inPath, err := s.area.Write(inName, doc)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("staged document for conversion", "blob", inName, "bytes", len(doc))

	rendered, err := s.converter.Convert(ctx, inPath, "pdf")
	if err != nil {
		s.logger.Error("document conversion failed", "blob", inName, "error", err)
		var remoteErr *converter.RemoteError
		if errors.As(err, &remoteErr) {
			return nil, remoteErr
		}
		return nil, fmt.Errorf("document conversion failed: %w", err)
	}

	if _, err := s.area.Write(outName, rendered); err != nil {
		return nil, err
	}
	out, err := s.area.Read(outName)
	if err != nil {
		return nil, err
	}

	s.logger.Info("document converted to pdf", "in_bytes", len(doc), "out_bytes", len(out))
	return out, nil
}
