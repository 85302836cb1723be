package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"camscout/internal/adapter"
	"camscout/internal/attack"
	"camscout/internal/codec"
	"camscout/internal/domain"
	"camscout/internal/interrupt"
	"camscout/internal/repository"
)

// Scanner maps the network and returns the path of the XML report
type Scanner interface {
	Scan(ctx context.Context, runID string) (string, error)
}

// Attacker runs the credential and route attacks
type Attacker interface {
	CredentialAttack(ctx context.Context) (attack.Summary, error)
	PathAttack(ctx context.Context) (attack.Summary, error)
}

// Thumbnailer grabs a frame from a stream
type Thumbnailer interface {
	Generate(ctx context.Context, stream domain.Stream) (string, error)
}

// StreamValidator checks that a stream delivers media
type StreamValidator interface {
	Validate(ctx context.Context, stream domain.Stream) error
}

// ReportParser turns a scan report into stream records
type ReportParser func(path string) ([]domain.Stream, error)

// Deps carries the collaborators tasks are built from. Collaborators of
// disabled stages may be nil.
type Deps struct {
	RunID       string
	Store       repository.Store
	Scanner     Scanner
	ParseReport ReportParser
	Attacker    Attacker
	Thumbnailer Thumbnailer
	Validator   StreamValidator
	ReportPath  string
	Formats     []string
	Logger      *zap.Logger
}

// scanState is shared between the mapping and parsing tasks
type scanState struct {
	reportPath string
}

// ============================================================================
// Discovery
// ============================================================================

type mappingTask struct {
	scanner Scanner
	runID   string
	state   *scanState
	logger  *zap.Logger
}

func (t *mappingTask) Name() string { return TaskMapping }

func (t *mappingTask) Run(ctx context.Context) error {
	path, err := t.scanner.Scan(ctx, t.runID)
	if err != nil {
		return &TaskError{Task: TaskMapping, Err: err}
	}
	t.state.reportPath = path
	t.logger.Info("Network mapped", zap.String("report", path))
	return nil
}

type parsingTask struct {
	parse  ReportParser
	store  repository.Store
	state  *scanState
	logger *zap.Logger
}

func (t *parsingTask) Name() string { return TaskParsing }

func (t *parsingTask) Run(ctx context.Context) error {
	if t.state.reportPath == "" {
		return failf(TaskParsing, "no scan report to parse")
	}

	streams, err := t.parse(t.state.reportPath)
	if err != nil {
		return &TaskError{Task: TaskParsing, Err: err}
	}

	open := domain.FilterOpenRTSP(streams)
	for _, s := range open {
		t.logger.Info("Discovered RTSP stream",
			zap.String("address", s.Address),
			zap.Uint16("port", s.Port),
			zap.String("product", s.Product),
		)
	}
	if len(open) == 0 {
		return failf(TaskParsing, "no open RTSP streams among %d scanned ports", len(streams))
	}

	if err := t.store.SetStreams(ctx, streams); err != nil {
		return &TaskError{Task: TaskParsing, Err: err}
	}
	return nil
}

// ============================================================================
// Attacks
// ============================================================================

type credentialAttackTask struct {
	attacker Attacker
	logger   *zap.Logger
}

func (t *credentialAttackTask) Name() string { return TaskCredentialAttack }

func (t *credentialAttackTask) Run(ctx context.Context) error {
	summary, err := t.attacker.CredentialAttack(ctx)
	if err != nil {
		return &TaskError{Task: TaskCredentialAttack, Err: err}
	}
	if summary.Found+summary.AlreadyFound == 0 {
		t.logger.Warn("No credentials found", zap.Stringer("summary", summary))
		return nil
	}
	t.logger.Info("Credential attack complete", zap.Stringer("summary", summary))
	return nil
}

type pathAttackTask struct {
	attacker Attacker
	logger   *zap.Logger
}

func (t *pathAttackTask) Name() string { return TaskPathAttack }

func (t *pathAttackTask) Run(ctx context.Context) error {
	summary, err := t.attacker.PathAttack(ctx)
	if err != nil {
		return &TaskError{Task: TaskPathAttack, Err: err}
	}
	if summary.Found+summary.AlreadyFound == 0 {
		t.logger.Warn("No routes found", zap.Stringer("summary", summary))
		return nil
	}
	t.logger.Info("Path attack complete", zap.Stringer("summary", summary))
	return nil
}

// ============================================================================
// Post-processing
// ============================================================================

type thumbnailTask struct {
	thumbnailer Thumbnailer
	store       repository.Store
	controller  *interrupt.Controller
	logger      *zap.Logger
}

func (t *thumbnailTask) Name() string { return TaskThumbnail }

// Run never fails: a missing thumbnail does not invalidate a stream
func (t *thumbnailTask) Run(ctx context.Context) error {
	streams, err := t.store.GetValidStreams(ctx)
	if err != nil {
		t.logger.Error("Failed to read valid streams", zap.Error(err))
		return nil
	}

	for _, s := range streams {
		if !t.controller.Running() {
			t.logger.Info("Stop requested, skipping remaining thumbnails")
			break
		}
		path, err := t.thumbnailer.Generate(ctx, s)
		if err != nil {
			t.logger.Warn("Thumbnail generation failed", zap.Stringer("stream", s.Key()), zap.Error(err))
			continue
		}
		if err := t.store.UpdateStream(ctx, s.WithThumbnail(path)); err != nil {
			t.logger.Error("Failed to update stream", zap.Stringer("stream", s.Key()), zap.Error(err))
		}
	}
	return nil
}

type validationTask struct {
	validator  StreamValidator
	store      repository.Store
	controller *interrupt.Controller
	logger     *zap.Logger
}

func (t *validationTask) Name() string { return TaskValidation }

func (t *validationTask) Run(ctx context.Context) error {
	streams, err := t.store.GetValidStreams(ctx)
	if err != nil {
		return &TaskError{Task: TaskValidation, Err: err}
	}
	if len(streams) == 0 {
		return failf(TaskValidation, "no valid streams to check")
	}

	for _, s := range streams {
		if !t.controller.Running() {
			t.logger.Info("Stop requested, skipping remaining validations")
			break
		}
		if err := t.validator.Validate(ctx, s); err != nil {
			t.logger.Warn("Stream is not playable", zap.Stringer("stream", s.Key()), zap.Error(err))
			if err := t.store.UpdateStream(ctx, s.WithState(domain.StateInvalid)); err != nil {
				t.logger.Error("Failed to update stream", zap.Stringer("stream", s.Key()), zap.Error(err))
			}
			continue
		}
		t.logger.Info("Stream is playable", zap.Stringer("stream", s.Key()))
	}
	return nil
}

type reportTask struct {
	store   repository.Store
	path    string
	formats []string
	logger  *zap.Logger
}

func (t *reportTask) Name() string { return TaskReport }

func (t *reportTask) Run(ctx context.Context) error {
	streams, err := t.store.GetValidStreams(ctx)
	if err != nil {
		return &TaskError{Task: TaskReport, Err: err}
	}

	for _, s := range streams {
		t.logger.Info("Result",
			zap.String("url", s.URL()),
			zap.String("product", s.Product),
			zap.String("thumbnail", s.ThumbnailPath),
		)
	}

	formats := t.formats
	if len(formats) == 0 {
		formats = []string{"json"}
	}
	for _, format := range formats {
		exp, err := codec.ForFormat(format)
		if err != nil {
			return &TaskError{Task: TaskReport, Err: err}
		}
		path := reportPath(t.path, exp, len(formats) > 1)
		if err := codec.WriteFile(path, exp, streams); err != nil {
			return &TaskError{Task: TaskReport, Err: err}
		}
		t.logger.Info("Report written", zap.String("path", path), zap.String("format", exp.Format()), zap.Int("streams", len(streams)))
	}
	return nil
}

// reportPath swaps the extension of base when several formats share it
func reportPath(base string, exp codec.Exporter, multi bool) string {
	if !multi {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + codec.Extension(exp)
}

var (
	_ Scanner = (*adapter.NmapScanner)(nil)

	defaultParser ReportParser = adapter.ParseReport
)
