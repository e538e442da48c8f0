package recovery

import (
	"context"
	"log/slog"

	"fluxrescue/internal/capture"
	"fluxrescue/internal/config"
	"fluxrescue/internal/cpufeat"
	"fluxrescue/internal/decode"
	"fluxrescue/internal/errkind"
	"fluxrescue/internal/logging"
)

// Pipeline drives a recovery run over one disk. Exactly one of the flux or
// sector sources is required; the Read stage adapts to whichever is present.
type Pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	flux      capture.Source
	sectors   capture.SectorSource
	decoder   *decode.Decoder
	callbacks Callbacks
}

// Option customizes pipeline construction.
type Option func(*Pipeline)

// WithCallbacks installs progress and per-sector callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(p *Pipeline) { p.callbacks = cb }
}

// WithFluxSource supplies a flux capture source.
func WithFluxSource(src capture.Source) Option {
	return func(p *Pipeline) { p.flux = src }
}

// WithSectorSource supplies a framed sector source.
func WithSectorSource(src capture.SectorSource) Option {
	return func(p *Pipeline) { p.sectors = src }
}

// WithFeatures overrides CPU feature detection, for tests.
func WithFeatures(f cpufeat.Features) Option {
	return func(p *Pipeline) {
		p.decoder = decode.NewDecoder(f, decode.Window{
			Low:  p.cfg.Decode.WindowLow,
			High: p.cfg.Decode.WindowHigh,
		})
	}
}

// New builds a pipeline from validated configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errkind.Wrap(errkind.ErrInvalidParameter, "pipeline", "construct", "configuration is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
	p.decoder = decode.NewDecoder(cpufeat.Detect(), decode.Window{
		Low:  cfg.Decode.WindowLow,
		High: cfg.Decode.WindowHigh,
	})
	for _, opt := range opts {
		opt(p)
	}
	if p.flux == nil && p.sectors == nil {
		return nil, errkind.Wrap(errkind.ErrInvalidParameter, "pipeline", "construct", "a capture source is required", nil)
	}
	return p, nil
}

// Run executes the full Read through Verify sequence and returns the
// session in its terminal stage. Partial recovery is a normal Complete
// outcome unless strict mode is set.
func (p *Pipeline) Run(ctx context.Context) (*Session, error) {
	session := p.newSession()
	p.logger.Info("recovery started",
		logging.String(logging.FieldSessionID, session.ID),
		logging.Int("cylinders", session.Cylinders),
		logging.Int("heads", session.Heads),
		logging.String("kernels", p.decoder.Kernels().Name()))

	steps := []struct {
		stage   Stage
		handler Handler
	}{
		{StageRead, &readStage{p: p}},
		{StageValidate, &validateStage{p: p}},
		{StageRepair, &repairStage{p: p}},
		{StageRebuild, &rebuildStage{p: p}},
		{StageVerify, &verifyStage{p: p}},
	}
	for _, step := range steps {
		if step.stage == StageRebuild && !p.cfg.Recovery.EnableRebuild {
			continue
		}
		if err := p.runStage(ctx, step.stage, step.handler, session); err != nil {
			session.Stage = StageFailed
			p.callbacks.progress(StageFailed, session)
			return session, err
		}
	}

	unrecovered := session.Unrecovered()
	if p.cfg.Recovery.StrictMode && len(unrecovered) > 0 {
		session.Stage = StageFailed
		p.callbacks.progress(StageFailed, session)
		p.logger.Error("recovery failed in strict mode",
			logging.String(logging.FieldSessionID, session.ID),
			logging.Int("unrecovered", len(unrecovered)))
		return session, errkind.Wrap(errkind.ErrUnrecoverableSector, "pipeline", "finalize",
			"unrecoverable sectors remain in strict mode", nil)
	}

	session.Stage = StageComplete
	p.callbacks.progress(StageComplete, session)
	stats := session.Stats()
	p.logger.Info("recovery complete",
		logging.String(logging.FieldSessionID, session.ID),
		logging.Int("sectors_good", stats.GoodSectors),
		logging.Int("sectors_repaired", stats.RepairedSectors),
		logging.Int("sectors_failed", stats.FailedSectors))
	return session, nil
}

func (p *Pipeline) newSession() *Session {
	var cyls, heads, size int
	if p.sectors != nil {
		cyls, heads = p.sectors.Geometry()
		size = p.sectors.SectorSize()
	} else {
		cyls, heads = p.flux.Geometry()
		size = 512
	}
	return NewSession(cyls, heads, size)
}

func (p *Pipeline) workers() int {
	n := p.cfg.Recovery.Workers
	if n < 1 {
		n = 1
	}
	return n
}
