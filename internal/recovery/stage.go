package recovery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fluxrescue/internal/logging"
)

// Stage identifies a pipeline state.
type Stage int

const (
	StageNone Stage = iota
	StageRead
	StageValidate
	StageRepair
	StageRebuild
	StageVerify
	StageComplete
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageRead:
		return "read"
	case StageValidate:
		return "validate"
	case StageRepair:
		return "repair"
	case StageRebuild:
		return "rebuild"
	case StageVerify:
		return "verify"
	case StageComplete:
		return "complete"
	case StageFailed:
		return "failed"
	default:
		return "none"
	}
}

// Handler is the contract each pipeline stage implements. Prepare validates
// inputs and allocates; Execute does the work. Both observe ctx.
type Handler interface {
	Prepare(context.Context, *Session) error
	Execute(context.Context, *Session) error
}

// Callbacks fire synchronously at stage boundaries and after each sector
// decision. They run on the pipeline goroutine and may block it.
type Callbacks struct {
	Progress func(stage Stage, session *Session)
	Sector   func(sector *Sector)
}

func (c Callbacks) progress(stage Stage, s *Session) {
	if c.Progress != nil {
		c.Progress(stage, s)
	}
}

func (c Callbacks) sector(sec *Sector) {
	if c.Sector != nil {
		c.Sector(sec)
	}
}

// runStage executes one stage, tagging log lines with a fresh execution ID
// and recording the stage duration.
func (p *Pipeline) runStage(ctx context.Context, st Stage, h Handler, session *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	execID := uuid.NewString()
	logger := p.logger.With(
		logging.String(logging.FieldStage, st.String()),
		logging.String("execution_id", execID),
		logging.String(logging.FieldSessionID, session.ID),
	)

	session.Stage = st
	p.callbacks.progress(st, session)
	logger.Info("stage started")
	start := time.Now()

	if err := h.Prepare(ctx, session); err != nil {
		logger.Error("stage preparation failed", logging.Error(err))
		return err
	}
	if err := h.Execute(ctx, session); err != nil {
		logger.Error("stage failed", logging.Error(err))
		return err
	}

	session.recordStageDuration(st, time.Since(start))
	logger.Info("stage completed",
		logging.Duration("elapsed", time.Since(start)))
	return nil
}
