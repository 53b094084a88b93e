package replacement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chem-advisor/internal/config"
	"github.com/sells-group/chem-advisor/internal/model"
)

// Repository is the persistence the discovery service needs.
type Repository interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	CreateRun(ctx context.Context, req model.ReplacementRequest) (*model.ReplacementRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, run *model.ReplacementRun) error
	FailRun(ctx context.Context, runID string, reason string) error
}

// Sourcer gathers the candidate pool for an original product.
type Sourcer interface {
	Gather(ctx context.Context, original model.Product, criteria model.ReplacementCriteria) ([]model.Product, error)
}

// Service runs replacement discovery end to end.
type Service struct {
	repo    Repository
	sourcer Sourcer
	engine  *Engine
	cfg     config.ReplacementConfig
}

// NewService creates a discovery Service.
func NewService(repo Repository, sourcer Sourcer, cfg config.ReplacementConfig) *Service {
	return &Service{
		repo:    repo,
		sourcer: sourcer,
		engine:  NewEngine(cfg),
		cfg:     cfg,
	}
}

// Engine returns the scoring engine used by the service.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Discover loads the original product, sources candidates, scores them and
// persists the run. A failure after the run is created marks it failed.
func (s *Service) Discover(ctx context.Context, req model.ReplacementRequest) (*model.ReplacementRun, error) {
	if req.OriginalProductID == "" {
		return nil, eris.New("replacement: original_product_id is required")
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	run, err := s.repo.CreateRun(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "replacement: create run")
	}

	log := zap.L().With(zap.String("run_id", run.ID), zap.String("original_product_id", req.OriginalProductID))

	if err := s.discover(ctx, run); err != nil {
		log.Warn("replacement: discovery failed", zap.Error(err))
		if ferr := s.repo.FailRun(context.WithoutCancel(ctx), run.ID, err.Error()); ferr != nil {
			log.Error("replacement: mark run failed", zap.Error(ferr))
		}
		return nil, err
	}

	log.Info("replacement: discovery complete",
		zap.Int("pool", run.CandidatePool),
		zap.Int("candidates", len(run.Candidates)),
	)
	return run, nil
}

func (s *Service) discover(ctx context.Context, run *model.ReplacementRun) error {
	original, err := s.repo.GetProduct(ctx, run.Request.OriginalProductID)
	if err != nil {
		return eris.Wrap(err, "replacement: load original product")
	}
	if original == nil {
		return eris.Errorf("replacement: original product %s not found", run.Request.OriginalProductID)
	}
	run.Original = original
	run.Criteria = BuildCriteria(run.Request, s.cfg.ReasonExclusions)

	if err := s.repo.UpdateRunStatus(ctx, run.ID, model.RunStatusSourcing); err != nil {
		return eris.Wrap(err, "replacement: update status")
	}
	pool, err := s.sourcer.Gather(ctx, *original, run.Criteria)
	if err != nil {
		return eris.Wrap(err, "replacement: gather candidates")
	}
	run.CandidatePool = len(pool)

	if err := s.repo.UpdateRunStatus(ctx, run.ID, model.RunStatusScoring); err != nil {
		return eris.Wrap(err, "replacement: update status")
	}
	candidates, err := s.engine.GenerateCandidates(ctx, *original, pool, run.Criteria, run.Request)
	if err != nil {
		return err
	}
	if s.cfg.MaxResults > 0 && len(candidates) > s.cfg.MaxResults {
		candidates = candidates[:s.cfg.MaxResults]
	}

	now := time.Now().UTC()
	run.Candidates = candidates
	run.Status = model.RunStatusComplete
	run.CompletedAt = &now

	if err := s.repo.CompleteRun(ctx, run); err != nil {
		return eris.Wrap(err, "replacement: complete run")
	}
	return nil
}
