package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"ai-mediagen-be/internal/dto"
	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/pkg/logger"
	"ai-mediagen-be/internal/repository/contract"
	"ai-mediagen-be/internal/repository/specification"
	"ai-mediagen-be/internal/repository/unitofwork"
	"ai-mediagen-be/pkg/apperror"
	"ai-mediagen-be/pkg/events"
	"ai-mediagen-be/pkg/metrics"
	"ai-mediagen-be/pkg/polling"
	"ai-mediagen-be/pkg/provider"
	"ai-mediagen-be/pkg/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultStaleAfter         = 24 * time.Hour
	defaultListLimit          = 20
	defaultPersistConcurrency = 4
	staleFailureMessage       = "Generation timed out"
)

// Poller drives an asynchronous provider job to a terminal state.
type Poller interface {
	Poll(ctx context.Context, job polling.Job) (*provider.Status, error)
}

// ArtifactStorage is the part of the storage service the orchestrator needs.
type ArtifactStorage interface {
	UploadImage(ctx context.Context, src storage.Source, category storage.Category) (*storage.UploadResult, error)
	UploadVideo(ctx context.Context, localPathOrURL string, opts storage.VideoOptions) (*storage.UploadResult, error)
	GenerateThumbnail(ctx context.Context, sourceURL string, w, h int) *storage.ThumbnailResult
	DeleteImage(ctx context.Context, objectPath string)
	ThumbnailSize() int
}

type IGenerationService interface {
	Generate(ctx context.Context, userId uuid.UUID, req *dto.GenerateRequest) (*dto.GenerationResponse, error)
	Regenerate(ctx context.Context, userId uuid.UUID, generationId uuid.UUID) (*dto.GenerationResponse, error)
	Show(ctx context.Context, userId uuid.UUID, generationId uuid.UUID) (*dto.GenerationResponse, error)
	Status(ctx context.Context, userId uuid.UUID, generationId uuid.UUID) (*dto.GenerationStatusResponse, error)
	List(ctx context.Context, userId uuid.UUID, req *dto.ListGenerationsRequest) (*dto.ListGenerationsResponse, error)
	Stats(ctx context.Context, userId uuid.UUID) (*dto.GenerationStatsResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, generationId uuid.UUID) error
	Models() []dto.ModelResponse
	CleanupStale(ctx context.Context, olderThan time.Duration) (*dto.CleanupStaleResponse, error)
}

type GenerationOptions struct {
	// Plan tiers whose artifacts must be stored; for other tiers a storage failure
	// falls back to the provider URL.
	PersistRequiredTiers []string
	StaleAfter           time.Duration
	PersistConcurrency   int
}

type generationService struct {
	uowFactory unitofwork.RepositoryFactory
	credits    ICreditService
	registry   *provider.Registry
	poller     Poller
	tasks      polling.TaskStore
	storage    ArtifactStorage
	publisher  events.Publisher
	logger     logger.ILogger
	opts       GenerationOptions
	now        func() time.Time
}

func NewGenerationService(
	uowFactory unitofwork.RepositoryFactory,
	credits ICreditService,
	registry *provider.Registry,
	poller Poller,
	tasks polling.TaskStore,
	artifactStorage ArtifactStorage,
	publisher events.Publisher,
	log logger.ILogger,
	opts GenerationOptions,
) IGenerationService {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.PersistConcurrency <= 0 {
		opts.PersistConcurrency = defaultPersistConcurrency
	}
	return &generationService{
		uowFactory: uowFactory,
		credits:    credits,
		registry:   registry,
		poller:     poller,
		tasks:      tasks,
		storage:    artifactStorage,
		publisher:  publisher,
		logger:     log,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *generationService) Generate(ctx context.Context, userId uuid.UUID, req *dto.GenerateRequest) (*dto.GenerationResponse, error) {
	return s.run(ctx, userId, provider.Request{
		ModelID:        req.ModelId,
		Prompt:         strings.TrimSpace(req.Prompt),
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		AspectRatio:    req.AspectRatio,
		Width:          req.Width,
		Height:         req.Height,
		BatchSize:      req.BatchSize,
		Seed:           req.Seed,
		Style:          req.Style,
		InputImage:     req.InputImage,
		Duration:       req.Duration,
		Quality:        req.Quality,
	})
}

// Regenerate replays the original request as a new, separately charged generation.
func (s *generationService) Regenerate(ctx context.Context, userId uuid.UUID, generationId uuid.UUID) (*dto.GenerationResponse, error) {
	original, err := s.findOwned(ctx, userId, generationId)
	if err != nil {
		return nil, err
	}

	p := original.Params
	return s.run(ctx, userId, provider.Request{
		ModelID:        original.ModelId,
		Prompt:         original.Prompt,
		NegativePrompt: original.NegativePrompt,
		AspectRatio:    p.AspectRatio,
		Width:          p.Width,
		Height:         p.Height,
		BatchSize:      p.BatchSize,
		Seed:           p.Seed,
		Style:          p.Style,
		InputImage:     p.InputImage,
		Duration:       p.Duration,
		Quality:        p.Quality,
	})
}

// run is the lifecycle: validate, charge, record, submit, poll, persist, finalize.
// Every failure after the charge is recorded on the generation and refunded.
func (s *generationService) run(ctx context.Context, userId uuid.UUID, req provider.Request) (*dto.GenerationResponse, error) {
	spec, prov, err := s.registry.Resolve(req.ModelID)
	if err != nil {
		return nil, err
	}
	spec.Normalize(&req)
	if err := spec.Validate(req); err != nil {
		return nil, err
	}

	generationId := uuid.New()
	charge, err := s.credits.CheckAndDeductCredits(ctx, userId, spec.ID, req.BatchSize, &generationId)
	if err != nil {
		return nil, err
	}

	startedAt := s.now()
	gen := &entity.Generation{
		Id:             generationId,
		UserId:         userId,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		ModelId:        spec.ID,
		Params: entity.GenerationParams{
			AspectRatio: req.AspectRatio,
			Width:       req.Width,
			Height:      req.Height,
			BatchSize:   req.BatchSize,
			Seed:        req.Seed,
			Style:       req.Style,
			InputImage:  req.InputImage,
			Duration:    req.Duration,
			Quality:     req.Quality,
		},
		Status:      entity.GenerationStatusProcessing,
		CreditsUsed: charge.CreditsUsed,
		CreatedAt:   startedAt,
		UpdatedAt:   startedAt,
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.GenerationRepository().Create(ctx, gen); err != nil {
		s.logger.Error("GENERATION", "Failed to record generation, refunding", map[string]interface{}{
			"user_id":       userId,
			"generation_id": generationId,
			"error":         err.Error(),
		})
		if _, rerr := s.credits.RefundCredits(context.WithoutCancel(ctx), userId, charge.CreditsUsed, DefaultRefundReason, &generationId); rerr != nil {
			s.logger.Error("GENERATION", "Refund failed", map[string]interface{}{
				"user_id":       userId,
				"generation_id": generationId,
				"error":         rerr.Error(),
			})
		}
		return nil, err
	}

	s.publish(ctx, events.New(events.GenerationStarted, map[string]interface{}{
		"user_id":       userId.String(),
		"generation_id": gen.Id.String(),
		"model_id":      gen.ModelId,
		"credits_used":  gen.CreditsUsed,
	}))

	artifacts, err := s.execute(ctx, gen, spec, prov, req)
	if err != nil {
		return nil, s.fail(ctx, gen, err)
	}

	images, err := s.persist(ctx, charge.User, gen, artifacts)
	if err != nil {
		return nil, s.fail(ctx, gen, err)
	}

	return s.complete(ctx, gen, images, startedAt)
}

func (s *generationService) execute(ctx context.Context, gen *entity.Generation, spec provider.ModelSpec, prov provider.Provider, req provider.Request) ([]provider.Artifact, error) {
	sub, err := prov.Submit(ctx, req)
	if err != nil {
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.ProviderSubmission(prov.Name(), err)
	}

	if sub.Result != nil {
		if len(sub.Result.Artifacts) == 0 {
			return nil, apperror.ProviderTerminal("Provider returned no output")
		}
		return sub.Result.Artifacts, nil
	}

	if sub.Handle == nil || sub.Handle.TaskID == "" {
		return nil, apperror.ProviderSubmission(prov.Name(), errors.New("no result and no task handle"))
	}
	async, ok := prov.(provider.AsyncProvider)
	if !ok {
		return nil, apperror.ProviderSubmission(prov.Name(), errors.New("task handle from a provider that cannot be polled"))
	}

	s.recordTaskID(ctx, gen, sub.Handle.TaskID)

	status, err := s.poller.Poll(ctx, polling.Job{
		Provider:     async,
		TaskID:       sub.Handle.TaskID,
		GenerationID: gen.Id.String(),
	})
	if err != nil {
		return nil, err
	}

	artifacts := make([]provider.Artifact, 0, len(status.ArtifactURLs))
	for _, url := range status.ArtifactURLs {
		if url == "" {
			continue
		}
		artifacts = append(artifacts, provider.Artifact{
			Kind:   spec.Kind,
			URL:    url,
			Width:  req.Width,
			Height: req.Height,
		})
	}
	if len(artifacts) == 0 {
		return nil, apperror.ProviderTerminal("Provider completed without returning any output")
	}
	return artifacts, nil
}

func (s *generationService) recordTaskID(ctx context.Context, gen *entity.Generation, taskID string) {
	gen.ProviderTaskId = &taskID
	gen.UpdatedAt = s.now()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.GenerationRepository().Update(ctx, gen); err != nil {
		s.logger.Warn("GENERATION", "Failed to record provider task id", map[string]interface{}{
			"generation_id": gen.Id,
			"task_id":       taskID,
			"error":         err.Error(),
		})
	}
}

// persist stores every artifact concurrently. On a fatal error the artifacts that
// were already stored are removed again.
func (s *generationService) persist(ctx context.Context, user *entity.User, gen *entity.Generation, artifacts []provider.Artifact) ([]*entity.Image, error) {
	required := slices.Contains(s.opts.PersistRequiredTiers, strings.ToLower(string(user.PlanTier)))
	images := make([]*entity.Image, len(artifacts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.PersistConcurrency)
	for i, artifact := range artifacts {
		g.Go(func() error {
			img, err := s.persistOne(gctx, gen, artifact, required)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.discard(context.WithoutCancel(ctx), images)
		return nil, err
	}
	return images, nil
}

func (s *generationService) persistOne(ctx context.Context, gen *entity.Generation, a provider.Artifact, required bool) (*entity.Image, error) {
	img := &entity.Image{
		Id:           uuid.New(),
		GenerationId: gen.Id,
		UserId:       gen.UserId,
		Kind:         entity.ArtifactKind(a.Kind),
		Width:        a.Width,
		Height:       a.Height,
		CreatedAt:    s.now(),
	}

	// Video always arrives by URL; anything else could name a file on this host.
	if a.Kind == provider.ArtifactVideo && !isRemoteURL(a.URL) {
		return nil, apperror.StorageUpload(fmt.Errorf("provider returned a non-remote video source %q", a.URL))
	}

	var (
		uploaded *storage.UploadResult
		err      error
	)
	switch {
	case a.Kind == provider.ArtifactVideo:
		uploaded, err = s.storage.UploadVideo(ctx, a.URL, storage.VideoOptions{Category: storage.CategoryVideos})
	default:
		uploaded, err = s.storage.UploadImage(ctx, artifactSource(a), storage.CategoryGenerated)
	}

	if err != nil {
		if !apperror.Is(err, apperror.CodeStorageUpload) {
			err = apperror.StorageUpload(err)
		}
		// Inline bytes have nowhere else to live.
		if required || a.URL == "" {
			return nil, err
		}
		s.logger.Warn("GENERATION", "Storage failed, serving provider URL", map[string]interface{}{
			"generation_id": gen.Id,
			"error":         err.Error(),
		})
		img.URL = a.URL
		if a.Kind == provider.ArtifactImage {
			thumb := a.URL
			img.ThumbnailURL = &thumb
		}
		return img, nil
	}

	img.URL = uploaded.URL
	objectPath := uploaded.Path
	img.StoragePath = &objectPath

	if a.Kind == provider.ArtifactImage {
		source := a.URL
		if len(a.Data) > 0 {
			source = dataURI(a)
		}
		size := s.storage.ThumbnailSize()
		thumb := s.storage.GenerateThumbnail(ctx, source, size, size)
		thumbURL := uploaded.URL
		if thumb.Path != "" {
			thumbURL = thumb.URL
			thumbPath := thumb.Path
			img.ThumbnailPath = &thumbPath
		}
		img.ThumbnailURL = &thumbURL
	}
	return img, nil
}

func (s *generationService) discard(ctx context.Context, images []*entity.Image) {
	for _, img := range images {
		if img == nil {
			continue
		}
		if img.StoragePath != nil {
			s.storage.DeleteImage(ctx, *img.StoragePath)
		}
		if img.ThumbnailPath != nil {
			s.storage.DeleteImage(ctx, *img.ThumbnailPath)
		}
	}
}

// complete flips the generation to COMPLETED and inserts its images in one transaction.
func (s *generationService) complete(ctx context.Context, gen *entity.Generation, images []*entity.Image, startedAt time.Time) (*dto.GenerationResponse, error) {
	completedAt := s.now()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		s.discard(context.WithoutCancel(ctx), images)
		return nil, s.fail(ctx, gen, err)
	}
	defer uow.Rollback()

	applied, err := uow.GenerationRepository().TransitionFromProcessing(ctx, gen.Id, contract.GenerationTransition{
		Status:      entity.GenerationStatusCompleted,
		CompletedAt: completedAt,
	})
	if err == nil && !applied {
		uow.Rollback()
		s.discard(context.WithoutCancel(ctx), images)
		s.logger.Warn("GENERATION", "Generation finalized elsewhere before completion", map[string]interface{}{
			"generation_id": gen.Id,
		})
		return nil, apperror.New(apperror.CodeInternal, "Generation was finalized before its output was saved")
	}
	if err == nil {
		err = uow.ImageRepository().CreateBatch(ctx, images)
	}
	if err == nil {
		err = uow.Commit()
	}
	if err != nil {
		// Release the row lock before the failure path touches the same row.
		uow.Rollback()
		s.discard(context.WithoutCancel(ctx), images)
		return nil, s.fail(ctx, gen, err)
	}

	gen.Status = entity.GenerationStatusCompleted
	gen.CompletedAt = &completedAt
	gen.UpdatedAt = completedAt
	gen.Images = images
	s.releaseTask(ctx, gen)

	metrics.GenerationsTotal.WithLabelValues(gen.ModelId, "completed").Inc()
	metrics.GenerationDuration.WithLabelValues(gen.ModelId).Observe(completedAt.Sub(startedAt).Seconds())

	urls := make([]string, 0, len(images))
	for _, img := range images {
		urls = append(urls, img.URL)
	}
	s.publish(ctx, events.New(events.GenerationCompleted, map[string]interface{}{
		"user_id":       gen.UserId.String(),
		"generation_id": gen.Id.String(),
		"model_id":      gen.ModelId,
		"credits_used":  gen.CreditsUsed,
		"urls":          urls,
	}))

	s.logger.Info("GENERATION", "Generation completed", map[string]interface{}{
		"generation_id": gen.Id,
		"model_id":      gen.ModelId,
		"images":        len(images),
	})

	return toGenerationResponse(gen), nil
}

// fail marks the generation FAILED and refunds it. It returns cause unchanged.
// Runs detached from ctx so a cancelled request still gets its refund.
func (s *generationService) fail(ctx context.Context, gen *entity.Generation, cause error) error {
	ctx = context.WithoutCancel(ctx)
	message := failureMessage(cause)

	applied, refund, err := s.failAndRefund(ctx, gen, message, DefaultRefundReason)
	if err != nil {
		s.logger.Error("GENERATION", "Failed to record generation failure, left for the stale sweep", map[string]interface{}{
			"generation_id": gen.Id,
			"cause":         cause.Error(),
			"error":         err.Error(),
		})
		return cause
	}
	if !applied {
		s.logger.Warn("GENERATION", "Generation already finalized, skipping refund", map[string]interface{}{
			"generation_id": gen.Id,
		})
		return cause
	}

	gen.Status = entity.GenerationStatusFailed
	gen.Error = &message
	s.releaseTask(ctx, gen)

	s.logger.Warn("GENERATION", "Generation failed", map[string]interface{}{
		"generation_id": gen.Id,
		"model_id":      gen.ModelId,
		"error":         cause.Error(),
	})
	metrics.GenerationsTotal.WithLabelValues(gen.ModelId, "failed").Inc()

	s.notifyFailed(ctx, gen, message, refund)
	return cause
}

// failAndRefund moves gen from PROCESSING to FAILED and writes its refund in one
// transaction. On error nothing is written and gen stays PROCESSING. applied is
// false when gen was already finalized.
func (s *generationService) failAndRefund(ctx context.Context, gen *entity.Generation, message, reason string) (bool, *CreditRefund, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return false, nil, err
	}
	defer uow.Rollback()

	applied, err := uow.GenerationRepository().TransitionFromProcessing(ctx, gen.Id, contract.GenerationTransition{
		Status:      entity.GenerationStatusFailed,
		Error:       &message,
		CompletedAt: s.now(),
	})
	if err != nil || !applied {
		return false, nil, err
	}

	var refund *CreditRefund
	if gen.CreditsUsed > 0 {
		refund, err = s.credits.RefundInTx(ctx, uow, gen.UserId, gen.CreditsUsed, reason, &gen.Id)
		if err != nil {
			return false, nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return false, nil, err
	}
	s.credits.AnnounceRefund(ctx, refund)
	return true, refund, nil
}

// releaseTask drops the live poll view once the generation row is terminal.
func (s *generationService) releaseTask(ctx context.Context, gen *entity.Generation) {
	if gen.ProviderTaskId == nil || s.tasks == nil {
		return
	}
	if err := s.tasks.Delete(ctx, *gen.ProviderTaskId); err != nil {
		s.logger.Warn("GENERATION", "Failed to release poll task", map[string]interface{}{
			"generation_id": gen.Id,
			"task_id":       *gen.ProviderTaskId,
			"error":         err.Error(),
		})
	}
}

func (s *generationService) notifyFailed(ctx context.Context, gen *entity.Generation, message string, refund *CreditRefund) {
	creditsRefunded := 0
	if refund != nil {
		creditsRefunded = refund.Amount
	}
	s.publish(ctx, events.New(events.GenerationFailed, map[string]interface{}{
		"user_id":          gen.UserId.String(),
		"generation_id":    gen.Id.String(),
		"model_id":         gen.ModelId,
		"prompt":           gen.Prompt,
		"error":            message,
		"credits_refunded": creditsRefunded,
	}))
}

func (s *generationService) Show(ctx context.Context, userId uuid.UUID, generationId uuid.UUID) (*dto.GenerationResponse, error) {
	gen, err := s.findOwned(ctx, userId, generationId)
	if err != nil {
		return nil, err
	}
	return toGenerationResponse(gen), nil
}

func (s *generationService) Status(ctx context.Context, userId uuid.UUID, generationId uuid.UUID) (*dto.GenerationStatusResponse, error) {
	gen, err := s.findOwned(ctx, userId, generationId)
	if err != nil {
		return nil, err
	}

	res := &dto.GenerationStatusResponse{GenerationResponse: *toGenerationResponse(gen)}
	switch gen.Status {
	case entity.GenerationStatusCompleted:
		res.Progress = 100
	case entity.GenerationStatusProcessing:
		if gen.ProviderTaskId != nil && s.tasks != nil {
			task, err := s.tasks.Get(ctx, *gen.ProviderTaskId)
			if err != nil {
				s.logger.Warn("GENERATION", "Failed to read poll task", map[string]interface{}{
					"generation_id": gen.Id,
					"error":         err.Error(),
				})
			}
			if task != nil {
				res.Progress = task.Progress
				res.ProviderStatus = task.RawStatus
				res.PollAttempts = task.Attempts
			}
		}
	}
	return res, nil
}

func (s *generationService) List(ctx context.Context, userId uuid.UUID, req *dto.ListGenerationsRequest) (*dto.ListGenerationsResponse, error) {
	limit, offset := defaultListLimit, 0
	filters := []specification.Specification{specification.UserOwnedBy{UserID: userId}}
	if req != nil {
		if req.Limit > 0 {
			limit = req.Limit
		}
		offset = req.Offset
		if req.ModelId != "" {
			filters = append(filters, specification.ByModelID{ModelID: req.ModelId})
		}
		if req.Status != "" {
			filters = append(filters, specification.ByStatus{Status: strings.ToUpper(req.Status)})
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.GenerationRepository()

	query := append(slices.Clone(filters),
		specification.WithImages{},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	gens, err := repo.FindAll(ctx, query...)
	if err != nil {
		return nil, err
	}
	total, err := repo.Count(ctx, filters...)
	if err != nil {
		return nil, err
	}

	res := &dto.ListGenerationsResponse{
		Generations: make([]dto.GenerationResponse, 0, len(gens)),
		Total:       total,
		Limit:       limit,
		Offset:      offset,
	}
	for _, g := range gens {
		res.Generations = append(res.Generations, *toGenerationResponse(g))
	}
	return res, nil
}

func (s *generationService) Stats(ctx context.Context, userId uuid.UUID) (*dto.GenerationStatsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	stats, err := uow.GenerationRepository().Stats(ctx, userId)
	if err != nil {
		return nil, err
	}
	return &dto.GenerationStatsResponse{
		Total:        stats.Total,
		Completed:    stats.Completed,
		Failed:       stats.Failed,
		Processing:   stats.Processing,
		CreditsSpent: stats.CreditsSpent,
	}, nil
}

// Delete removes stored artifacts best-effort, then the image and generation rows.
func (s *generationService) Delete(ctx context.Context, userId uuid.UUID, generationId uuid.UUID) error {
	gen, err := s.findOwned(ctx, userId, generationId)
	if err != nil {
		return err
	}
	if gen.Status == entity.GenerationStatusProcessing {
		return apperror.Validation("Generation is still processing")
	}

	s.discard(ctx, gen.Images)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ImageRepository().DeleteByGeneration(ctx, gen.Id); err != nil {
		return err
	}
	if err := uow.GenerationRepository().Delete(ctx, gen.Id); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *generationService) Models() []dto.ModelResponse {
	models := s.registry.Models()
	res := make([]dto.ModelResponse, 0, len(models))
	for _, m := range models {
		res = append(res, dto.ModelResponse{
			Id:              m.ID,
			Name:            m.Name,
			Provider:        m.Provider,
			Kind:            string(m.Kind),
			Credits:         m.Credits,
			MaxBatchSize:    m.MaxBatchSize,
			MaxPromptLength: m.MaxPromptLength,
			AspectRatios:    m.AspectRatios,
			Durations:       m.Durations,
			Qualities:       m.Qualities,
		})
	}
	return res
}

// CleanupStale fails and refunds generations stuck in PROCESSING, e.g. after a crash
// between the charge and the final transition.
func (s *generationService) CleanupStale(ctx context.Context, olderThan time.Duration) (*dto.CleanupStaleResponse, error) {
	if olderThan <= 0 {
		olderThan = s.opts.StaleAfter
	}
	cutoff := s.now().Add(-olderThan)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	stale, err := uow.GenerationRepository().FindAll(ctx,
		specification.ByStatus{Status: string(entity.GenerationStatusProcessing)},
		specification.CreatedBefore{T: cutoff},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	res := &dto.CleanupStaleResponse{}
	for _, gen := range stale {
		applied, refund, err := s.failAndRefund(ctx, gen, staleFailureMessage, staleFailureMessage)
		if err != nil {
			s.logger.Error("GENERATION", "Failed to expire stale generation", map[string]interface{}{
				"generation_id": gen.Id,
				"error":         err.Error(),
			})
			continue
		}
		if !applied {
			continue
		}

		res.Failed++
		s.releaseTask(ctx, gen)
		if refund != nil {
			res.Refunded++
		}
		metrics.GenerationsTotal.WithLabelValues(gen.ModelId, "failed").Inc()
		s.notifyFailed(ctx, gen, staleFailureMessage, refund)
	}

	if res.Failed > 0 {
		s.logger.Info("GENERATION", "Stale generations cleaned up", map[string]interface{}{
			"failed":   res.Failed,
			"refunded": res.Refunded,
			"cutoff":   cutoff,
		})
	}
	return res, nil
}

func (s *generationService) findOwned(ctx context.Context, userId uuid.UUID, generationId uuid.UUID) (*entity.Generation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	gen, err := uow.GenerationRepository().FindOne(ctx,
		specification.ByID{ID: generationId},
		specification.WithImages{},
	)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, apperror.NotFound("Generation")
	}
	if gen.UserId != userId {
		return nil, apperror.UnauthorizedAccess("generation")
	}
	return gen, nil
}

func (s *generationService) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Error("GENERATION", "Failed to publish event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
	}
}

func artifactSource(a provider.Artifact) storage.Source {
	if len(a.Data) > 0 {
		return storage.FromBytes(a.Data, a.MimeType)
	}
	return storage.FromString(a.URL)
}

func isRemoteURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func dataURI(a provider.Artifact) string {
	mimeType := a.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(a.Data))
}

func failureMessage(err error) string {
	appErr, ok := apperror.As(err)
	if !ok {
		return "Generation failed"
	}
	switch appErr.Code {
	case apperror.CodeCancelled:
		return "Generation cancelled"
	case apperror.CodeProviderSubmission, apperror.CodeStorageUpload:
		if appErr.Err != nil {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Err)
		}
	}
	return appErr.Message
}

func toGenerationResponse(g *entity.Generation) *dto.GenerationResponse {
	res := &dto.GenerationResponse{
		Id:             g.Id,
		Status:         string(g.Status),
		CreditsUsed:    g.CreditsUsed,
		Images:         make([]dto.GenerationImageResponse, 0, len(g.Images)),
		Error:          g.Error,
		ModelId:        g.ModelId,
		Prompt:         g.Prompt,
		NegativePrompt: g.NegativePrompt,
		AspectRatio:    g.Params.AspectRatio,
		CreatedAt:      g.CreatedAt,
		CompletedAt:    g.CompletedAt,
	}
	for _, img := range g.Images {
		res.Images = append(res.Images, dto.GenerationImageResponse{
			Id:           img.Id,
			Kind:         string(img.Kind),
			Url:          img.URL,
			ThumbnailUrl: img.ThumbnailURL,
			Width:        img.Width,
			Height:       img.Height,
		})
	}
	return res
}
