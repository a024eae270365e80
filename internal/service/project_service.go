package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/internal/workflow"
)

const progressCacheTTL = 30 * time.Second

// ProjectOverview is the read model served to dashboards: the project,
// its non-deleted milestones, and the aggregate progress.
type ProjectOverview struct {
	Project    *model.Project `json:"project"`
	Milestones []model.Milestone `json:"milestones"`
	Progress   int            `json:"progress"`
}

// ProjectService serves project reads. Aggregate progress is cached in
// redis for a short TTL; writers invalidate on commit.
type ProjectService struct {
	store  Store
	rdb    *redis.Client
	logger *zap.Logger
}

func NewProjectService(store Store, rdb *redis.Client, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		store:  store,
		rdb:    rdb,
		logger: logger,
	}
}

// Overview returns the project with its milestones and overall progress.
func (s *ProjectService) Overview(ctx context.Context, projectID int) (*ProjectOverview, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	visible := make([]model.Milestone, 0, len(p.Milestones))
	for _, m := range p.Milestones {
		if !m.IsDeleted {
			visible = append(visible, m)
		}
	}

	return &ProjectOverview{
		Project:    p,
		Milestones: visible,
		Progress:   s.progress(ctx, projectID, p.Milestones),
	}, nil
}

// Progress returns the aggregate progress of a project, through the cache.
func (s *ProjectService) Progress(ctx context.Context, projectID int) (int, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return s.progress(ctx, projectID, p.Milestones), nil
}

// InvalidateProgress drops the cached value. Called after any commit that
// can move milestone progress.
func (s *ProjectService) InvalidateProgress(ctx context.Context, projectID int) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, progressCacheKey(projectID)).Err(); err != nil {
		s.logger.Warn("Failed to invalidate progress cache",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
	}
}

// progress reads the cached aggregate, falling back to computing it from
// the milestones already in hand. Cache failures degrade to compute.
func (s *ProjectService) progress(ctx context.Context, projectID int, milestones []model.Milestone) int {
	key := progressCacheKey(projectID)
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, key).Result(); err == nil {
			if v, convErr := strconv.Atoi(cached); convErr == nil {
				return v
			}
		}
	}

	v := workflow.OverallProgress(milestones)
	if s.rdb != nil {
		if err := s.rdb.Set(ctx, key, v, progressCacheTTL).Err(); err != nil {
			s.logger.Warn("Failed to cache progress", zap.Int("project_id", projectID), zap.Error(err))
		}
	}
	return v
}

func progressCacheKey(projectID int) string {
	return fmt.Sprintf("project:progress:%d", projectID)
}
