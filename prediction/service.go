package prediction

import (
	"context"

	"github.com/apex/log"
	"golang.org/x/sync/singleflight"

	"waterlog/models"
)

type Store interface {
	PredictionsForDate(ctx context.Context, date string) ([]models.PredictedHotspot, error)
}

type ScriptRunner interface {
	Run(ctx context.Context, date string) (string, error)
}

// Service serves stored predictions and generates missing ones on demand.
// Concurrent requests for the same date share one script run.
type Service struct {
	store  Store
	runner ScriptRunner
	group  singleflight.Group
}

func NewService(store Store, runner ScriptRunner) *Service {
	return &Service{store: store, runner: runner}
}

// ForDate returns the predictions for date. When none are stored it runs the
// script once and queries again; a failing script yields an empty result.
func (s *Service) ForDate(ctx context.Context, date string) (*models.PredictionResponse, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	hotspots, err := s.store.PredictionsForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(hotspots) == 0 && s.runner != nil {
		if hotspots, err = s.generateMissing(ctx, date); err != nil {
			return nil, err
		}
	}

	resp := &models.PredictionResponse{
		Date:       date,
		Hotspots:   hotspots,
		TotalCount: len(hotspots),
	}
	if len(hotspots) > 0 {
		v := hotspots[0].ModelVersion
		resp.ModelVersion = &v
	}
	return resp, nil
}

// generateMissing runs the script for date unless another caller already
// did, then reads the stored result. Callers waiting on the same date share
// the run, which is not cancelled when the first caller goes away.
func (s *Service) generateMissing(ctx context.Context, date string) ([]models.PredictedHotspot, error) {
	v, err, shared := s.group.Do(date, func() (interface{}, error) {
		ctx := context.WithoutCancel(ctx)
		hotspots, err := s.store.PredictionsForDate(ctx, date)
		if err != nil || len(hotspots) > 0 {
			return hotspots, err
		}
		log.Infof("No predictions found for %s, generating on demand", date)
		if _, err := s.runner.Run(ctx, date); err != nil {
			log.Warnf("On-demand generation for %s failed: %v", date, err)
			return []models.PredictedHotspot{}, nil
		}
		return s.store.PredictionsForDate(ctx, date)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debugf("Shared on-demand predictions for %s", date)
	}
	return v.([]models.PredictedHotspot), nil
}

// Generate runs the script for date regardless of what is stored. Concurrent
// calls for one date share a run.
func (s *Service) Generate(ctx context.Context, date string) (string, error) {
	v, err, _ := s.group.Do("generate:"+date, func() (interface{}, error) {
		return s.runner.Run(context.WithoutCancel(ctx), date)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
