package featuresetting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const cacheTTL = 60 * time.Second

type Service struct {
	repo  Repository
	cache Cache
}

// NewService builds the flag reader. cache may be nil, in which case every
// read goes to the repository.
func NewService(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

func cacheKey(name string) string {
	return "feature_setting:" + name
}

func (s *Service) Get(ctx context.Context, name string) (*Setting, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey(name)); err == nil {
			var cached Setting
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}

	setting, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, ErrNotFound
	}

	if s.cache != nil {
		if raw, err := json.Marshal(setting); err == nil {
			_ = s.cache.Set(ctx, cacheKey(name), raw, cacheTTL)
		}
	}
	return setting, nil
}

func (s *Service) IsActive(ctx context.Context, name string) bool {
	setting, err := s.Get(ctx, name)
	if err != nil {
		return false
	}
	return setting.IsActive
}

// Params decodes the parameters of an active setting into out.
func (s *Service) Params(ctx context.Context, name string, out any) error {
	setting, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if !setting.IsActive {
		return ErrInactive
	}
	if len(setting.Parameters) == 0 {
		return nil
	}
	if err := json.Unmarshal(setting.Parameters, out); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParams, name)
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]Setting, error) {
	return s.repo.List(ctx)
}

// Update persists the change and returns the setting before and after it.
func (s *Service) Update(ctx context.Context, name string, in UpdateInput) (*Setting, *Setting, error) {
	if in.IsActive == nil && len(in.Parameters) == 0 {
		return nil, nil, ErrInvalidParams
	}
	if len(in.Parameters) > 0 {
		var decoded map[string]any
		if err := json.Unmarshal(in.Parameters, &decoded); err != nil {
			return nil, nil, ErrInvalidParams
		}
	}

	before, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	after, err := s.repo.Update(ctx, name, in)
	if err != nil {
		return nil, nil, err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, cacheKey(name))
	}
	return before, after, nil
}
