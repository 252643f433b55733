package services

import (
	"context"

	gerrors "github.com/go-faster/errors"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/workgroup"
)

// WorkGroupStore resolves work groups for one import run. Concurrent
// GetOrCreate calls for the same key reach the repository once.
type WorkGroupStore struct {
	repo   WorkGroupRepository
	groups keyedStore[workgroup.Key, workgroup.WorkGroup]
}

func NewWorkGroupStore(repo WorkGroupRepository) *WorkGroupStore {
	return &WorkGroupStore{repo: repo}
}

// Prime seeds the store with groups that are known to exist.
func (s *WorkGroupStore) Prime(groups []workgroup.WorkGroup) {
	for i := range groups {
		wg := groups[i]
		s.groups.put(wg.Key(), &wg)
	}
}

func (s *WorkGroupStore) Len() int {
	return s.groups.len()
}

// GetOrCreate returns the group for key, creating it with name when absent.
// An empty external id or name means the row has no such group: the result is nil.
func (s *WorkGroupStore) GetOrCreate(ctx context.Context, key workgroup.Key, name string) (*workgroup.WorkGroup, error) {
	if key.ExternalID == "" || name == "" {
		return nil, nil
	}
	if !key.Type.Valid() {
		return nil, gerrors.Errorf("unknown work group type %q", key.Type)
	}

	wg, hit, err := s.groups.getOrCreate(ctx, key, func(ctx context.Context) (*workgroup.WorkGroup, error) {
		existing, err := s.repo.FindByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			recordCacheRequest("miss")
			return existing, nil
		}
		draft, err := workgroup.New(key, name)
		if err != nil {
			return nil, err
		}
		recordCacheRequest("create")
		return s.repo.Insert(ctx, draft)
	})
	if err != nil {
		return nil, gerrors.Wrapf(err, "ensure work group %s", key)
	}
	if hit {
		recordCacheRequest("hit")
	}
	return wg, nil
}

// Lookup resolves an existing group without creating it. Misses are
// remembered for the run.
func (s *WorkGroupStore) Lookup(ctx context.Context, key workgroup.Key) (*workgroup.WorkGroup, error) {
	if key.ExternalID == "" {
		return nil, nil
	}
	wg, hit, err := s.groups.find(ctx, key, func(ctx context.Context) (*workgroup.WorkGroup, error) {
		recordCacheRequest("miss")
		return s.repo.FindByKey(ctx, key)
	})
	if err != nil {
		return nil, gerrors.Wrapf(err, "lookup work group %s", key)
	}
	if hit {
		recordCacheRequest("hit")
	}
	return wg, nil
}
