package jobcreator

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ModuleCatalog resolves which declared modules match a filter set, split
// by whether the harness runs them under Tradefed.
type ModuleCatalog interface {
	TradefedModules(ctx context.Context, includeFilters, excludeFilters []string) ([]string, error)
	NonTradefedModules(ctx context.Context, includeFilters, excludeFilters []string) ([]string, error)
}

// SplitModules is a request's module set, partitioned by harness.
type SplitModules struct {
	Tradefed    []string
	NonTradefed []string
}

// FilterManager splits a request's modules into Tradefed and non-Tradefed
// subsets, querying the catalog concurrently.
type FilterManager struct {
	catalog ModuleCatalog
}

// NewFilterManager returns a FilterManager backed by catalog.
func NewFilterManager(catalog ModuleCatalog) *FilterManager {
	return &FilterManager{catalog: catalog}
}

// Split queries the catalog for both harness kinds in parallel. An empty
// result on both sides is reported as the skippable "no_matched_modules"
// identity.
func (f *FilterManager) Split(ctx context.Context, includeFilters, excludeFilters []string) (SplitModules, error) {
	var result SplitModules
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		mods, err := f.catalog.TradefedModules(gctx, includeFilters, excludeFilters)
		if err != nil {
			return err
		}
		result.Tradefed = mods
		return nil
	})
	g.Go(func() error {
		mods, err := f.catalog.NonTradefedModules(gctx, includeFilters, excludeFilters)
		if err != nil {
			return err
		}
		result.NonTradefed = mods
		return nil
	})

	if err := g.Wait(); err != nil {
		return SplitModules{}, err
	}

	sort.Strings(result.Tradefed)
	sort.Strings(result.NonTradefed)

	if len(result.Tradefed) == 0 && len(result.NonTradefed) == 0 {
		return SplitModules{}, &SkippableError{
			Identity: "no_matched_modules",
			Message:  "no modules matched the given filters",
		}
	}
	return result, nil
}
