package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mealswipe/internal/model"
	"mealswipe/internal/repository"
)

//go:embed fixture.yaml
var defaultFixture []byte

// Fixture is the seed data loaded into the store and the recipe catalog
type Fixture struct {
	Users   []*model.User   `yaml:"users"`
	Groups  []FixtureGroup  `yaml:"groups"`
	Recipes []*model.Recipe `yaml:"recipes"`
}

// FixtureGroup is a group together with its memberships
type FixtureGroup struct {
	model.Group `yaml:",inline"`
	Members     []model.Membership `yaml:"members"`
}

// SeedResult counts what was written
type SeedResult struct {
	Users       int
	Groups      int
	Memberships int
	Recipes     int
}

// loadFixture reads a fixture from path, or the embedded default when path
// is empty
func loadFixture(path string) (*Fixture, error) {
	data := defaultFixture
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read fixture: %w", err)
		}
		data = b
	}
	return parseFixture(data)
}

func parseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	users := make(map[int64]bool, len(f.Users))
	for _, u := range f.Users {
		if u.ID <= 0 || u.Username == "" {
			return nil, fmt.Errorf("user %q needs a positive id and a username", u.Username)
		}
		users[u.ID] = true
	}
	for _, g := range f.Groups {
		if g.ID <= 0 {
			return nil, fmt.Errorf("group %q needs a positive id", g.Name)
		}
		for _, m := range g.Members {
			if !users[m.UserID] {
				return nil, fmt.Errorf("group %d lists unknown user %d", g.ID, m.UserID)
			}
		}
	}
	for _, r := range f.Recipes {
		if r.ID <= 0 || r.Name == "" {
			return nil, fmt.Errorf("recipe %q needs a positive id and a name", r.Name)
		}
	}
	return &f, nil
}

// apply writes the fixture. Rows that already exist are left alone, so a
// fixture can be applied repeatedly. Recipes are upserted.
func (f *Fixture) apply(ctx context.Context, store *repository.Store, recipes repository.RecipeRepo) (*SeedResult, error) {
	var res SeedResult

	err := store.WithTx(ctx, func(r *repository.Repos) error {
		for _, u := range f.Users {
			existing, err := r.Users.GetByID(ctx, u.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			if err := r.Users.Create(ctx, u); err != nil {
				return fmt.Errorf("failed to create user %d: %w", u.ID, err)
			}
			res.Users++
		}

		for _, g := range f.Groups {
			existing, err := r.Groups.GetByID(ctx, g.ID)
			if err != nil {
				return err
			}
			if existing == nil {
				group := g.Group
				if err := r.Groups.Create(ctx, &group); err != nil {
					return fmt.Errorf("failed to create group %d: %w", g.ID, err)
				}
				res.Groups++
			}
			for _, m := range g.Members {
				m.GroupID = g.ID
				if err := r.Groups.AddMember(ctx, &m); err != nil {
					return fmt.Errorf("failed to add user %d to group %d: %w", m.UserID, g.ID, err)
				}
				res.Memberships++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, recipe := range f.Recipes {
		if err := recipes.Upsert(ctx, recipe); err != nil {
			return nil, fmt.Errorf("failed to upsert recipe %d: %w", recipe.ID, err)
		}
		res.Recipes++
	}
	return &res, nil
}
