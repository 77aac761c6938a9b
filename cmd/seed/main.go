package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mealswipe/internal/config"
	"mealswipe/internal/repository"
	"mealswipe/internal/service"
)

type seedOptions struct {
	Fixture     string
	PrintTokens bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "mealswipe-seed",
		Short: "Load users, groups and recipes from a YAML fixture",
		Long: `Load users, groups and recipes from a YAML fixture.

Users, groups and memberships go to the SQLite store named by SQLITE_DSN.
Recipes are upserted into the MongoDB catalog named by MONGO_URI and
MONGO_DATABASE. Without --fixture the bundled fixture is used.

Example:
  mealswipe-seed --fixture ./fixture.yaml --tokens`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "path to a YAML fixture (defaults to the bundled one)")
	cmd.Flags().BoolVar(&opts.PrintTokens, "tokens", false, "print an access token for every fixture user")
	return cmd
}

func runSeed(cmd *cobra.Command, opts *seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fixture, err := loadFixture(opts.Fixture)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := repository.Open(cfg.SQLiteDSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer client.Disconnect(ctx)

	res, err := fixture.apply(ctx, store, repository.NewRecipeRepo(client.Database(cfg.MongoDatabase)))
	if err != nil {
		return err
	}
	log.Printf("Seeded %d users, %d groups, %d memberships, %d recipes",
		res.Users, res.Groups, res.Memberships, res.Recipes)

	if !opts.PrintTokens {
		return nil
	}
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.AccessTTL(), store.Repos().Users)
	out := cmd.OutOrStdout()
	for _, u := range fixture.Users {
		tok, err := authSvc.IssueToken(u)
		if err != nil {
			return fmt.Errorf("failed to issue token for %s: %w", u.Username, err)
		}
		fmt.Fprintf(out, "%s\t%s\n", u.Username, tok.Token)
	}
	return nil
}
