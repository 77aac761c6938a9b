package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mealswipe/internal/model"
)

// RecipeRepo is the read side of the recipe catalog
type RecipeRepo interface {
	// GetByID returns nil when the recipe does not exist
	GetByID(ctx context.Context, id int64) (*model.Recipe, error)
	ListIDs(ctx context.Context) ([]int64, error)
	Upsert(ctx context.Context, recipe *model.Recipe) error
}

type recipeRepo struct {
	collection *mongo.Collection
}

func NewRecipeRepo(db *mongo.Database) RecipeRepo {
	return &recipeRepo{
		collection: db.Collection("recipes"),
	}
}

func (r *recipeRepo) GetByID(ctx context.Context, id int64) (*model.Recipe, error) {
	var recipe model.Recipe
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&recipe)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &recipe, nil
}

func (r *recipeRepo) ListIDs(ctx context.Context) ([]int64, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (r *recipeRepo) Upsert(ctx context.Context, recipe *model.Recipe) error {
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": recipe.ID}, recipe,
		options.Replace().SetUpsert(true))
	return err
}
