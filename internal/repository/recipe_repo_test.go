package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"mealswipe/internal/model"
)

func TestRecipeRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "mealswipe.recipes"

	mt.Run("get by id", func(mt *mtest.T) {
		repo := NewRecipeRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: int64(2)},
			{Key: "name", Value: "Pad Thai"},
			{Key: "tags", Value: bson.A{"noodles", "thai"}},
			{Key: "ingredients", Value: bson.A{
				bson.D{{Key: "name", Value: "rice noodles"}, {Key: "quantity", Value: 200.0}, {Key: "unit", Value: "g"}},
			}},
		}))

		recipe, err := repo.GetByID(context.Background(), 2)
		require.NoError(mt, err)
		require.NotNil(mt, recipe)
		assert.Equal(mt, int64(2), recipe.ID)
		assert.Equal(mt, "Pad Thai", recipe.Name)
		assert.Equal(mt, []string{"noodles", "thai"}, recipe.Tags)
		require.Len(mt, recipe.Ingredients, 1)
		assert.Equal(mt, model.Ingredient{Name: "rice noodles", Quantity: 200, Unit: "g"}, recipe.Ingredients[0])
	})

	mt.Run("missing recipe", func(mt *mtest.T) {
		repo := NewRecipeRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		recipe, err := repo.GetByID(context.Background(), 99)
		require.NoError(mt, err)
		assert.Nil(mt, recipe)
	})

	mt.Run("list ids", func(mt *mtest.T) {
		repo := NewRecipeRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: int64(1)}},
			bson.D{{Key: "_id", Value: int64(2)}},
			bson.D{{Key: "_id", Value: int64(5)}},
		))

		ids, err := repo.ListIDs(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, []int64{1, 2, 5}, ids)
	})

	mt.Run("upsert", func(mt *mtest.T) {
		repo := NewRecipeRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: int64(3)}}}},
		))

		err := repo.Upsert(context.Background(), &model.Recipe{ID: 3, Name: "Shakshuka"})
		assert.NoError(mt, err)
	})
}
