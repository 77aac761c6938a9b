package model

// Ingredient is a single line of a recipe's shopping list
type Ingredient struct {
	Name     string  `json:"name" bson:"name" yaml:"name"`
	Quantity float64 `json:"quantity,omitempty" bson:"quantity,omitempty" yaml:"quantity"`
	Unit     string  `json:"unit,omitempty" bson:"unit,omitempty" yaml:"unit"`
}

// Recipe is the full displayable representation stored in the catalog
type Recipe struct {
	ID           int64        `json:"id" bson:"_id" yaml:"id"`
	Name         string       `json:"name" bson:"name" yaml:"name"`
	Description  string       `json:"description,omitempty" bson:"description,omitempty" yaml:"description"`
	ImageURL     string       `json:"image_url,omitempty" bson:"imageUrl,omitempty" yaml:"image_url"`
	PrepMinutes  int          `json:"prep_minutes,omitempty" bson:"prepMinutes,omitempty" yaml:"prep_minutes"`
	Servings     int          `json:"servings,omitempty" bson:"servings,omitempty" yaml:"servings"`
	Tags         []string     `json:"tags" bson:"tags" yaml:"tags"`
	Ingredients  []Ingredient `json:"ingredients" bson:"ingredients" yaml:"ingredients"`
	Instructions []string     `json:"instructions" bson:"instructions" yaml:"instructions"`
}

// QueueEntry is a recipe waiting in a session's queue together with the
// users who have already been shown it
type QueueEntry struct {
	RecipeID int64   `json:"recipe_id"`
	SeenBy   []int64 `json:"seen_by"`
}

// HasSeen reports whether userID is in the entry's seen set
func (e QueueEntry) HasSeen(userID int64) bool {
	for _, id := range e.SeenBy {
		if id == userID {
			return true
		}
	}
	return false
}

// SeenByAll reports whether every member is in the seen set. An empty
// member list is never considered fully seen.
func (e QueueEntry) SeenByAll(members []int64) bool {
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if !e.HasSeen(m) {
			return false
		}
	}
	return true
}
