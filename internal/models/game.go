package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GameCategory string

const (
	CategoryCard    GameCategory = "card"
	CategoryDice    GameCategory = "dice"
	CategoryWheel   GameCategory = "wheel"
	CategoryPopular GameCategory = "popular"
)

func (c GameCategory) Valid() bool {
	switch c {
	case CategoryCard, CategoryDice, CategoryWheel, CategoryPopular:
		return true
	}
	return false
}

// Game is a catalog entry. Inactive games are hidden from players and
// cannot be played; deletion is a soft deactivation.
type Game struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	MinStake    float64            `bson:"min_stake" json:"min_stake"`
	Category    GameCategory       `bson:"category" json:"category"`
	Icon        string             `bson:"icon,omitempty" json:"icon,omitempty"`
	ImageURL    string             `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Rules       string             `bson:"rules" json:"rules"`
	IsActive    bool               `bson:"is_active" json:"is_active"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// GameUpdate carries optional catalog fields for partial updates.
type GameUpdate struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	MinStake    *float64     `json:"min_stake,omitempty"`
	Category    GameCategory `json:"category,omitempty"`
	Icon        string       `json:"icon,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	Rules       string       `json:"rules,omitempty"`
	IsActive    *bool        `json:"is_active,omitempty"`
}
