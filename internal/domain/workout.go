package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Workout is a workout template document (e.g. "cb" for Chest & Back).
// Plan templates and sessions refer to it by ID.
type Workout struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Order     int       `bson:"order" json:"order"`                           // Position in the workout catalog
	VideoURL  string    `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"` // Opaque, delivery is handled elsewhere
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`

	// Any other fields stored on the document. Kept so a clone copies
	// everything but identity, name and creation time.
	Extra bson.M `bson:",inline" json:"extra,omitempty"`
}
