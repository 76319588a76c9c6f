package domain

import "time"

// ValueUnknown is the default for optional profile and interaction fields
// that no collection flow has populated yet.
const ValueUnknown = "N/A"

// UserRecord is the per-user row kept by upsert-style stores: one logical
// record per Telegram user, profile fields overwritten on every interaction.
type UserRecord struct {
	UserID            int64     `bson:"user_id" json:"user_id"`
	Name              string    `bson:"name" json:"name"`
	Username          string    `bson:"username" json:"username"`
	Mobile            string    `bson:"mobile" json:"mobile"`
	Email             string    `bson:"email" json:"email"`
	ChallengeResponse string    `bson:"challenge_response" json:"challenge_response"`
	ClickedButton     string    `bson:"clicked_button" json:"clicked_button"`
	Gender            string    `bson:"gender" json:"gender"`
	Location          string    `bson:"location" json:"location"`
	Language          string    `bson:"language" json:"language"`
	ReferralSource    string    `bson:"referral_source" json:"referral_source"`
	FirstInteraction  time.Time `bson:"first_interaction" json:"first_interaction"`
	LastInteraction   time.Time `bson:"last_interaction" json:"last_interaction"`
	InteractionCount  int64     `bson:"interaction_count" json:"interaction_count"`
}

// Snapshot is the profile data supplied with every inbound message. The
// latest observed values overwrite whatever is stored; no history is kept.
type Snapshot struct {
	Name     string
	Username string
}

// NormalizedName joins first and last name, falling back to ValueUnknown.
func NormalizedName(firstName, lastName string) string {
	name := firstName
	if lastName != "" {
		if name != "" {
			name += " "
		}
		name += lastName
	}
	if name == "" {
		return ValueUnknown
	}
	return name
}

// NormalizedUsername substitutes ValueUnknown for an empty handle.
func NormalizedUsername(username string) string {
	if username == "" {
		return ValueUnknown
	}
	return username
}
