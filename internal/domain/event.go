package domain

import "time"

// Interaction types recorded in the append-only event log.
const (
	InteractionCommand           = "Command"
	InteractionClickedButton     = "Clicked Button"
	InteractionChallengeResponse = "Challenge Response"
)

// Event is one immutable interaction-log row: a snapshot of who did what,
// never updated after the append.
type Event struct {
	UserID      int64     `bson:"user_id" json:"user_id"`
	Name        string    `bson:"name" json:"name"`
	Username    string    `bson:"username" json:"username"`
	Type        string    `bson:"interaction_type" json:"interaction_type"`
	Data        string    `bson:"interaction_data" json:"interaction_data"`
	MessageText string    `bson:"message_text" json:"message_text"`
	BotResponse string    `bson:"bot_response" json:"bot_response"`
	At          time.Time `bson:"timestamp" json:"timestamp"`
}
