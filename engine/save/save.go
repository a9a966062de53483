// Package save implements JSON serialization of player state and the
// fire-and-forget save trigger the engine calls when a conversation ends.
package save

import (
	"encoding/json"
	"time"

	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/types"
)

// SaveData is the JSON-serializable save format.
type SaveData struct {
	Version string               `json:"version"`
	Game    string               `json:"game"`
	SavedAt time.Time            `json:"saved_at"`
	Player  types.PlayerSnapshot `json:"player"`
}

// Save serializes a player snapshot to JSON bytes.
func Save(snap types.PlayerSnapshot, game types.GameDef, now time.Time) ([]byte, error) {
	data := SaveData{
		Version: game.Version,
		Game:    game.Title,
		SavedAt: now.UTC(),
		Player:  snap,
	}
	return json.MarshalIndent(data, "", "  ")
}

// Load deserializes JSON bytes into SaveData.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, err
	}
	// Ensure maps are never nil after load.
	if sd.Player.Flags == nil {
		sd.Player.Flags = map[string]bool{}
	}
	if sd.Player.Relationships == nil {
		sd.Player.Relationships = map[string]int{}
	}
	if sd.Player.Counters == nil {
		sd.Player.Counters = map[string]int{}
	}
	if sd.Player.Inventory == nil {
		sd.Player.Inventory = []string{}
	}
	return &sd, nil
}

// ApplySave replaces the player's state with the loaded save.
func ApplySave(p *state.Player, sd *SaveData) {
	p.Restore(sd.Player)
}
