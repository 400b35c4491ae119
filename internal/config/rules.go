// internal/config/rules.go
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/jason-s-yu/partycards/internal/game"
)

// rulesFile is the on-disk shape of a house rules file. Keys left out keep
// the value from flags.
//
//	hand_size = 7
//	max_players = 6
type rulesFile struct {
	HandSize   *int `toml:"hand_size"`
	MaxPlayers *int `toml:"max_players"`
}

// LoadRules overlays the TOML file at path onto base. An empty path returns base.
func LoadRules(path string, base game.HouseRules) (game.HouseRules, error) {
	if path == "" {
		return base, nil
	}
	var f rulesFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return base, fmt.Errorf("read house rules %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return base, fmt.Errorf("read house rules %s: unknown keys %v", path, undecoded)
	}
	if f.HandSize != nil {
		base.HandSize = *f.HandSize
	}
	if f.MaxPlayers != nil {
		base.MaxPlayers = *f.MaxPlayers
	}
	return base, nil
}
