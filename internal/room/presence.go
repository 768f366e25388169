package room

import (
	"encoding/json"
	"sort"

	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/mmuslimabdulj/goat-poker/internal/realtime"
	"github.com/rs/zerolog/log"
)

// FlattenPresence turns a presence snapshot into a roster. Keys are visited
// in sorted order and every record under a key becomes its own entry, in the
// order the transport listed them. Records that do not decode as a
// Participant are skipped; a record without an id takes its presence key.
func FlattenPresence(state realtime.PresenceState) []domain.Participant {
	keys := make([]string, 0, len(state))
	for key := range state {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	roster := make([]domain.Participant, 0, len(keys))
	for _, key := range keys {
		for _, record := range state[key] {
			var p domain.Participant
			if err := json.Unmarshal(record, &p); err != nil {
				log.Debug().Err(err).Str("presence_key", key).Msg("skipping undecodable presence record")
				continue
			}
			if p.ID == "" {
				p.ID = key
			}
			roster = append(roster, p)
		}
	}
	return roster
}
