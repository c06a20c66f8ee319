package api

import (
	"go.uber.org/zap"

	"wiki-companion/favorites"
	"wiki-companion/session"
	"wiki-companion/theme"
)

// Bridge forwards favorites and theme changes to every attached tab except
// the one that caused them.
func Bridge(sessions *session.Manager, favs *favorites.Manager, th *theme.Manager, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	favs.OnChange(func(c favorites.Change) {
		key := ""
		if c.Record != nil {
			key = c.Record.ID
		}
		n := sessions.Broadcast("favorites", key, c, c.Origin)
		log.Debug("favorites change broadcast", zap.String("kind", string(c.Kind)), zap.Int("tabs", n))
	})
	th.OnChange(func(c theme.Change) {
		n := sessions.Broadcast("theme", theme.Key, c, c.Origin)
		log.Debug("theme change broadcast", zap.String("theme", string(c.To)), zap.Int("tabs", n))
	})
}
