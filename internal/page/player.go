package page

import (
	"context"

	"arnime/internal/model"
)

// DefaultQuality labels a direct stream URL
const DefaultQuality = "Default"

// Player is the playback choice for an episode page
type Player struct {
	Qualities []string
	Selected  string
	Mirrors   []model.Mirror
	// Src is set when no token exchange is needed
	Src string
	// AutoContent is the mirror token resolved on page load
	AutoContent string
}

// Direct reports whether the episode plays without an exchange
func (p Player) Direct() bool {
	return p.Src != ""
}

// SelectPlayer picks what the watch page plays. A stream URL wins and is
// offered as the single Default quality. Otherwise the requested quality
// is used when it has mirrors, else the first quality with mirrors.
func SelectPlayer(ep *model.EpisodeDetail, quality string) Player {
	if ep.StreamURL != "" {
		return Player{
			Qualities: []string{DefaultQuality},
			Selected:  DefaultQuality,
			Src:       ep.StreamURL,
		}
	}

	p := Player{Qualities: ep.Mirrors.Labels()}

	if items, ok := ep.Mirrors.Find(quality); ok && len(items) > 0 {
		p.Selected = quality
		p.Mirrors = items
	} else {
		for _, group := range ep.Mirrors {
			if len(group.Items) > 0 {
				p.Selected = group.Label
				p.Mirrors = group.Items
				break
			}
		}
	}

	if len(p.Mirrors) > 0 {
		p.AutoContent = p.Mirrors[0].Content
	}
	return p
}

// Resolver turns a mirror token into a playable URL
type Resolver interface {
	ResolveMirror(ctx context.Context, content string) (string, error)
}

// PlayerController is the player's own loading state, nested under a
// ready episode page
type PlayerController = Controller[string]

// NewPlayerController creates a controller resolving mirror tokens
func NewPlayerController(r Resolver) *PlayerController {
	return NewController(func(ctx context.Context, content string) (string, error) {
		return r.ResolveMirror(ctx, content)
	})
}

// Start resolves p on page load. Direct players are ready immediately.
func Start(ctx context.Context, p Player, c *PlayerController) State[string] {
	if p.Src != "" {
		return State[string]{Status: Ready, Key: DefaultQuality, Data: p.Src}
	}
	if p.AutoContent == "" {
		return State[string]{Status: Idle}
	}
	return c.Load(ctx, p.AutoContent)
}
