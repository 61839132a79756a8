package models

// Game is a catalog entry from the static boardgame/videogame lists.
type Game struct {
	ID             int64    `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	NameFin        string   `json:"name_fin,omitempty" yaml:"name_fin"`
	Image          string   `json:"image,omitempty" yaml:"image"`
	Copies         int      `json:"copies,omitempty" yaml:"copies"`
	Players        string   `json:"players,omitempty" yaml:"players"`
	Playtime       string   `json:"playtime,omitempty" yaml:"playtime"`
	Platform       string   `json:"platform,omitempty" yaml:"platform"`
	Installed      bool     `json:"installed,omitempty" yaml:"installed"`
	Tutorial       string   `json:"tutorial,omitempty" yaml:"tutorial"`
	TutorialLength string   `json:"tutorial_length,omitempty" yaml:"tutorial_length"`
	Tags           []string `json:"tags,omitempty" yaml:"tags"`
	URL            string   `json:"url,omitempty" yaml:"url"`
}

// AvailableCopies returns the number of physical copies, defaulting to one.
func (g Game) AvailableCopies() int {
	if g.Copies <= 0 {
		return 1
	}
	return g.Copies
}
