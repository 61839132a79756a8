// Package catalog holds the read-only boardgame and videogame lists the
// storefront is built from.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"kaptam/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Catalog struct {
	boardgames []models.Game
	videogames []models.Game
	boardByID  map[int64]models.Game
	videoByID  map[int64]models.Game
}

// New indexes both lists. Ids must be positive and unique within a list.
func New(boardgames, videogames []models.Game) (*Catalog, error) {
	c := &Catalog{
		boardgames: sortedCopy(boardgames),
		videogames: sortedCopy(videogames),
	}

	var err error
	if c.boardByID, err = index(c.boardgames); err != nil {
		return nil, fmt.Errorf("boardgames: %w", err)
	}
	if c.videoByID, err = index(c.videogames); err != nil {
		return nil, fmt.Errorf("videogames: %w", err)
	}
	return c, nil
}

func sortedCopy(games []models.Game) []models.Game {
	out := append([]models.Game(nil), games...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func index(games []models.Game) (map[int64]models.Game, error) {
	byID := make(map[int64]models.Game, len(games))
	for _, g := range games {
		if g.ID <= 0 {
			return nil, fmt.Errorf("game %q has invalid id %d", g.Name, g.ID)
		}
		if _, dup := byID[g.ID]; dup {
			return nil, fmt.Errorf("duplicate game id %d", g.ID)
		}
		byID[g.ID] = g
	}
	return byID, nil
}

// Parse decodes a game list. JSON is valid YAML, so both formats are accepted.
func Parse(data []byte) ([]models.Game, error) {
	var games []models.Game
	if err := yaml.Unmarshal(data, &games); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return games, nil
}

// Load reads both lists from disk. A missing file yields an empty list.
func Load(boardgamesPath, videogamesPath string, logger *zerolog.Logger) (*Catalog, error) {
	boardgames, err := loadFile(boardgamesPath, logger)
	if err != nil {
		return nil, err
	}
	videogames, err := loadFile(videogamesPath, logger)
	if err != nil {
		return nil, err
	}

	c, err := New(boardgames, videogames)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Int("boardgames", len(c.boardgames)).
		Int("videogames", len(c.videogames)).
		Msg("catalog loaded")
	return c, nil
}

func loadFile(path string, logger *zerolog.Logger) ([]models.Game, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Str("path", path).Msg("catalog file not found, using empty list")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	games, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return games, nil
}

func (c *Catalog) Boardgame(id int64) (models.Game, bool) {
	g, ok := c.boardByID[id]
	return g, ok
}

func (c *Catalog) Videogame(id int64) (models.Game, bool) {
	g, ok := c.videoByID[id]
	return g, ok
}

// Lookup finds a game by cart item type.
func (c *Catalog) Lookup(itemType string, id int64) (models.Game, bool) {
	switch itemType {
	case models.TypeBoardgame:
		return c.Boardgame(id)
	case models.TypeVideogame:
		return c.Videogame(id)
	}
	return models.Game{}, false
}

// Copies returns how many physical copies of a boardgame exist.
// Unknown games count as a single copy.
func (c *Catalog) Copies(id int64) int {
	if g, ok := c.boardByID[id]; ok {
		return g.AvailableCopies()
	}
	return 1
}

func (c *Catalog) Boardgames() []models.Game {
	return append([]models.Game(nil), c.boardgames...)
}

func (c *Catalog) Videogames() []models.Game {
	return append([]models.Game(nil), c.videogames...)
}
