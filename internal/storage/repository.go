package storage

import (
	"errors"

	"github.com/necpgame/combat-resolution-go/internal/game"
)

var ErrCharacterNotFound = errors.New("character not found")

// Repository is the character/inventory provider and treatment settlement
// collaborator. The engine core reads base stats, implant lists and the
// currency balance through it and writes back humanity and treatment
// bookkeeping; it never sees the database directly.
type Repository interface {
	// GetCharacter loads one character with installed implants, stats
	// joined in from the catalog config.
	GetCharacter(characterID string) (*game.Character, error)
	// CreateCharacter inserts a new character record.
	CreateCharacter(ch *game.Character) error
	// SaveCharacter persists the full record including balance, humanity
	// columns and treatment timestamps.
	SaveCharacter(ch *game.Character) error
	// UpdateHumanity persists only the humanity columns.
	UpdateHumanity(characterID string, state game.HumanityState) error
	// AddImplant records an installed implant.
	AddImplant(characterID, implantID string) error
	// RemoveImplant deletes an installed implant record.
	RemoveImplant(characterID, implantID string) error
}
