package storage

import (
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/necpgame/combat-resolution-go/internal/config"
	"github.com/necpgame/combat-resolution-go/internal/game"
)

type sqliteRepository struct {
	db *gorm.DB
	// implantsByID maps catalog implant id -> definition (stats live in
	// config only and are joined onto loaded records).
	implantsByID map[string]config.ImplantDefinition
	// loads collapses concurrent GetCharacter calls for the same id.
	loads singleflight.Group
}

func NewSQLiteRepository(db *gorm.DB, implants map[string]config.ImplantDefinition) Repository {
	return &sqliteRepository{db: db, implantsByID: implants}
}

func (r *sqliteRepository) GetCharacter(characterID string) (*game.Character, error) {
	v, err, _ := r.loads.Do(characterID, func() (interface{}, error) {
		var ch game.Character
		err := r.db.Preload("Implants").Where("character_id = ?", characterID).First(&ch).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, characterID)
		}
		if err != nil {
			return nil, err
		}
		// join implant stats from config (config is source of truth)
		for i := range ch.Implants {
			imp := &ch.Implants[i]
			if def, ok := r.implantsByID[imp.ImplantID]; ok {
				imp.Name = def.Name
				imp.HumanityCost = def.HumanityCost
				imp.EnergyLimit = def.EnergyLimit
				imp.CanExceed = def.CanExceed
				imp.PenaltyOnExceed = def.PenaltyOnExceed
			}
		}
		return &ch, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*game.Character), nil
}

func (r *sqliteRepository) CreateCharacter(ch *game.Character) error {
	return r.db.Create(ch).Error
}

func (r *sqliteRepository) SaveCharacter(ch *game.Character) error {
	return r.db.Session(&gorm.Session{FullSaveAssociations: true}).Save(ch).Error
}

func (r *sqliteRepository) UpdateHumanity(characterID string, state game.HumanityState) error {
	res := r.db.Model(&game.Character{}).Where("character_id = ?", characterID).Updates(map[string]interface{}{
		"humanity_current": state.Current,
		"humanity_max":     state.Max,
		"humanity_ceiling": state.Ceiling,
		"ceiling_locked":   state.CeilingLocked,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrCharacterNotFound, characterID)
	}
	return nil
}

func (r *sqliteRepository) AddImplant(characterID, implantID string) error {
	ch, err := r.GetCharacter(characterID)
	if err != nil {
		return err
	}
	return r.db.Create(&game.InstalledImplant{
		CharacterRef: ch.ID,
		ImplantID:    implantID,
	}).Error
}

func (r *sqliteRepository) RemoveImplant(characterID, implantID string) error {
	ch, err := r.GetCharacter(characterID)
	if err != nil {
		return err
	}
	res := r.db.Where("character_ref = ? AND implant_id = ?", ch.ID, implantID).
		Delete(&game.InstalledImplant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("implant %s is not installed on %s", implantID, characterID)
	}
	return nil
}
