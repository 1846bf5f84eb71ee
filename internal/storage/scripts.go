package storage

import (
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UpsertScript creates a script or replaces the stored fields of an existing one with the same name
func (db *DB) UpsertScript(name, description, content string, enabled, provisioned bool, metadata datatypes.JSON) (*Script, error) {
	if name == "" {
		return nil, fmt.Errorf("script name is required")
	}
	if content == "" {
		return nil, fmt.Errorf("script content is required")
	}

	var script Script
	err := db.Where("name = ?", name).First(&script).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		script = Script{
			Name:                  name,
			Description:           description,
			Content:               content,
			Enabled:               enabled,
			Metadata:              metadata,
			ProvisionedFromConfig: provisioned,
		}
		if err := db.Create(&script).Error; err != nil {
			return nil, fmt.Errorf("failed to create script: %w", err)
		}
		return &script, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up script: %w", err)
	}

	// A map update writes zero values (enabled=false) that a struct update would skip
	updates := map[string]any{
		"description":             description,
		"content":                 content,
		"enabled":                 enabled,
		"metadata":                metadata,
		"provisioned_from_config": provisioned,
	}
	if err := db.Model(&script).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update script: %w", err)
	}

	return db.GetScriptByName(name)
}

// GetScriptByName retrieves a script by name
func (db *DB) GetScriptByName(name string) (*Script, error) {
	var script Script
	if err := db.Where("name = ?", name).First(&script).Error; err != nil {
		return nil, err
	}
	return &script, nil
}

// ListScripts returns all scripts ordered by name
func (db *DB) ListScripts() ([]Script, error) {
	var scripts []Script
	if err := db.Order("name ASC").Find(&scripts).Error; err != nil {
		return nil, err
	}
	return scripts, nil
}

// EnabledScripts returns the bodies of all enabled scripts keyed by name
func (db *DB) EnabledScripts() (map[string]string, error) {
	var scripts []Script
	if err := db.Where("enabled = ?", true).Find(&scripts).Error; err != nil {
		return nil, fmt.Errorf("failed to list enabled scripts: %w", err)
	}

	bodies := make(map[string]string, len(scripts))
	for _, s := range scripts {
		bodies[s.Name] = s.Content
	}
	return bodies, nil
}

// CleanupOrphanedScripts deletes config-provisioned scripts whose names are no longer in keep.
// Scripts created through the API are never touched.
func (db *DB) CleanupOrphanedScripts(keep map[string]bool) (int64, error) {
	var provisioned []Script
	if err := db.Where("provisioned_from_config = ?", true).Find(&provisioned).Error; err != nil {
		return 0, fmt.Errorf("failed to list provisioned scripts: %w", err)
	}

	var orphans []uint
	for _, s := range provisioned {
		if !keep[s.Name] {
			orphans = append(orphans, s.ID)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	result := db.Delete(&Script{}, orphans)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete orphaned scripts: %w", result.Error)
	}
	return result.RowsAffected, nil
}
