package provisioning

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bherbruck/scriptcache/internal/config"
	"github.com/bherbruck/scriptcache/internal/script"
	"github.com/bherbruck/scriptcache/internal/storage"
)

// Registrar accepts script bodies keyed by name
type Registrar interface {
	Register(scripts map[string]string)
}

// Provision applies a manifest: every enabled script is registered with the engine in a
// single batch and, when db is non-nil, synced into the scripts table.
// This function is idempotent and can be run on every startup.
func Provision(engine Registrar, db *storage.DB, cfg *config.Config) error {
	slog.Info("Starting script provisioning",
		"directories", len(cfg.Directories),
		"scripts", len(cfg.Scripts))

	bodies := make(map[string]string)

	for _, dir := range cfg.Directories {
		found, err := script.ReadDir(cfg.ResolvePath(dir))
		if err != nil {
			return fmt.Errorf("failed to read script directory '%s': %w", dir, err)
		}
		for name, body := range found {
			bodies[name] = body
		}
		slog.Debug("Read script directory", "dir", dir, "count", len(found))
	}

	provisioned := make(map[string]bool)
	for _, scriptCfg := range cfg.Scripts {
		body, err := scriptBody(cfg, scriptCfg)
		if err != nil {
			return fmt.Errorf("failed to provision script '%s': %w", scriptCfg.Name, err)
		}

		if db != nil {
			if err := upsertScript(db, scriptCfg, body); err != nil {
				return fmt.Errorf("failed to provision script '%s': %w", scriptCfg.Name, err)
			}
			provisioned[scriptCfg.Name] = true
		}

		if !scriptCfg.IsEnabled() {
			slog.Debug("Skipping disabled script", "name", scriptCfg.Name)
			continue
		}
		bodies[scriptCfg.Name] = body
	}

	if db != nil {
		// Scripts removed from the manifest should not come back on the next start
		deleted, err := db.CleanupOrphanedScripts(provisioned)
		if err != nil {
			slog.Warn("Failed to cleanup orphaned scripts", "error", err)
		} else if deleted > 0 {
			slog.Info("Removed orphaned provisioned scripts", "count", deleted)
		}
	}

	if len(bodies) > 0 {
		engine.Register(bodies)
	}

	slog.Info("Script provisioning completed", "registered", len(bodies))
	return nil
}

func scriptBody(cfg *config.Config, scriptCfg config.ScriptConfig) (string, error) {
	if scriptCfg.File == "" {
		return scriptCfg.Content, nil
	}
	return script.ReadFile(cfg.ResolvePath(scriptCfg.File))
}

func upsertScript(db *storage.DB, scriptCfg config.ScriptConfig, body string) error {
	var metadataJSON []byte
	if scriptCfg.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(scriptCfg.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	s, err := db.UpsertScript(scriptCfg.Name, scriptCfg.Description, body, scriptCfg.IsEnabled(), true, metadataJSON)
	if err != nil {
		return err
	}
	slog.Debug("Provisioned script", "name", s.Name, "id", s.ID)
	return nil
}
