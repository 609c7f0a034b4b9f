package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"appshell/internal/domain"
)

// GetEngineModels returns the engine model catalog, marking models whose
// weights are already in the model directory and the configured one.
func (a *App) GetEngineModels() []domain.EngineModelOption {
	settings := a.orchestrator().Settings()
	return catalogFor(settings.ModelDir, settings.Model)
}

// SelectEngineModel makes modelID the model for later jobs. The engine
// downloads missing weights on first use.
func (a *App) SelectEngineModel(modelID string) ([]domain.EngineModelOption, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return nil, fmt.Errorf("model id is required")
	}
	if _, found := domain.LookupEngineModel(id); !found {
		return nil, fmt.Errorf("unknown model id: %s", id)
	}

	cfg := a.GetSettings()
	cfg.Engine.Model = id
	if _, err := a.SaveSettings(cfg); err != nil {
		return nil, err
	}
	return a.GetEngineModels(), nil
}

func catalogFor(modelDir, selected string) []domain.EngineModelOption {
	models := make([]domain.EngineModelOption, 0, len(domain.EngineModels))
	for _, model := range domain.EngineModels {
		models = append(models, domain.EngineModelOption{
			EngineModel: model,
			Downloaded:  modelDownloaded(modelDir, model.FileName),
			Selected:    model.ID == selected,
		})
	}
	return models
}

func modelDownloaded(modelDir, fileName string) bool {
	if strings.TrimSpace(modelDir) == "" || fileName == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(modelDir, fileName))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
