package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
)

// TestGetEngineModelsMarksDownloadedAndSelected checks catalog annotation.
func TestGetEngineModelsMarksDownloadedAndSelected(t *testing.T) {
	app, _ := newTestApp(t)
	modelDir := app.orchestrator().Settings().ModelDir
	if err := os.WriteFile(filepath.Join(modelDir, "large-v3-turbo.pt"), []byte("weights"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	if err := os.WriteFile(filepath.Join(modelDir, "base.pt"), nil, 0o644); err != nil {
		t.Fatalf("write empty model: %v", err)
	}

	models := app.GetEngineModels()
	byID := make(map[string]bool)
	for _, model := range models {
		byID[model.ID] = model.Downloaded
		if model.Selected != (model.ID == "tiny") {
			t.Fatalf("%s selected = %v", model.ID, model.Selected)
		}
	}
	if !byID["turbo"] {
		t.Fatalf("turbo should be downloaded")
	}
	if byID["base"] {
		t.Fatalf("empty weights file must not count as downloaded")
	}
	if byID["tiny"] {
		t.Fatalf("tiny has no weights")
	}
}

// TestSelectEngineModelPersistsChoice checks switching models.
func TestSelectEngineModelPersistsChoice(t *testing.T) {
	app, _ := newTestApp(t)

	models, err := app.SelectEngineModel(" small ")
	if err != nil {
		t.Fatalf("SelectEngineModel() error = %v", err)
	}
	for _, model := range models {
		if model.Selected != (model.ID == "small") {
			t.Fatalf("%s selected = %v", model.ID, model.Selected)
		}
	}
	if got := app.GetSettings().Engine.Model; got != "small" {
		t.Fatalf("config model = %q", got)
	}
}

// TestSelectEngineModelRejectsUnknown checks input validation.
func TestSelectEngineModelRejectsUnknown(t *testing.T) {
	app, _ := newTestApp(t)
	for _, id := range []string{"", "huge"} {
		if _, err := app.SelectEngineModel(id); err == nil {
			t.Fatalf("SelectEngineModel(%q) should fail", id)
		}
	}
}
