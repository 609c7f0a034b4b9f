package domain

// EngineModel describes one model size accepted by the speech engine.
type EngineModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FileName    string `json:"fileName"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
}

// EngineModelOption is a catalog entry annotated with local state.
type EngineModelOption struct {
	EngineModel
	Downloaded bool `json:"downloaded"`
	Selected   bool `json:"selected"`
}

// EngineModels lists the model sizes the engine can download on first use.
var EngineModels = []EngineModel{
	{ID: "tiny", Name: "Tiny", FileName: "tiny.pt", SizeLabel: "~75 MB", Description: "Fastest multilingual model."},
	{ID: "tiny.en", Name: "Tiny (English)", FileName: "tiny.en.pt", SizeLabel: "~75 MB", Description: "Fastest, English-only model."},
	{ID: "base", Name: "Base", FileName: "base.pt", SizeLabel: "~142 MB", Description: "Balanced speed/quality, multilingual."},
	{ID: "base.en", Name: "Base (English)", FileName: "base.en.pt", SizeLabel: "~142 MB", Description: "Balanced speed/quality, English-only."},
	{ID: "small", Name: "Small", FileName: "small.pt", SizeLabel: "~466 MB", Description: "Higher quality multilingual model."},
	{ID: "small.en", Name: "Small (English)", FileName: "small.en.pt", SizeLabel: "~466 MB", Description: "Higher quality, English-only."},
	{ID: "medium", Name: "Medium", FileName: "medium.pt", SizeLabel: "~1.5 GB", Description: "High quality multilingual model."},
	{ID: "medium.en", Name: "Medium (English)", FileName: "medium.en.pt", SizeLabel: "~1.5 GB", Description: "High quality, English-only."},
	{ID: "large-v2", Name: "Large v2", FileName: "large-v2.pt", SizeLabel: "~2.9 GB", Description: "Very high quality multilingual model."},
	{ID: "large-v3", Name: "Large v3", FileName: "large-v3.pt", SizeLabel: "~2.9 GB", Description: "Latest large multilingual model."},
	{ID: "turbo", Name: "Turbo", FileName: "large-v3-turbo.pt", SizeLabel: "~1.6 GB", Description: "Faster large-v3 variant."},
}

// LookupEngineModel finds a model by ID.
func LookupEngineModel(id string) (EngineModel, bool) {
	for _, model := range EngineModels {
		if model.ID == id {
			return model, true
		}
	}
	return EngineModel{}, false
}
