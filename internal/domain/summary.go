package domain

// Stage names the per-item pipeline step reached by an item.
type Stage string

const (
	StageParsed          Stage = "parsed"
	StageAssetsExtracted Stage = "assets_extracted"
	StageAssetsRehosted  Stage = "assets_rehosted"
	StageConverted       Stage = "converted"
	StageSlugAssigned    Stage = "slug_assigned"
	StagePersisted       Stage = "persisted"
)

// AssetResult is the outcome of rehosting one distinct reference.
type AssetResult struct {
	Ref    AssetReference
	Stored *StoredAsset
	Err    error
}

// OK reports whether the asset was rehosted.
func (r AssetResult) OK() bool { return r.Err == nil && r.Stored != nil }

// ItemResult is the outcome of importing one feed item.
type ItemResult struct {
	Index  int
	Title  string
	Slug   string
	Stage  Stage
	Status Status
	Err    error
	Assets []AssetResult
}

// ImportSummary aggregates per-item results of an import run.
type ImportSummary struct {
	Succeeded int
	Failed    int
	Items     []ItemResult
}

// Add records an item result and updates the counters.
func (s *ImportSummary) Add(res ItemResult) {
	if res.Status == StatusPublished {
		s.Succeeded++
	} else {
		s.Failed++
	}
	s.Items = append(s.Items, res)
}

// Errors returns the failure reasons of failed items, in feed order.
func (s ImportSummary) Errors() []error {
	var errs []error
	for _, it := range s.Items {
		if it.Err != nil {
			errs = append(errs, it.Err)
		}
	}
	return errs
}
