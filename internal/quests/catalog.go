package quests

import "time"

// DefaultCatalog returns the seed quest catalog used when the server database
// holds no quests yet. Timestamps come from the provided clock so tests stay
// deterministic.
func DefaultCatalog(now time.Time) []Quest {
	seededAt := now.UTC().Unix()
	entries := []struct {
		id          string
		questType   QuestType
		title       string
		description string
		difficulty  Difficulty
		radiusKm    float64
	}{
		{
			id:          "quest-soil-erosion-survey",
			questType:   QuestTypeSoilErosion,
			title:       "Document soil erosion",
			description: "Photograph visible gully or sheet erosion on exposed ground.",
			difficulty:  DifficultyEasy,
			radiusKm:    5,
		},
		{
			id:          "quest-crop-health-check",
			questType:   QuestTypeCropHealth,
			title:       "Crop health check",
			description: "Capture a close-up of crop foliage to assess stress or disease.",
			difficulty:  DifficultyMedium,
			radiusKm:    10,
		},
		{
			id:          "quest-water-source-monitor",
			questType:   QuestTypeWaterMonitoring,
			title:       "Monitor a water source",
			description: "Photograph a stream, pond or dam to record its current level.",
			difficulty:  DifficultyMedium,
			radiusKm:    15,
		},
		{
			id:          "quest-vegetation-transect",
			questType:   QuestTypeVegetationHealth,
			title:       "Vegetation transect",
			description: "Walk a short transect and document ground cover density.",
			difficulty:  DifficultyHard,
			radiusKm:    10,
		},
		{
			id:          "quest-degraded-land-report",
			questType:   QuestTypeDegradedLand,
			title:       "Report degraded land",
			description: "Locate and photograph a patch of degraded or barren land.",
			difficulty:  DifficultyHard,
			radiusKm:    25,
		},
	}

	catalog := make([]Quest, 0, len(entries))
	for _, entry := range entries {
		catalog = append(catalog, Quest{
			ID:               entry.id,
			Type:             entry.questType,
			Title:            entry.title,
			Description:      entry.description,
			Difficulty:       entry.difficulty,
			RadiusKm:         entry.radiusKm,
			CreatedAtSeconds: seededAt,
			UpdatedAtSeconds: seededAt,
		})
	}
	return catalog
}
