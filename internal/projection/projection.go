// Package projection derives the byte-reduced character representation used
// by list/metadata views. Полные записи с встроенными изображениями весят
// мегабайты; спискам нужен только текст и один маленький thumbnail.
package projection

import "storybook-server/internal/models"

// Light strips every heavy embedded-image field from the character and keeps
// exactly one thumbnail-class image (the standard face thumbnail) when
// present. HasFullAvatars lets the list view decide whether "view full
// avatar" makes sense without speculatively fetching the full record.
func Light(c models.Character) models.LightCharacter {
	lc := models.LightCharacter{
		ID:     c.ID,
		Name:   c.Name,
		Age:    c.Age,
		Gender: c.Gender,
	}
	// Проекция не делит изменяемое состояние с полной записью
	if c.Physical != nil {
		physical := *c.Physical
		lc.Physical = &physical
	}
	if c.Avatars == nil {
		return lc
	}

	lc.HasFullAvatars = c.Avatars.Images[models.VariantStandard] != ""
	lc.FaceThumb = c.Avatars.FaceThumbs[models.VariantStandard]
	lc.Avatars = &models.LightAvatarSet{
		Status:      c.Avatars.Status,
		Stale:       c.Avatars.Stale,
		GeneratedAt: c.Avatars.GeneratedAt,
		Clothing:    cloneClothing(c.Avatars.Clothing),
	}
	return lc
}

func cloneClothing(in map[models.Variant]*models.ClothingDescription) map[models.Variant]*models.ClothingDescription {
	if in == nil {
		return nil
	}
	out := make(map[models.Variant]*models.ClothingDescription, len(in))
	for variant, desc := range in {
		if desc == nil {
			out[variant] = nil
			continue
		}
		clone := *desc
		out[variant] = &clone
	}
	return out
}

// LightAll projects a slice of full characters.
func LightAll(chars []models.Character) []models.LightCharacter {
	out := make([]models.LightCharacter, 0, len(chars))
	for _, c := range chars {
		out = append(out, Light(c))
	}
	return out
}
