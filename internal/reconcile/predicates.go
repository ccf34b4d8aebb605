package reconcile

import (
	"strings"

	"storybook-server/internal/models"
)

// Единые предикаты "пустоты" по типам полей. Клиент может прислать пустую
// строку, null или вовсе опустить поле — для мержа это одно и то же.

// emptyScalar reports whether a scalar field carries no real value.
func emptyScalar(s string) bool {
	return strings.TrimSpace(s) == ""
}

// variantMapEmpty reports whether a per-variant image map holds no real image.
func variantMapEmpty(m map[models.Variant]string) bool {
	for _, v := range m {
		if !emptyScalar(v) {
			return false
		}
	}
	return true
}

// styleMapEmpty reports whether a style-keyed render map holds no real image.
func styleMapEmpty(m map[string]string) bool {
	for _, v := range m {
		if !emptyScalar(v) {
			return false
		}
	}
	return true
}

// clothingHasContent reports whether the clothing record carries at least one
// real sub-field. Записи без содержимого считаются отсутствующими целиком.
func clothingHasContent(c *models.ClothingDescription) bool {
	if c == nil {
		return false
	}
	return !emptyScalar(c.UpperBody) || !emptyScalar(c.LowerBody) ||
		!emptyScalar(c.FullBody) || !emptyScalar(c.Shoes)
}

// clothingMapEmpty reports whether no variant carries a clothing record with
// content.
func clothingMapEmpty(m map[models.Variant]*models.ClothingDescription) bool {
	for _, c := range m {
		if clothingHasContent(c) {
			return false
		}
	}
	return true
}

// photosHaveContent reports whether the photo group holds at least one image.
func photosHaveContent(p *models.PhotoSet) bool {
	if p == nil {
		return false
	}
	return !emptyScalar(p.Original) || !emptyScalar(p.FaceCrop) || !emptyScalar(p.Body) ||
		!emptyScalar(p.BodyNoBackground) || !emptyScalar(p.Thumbnail)
}

// physicalHasContent reports whether the traits group holds at least one value.
func physicalHasContent(p *models.PhysicalTraits) bool {
	if p == nil {
		return false
	}
	return !emptyScalar(p.Height) || !emptyScalar(p.Build) || !emptyScalar(p.HairColor) ||
		!emptyScalar(p.HairLength) || !emptyScalar(p.HairStyle) || !emptyScalar(p.EyeColor) ||
		!emptyScalar(p.SkinTone) || !emptyScalar(p.FacialHair) || !emptyScalar(p.OtherFeatures)
}

// avatarsHaveImages reports whether the avatar set carries at least one
// embedded image in any of its image-bearing sub-fields.
func avatarsHaveImages(a *models.AvatarSet) bool {
	if a == nil {
		return false
	}
	return !variantMapEmpty(a.Images) || !variantMapEmpty(a.FaceThumbs) || !styleMapEmpty(a.StyleRenders)
}

// --- копирование map'ов, чтобы merged не алиасил existing ---

func cloneVariantMap(m map[models.Variant]string) map[models.Variant]string {
	if m == nil {
		return nil
	}
	out := make(map[models.Variant]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStyleMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneClothingMap(m map[models.Variant]*models.ClothingDescription) map[models.Variant]*models.ClothingDescription {
	if m == nil {
		return nil
	}
	out := make(map[models.Variant]*models.ClothingDescription, len(m))
	for k, v := range m {
		if v == nil {
			out[k] = nil
			continue
		}
		c := *v
		out[k] = &c
	}
	return out
}
