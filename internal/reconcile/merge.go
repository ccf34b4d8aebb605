// Package reconcile implements the record-reconciliation (merge) engine.
//
// Клиент сознательно присылает урезанные записи, чтобы не гонять по сети
// тяжелые встроенные изображения. Merge сравнивает присланную запись с ранее
// сохраненной и переносит вперед все тяжелые/производные поля, которые клиент
// опустил. Функции пакета чистые и тотальные: никакого I/O, никаких паник —
// отсутствующая или кривая вложенная группа значит "нечего сохранять".
package reconcile

import (
	"github.com/google/uuid"

	"storybook-server/internal/models"
)

// MergeCharacter merges an incoming character against the previously stored
// one. Identity scalars (id, name, age, gender) always take the incoming
// value verbatim; heavy fields fall back to existing when the incoming value
// is empty or absent. Returns the merged record and the names of the fields
// preserved from existing.
func MergeCharacter(incoming models.Character, existing *models.Character) (models.Character, []string) {
	if existing == nil {
		return incoming, nil
	}

	merged := incoming
	// Служебные поля: база мержа — текущая сохраненная версия.
	merged.Version = existing.Version
	merged.CreatedAt = existing.CreatedAt
	if merged.UserID == uuid.Nil {
		merged.UserID = existing.UserID
	}

	var preserved []string
	var p []string

	merged.Photos, p = mergePhotos(incoming.Photos, existing.Photos)
	preserved = append(preserved, p...)

	merged.Physical, p = mergePhysical(incoming.Physical, existing.Physical)
	preserved = append(preserved, p...)

	merged.Avatars, p = mergeAvatars(incoming.Avatars, existing.Avatars)
	preserved = append(preserved, p...)

	return merged, preserved
}

// MergeCharacterList merges a client-submitted character list against the
// stored one. Записи сопоставляются сначала по id, затем по имени — это
// покрывает случай, когда сервер выдал id, которого клиент еще не знает.
// Несопоставленные входящие записи проходят без изменений. Возвращает
// смерженный список и суммарное число сохраненных полей (для диагностики).
func MergeCharacterList(incoming []models.Character, existing []models.Character) ([]models.Character, int) {
	byID := make(map[uuid.UUID]*models.Character, len(existing))
	byName := make(map[string]*models.Character, len(existing))
	for i := range existing {
		ex := &existing[i]
		if ex.ID != uuid.Nil {
			byID[ex.ID] = ex
		}
		if ex.Name != "" {
			if _, ok := byName[ex.Name]; !ok {
				byName[ex.Name] = ex
			}
		}
	}

	merged := make([]models.Character, 0, len(incoming))
	total := 0
	for _, in := range incoming {
		var ex *models.Character
		if in.ID != uuid.Nil {
			ex = byID[in.ID]
		}
		if ex == nil && in.Name != "" {
			ex = byName[in.Name]
		}
		m, preserved := MergeCharacter(in, ex)
		total += len(preserved)
		merged = append(merged, m)
	}
	return merged, total
}

func mergePhotos(in, ex *models.PhotoSet) (*models.PhotoSet, []string) {
	if !photosHaveContent(ex) {
		return in, nil
	}
	if in == nil {
		out := *ex
		return &out, []string{"photos"}
	}

	out := *in
	var preserved []string
	keep := func(name string, dst *string, exVal string) {
		if emptyScalar(*dst) && !emptyScalar(exVal) {
			*dst = exVal
			preserved = append(preserved, "photos."+name)
		}
	}
	keep("original", &out.Original, ex.Original)
	keep("faceCrop", &out.FaceCrop, ex.FaceCrop)
	keep("body", &out.Body, ex.Body)
	keep("bodyNoBackground", &out.BodyNoBackground, ex.BodyNoBackground)
	keep("thumbnail", &out.Thumbnail, ex.Thumbnail)
	return &out, preserved
}

func mergePhysical(in, ex *models.PhysicalTraits) (*models.PhysicalTraits, []string) {
	if !physicalHasContent(ex) {
		return in, nil
	}
	if in == nil {
		out := *ex
		return &out, []string{"physical"}
	}

	// Пополевой deep merge: каждое подполе независимо откатывается к
	// существующему значению, никогда не all-or-nothing.
	out := *in
	var preserved []string
	keep := func(name string, dst *string, exVal string) {
		if emptyScalar(*dst) && !emptyScalar(exVal) {
			*dst = exVal
			preserved = append(preserved, "physical."+name)
		}
	}
	keep("height", &out.Height, ex.Height)
	keep("build", &out.Build, ex.Build)
	keep("hairColor", &out.HairColor, ex.HairColor)
	keep("hairLength", &out.HairLength, ex.HairLength)
	keep("hairStyle", &out.HairStyle, ex.HairStyle)
	keep("eyeColor", &out.EyeColor, ex.EyeColor)
	keep("skinTone", &out.SkinTone, ex.SkinTone)
	keep("facialHair", &out.FacialHair, ex.FacialHair)
	keep("otherFeatures", &out.OtherFeatures, ex.OtherFeatures)
	return &out, preserved
}

func mergeAvatars(in, ex *models.AvatarSet) (*models.AvatarSet, []string) {
	if ex == nil {
		return in, nil
	}
	if in == nil {
		out := cloneAvatarSet(ex)
		return out, []string{"avatars"}
	}

	out := &models.AvatarSet{
		Status:      in.Status,
		Stale:       in.Stale,
		GeneratedAt: in.GeneratedAt,
	}
	var preserved []string
	if out.GeneratedAt == nil && ex.GeneratedAt != nil {
		ts := *ex.GeneratedAt
		out.GeneratedAt = &ts
		preserved = append(preserved, "avatars.generatedAt")
	}

	if !avatarsHaveImages(in) && avatarsHaveImages(ex) {
		// Клиент подтверждает завершенную генерацию метаданными, не пересылая
		// изображения, которых у него нет: все image-поля берутся из existing,
		// статус/stale — из incoming.
		if !variantMapEmpty(ex.Images) {
			out.Images = cloneVariantMap(ex.Images)
			preserved = append(preserved, "avatars.images")
		}
		if !variantMapEmpty(ex.FaceThumbs) {
			out.FaceThumbs = cloneVariantMap(ex.FaceThumbs)
			preserved = append(preserved, "avatars.faceThumbs")
		}
		if !styleMapEmpty(ex.StyleRenders) {
			out.StyleRenders = cloneStyleMap(ex.StyleRenders)
			preserved = append(preserved, "avatars.styleRenders")
		}
	} else {
		// Incoming несет изображения (свежая генерация): объединяем по ключам
		// с приоритетом incoming. Вариант, который существующая запись имеет,
		// а входящая нет, не теряется — так avatars.standard переживает
		// частичную регенерацию.
		var p []string
		out.Images, p = unionVariantMap(in.Images, ex.Images, "avatars.images")
		preserved = append(preserved, p...)
		out.FaceThumbs, p = unionVariantMap(in.FaceThumbs, ex.FaceThumbs, "avatars.faceThumbs")
		preserved = append(preserved, p...)
		out.StyleRenders, p = unionStyleMap(in.StyleRenders, ex.StyleRenders, "avatars.styleRenders")
		preserved = append(preserved, p...)
	}

	var p []string
	out.Clothing, p = mergeClothingMaps(in.Clothing, ex.Clothing)
	preserved = append(preserved, p...)

	return out, preserved
}

func unionVariantMap(in, ex map[models.Variant]string, prefix string) (map[models.Variant]string, []string) {
	if variantMapEmpty(ex) {
		return cloneVariantMap(in), nil
	}
	if variantMapEmpty(in) {
		return cloneVariantMap(ex), []string{prefix}
	}
	out := cloneVariantMap(in)
	var preserved []string
	for k, v := range ex {
		if !emptyScalar(v) && emptyScalar(out[k]) {
			out[k] = v
			preserved = append(preserved, prefix+"."+string(k))
		}
	}
	return out, preserved
}

func unionStyleMap(in, ex map[string]string, prefix string) (map[string]string, []string) {
	if styleMapEmpty(ex) {
		return cloneStyleMap(in), nil
	}
	if styleMapEmpty(in) {
		return cloneStyleMap(ex), []string{prefix}
	}
	out := cloneStyleMap(in)
	var preserved []string
	for k, v := range ex {
		if !emptyScalar(v) && emptyScalar(out[k]) {
			out[k] = v
			preserved = append(preserved, prefix+"."+k)
		}
	}
	return out, preserved
}

// mergeClothingMaps применяет правило wholesale-замены: описание одежды
// производится одним вызовом анализа атомарно, поэтому запись либо целиком
// заменяется (когда у incoming есть содержимое), либо целиком сохраняется.
func mergeClothingMaps(in, ex map[models.Variant]*models.ClothingDescription) (map[models.Variant]*models.ClothingDescription, []string) {
	if clothingMapEmpty(ex) {
		return cloneClothingMap(in), nil
	}
	if clothingMapEmpty(in) {
		return cloneClothingMap(ex), []string{"avatars.clothing"}
	}

	out := make(map[models.Variant]*models.ClothingDescription)
	var preserved []string
	for k, c := range in {
		if clothingHasContent(c) {
			cc := *c
			out[k] = &cc
		}
	}
	for k, c := range ex {
		if _, ok := out[k]; ok {
			continue
		}
		if clothingHasContent(c) {
			cc := *c
			out[k] = &cc
			preserved = append(preserved, "avatars.clothing."+string(k))
		}
	}
	return out, preserved
}

func cloneAvatarSet(a *models.AvatarSet) *models.AvatarSet {
	out := &models.AvatarSet{
		Status:       a.Status,
		Stale:        a.Stale,
		Images:       cloneVariantMap(a.Images),
		FaceThumbs:   cloneVariantMap(a.FaceThumbs),
		StyleRenders: cloneStyleMap(a.StyleRenders),
		Clothing:     cloneClothingMap(a.Clothing),
	}
	if a.GeneratedAt != nil {
		ts := *a.GeneratedAt
		out.GeneratedAt = &ts
	}
	return out
}
