package reconcile_test

import (
	"testing"
	"time"

	"storybook-server/internal/models"
	"storybook-server/internal/reconcile"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMergeCharacter_NoExisting(t *testing.T) {
	in := models.Character{ID: uuid.New(), Name: "Мира", Age: 7}

	merged, preserved := reconcile.MergeCharacter(in, nil)

	assert.Equal(t, in, merged)
	assert.Empty(t, preserved)
}

func TestMergeCharacter_IdentityScalarsVerbatim(t *testing.T) {
	id := uuid.New()
	existing := &models.Character{ID: id, Name: "Old", Age: 30, Gender: "male", Version: 4}
	in := models.Character{ID: id, Name: "New", Age: 31, Gender: "female"}

	merged, _ := reconcile.MergeCharacter(in, existing)

	assert.Equal(t, "New", merged.Name)
	assert.Equal(t, 31, merged.Age)
	assert.Equal(t, "female", merged.Gender)
	// Версия берется из existing — это база мержа
	assert.Equal(t, int64(4), merged.Version)
}

func TestMergeCharacter_AvatarMetadataOnlySave(t *testing.T) {
	// Сценарий A: клиент подтверждает завершенную регенерацию без изображений
	existing := &models.Character{
		ID: uuid.New(),
		Avatars: &models.AvatarSet{
			Status: models.AvatarStatusGenerating,
			Stale:  true,
			Images: map[models.Variant]string{
				models.VariantStandard: "IMG1",
				models.VariantWinter:   "IMG2",
			},
			FaceThumbs: map[models.Variant]string{models.VariantStandard: "THUMB1"},
		},
	}
	in := models.Character{
		ID: existing.ID,
		Avatars: &models.AvatarSet{
			Status: models.AvatarStatusComplete,
			Stale:  false,
		},
	}

	merged, preserved := reconcile.MergeCharacter(in, existing)

	assert.Equal(t, "IMG1", merged.Avatars.Images[models.VariantStandard])
	assert.Equal(t, "IMG2", merged.Avatars.Images[models.VariantWinter])
	assert.Equal(t, "THUMB1", merged.Avatars.FaceThumbs[models.VariantStandard])
	// Метаданные — из incoming
	assert.Equal(t, models.AvatarStatusComplete, merged.Avatars.Status)
	assert.False(t, merged.Avatars.Stale)
	assert.Contains(t, preserved, "avatars.images")
	assert.Contains(t, preserved, "avatars.faceThumbs")
}

func TestMergeCharacter_PhysicalDeepMerge(t *testing.T) {
	// Сценарий B: каждое подполе откатывается независимо
	existing := &models.Character{
		ID:       uuid.New(),
		Physical: &models.PhysicalTraits{Height: "tall", EyeColor: "green"},
	}
	in := models.Character{
		ID:       existing.ID,
		Physical: &models.PhysicalTraits{Height: "short", EyeColor: ""},
	}

	merged, preserved := reconcile.MergeCharacter(in, existing)

	assert.Equal(t, "short", merged.Physical.Height)
	assert.Equal(t, "green", merged.Physical.EyeColor)
	assert.Equal(t, []string{"physical.eyeColor"}, preserved)
}

func TestMergeCharacter_PhotosPreserved(t *testing.T) {
	existing := &models.Character{
		ID: uuid.New(),
		Photos: &models.PhotoSet{
			Original: "data:image/jpeg;base64,AAA",
			FaceCrop: "data:image/jpeg;base64,BBB",
		},
	}

	t.Run("absent group preserved wholesale", func(t *testing.T) {
		merged, preserved := reconcile.MergeCharacter(models.Character{ID: existing.ID}, existing)

		assert.Equal(t, existing.Photos.Original, merged.Photos.Original)
		assert.Contains(t, preserved, "photos")
	})

	t.Run("per-field fallback", func(t *testing.T) {
		in := models.Character{
			ID:     existing.ID,
			Photos: &models.PhotoSet{Original: "data:image/jpeg;base64,NEW"},
		}
		merged, preserved := reconcile.MergeCharacter(in, existing)

		assert.Equal(t, "data:image/jpeg;base64,NEW", merged.Photos.Original)
		assert.Equal(t, "data:image/jpeg;base64,BBB", merged.Photos.FaceCrop)
		assert.Equal(t, []string{"photos.faceCrop"}, preserved)
	})
}

func TestMergeCharacter_StandardSurvivesPartialRegeneration(t *testing.T) {
	// Инвариант: avatars.standard не пропадает из-за регенерации, которая
	// сама его не перегенерировала
	existing := &models.Character{
		ID: uuid.New(),
		Avatars: &models.AvatarSet{
			Status: models.AvatarStatusComplete,
			Images: map[models.Variant]string{
				models.VariantStandard: "OLD_STANDARD",
				models.VariantSummer:   "OLD_SUMMER",
			},
		},
	}
	in := models.Character{
		ID: existing.ID,
		Avatars: &models.AvatarSet{
			Status: models.AvatarStatusPartial,
			Images: map[models.Variant]string{models.VariantWinter: "NEW_WINTER"},
		},
	}

	merged, preserved := reconcile.MergeCharacter(in, existing)

	assert.Equal(t, "NEW_WINTER", merged.Avatars.Images[models.VariantWinter])
	assert.Equal(t, "OLD_STANDARD", merged.Avatars.Images[models.VariantStandard])
	assert.Equal(t, "OLD_SUMMER", merged.Avatars.Images[models.VariantSummer])
	assert.Contains(t, preserved, "avatars.images.standard")
	assert.Contains(t, preserved, "avatars.images.summer")
}

func TestMergeCharacter_ClothingWholesale(t *testing.T) {
	existing := &models.Character{
		ID: uuid.New(),
		Avatars: &models.AvatarSet{
			Images: map[models.Variant]string{models.VariantStandard: "IMG"},
			Clothing: map[models.Variant]*models.ClothingDescription{
				models.VariantWinter: {UpperBody: "шерстяной свитер", Shoes: "валенки"},
			},
		},
	}

	t.Run("contentless record keeps existing wholesale", func(t *testing.T) {
		in := models.Character{
			ID: existing.ID,
			Avatars: &models.AvatarSet{
				Images: map[models.Variant]string{models.VariantStandard: "IMG"},
				Clothing: map[models.Variant]*models.ClothingDescription{
					models.VariantWinter: {UpperBody: "", Shoes: ""},
				},
			},
		}
		merged, preserved := reconcile.MergeCharacter(in, existing)

		assert.Equal(t, "шерстяной свитер", merged.Avatars.Clothing[models.VariantWinter].UpperBody)
		assert.Equal(t, "валенки", merged.Avatars.Clothing[models.VariantWinter].Shoes)
		assert.Contains(t, preserved, "avatars.clothing")
	})

	t.Run("record with content replaces wholesale", func(t *testing.T) {
		// Описание производится атомарно одним вызовом анализа: частичный
		// пополевой мерж смешал бы несогласованные описания
		in := models.Character{
			ID: existing.ID,
			Avatars: &models.AvatarSet{
				Images: map[models.Variant]string{models.VariantStandard: "IMG"},
				Clothing: map[models.Variant]*models.ClothingDescription{
					models.VariantWinter: {UpperBody: "пуховик"},
				},
			},
		}
		merged, _ := reconcile.MergeCharacter(in, existing)

		assert.Equal(t, "пуховик", merged.Avatars.Clothing[models.VariantWinter].UpperBody)
		assert.Empty(t, merged.Avatars.Clothing[models.VariantWinter].Shoes)
	})
}

func TestMergeCharacter_Total(t *testing.T) {
	// Движок тотален: никакие комбинации nil-групп не должны паниковать
	cases := []struct {
		name     string
		incoming models.Character
		existing *models.Character
	}{
		{"both empty", models.Character{}, &models.Character{}},
		{"nil existing groups", models.Character{Physical: &models.PhysicalTraits{}}, &models.Character{}},
		{"nil incoming groups", models.Character{}, &models.Character{
			Photos:  &models.PhotoSet{},
			Avatars: &models.AvatarSet{Clothing: map[models.Variant]*models.ClothingDescription{models.VariantWinter: nil}},
		}},
		{"empty maps", models.Character{Avatars: &models.AvatarSet{Images: map[models.Variant]string{}}}, &models.Character{
			Avatars: &models.AvatarSet{Images: map[models.Variant]string{"standard": ""}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				reconcile.MergeCharacter(tc.incoming, tc.existing)
			})
		})
	}
}

func TestMergeCharacter_NoAliasing(t *testing.T) {
	existing := &models.Character{
		ID: uuid.New(),
		Avatars: &models.AvatarSet{
			Images: map[models.Variant]string{models.VariantStandard: "IMG1"},
		},
	}
	in := models.Character{ID: existing.ID, Avatars: &models.AvatarSet{Status: models.AvatarStatusComplete}}

	merged, _ := reconcile.MergeCharacter(in, existing)
	merged.Avatars.Images[models.VariantStandard] = "MUTATED"

	assert.Equal(t, "IMG1", existing.Avatars.Images[models.VariantStandard])
}

func TestMergeCharacter_GeneratedAtFallback(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	existing := &models.Character{
		ID:      uuid.New(),
		Avatars: &models.AvatarSet{GeneratedAt: &ts, Images: map[models.Variant]string{models.VariantStandard: "I"}},
	}
	in := models.Character{ID: existing.ID, Avatars: &models.AvatarSet{Status: models.AvatarStatusComplete}}

	merged, preserved := reconcile.MergeCharacter(in, existing)

	assert.NotNil(t, merged.Avatars.GeneratedAt)
	assert.True(t, ts.Equal(*merged.Avatars.GeneratedAt))
	assert.Contains(t, preserved, "avatars.generatedAt")
}

func TestMergeCharacterList(t *testing.T) {
	serverID := uuid.New()
	clientID := uuid.New()

	existing := []models.Character{
		{
			ID:     serverID,
			Name:   "Тим",
			Photos: &models.PhotoSet{Original: "IMG"},
		},
	}

	t.Run("match by id", func(t *testing.T) {
		incoming := []models.Character{{ID: serverID, Name: "Тим"}}
		merged, preserved := reconcile.MergeCharacterList(incoming, existing)

		assert.Len(t, merged, 1)
		assert.Equal(t, "IMG", merged[0].Photos.Original)
		assert.Equal(t, 1, preserved)
	})

	t.Run("match by name when ids differ", func(t *testing.T) {
		// Клиент держит свой временный id для только что созданного персонажа
		incoming := []models.Character{{ID: clientID, Name: "Тим"}}
		merged, preserved := reconcile.MergeCharacterList(incoming, existing)

		assert.Len(t, merged, 1)
		assert.Equal(t, "IMG", merged[0].Photos.Original)
		assert.Equal(t, 1, preserved)
	})

	t.Run("unmatched passes through", func(t *testing.T) {
		incoming := []models.Character{{ID: uuid.New(), Name: "Новенький"}}
		merged, preserved := reconcile.MergeCharacterList(incoming, existing)

		assert.Len(t, merged, 1)
		assert.Nil(t, merged[0].Photos)
		assert.Equal(t, 0, preserved)
	})
}
