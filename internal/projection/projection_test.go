package projection_test

import (
	"testing"
	"time"

	"storybook-server/internal/models"
	"storybook-server/internal/projection"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func fullCharacter() models.Character {
	ts := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	return models.Character{
		ID:       uuid.New(),
		Name:     "Ася",
		Age:      6,
		Gender:   "female",
		Physical: &models.PhysicalTraits{Height: "110cm", EyeColor: "brown"},
		Photos: &models.PhotoSet{
			Original: "data:image/jpeg;base64,HUGE",
			FaceCrop: "data:image/jpeg;base64,CROP",
		},
		Avatars: &models.AvatarSet{
			Status:      models.AvatarStatusComplete,
			Stale:       false,
			GeneratedAt: &ts,
			Images: map[models.Variant]string{
				models.VariantStandard: "data:image/png;base64,STANDARD",
				models.VariantWinter:   "data:image/png;base64,WINTER",
			},
			FaceThumbs:   map[models.Variant]string{models.VariantStandard: "data:image/png;base64,THUMB"},
			StyleRenders: map[string]string{"watercolor": "data:image/png;base64,WC"},
			Clothing: map[models.Variant]*models.ClothingDescription{
				models.VariantWinter: {UpperBody: "red coat"},
			},
		},
	}
}

func TestLight_StripsHeavyFields(t *testing.T) {
	c := fullCharacter()

	lc := projection.Light(c)

	// Никаких полных изображений в облегченном представлении: тип
	// LightAvatarSet структурно не несет images/styleRenders, а фото
	// отсутствуют целиком
	assert.NotNil(t, lc.Avatars)
	assert.Equal(t, models.AvatarStatusComplete, lc.Avatars.Status)
	assert.Equal(t, "data:image/png;base64,THUMB", lc.FaceThumb)
	assert.Equal(t, "red coat", lc.Avatars.Clothing[models.VariantWinter].UpperBody)
	assert.Equal(t, c.Physical, lc.Physical)
}

func TestLight_HasFullAvatars(t *testing.T) {
	t.Run("true when standard present", func(t *testing.T) {
		lc := projection.Light(fullCharacter())
		assert.True(t, lc.HasFullAvatars)
	})

	t.Run("false without standard image", func(t *testing.T) {
		c := fullCharacter()
		delete(c.Avatars.Images, models.VariantStandard)
		lc := projection.Light(c)
		assert.False(t, lc.HasFullAvatars)
	})

	t.Run("false without avatars group", func(t *testing.T) {
		c := fullCharacter()
		c.Avatars = nil
		lc := projection.Light(c)
		assert.False(t, lc.HasFullAvatars)
		assert.Nil(t, lc.Avatars)
		assert.Empty(t, lc.FaceThumb)
	})
}

func TestLight_NoAliasing(t *testing.T) {
	c := fullCharacter()

	lc := projection.Light(c)
	lc.Physical.EyeColor = "green"
	lc.Avatars.Clothing[models.VariantWinter].UpperBody = "blue jacket"
	lc.Avatars.Clothing[models.VariantSummer] = &models.ClothingDescription{UpperBody: "t-shirt"}

	// Изменения облегченного представления не трогают полную запись
	assert.Equal(t, "brown", c.Physical.EyeColor)
	assert.Equal(t, "red coat", c.Avatars.Clothing[models.VariantWinter].UpperBody)
	assert.NotContains(t, c.Avatars.Clothing, models.VariantSummer)
}

func TestLightAll(t *testing.T) {
	out := projection.LightAll([]models.Character{fullCharacter(), {ID: uuid.New(), Name: "Пустой"}})
	assert.Len(t, out, 2)
	assert.True(t, out[0].HasFullAvatars)
	assert.False(t, out[1].HasFullAvatars)
}
