package models

import (
	"time"

	"github.com/google/uuid"
)

// AvatarStatus описывает состояние набора аватаров персонажа.
type AvatarStatus string

const (
	AvatarStatusPending    AvatarStatus = "pending"
	AvatarStatusGenerating AvatarStatus = "generating"
	AvatarStatusComplete   AvatarStatus = "complete"
	AvatarStatusPartial    AvatarStatus = "partial"
)

// Variant identifies one styled/clothed rendition of a character's avatar.
type Variant string

const (
	VariantWinter   Variant = "winter"
	VariantStandard Variant = "standard"
	VariantSummer   Variant = "summer"
	VariantFormal   Variant = "formal"
)

// KnownVariants is the default variant set requested when the client does not
// specify one explicitly.
var KnownVariants = []Variant{VariantWinter, VariantStandard, VariantSummer, VariantFormal}

// PhysicalTraits — группа независимо-опциональных скалярных полей внешности.
// Пустая строка означает "не задано".
type PhysicalTraits struct {
	Height        string `json:"height,omitempty"`
	Build         string `json:"build,omitempty"`
	HairColor     string `json:"hairColor,omitempty"`
	HairLength    string `json:"hairLength,omitempty"`
	HairStyle     string `json:"hairStyle,omitempty"`
	EyeColor      string `json:"eyeColor,omitempty"`
	SkinTone      string `json:"skinTone,omitempty"`
	FacialHair    string `json:"facialHair,omitempty"`
	OtherFeatures string `json:"otherFeatures,omitempty"`
}

// PhotoSet — группа тяжелых встроенных изображений (data-URL строки).
// Клиент намеренно не пересылает их при каждом сохранении.
type PhotoSet struct {
	Original         string `json:"original,omitempty"`
	FaceCrop         string `json:"faceCrop,omitempty"`
	Body             string `json:"body,omitempty"`
	BodyNoBackground string `json:"bodyNoBackground,omitempty"`
	Thumbnail        string `json:"thumbnail,omitempty"`
}

// ClothingDescription is a small structured record produced atomically by one
// analysis call. It is merged wholesale, never field by field.
type ClothingDescription struct {
	UpperBody string `json:"upperBody,omitempty"`
	LowerBody string `json:"lowerBody,omitempty"`
	FullBody  string `json:"fullBody,omitempty"`
	Shoes     string `json:"shoes,omitempty"`
}

// AvatarSet holds the generated avatar variants for a character together with
// generation metadata.
type AvatarSet struct {
	Status       AvatarStatus                     `json:"status,omitempty"`
	Stale        bool                             `json:"stale"`
	GeneratedAt  *time.Time                       `json:"generatedAt,omitempty"`
	Images       map[Variant]string               `json:"images,omitempty"`
	FaceThumbs   map[Variant]string               `json:"faceThumbs,omitempty"`
	StyleRenders map[string]string                `json:"styleRenders,omitempty"`
	Clothing     map[Variant]*ClothingDescription `json:"clothing,omitempty"`
}

// Character is the full persisted character record. The nested groups are
// independently optional: a nil group means the client did not touch it.
type Character struct {
	ID       uuid.UUID       `db:"id" json:"id"`
	UserID   uuid.UUID       `db:"user_id" json:"userId,omitempty"`
	Name     string          `db:"name" json:"name"`
	Age      int             `db:"age" json:"age"`
	Gender   string          `db:"gender" json:"gender"`
	Physical *PhysicalTraits `db:"physical" json:"physical,omitempty"`
	Photos   *PhotoSet       `db:"photos" json:"photos,omitempty"`
	Avatars  *AvatarSet      `db:"avatars" json:"avatars,omitempty"`
	// Version — штамп оптимистичной конкуренции: обновление проходит только
	// если база мержа совпадает с текущей версией записи.
	Version   int64     `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// LightAvatarSet keeps the small/textual avatar metadata for list views.
// It structurally cannot carry full avatar images.
type LightAvatarSet struct {
	Status      AvatarStatus                     `json:"status,omitempty"`
	Stale       bool                             `json:"stale"`
	GeneratedAt *time.Time                       `json:"generatedAt,omitempty"`
	Clothing    map[Variant]*ClothingDescription `json:"clothing,omitempty"`
}

// LightCharacter — облегченное представление персонажа для списков: все
// тяжелые изображения вырезаны, остается один стандартный face thumbnail.
type LightCharacter struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Age            int             `json:"age"`
	Gender         string          `json:"gender"`
	Physical       *PhysicalTraits `json:"physical,omitempty"`
	FaceThumb      string          `json:"faceThumb,omitempty"`
	Avatars        *LightAvatarSet `json:"avatars,omitempty"`
	HasFullAvatars bool            `json:"hasFullAvatars"`
}

// PhotoAnalysis is the result of analyzing an uploaded photograph: detected
// attributes plus the cropped face image.
type PhotoAnalysis struct {
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
	HeightCm int    `json:"heightCm"`
	Build    string `json:"build"`
	FaceCrop string `json:"faceCrop,omitempty"`
}
