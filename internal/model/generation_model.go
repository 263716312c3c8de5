package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type GenerationParams struct {
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	BatchSize   int    `json:"batch_size,omitempty"`
	Seed        *int64 `json:"seed,omitempty"`
	Style       string `json:"style,omitempty"`
	InputImage  string `json:"input_image,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	Quality     string `json:"quality,omitempty"`
}

type Generation struct {
	Id             uuid.UUID                            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId         uuid.UUID                            `gorm:"type:uuid;not null;index"`
	Prompt         string                               `gorm:"type:text;not null"`
	NegativePrompt string                               `gorm:"type:text"`
	ModelId        string                               `gorm:"type:varchar(100);not null;index"`
	Params         datatypes.JSONType[GenerationParams] `gorm:"type:jsonb"`
	Status         string                               `gorm:"type:generation_status;not null;default:'PROCESSING';index"`
	CreditsUsed    int                                  `gorm:"not null;default:0"`
	Error          *string                              `gorm:"type:text"`
	ProviderTaskId *string                              `gorm:"type:varchar(255)"`
	CreatedAt      time.Time                            `gorm:"autoCreateTime;index"`
	UpdatedAt      time.Time                            `gorm:"autoUpdateTime"`
	CompletedAt    *time.Time

	Images []Image `gorm:"foreignKey:GenerationId;constraint:OnDelete:CASCADE"`
}

func (Generation) TableName() string {
	return "generations"
}

type Image struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	GenerationId  uuid.UUID `gorm:"type:uuid;not null;index"`
	UserId        uuid.UUID `gorm:"type:uuid;not null;index"`
	Kind          string    `gorm:"type:varchar(10);not null;default:'image'"`
	URL           string    `gorm:"column:url;type:text;not null"`
	ThumbnailURL  *string   `gorm:"column:thumbnail_url;type:text"`
	StoragePath   *string   `gorm:"type:text"`
	ThumbnailPath *string   `gorm:"type:text"`
	Width         int
	Height        int
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (Image) TableName() string {
	return "images"
}
