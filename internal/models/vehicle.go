package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	VehicleAvailable = "available"
	VehicleReserved  = "reserved"
	VehicleSold      = "sold"
)

type Vehicle struct {
	ID    string `gorm:"column:id;type:text;primaryKey" json:"id"`
	Make  string `gorm:"column:make;type:text" json:"make"`
	Model string `gorm:"column:model;type:text" json:"model"`
	Year  int    `gorm:"column:year" json:"year"`
	Price float64 `gorm:"column:price" json:"price"`

	Status       string `gorm:"column:status;type:text;index" json:"status"`
	Mileage      int    `gorm:"column:mileage" json:"mileage"`
	Transmission string `gorm:"column:transmission;type:text" json:"transmission"`
	FuelType     string `gorm:"column:fuel_type;type:text" json:"fuel_type"`
	Description  string `gorm:"column:description;type:text" json:"description"`

	PublicURL string         `gorm:"column:public_url;type:text" json:"public_url"`
	ImageURL  string         `gorm:"column:image_url;type:text" json:"image_url"`
	ImageURLs datatypes.JSON `gorm:"column:image_urls;type:jsonb" json:"image_urls"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Vehicle) TableName() string { return "vehicles" }
