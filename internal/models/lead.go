package models

import (
	"time"

	"gorm.io/datatypes"
)

type Lead struct {
	ID      string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name    string `gorm:"column:name;type:text" json:"name"`
	Surname string `gorm:"column:surname;type:text" json:"surname"`
	Email   string `gorm:"column:email;type:text" json:"email"`
	Phone   string `gorm:"column:phone;type:text;uniqueIndex" json:"phone"`

	Budget              float64 `gorm:"column:budget" json:"budget"`
	InterestLevel       string  `gorm:"column:interest_level;type:text" json:"interest_level"` // High|Medium|Low
	InterestedVehicleID string  `gorm:"column:interested_vehicle_id;type:text" json:"interested_vehicle_id"`

	PriorityScore int    `gorm:"column:priority_score" json:"priority_score"` // 0..100
	Stage         string `gorm:"column:stage;type:text" json:"stage"`         // new|contacted|negotiating|closed|lost
	Source        string `gorm:"column:source;type:text" json:"source"`       // "chat" for webhook-created leads
	AvatarURL     string `gorm:"column:avatar_url;type:text" json:"avatar_url"`

	History datatypes.JSON `gorm:"column:history;type:jsonb" json:"history"`

	ChatSessionID string `gorm:"column:chat_session_id;type:text;index" json:"chat_session_id"`
	OriginContext string `gorm:"column:origin_context;type:text" json:"origin_context"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Lead) TableName() string { return "leads" }

type Task struct {
	ID            string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Title         string    `gorm:"column:title;type:text" json:"title"`
	Description   string    `gorm:"column:description;type:text" json:"description"`
	Date          time.Time `gorm:"column:date;type:timestamptz" json:"date"`
	IsCompleted   bool      `gorm:"column:is_completed" json:"is_completed"`
	Priority      string    `gorm:"column:priority;type:text" json:"priority"` // High|Medium|Low
	Type          string    `gorm:"column:type;type:text" json:"type"`         // Call|Meeting|Email|FollowUp|Personal|Admin
	RelatedLeadID string    `gorm:"column:related_lead_id;type:uuid;index" json:"related_lead_id"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Task) TableName() string { return "tasks" }

type LeadNote struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	LeadID    string    `gorm:"column:lead_id;type:uuid;index" json:"lead_id"`
	Content   string    `gorm:"column:content;type:text" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (LeadNote) TableName() string { return "lead_notes" }
