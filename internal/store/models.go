package store

import (
	"time"

	"safetour/internal/domain"
)

type contactModel struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:120;not null"`
	Phone        string `gorm:"size:40;not null"`
	Relationship string `gorm:"size:60"`
	IsPrimary    bool   `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (contactModel) TableName() string { return "emergency_contacts" }

func (m contactModel) toDomain() domain.Contact {
	return domain.Contact{
		ID:           m.ID,
		Name:         m.Name,
		Phone:        m.Phone,
		Relationship: m.Relationship,
		Primary:      m.IsPrimary,
	}
}

type triggerRecordModel struct {
	ID            uint      `gorm:"primaryKey"`
	AlertID       string    `gorm:"size:64;uniqueIndex;not null"`
	TriggerWord   string    `gorm:"size:120"`
	Outcome       string    `gorm:"size:16;index"`
	SilentMode    bool
	Latitude      *float64
	Longitude     *float64
	Accuracy      *float64
	ContactsCount int
	Detail        string    `gorm:"size:512"`
	TriggeredAt   time.Time `gorm:"index"`
	CompletedAt   time.Time
	CreatedAt     time.Time
}

func (triggerRecordModel) TableName() string { return "trigger_history" }

func newTriggerRecordModel(r domain.TriggerRecord) triggerRecordModel {
	m := triggerRecordModel{
		AlertID:       r.AlertID,
		TriggerWord:   r.TriggerWord,
		Outcome:       string(r.Outcome),
		SilentMode:    r.SilentMode,
		ContactsCount: r.ContactsCount,
		Detail:        truncate(r.Detail, 512),
		TriggeredAt:   r.TriggeredAt,
		CompletedAt:   r.CompletedAt,
	}
	if r.Location != nil {
		lat, lon, acc := r.Location.Latitude, r.Location.Longitude, r.Location.Accuracy
		m.Latitude, m.Longitude, m.Accuracy = &lat, &lon, &acc
	}
	return m
}

func (m triggerRecordModel) toDomain() domain.TriggerRecord {
	r := domain.TriggerRecord{
		AlertID:       m.AlertID,
		TriggerWord:   m.TriggerWord,
		Outcome:       domain.AlertOutcome(m.Outcome),
		SilentMode:    m.SilentMode,
		ContactsCount: m.ContactsCount,
		Detail:        m.Detail,
		TriggeredAt:   m.TriggeredAt,
		CompletedAt:   m.CompletedAt,
	}
	if m.Latitude != nil && m.Longitude != nil {
		loc := domain.Location{Latitude: *m.Latitude, Longitude: *m.Longitude}
		if m.Accuracy != nil {
			loc.Accuracy = *m.Accuracy
		}
		r.Location = &loc
	}
	return r
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
