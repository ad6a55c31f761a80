package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"safetour/internal/domain"
)

var (
	ErrInvalidContact  = errors.New("contact name and phone are required")
	ErrContactNotFound = errors.New("contact not found")
)

// ContactStore manages the user's emergency contacts.
type ContactStore struct {
	db *gorm.DB
}

func NewContactStore(db *gorm.DB) *ContactStore {
	return &ContactStore{db: db}
}

// ListContacts returns the primary contact first, then the rest by id.
func (s *ContactStore) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	var models []contactModel
	if err := s.db.WithContext(ctx).Order("is_primary DESC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	contacts := make([]domain.Contact, 0, len(models))
	for _, m := range models {
		contacts = append(contacts, m.toDomain())
	}
	return contacts, nil
}

func (s *ContactStore) Get(ctx context.Context, id uint) (domain.Contact, error) {
	var m contactModel
	err := s.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Contact{}, ErrContactNotFound
	}
	if err != nil {
		return domain.Contact{}, fmt.Errorf("get contact %d: %w", id, err)
	}
	return m.toDomain(), nil
}

func (s *ContactStore) Create(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	contact, err := validateContact(contact)
	if err != nil {
		return domain.Contact{}, err
	}

	m := contactModel{
		Name:         contact.Name,
		Phone:        contact.Phone,
		Relationship: contact.Relationship,
		IsPrimary:    contact.Primary,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.IsPrimary {
			if err := clearPrimary(tx, 0); err != nil {
				return err
			}
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		return domain.Contact{}, fmt.Errorf("create contact: %w", err)
	}
	return m.toDomain(), nil
}

func (s *ContactStore) Update(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	contact, err := validateContact(contact)
	if err != nil {
		return domain.Contact{}, err
	}

	var m contactModel
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, contact.ID).Error; err != nil {
			return err
		}
		if contact.Primary {
			if err := clearPrimary(tx, m.ID); err != nil {
				return err
			}
		}
		m.Name = contact.Name
		m.Phone = contact.Phone
		m.Relationship = contact.Relationship
		m.IsPrimary = contact.Primary
		return tx.Save(&m).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Contact{}, ErrContactNotFound
	}
	if err != nil {
		return domain.Contact{}, fmt.Errorf("update contact %d: %w", contact.ID, err)
	}
	return m.toDomain(), nil
}

func (s *ContactStore) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&contactModel{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete contact %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrContactNotFound
	}
	return nil
}

func clearPrimary(tx *gorm.DB, keepID uint) error {
	return tx.Model(&contactModel{}).
		Where("is_primary = ? AND id <> ?", true, keepID).
		Update("is_primary", false).Error
}

func validateContact(contact domain.Contact) (domain.Contact, error) {
	contact.Name = strings.TrimSpace(contact.Name)
	contact.Phone = strings.TrimSpace(contact.Phone)
	contact.Relationship = strings.TrimSpace(contact.Relationship)
	if contact.Name == "" || contact.Phone == "" {
		return domain.Contact{}, ErrInvalidContact
	}
	return contact, nil
}
