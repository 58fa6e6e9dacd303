package database

import (
	"errors"
	"fmt"
	"strings"

	"proxycare/internal/domain"

	"gorm.io/gorm"
)

var (
	ErrSourceNameRequired   = errors.New("source name is required")
	ErrSourceNameConflict   = errors.New("source name already exists")
	ErrProviderNameRequired = errors.New("provider name is required")
	ErrProviderNameConflict = errors.New("provider name already exists")
	ErrProviderNotFound     = errors.New("provider not found")
)

func GetSource(sourceID uint) (*domain.Source, error) {
	if DB == nil {
		return nil, fmt.Errorf("source store: database connection was not initialised")
	}

	var source domain.Source
	if err := DB.First(&source, sourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, err
	}
	return &source, nil
}

func ListSources() ([]domain.Source, error) {
	if DB == nil {
		return nil, fmt.Errorf("source store: database connection was not initialised")
	}

	var sources []domain.Source
	if err := DB.Order("id ASC").Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// ListSourceIDs feeds the reconciliation tick; it avoids loading names just
// to iterate.
func ListSourceIDs() ([]uint, error) {
	if DB == nil {
		return nil, fmt.Errorf("source store: database connection was not initialised")
	}

	var ids []uint
	if err := DB.Model(&domain.Source{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func CreateSource(name string) (*domain.Source, error) {
	if DB == nil {
		return nil, fmt.Errorf("source store: database connection was not initialised")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrSourceNameRequired
	}

	source := domain.Source{Name: name}
	if err := DB.Create(&source).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrSourceNameConflict
		}
		return nil, err
	}
	return &source, nil
}

func CreateProvider(name string) (*domain.Provider, error) {
	if DB == nil {
		return nil, fmt.Errorf("provider store: database connection was not initialised")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrProviderNameRequired
	}

	provider := domain.Provider{Name: name}
	if err := DB.Create(&provider).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrProviderNameConflict
		}
		return nil, err
	}
	return &provider, nil
}

func GetProvider(providerID uint) (*domain.Provider, error) {
	if DB == nil {
		return nil, fmt.Errorf("provider store: database connection was not initialised")
	}

	var provider domain.Provider
	if err := DB.First(&provider, providerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &provider, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "duplicate key value violates unique constraint") ||
		strings.Contains(message, "unique constraint failed")
}
