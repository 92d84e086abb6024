package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/telephony/internal/apperr"
	"github.com/example/telephony/internal/database"
	"github.com/example/telephony/internal/models"
	"github.com/example/telephony/internal/utils"
)

// NumberInput is the full set of writable fields of a virtual phone number.
type NumberInput struct {
	Number      string `json:"number" validate:"required,e164"`
	Label       string `json:"label" validate:"max=64"`
	CountryCode string `json:"country_code" validate:"omitempty,iso3166_1_alpha2"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive suspended"`
}

// NumberPatch holds the fields a partial update sets. Nil means unchanged.
type NumberPatch struct {
	Number      *string `json:"number"`
	Label       *string `json:"label"`
	CountryCode *string `json:"country_code"`
	Status      *string `json:"status"`
}

// ListFilter narrows List. A zero Limit returns every matching record.
type ListFilter struct {
	Status string `json:"status" validate:"omitempty,oneof=active inactive suspended"`
	Limit  int    `json:"-"`
	Offset int    `json:"-"`
}

// NumberService manages virtual phone numbers. Every method takes the owner
// explicitly and only ever touches rows scoped to it.
type NumberService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewNumberService constructs a NumberService.
func NewNumberService(db *gorm.DB, log *zap.Logger) *NumberService {
	return &NumberService{db: db, log: log.Named("numbers")}
}

// List returns owner's numbers in insertion order and the unpaged total.
func (s *NumberService) List(ctx context.Context, owner uuid.UUID, filter ListFilter) ([]models.VirtualPhoneNumber, int64, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	if err := utils.Validate(filter); err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).Model(&models.VirtualPhoneNumber{}).Scopes(database.OwnedBy(owner))
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count numbers: %w", err)
	}

	items := []models.VirtualPhoneNumber{}
	if err := query.Scopes(database.Paginate(filter.Limit, filter.Offset)).
		Order("created_at asc").Order("id asc").
		Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list numbers: %w", err)
	}

	return items, total, nil
}

// Create stores a new number owned by owner.
func (s *NumberService) Create(ctx context.Context, owner uuid.UUID, in NumberInput) (*models.VirtualPhoneNumber, error) {
	in = in.normalized()
	if err := utils.Validate(in); err != nil {
		return nil, err
	}

	number := models.VirtualPhoneNumber{
		UserID:      owner,
		Number:      in.Number,
		Label:       in.Label,
		CountryCode: in.CountryCode,
		Status:      models.NumberStatus(in.Status),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNumberFree(tx, owner, in.Number, uuid.Nil); err != nil {
			return err
		}
		if err := tx.Create(&number).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return numberTaken(in.Number)
			}
			return fmt.Errorf("create number: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("number created", zap.Stringer("owner", owner), zap.Stringer("number_id", number.ID))
	return &number, nil
}

// Get returns the number with id if owner owns it, otherwise apperr.ErrNotFound.
func (s *NumberService) Get(ctx context.Context, owner, id uuid.UUID) (*models.VirtualPhoneNumber, error) {
	return findOwned(s.db.WithContext(ctx), owner, id)
}

// Update replaces every writable field of the number.
func (s *NumberService) Update(ctx context.Context, owner, id uuid.UUID, in NumberInput) (*models.VirtualPhoneNumber, error) {
	var number *models.VirtualPhoneNumber
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findOwned(tx, owner, id)
		if err != nil {
			return err
		}
		number, err = applyInput(tx, owner, existing, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("number updated", zap.Stringer("owner", owner), zap.Stringer("number_id", id))
	return number, nil
}

// Patch updates only the fields present in patch. The merged record is
// validated as a whole.
func (s *NumberService) Patch(ctx context.Context, owner, id uuid.UUID, patch NumberPatch) (*models.VirtualPhoneNumber, error) {
	var number *models.VirtualPhoneNumber
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findOwned(tx, owner, id)
		if err != nil {
			return err
		}
		number, err = applyInput(tx, owner, existing, patch.merge(existing))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("number patched", zap.Stringer("owner", owner), zap.Stringer("number_id", id))
	return number, nil
}

// Delete removes the number. Missing or foreign ids yield apperr.ErrNotFound.
func (s *NumberService) Delete(ctx context.Context, owner, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Scopes(database.OwnedBy(owner)).
		Where("id = ?", id).
		Delete(&models.VirtualPhoneNumber{})
	if res.Error != nil {
		return fmt.Errorf("delete number: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}

	s.log.Info("number deleted", zap.Stringer("owner", owner), zap.Stringer("number_id", id))
	return nil
}

func findOwned(db *gorm.DB, owner, id uuid.UUID) (*models.VirtualPhoneNumber, error) {
	var number models.VirtualPhoneNumber
	if err := db.Scopes(database.OwnedBy(owner)).First(&number, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("lookup number: %w", err)
	}
	return &number, nil
}

func applyInput(tx *gorm.DB, owner uuid.UUID, existing *models.VirtualPhoneNumber, in NumberInput) (*models.VirtualPhoneNumber, error) {
	in = in.normalized()
	if err := utils.Validate(in); err != nil {
		return nil, err
	}

	if in.Number != existing.Number {
		if err := ensureNumberFree(tx, owner, in.Number, existing.ID); err != nil {
			return nil, err
		}
	}

	res := tx.Model(existing).Scopes(database.OwnedBy(owner)).Updates(map[string]interface{}{
		"number":       in.Number,
		"label":        in.Label,
		"country_code": in.CountryCode,
		"status":       in.Status,
	})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, numberTaken(in.Number)
		}
		return nil, fmt.Errorf("update number: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrNotFound
	}

	return findOwned(tx, owner, existing.ID)
}

func ensureNumberFree(tx *gorm.DB, owner uuid.UUID, number string, except uuid.UUID) error {
	query := tx.Model(&models.VirtualPhoneNumber{}).Scopes(database.OwnedBy(owner)).Where("number = ?", number)
	if except != uuid.Nil {
		query = query.Where("id <> ?", except)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("lookup number: %w", err)
	}
	if count > 0 {
		return numberTaken(number)
	}
	return nil
}

func numberTaken(number string) error {
	return fmt.Errorf("number %s %w", number, apperr.ErrConflict)
}

func (in NumberInput) normalized() NumberInput {
	in.Number = strings.TrimSpace(in.Number)
	in.Label = strings.TrimSpace(in.Label)
	in.CountryCode = strings.ToUpper(strings.TrimSpace(in.CountryCode))
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if in.Status == "" {
		in.Status = string(models.NumberStatusActive)
	}
	return in
}

func (p NumberPatch) merge(existing *models.VirtualPhoneNumber) NumberInput {
	in := NumberInput{
		Number:      existing.Number,
		Label:       existing.Label,
		CountryCode: existing.CountryCode,
		Status:      string(existing.Status),
	}
	if p.Number != nil {
		in.Number = *p.Number
	}
	if p.Label != nil {
		in.Label = *p.Label
	}
	if p.CountryCode != nil {
		in.CountryCode = *p.CountryCode
	}
	if p.Status != nil {
		in.Status = *p.Status
	}
	return in
}
