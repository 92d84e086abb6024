package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/telephony/internal/apperr"
	"github.com/example/telephony/internal/models"
	"github.com/example/telephony/internal/testutil"
)

type numberFixture struct {
	db    *gorm.DB
	svc   *NumberService
	alice uuid.UUID
	bob   uuid.UUID
}

func newNumberFixture(t *testing.T) numberFixture {
	t.Helper()
	db := testutil.NewDB(t)

	alice := models.User{Email: "alice@example.com", PasswordHash: "x"}
	bob := models.User{Email: "bob@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)

	return numberFixture{db: db, svc: NewNumberService(db, zap.NewNop()), alice: alice.ID, bob: bob.ID}
}

func strPtr(s string) *string { return &s }

func TestNumberCreate_AssignsOwnerAndDefaults(t *testing.T) {
	f := newNumberFixture(t)

	n, err := f.svc.Create(context.Background(), f.alice, NumberInput{Number: " +15551234 ", Label: "Support", CountryCode: "us"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, f.alice, n.UserID)
	assert.Equal(t, "+15551234", n.Number)
	assert.Equal(t, "US", n.CountryCode)
	assert.Equal(t, models.NumberStatusActive, n.Status)
}

func TestNumberCreate_ThenGetReturnsSameRecord(t *testing.T) {
	f := newNumberFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.alice, NumberInput{Number: "+15551234", Label: "Sales", Status: "inactive"})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, f.alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, f.alice, got.UserID)
	assert.Equal(t, "+15551234", got.Number)
	assert.Equal(t, "Sales", got.Label)
	assert.Equal(t, models.NumberStatusInactive, got.Status)
}

func TestNumberCreate_Validation(t *testing.T) {
	f := newNumberFixture(t)

	tests := []struct {
		name  string
		in    NumberInput
		field string
	}{
		{"missing number", NumberInput{}, "number"},
		{"not e164", NumberInput{Number: "555-1234"}, "number"},
		{"bad status", NumberInput{Number: "+15551234", Status: "ported"}, "status"},
		{"bad country", NumberInput{Number: "+15551234", CountryCode: "USA"}, "country_code"},
		{"long label", NumberInput{Number: "+15551234", Label: string(make([]rune, 65))}, "label"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.alice, tc.in)

			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Contains(t, ve.Fields, tc.field)
		})
	}
}

func TestNumberCreate_DuplicatePerOwner(t *testing.T) {
	f := newNumberFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.alice, NumberInput{Number: "+15551234"})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.alice, NumberInput{Number: "+15551234"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// another owner is unaffected, so a conflict never reveals foreign records
	_, err = f.svc.Create(ctx, f.bob, NumberInput{Number: "+15551234"})
	assert.NoError(t, err)
}

func TestNumberCreate_ConcurrentInsertConflicts(t *testing.T) {
	f := newNumberFixture(t)
	insertBeforeCreate(t, f.db, func(tx *gorm.DB, n *models.VirtualPhoneNumber) error {
		return tx.Create(&models.VirtualPhoneNumber{UserID: n.UserID, Number: n.Number, Status: n.Status}).Error
	})

	_, err := f.svc.Create(context.Background(), f.alice, NumberInput{Number: "+15551234"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.EqualError(t, err, "number +15551234 already exists")

	items, total, err := f.svc.List(context.Background(), f.alice, ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestNumberList_ScopedToOwner(t *testing.T) {
	f := newNumberFixture(t)
	ctx := context.Background()

	for _, n := range []string{"+15550001", "+15550002", "+15550003"} {
		_, err := f.svc.Create(ctx, f.alice, NumberInput{Number: n})
		require.NoError(t, err)
	}

	items, total, err := f.svc.List(ctx, f.bob, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
	assert.Zero(t, total)

	items, total, err = f.svc.List(ctx, f.alice, ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 3)
	assert.Equal(t, "+15550001", items[0].Number)
	assert.Equal(t, "+15550003", items[2].Number)
}

func TestNumberList_FilterAndPaginate(t *testing.T) {
	f := newNumberFixture(t)
	ctx := context.Background()

	for _, in := range []NumberInput{
		{Number: "+15550001"},
		{Number: "+15550002", Status: "suspended"},
		{Number: "+15550003"},
		{Number: "+15550004"},
	} {
		_, err := f.svc.Create(ctx, f.alice, in)
		require.NoError(t, err)
	}

	items, total, err := f.svc.List(ctx, f.alice, ListFilter{Status: "Active", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "+15550004", items[0].Number)

	_, _, err = f.svc.List(ctx, f.alice, ListFilter{Status: "deleted"})
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestNumberList_SameTimestampKeepsInsertionOrder(t *testing.T) {
	f := newNumberFixture(t)
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	want := []string{"+15550003", "+15550001", "+15550002"}
	for _, n := range want {
		require.NoError(t, f.db.Create(&models.VirtualPhoneNumber{
			BaseModel: models.BaseModel{CreatedAt: at},
			UserID:    f.alice,
			Number:    n,
			Status:    models.NumberStatusActive,
		}).Error)
	}

	items, _, err := f.svc.List(context.Background(), f.alice, ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, len(want))
	for i, n := range want {
		assert.Equal(t, n, items[i].Number)
	}
}

func TestNumberForeignAccessIsNotFound(t *testing.T) {
	f := newNumberFixture(t)
	ctx := context.Background()

	n, err := f.svc.Create(ctx, f.alice, NumberInput{Number: "+15551234"})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.bob, n.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Update(ctx, f.bob, n.ID, NumberInput{Number: "+15559999"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Patch(ctx, f.bob, n.ID, NumberPatch{Label: strPtr("hijacked")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.bob, n.ID), apperr.ErrNotFound)

	// alice's record is untouched
	got, err := f.svc.Get(ctx, f.alice, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "+15551234", got.Number)
	assert.Empty(t, got.Label)
}

func TestNumberUpdate_ReplacesFields(t *testing.T) {
	f := newNumberFixture(t)
	ctx := context.Background()

	n, err := f.svc.Create(ctx, f.alice, NumberInput{Number: "+15551234", Label: "Old", CountryCode: "US"})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, f.alice, n.ID, NumberInput{Number: "+442071234567", Status: "suspended"})
	require.NoError(t, err)
	assert.Equal(t, "+442071234567", updated.Number)
	assert.Empty(t, updated.Label)
	assert.Empty(t, updated.CountryCode)
	assert.Equal(t, models.NumberStatusSuspended, updated.Status)

	got, err := f.svc.Get(ctx, f.alice, n.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Number, got.Number)
	assert.Equal(t, models.NumberStatusSuspended, got.Status)
}

func TestNumberUpdate_RevalidatesAndDetectsConflict(t *testing.T) {
	f := newNumberFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, f.alice, NumberInput{Number: "+15550001"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.alice, NumberInput{Number: "+15550002"})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.alice, a.ID, NumberInput{Number: "bogus"})
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = f.svc.Update(ctx, f.alice, a.ID, NumberInput{Number: "+15550002"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// keeping its own number is not a conflict
	_, err = f.svc.Update(ctx, f.alice, a.ID, NumberInput{Number: "+15550001", Label: "same"})
	assert.NoError(t, err)
}

func TestNumberPatch_OnlyTouchesGivenFields(t *testing.T) {
	f := newNumberFixture(t)
	ctx := context.Background()

	n, err := f.svc.Create(ctx, f.alice, NumberInput{Number: "+15551234", Label: "Support", CountryCode: "US"})
	require.NoError(t, err)

	patched, err := f.svc.Patch(ctx, f.alice, n.ID, NumberPatch{Status: strPtr("inactive")})
	require.NoError(t, err)
	assert.Equal(t, models.NumberStatusInactive, patched.Status)
	assert.Equal(t, "Support", patched.Label)
	assert.Equal(t, "US", patched.CountryCode)
	assert.Equal(t, "+15551234", patched.Number)

	_, err = f.svc.Patch(ctx, f.alice, n.ID, NumberPatch{Number: strPtr("")})
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "number")
}

func TestNumberDelete(t *testing.T) {
	f := newNumberFixture(t)
	ctx := context.Background()

	n, err := f.svc.Create(ctx, f.alice, NumberInput{Number: "+15551234"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, f.alice, n.ID))

	_, err = f.svc.Get(ctx, f.alice, n.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.alice, n.ID), apperr.ErrNotFound)
}
