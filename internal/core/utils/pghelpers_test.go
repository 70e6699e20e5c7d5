package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
)

func TestNullableText(t *testing.T) {
	assert.False(t, ToString("").Valid)
	assert.Equal(t, "x", FromString(ToString("x")))
	assert.Equal(t, "", FromString(pgtype.Text{}))

	assert.False(t, ToNullString(nil).Valid)
	s := "ref"
	got := FromNullString(ToNullString(&s))
	if assert.NotNil(t, got) {
		assert.Equal(t, "ref", *got)
	}
	assert.Nil(t, FromNullString(pgtype.Text{}))
}

func TestNullableUUID(t *testing.T) {
	assert.Nil(t, FromNullUUID(ToNullUUID(nil)))

	id := uuid.New()
	assert.True(t, ToUUID(id).Valid)
	got := FromNullUUID(ToNullUUID(&id))
	if assert.NotNil(t, got) {
		assert.Equal(t, id, *got)
	}
}

func TestNullableTime(t *testing.T) {
	assert.Nil(t, FromNullTime(ToNullTime(nil)))

	loc := time.FixedZone("CET", 3600)
	ts := time.Date(2025, 3, 10, 10, 0, 0, 0, loc)
	got := FromNullTime(ToNullTime(&ts))
	if assert.NotNil(t, got) {
		assert.True(t, ts.Equal(*got))
		assert.Equal(t, time.UTC, got.Location())
	}
}

func TestNullableInt8(t *testing.T) {
	assert.Nil(t, FromNullInt8(ToNullInt8(nil)))
	n := int64(42)
	got := FromNullInt8(ToNullInt8(&n))
	if assert.NotNil(t, got) {
		assert.Equal(t, int64(42), *got)
	}
}
