package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressSnapshotIsZero(t *testing.T) {
	assert.True(t, AddressSnapshot{}.IsZero())
	assert.True(t, AddressSnapshot{Line1: "  ", Country: "ES"}.IsZero())
	assert.False(t, AddressSnapshot{City: "Madrid"}.IsZero())
}

func TestAddressSnapshotNormalize(t *testing.T) {
	got := AddressSnapshot{
		Line1:      " Calle Mayor 1 ",
		PostalCode: " 28013",
		City:       "Madrid ",
		Country:    " es ",
	}.Normalize()

	assert.Equal(t, "Calle Mayor 1", got.Line1)
	assert.Equal(t, "28013", got.PostalCode)
	assert.Equal(t, "Madrid", got.City)
	assert.Equal(t, "ES", got.Country)
}
