package appErrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/unclebandit/fundraiser-backend/internal/errors"
)

func TestNotOwnerMessage(t *testing.T) {
	assert.Contains(t, appErrors.ErrNotOwner.Error(), "caller is not the owner")
	assert.Equal(t, "offset out of bounds", appErrors.ErrOffsetOutOfBounds.Error())
}

func TestIsTransient(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("donate: %w", appErrors.NewUnavailable("save donation", cause))

	assert.True(t, appErrors.IsTransient(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, appErrors.IsTransient(appErrors.ErrNotOwner))
	assert.False(t, appErrors.IsTransient(nil))
}

func TestKindHelpers(t *testing.T) {
	assert.True(t, appErrors.IsNotFound(fmt.Errorf("lookup: %w", appErrors.NewFundraiserNotFound(7))))
	assert.True(t, appErrors.IsInvalidAddress(appErrors.NewInvalidAddress("nope")))
	assert.Equal(t, "fundraiser with ID 7 not found", appErrors.NewFundraiserNotFound(7).Error())
}
