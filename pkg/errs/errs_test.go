package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryMatching(t *testing.T) {
	assert.ErrorIs(t, Validationf("amount %s is bad", "x"), ErrValidation)
	assert.ErrorIs(t, NotFoundf("intent %s", "abc"), ErrNotFound)
	assert.ErrorIs(t, InvalidStatef("intent is %s", "executed"), ErrInvalidState)
	assert.ErrorIs(t, RaceLostf("intent %s claimed", "abc"), ErrRaceLost)

	cause := errors.New("connection refused")
	err := Collaborator("register intent", cause)
	assert.ErrorIs(t, err, ErrCollaborator)
	assert.Contains(t, err.Error(), "register intent")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCategoriesAreDistinct(t *testing.T) {
	err := Validationf("bad input")
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidState)
	assert.NotErrorIs(t, err, ErrCollaborator)
	assert.NotErrorIs(t, err, ErrRaceLost)
}

func TestMessageFormatting(t *testing.T) {
	err := NotFoundf("intent %s", "abc-123")
	assert.Equal(t, "not found: intent abc-123", err.Error())
}
