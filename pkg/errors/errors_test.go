package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrNotFound, "student not found")
	assert.Equal(t, "student not found", err.Message)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestWithFieldDoesNotMutateSentinel(t *testing.T) {
	err := WithField(ErrInvalidCredentials, "username", "Username does not exist.")
	assert.Equal(t, map[string]string{"username": "Username does not exist."}, err.Fields)
	assert.Nil(t, ErrInvalidCredentials.Fields)

	merged := WithFields(err, "invalid payload", map[string]string{"password": "required"})
	assert.Len(t, merged.Fields, 2)
	assert.Len(t, err.Fields, 1)
}
