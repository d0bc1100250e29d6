package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHelpersWrapSentinels(t *testing.T) {
	err := Invalid("field %s is required", "customerId")
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, "invalid argument: field customerId is required", err.Error())

	err = fmt.Errorf("load service: %w", NotFound("service", "abc"))
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "service abc")

	require.ErrorIs(t, Conflict("status changed"), ErrConflict)
}

func TestInternalKeepsBothKindAndCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := Internal("update service", cause)
	require.ErrorIs(t, err, ErrInternal)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "internal error: update service: database is locked", err.Error())
}
