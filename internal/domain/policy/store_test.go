package policy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"hrdesk/internal/domain/apperr"
)

func TestActivateErrorMapsUniqueViolationToConflict(t *testing.T) {
	id := "0b6a0e8e-6f43-4b7a-9a59-1f8f6c3f2a11"
	raced := fmt.Errorf("update: %w", &pgconn.PgError{Code: "23505", ConstraintName: "policies_one_active_per_category"})

	err := activateError(id, raced)
	assert.ErrorIs(t, err, apperr.ErrStateConflict)
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))

	notFound := apperr.NotFound("policy %s not found", id)
	assert.Same(t, notFound, activateError(id, notFound))

	other := activateError(id, errors.New("connection reset"))
	assert.NotErrorIs(t, other, apperr.ErrStateConflict)
	assert.Contains(t, other.Error(), "activate policy")
}
