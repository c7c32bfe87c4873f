package keyvalidate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAccepts(t *testing.T) {
	assert.NoError(t, Validate("cfg/main", true))
	assert.NoError(t, Validate("A-z_0.9/path", true))
}

func TestValidateRejectsEmpty(t *testing.T) {
	err := Validate("", true)
	var ve *Error
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, Empty, ve.Kind)
}

func TestValidateRejectsTooLong(t *testing.T) {
	err := Validate(strings.Repeat("a", MaxKeyBytes+1), true)
	var ve *Error
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, TooLong, ve.Kind)
}

func TestValidateRejectsInvalidChars(t *testing.T) {
	err := Validate("a b", true)
	var ve *Error
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, InvalidChars, ve.Kind)
}

func TestValidateDatastoreGate(t *testing.T) {
	assert.NoError(t, Validate("dataStore/x", true))
	err := Validate("dataStore/x", false)
	var ve *Error
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, DatastoreDisabled, ve.Kind)
}

func TestValidateAtLimitAccepted(t *testing.T) {
	assert.NoError(t, Validate(strings.Repeat("a", MaxKeyBytes), true))
}
