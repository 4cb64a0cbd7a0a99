package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorf_WrapsKind(t *testing.T) {
	err := Errorf(ErrConflict, "Email already registered")
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "Email already registered", err.Error())
}

func TestErrorf_SurvivesFurtherWrapping(t *testing.T) {
	err := fmt.Errorf("register: %w", Errorf(ErrExpired, "OTP has expired"))
	var de *Error
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, "OTP has expired", de.Message)
	assert.True(t, errors.Is(err, ErrExpired))
}
