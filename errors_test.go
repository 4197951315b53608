package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

func TestAsSessionError(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("building: %w", ErrInvalidTimeWindow), ErrCodeInvalidTimeWindow},
		{fmt.Errorf("allowed method 1: %w", ErrUnresolvableMethod), ErrCodeInvalidMethod},
		{ErrAmbiguousMethod, ErrCodeInvalidMethod},
		{ErrMissingSignature, ErrCodeMissingSignature},
		{ErrNilGrant, ErrCodeMissingSignature},
		{ErrUnsupportedVersion, ErrCodeUnsupportedVersion},
		{ErrUnsupportedFlow, ErrCodeUnsupportedFlow},
		{fmt.Errorf("%w: user rejected", ErrSignerFailure), ErrCodeSignerFailure},
		{fmt.Errorf("%w: over budget", ErrSignAborted), ErrCodeSignerFailure},
		{fmt.Errorf("token: %w", starknet.ErrMalformedNumber), ErrCodeMalformedNumber},
		{starknet.ErrFeltOverflow, ErrCodeMalformedNumber},
		{starknet.ErrShortStringTooLong, ErrCodeMalformedNumber},
		{errors.New("disk on fire"), ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			sessionErr := AsSessionError(tt.err)
			assert.Equal(t, tt.code, sessionErr.Code)
			assert.Equal(t, tt.err.Error(), sessionErr.Message)
			assert.ErrorIs(t, sessionErr, tt.err)
		})
	}

	t.Run("Nil", func(t *testing.T) {
		assert.Nil(t, AsSessionError(nil))
	})

	t.Run("Already coded", func(t *testing.T) {
		coded := NewSessionError(ErrCodeInvalidRequest, "bad body", map[string]interface{}{"field": "calls"})
		wrapped := fmt.Errorf("handler: %w", coded)
		assert.Same(t, coded, AsSessionError(wrapped))
		assert.Equal(t, "invalid_request: bad body", coded.Error())
	})
}
