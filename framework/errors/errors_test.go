package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/km-arc/go-appcontext/framework/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.Class
	}{
		{"not found", errors.ErrNotFound, errors.ClassRecoverable},
		{"missing key", fmt.Errorf("greeting: %w", errors.ErrMissingKey), errors.ClassRecoverable},
		{"ambiguous", errors.ErrAmbiguous, errors.ClassCriteria},
		{"state", &errors.StateError{Context: "root", State: "closed", Operation: "Get", Reason: errors.ReasonClosed}, errors.ClassLifecycle},
		{"listener", fmt.Errorf("publish: %w", errors.ErrListenerFailure), errors.ClassAggregate},
		{"foreign", stderrors.New("boom"), errors.ClassRecoverable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Classify(tt.err))
		})
	}
}

func TestStateError_IsIllegalState(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &errors.StateError{Context: "c", State: "closed", Operation: "Publish", Reason: errors.ReasonClosed})

	assert.True(t, errors.Is(err, errors.ErrIllegalState))
	assert.Equal(t, errors.ReasonClosed, errors.ReasonOf(err))
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, errors.Reason(""), errors.ReasonOf(errors.ErrNotFound))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, errors.Wrap(nil, "x", "Get", ""))

	err := errors.Wrap(errors.ErrNotFound, "dataSource", "Get", "")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, "Get [dataSource]: component not found", err.Error())
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, errors.IsFatal(err))
}
