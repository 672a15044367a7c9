package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInvalidInput, KindOf(Invalid("bad", nil)))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindTransientDependency, KindOf(errors.New("boom")))

	wrapped := fmt.Errorf("outer: %w", NotFound("missing", nil))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Timeout("t", nil)))
	assert.True(t, Retryable(Transient("t", nil)))
	assert.False(t, Retryable(Invalid("i", nil)))
	assert.False(t, Retryable(Permanent("p", nil)))
	assert.False(t, Retryable(Integrity("d", nil)))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusOf(Invalid("i", nil)))
	assert.Equal(t, http.StatusNotFound, StatusOf(NotFound("n", nil)))
	assert.Equal(t, http.StatusGatewayTimeout, StatusOf(Timeout("t", nil)))
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(Transient("t", nil)))
}
