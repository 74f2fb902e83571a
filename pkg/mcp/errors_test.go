package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsTransportFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled context", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"net closed", net.ErrClosed, true},
		{"connection refused text", errors.New("dial tcp 127.0.0.1:9: connection refused"), true},
		{"broken pipe text", fmt.Errorf("write: %w", errors.New("broken pipe")), true},
		{"process exited", errors.New("process exited with status 1"), true},
		{"protocol error", errors.New("invalid params"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransportFailure(tt.err))
		})
	}
}

func TestBackoffDuration(t *testing.T) {
	assert.Equal(t, 1*time.Second, backoffDuration(0))
	assert.Equal(t, 2*time.Second, backoffDuration(1))
	assert.Equal(t, 4*time.Second, backoffDuration(2))
	assert.Equal(t, 16*time.Second, backoffDuration(4))
	// Capped beyond 2^5.
	assert.Equal(t, backoffCap, backoffDuration(5))
	assert.Equal(t, backoffCap, backoffDuration(12))
	assert.Equal(t, backoffCap, backoffDuration(63))
}

func TestErrorTypes_WrapAndMatch(t *testing.T) {
	cause := errors.New("pipe closed")
	transport := &TransportError{Server: "ovr_repomix", Tool: "grep_packed", Err: cause}

	assert.True(t, IsTransport(transport))
	assert.False(t, IsTool(transport))
	assert.ErrorIs(t, transport, cause)
	assert.Contains(t, transport.Error(), "ovr_repomix.grep_packed")

	tool := &ToolError{Server: "ovr_github", Tool: "create_branch", Message: "reference already exists"}
	assert.True(t, IsTool(tool))
	assert.False(t, IsTransport(tool))

	wrapped := fmt.Errorf("step failed: %w", transport)
	assert.True(t, IsTransport(wrapped))
}
