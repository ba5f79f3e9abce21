package errors

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type mockCloser struct {
	io.Reader
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.closeErr
}

func TestDeferClose(t *testing.T) {
	tests := []struct {
		name       string
		closer     *mockCloser
		wantLogged bool
	}{
		{
			name:       "nil closer",
			closer:     nil,
			wantLogged: false,
		},
		{
			name:       "successful close",
			closer:     &mockCloser{},
			wantLogged: false,
		},
		{
			name:       "close with error",
			closer:     &mockCloser{closeErr: errors.New("close failed")},
			wantLogged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			if tt.closer == nil {
				DeferClose(logger, nil, "test close")
			} else {
				DeferClose(logger, tt.closer, "test close")
				assert.True(t, tt.closer.closed, "Close() was not called")
			}

			assert.Equal(t, tt.wantLogged, buf.Len() > 0)
		})
	}
}

func TestDrainAndClose(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	body := &mockCloser{Reader: strings.NewReader("leftover body")}

	DrainAndClose(logger, body, "close body")

	assert.True(t, body.closed)
	n, _ := body.Read(make([]byte, 8))
	assert.Zero(t, n, "body should be drained")
	assert.Zero(t, buf.Len())
}
