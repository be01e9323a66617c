package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskingHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewTextHandler(&buf, nil)))

	log.Info("lead created",
		slog.String("lead_email", "maria@example.com"),
		slog.String("api_key", "sk-123456"),
		slog.String("name", "Maria"),
	)

	out := buf.String()
	require.NotEmpty(t, out)

	assert.Contains(t, out, "m***@example.com")
	assert.NotContains(t, out, "maria@example.com")
	assert.NotContains(t, out, "sk-123456")
	assert.Contains(t, out, "Maria")
}

func TestMaskEmail(t *testing.T) {
	testCases := []struct {
		name  string
		email string
		want  string
	}{
		{name: "regular address", email: "joao.silva@clinica.com.br", want: "j***@clinica.com.br"},
		{name: "not an address", email: "segredo", want: "***"},
		{name: "empty", email: "", want: "***"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, maskEmail(tc.email))
		})
	}
}
