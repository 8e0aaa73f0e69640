package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeExecuteRequest(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req, err := decodeExecuteRequest([]byte(`{"query":"Explain REST APIs"}`))
		require.NoError(t, err)
		assert.Equal(t, "Explain REST APIs", req.Query)
	})

	t.Run("whitespace query passes the schema", func(t *testing.T) {
		req, err := decodeExecuteRequest([]byte(`{"query":"  "}`))
		require.NoError(t, err)
		assert.Equal(t, "  ", req.Query)
	})

	invalid := map[string]string{
		"malformed":     `{"query":`,
		"missing query": `{}`,
		"empty query":   `{"query":""}`,
		"null query":    `{"query":null}`,
		"extra field":   `{"query":"q","n":1}`,
		"too long":      `{"query":"` + strings.Repeat("a", 8193) + `"}`,
	}

	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := decodeExecuteRequest([]byte(body))
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}
