package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeActor(t *testing.T) {
	t.Run("actor from body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/ml/models/keyword/activate", strings.NewReader(`{"actor":"operator"}`))
		assert.Equal(t, "operator", decodeActor(r))
	})

	t.Run("empty body defaults to api", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/ml/models/keyword/activate", nil)
		assert.Equal(t, "api", decodeActor(r))
	})

	t.Run("malformed body defaults to api", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/ml/models/keyword/rollback", strings.NewReader("{not json"))
		assert.Equal(t, "api", decodeActor(r))
	})
}
