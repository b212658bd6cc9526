package response

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessEnvelope(t *testing.T) {
	res := Success(http.StatusOK, map[string]int{"count": 3})
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, res.Error)
}

func TestErrorEnvelope(t *testing.T) {
	res := Error(http.StatusConflict, "insufficient stock")
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "insufficient stock", res.Error)
	assert.Nil(t, res.Data)
}

func TestPaginatedCarriesMeta(t *testing.T) {
	res := Paginated(http.StatusOK, []string{"a", "b"}, 2, 20, 45)

	paged, ok := res.Data.(PagedData)
	assert.True(t, ok)
	assert.Equal(t, PageMeta{Page: 2, Limit: 20, Total: 45}, paged.Meta)
}
