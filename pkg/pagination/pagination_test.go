package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func parseQuery(query string) Params {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/x?"+query, nil)
	return Parse(c)
}

func TestParse(t *testing.T) {
	assert.Equal(t, Params{Page: 1, Limit: 20, Offset: 0}, parseQuery(""))
	assert.Equal(t, Params{Page: 3, Limit: 10, Offset: 20}, parseQuery("page=3&limit=10"))
	assert.Equal(t, Params{Page: 1, Limit: 100, Offset: 0}, parseQuery("page=-2&limit=500"))
	assert.Equal(t, Params{Page: 1, Limit: 20, Offset: 0}, parseQuery("page=abc&limit=0"))
}

func TestNewMeta(t *testing.T) {
	assert.Equal(t, Meta{Page: 1, Limit: 20, Total: 41, TotalPages: 3}, NewMeta(Params{Page: 1, Limit: 20}, 41))
	assert.Equal(t, 0, NewMeta(Params{Page: 1, Limit: 20}, 0).TotalPages)
}
