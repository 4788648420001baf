package livequery

import (
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestParsePath(t *testing.T) {
	p, err := ParsePath("/users/u1/trips/t1/timeline/")
	assert.Equal(t, nil, err)
	assert.Equal(t, "users/u1/trips/t1/timeline", p.String())
	assert.Equal(t, "timeline", p.Name())
	assert.Equal(t, "users/*/trips/*/timeline", p.Pattern())
	assert.Equal(t, "u1", p.Param("users"))
	assert.Equal(t, "t1", p.Param("trips"))
	assert.Equal(t, "", p.Param("timeline"))
}

func TestParsePathRejects(t *testing.T) {
	for _, s := range []string{"", "/", "users/u1", "users//trips", "users/u1/trips/t1"} {
		_, err := ParsePath(s)
		assert.Equal(t, true, errors.Is(err, ErrInvalidPath))
	}
}

func TestCollectionValid(t *testing.T) {
	assert.Equal(t, true, Collection("shared_trips").Valid())
	assert.Equal(t, true, Collection("users", "u1", "friends").Valid())
	assert.Equal(t, false, Collection("users", "u1").Valid())
	assert.Equal(t, false, Collection("users", "", "friends").Valid())
	assert.Equal(t, false, Collection("users", "a/b", "friends").Valid())
	assert.Equal(t, false, Path{}.Valid())
}

func TestQueryBuildersCopy(t *testing.T) {
	base := NewQuery(Collection("shared_trips")).OrderBy("timestamp", true)
	a := base.Where("user_id", Eq, "u1")
	b := base.Where("user_id", Eq, "u2").WithLimit(5)

	assert.Equal(t, 0, len(base.Filters))
	assert.Equal(t, "u1", a.Filters[0].Value)
	assert.Equal(t, "u2", b.Filters[0].Value)
	assert.Equal(t, 0, a.Limit)
	assert.Equal(t, 5, b.Limit)
}

func TestQueryValidate(t *testing.T) {
	ok := NewQuery(Collection("users")).Where("lowercase_username", Prefix, "al").WithLimit(20)
	assert.Equal(t, nil, ok.Validate())

	assert.NotEqual(t, nil, NewQuery(Collection("users", "u1")).Validate())
	assert.NotEqual(t, nil, NewQuery(Collection("users")).Where("", Eq, 1).Validate())
	assert.NotEqual(t, nil, NewQuery(Collection("users")).Where("a", Op("~"), 1).Validate())
	assert.NotEqual(t, nil, NewQuery(Collection("users")).OrderBy("", false).Validate())
	assert.NotEqual(t, nil, NewQuery(Collection("users")).WithLimit(-1).Validate())
}
