package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRules_Registry(t *testing.T) {
	rules := Rules()
	assert.Len(t, rules, 10)

	ids := map[string]bool{}
	names := map[string]bool{}
	for _, r := range rules {
		assert.NotEmpty(t, r.Description, r.ID)
		assert.NotEmpty(t, r.Icon, r.ID)
		assert.NotNil(t, r.Check, r.ID)
		assert.False(t, ids[r.ID], "duplicate id %s", r.ID)
		assert.False(t, names[r.Name], "duplicate name %s", r.Name)
		ids[r.ID], names[r.Name] = true, true
	}

	assert.Equal(t, "first_behavior", rules[0].ID)
	assert.Equal(t, "diverse_improvement", rules[9].ID)
}

func TestRules_ReturnsCopy(t *testing.T) {
	rules := Rules()
	rules[0].Name = "changed"

	assert.Equal(t, "First Steps", Rules()[0].Name)
}
