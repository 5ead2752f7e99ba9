package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSystem(t *testing.T) {
	system, rest := SplitSystem([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "q"},
		{Role: RoleSystem, Content: "b"},
	})
	assert.Equal(t, "a\nb", system)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "q"}}, rest)

	system, rest = SplitSystem(nil)
	assert.Empty(t, system)
	assert.Empty(t, rest)
}
