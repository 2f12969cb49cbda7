package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kursbot/internal/models"
)

func TestCourseCatalogStates(t *testing.T) {
	kb := NewKeyboardBuilder()
	courses := []models.Course{
		{ID: 1, Name: "1-bosqich kursi", Level: "1-bosqich"},
		{ID: 2, Name: "2-bosqich kursi", Level: "2-bosqich"},
		{ID: 3, Name: "3-bosqich kursi", Level: "3-bosqich"},
	}
	purchased := map[uint]bool{1: true}

	markup := kb.CourseCatalog(courses, "2-bosqich", purchased)
	require.Len(t, markup.InlineKeyboard, 3)

	assert.Equal(t, "✅ 1-bosqich kursi", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "👉 2-bosqich kursi", markup.InlineKeyboard[1][0].Text)
	assert.Equal(t, "🔒 3-bosqich kursi", markup.InlineKeyboard[2][0].Text)
}

func TestTeamNavEdges(t *testing.T) {
	kb := NewKeyboardBuilder()

	// Single page: no nav row, only the drill-down row.
	markup := kb.TeamNav(0, 1)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Len(t, markup.InlineKeyboard[0], 2)

	// Middle page: both directions present.
	markup = kb.TeamNav(1, 3)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 2)
}
