package fallback

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStory_Deterministic(t *testing.T) {
	for _, p := range []string{"pottery", "", "  spaced  ", "madhubani painting", "日本の陶器"} {
		require.Equal(t, Story(p), Story(p), "prompt %q", p)
	}
}

func TestStory_InterpolatesPromptVerbatim(t *testing.T) {
	got := Story("block printing")
	require.True(t, strings.HasPrefix(got, "In the creative journey of block printing, "), got)
	require.Contains(t, got, "artisanal excellence")
}

func TestStory_DifferentPromptsDiffer(t *testing.T) {
	require.NotEqual(t, Story("pottery"), Story("weaving"))
}
