package nn

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategoriesMatch(t *testing.T) {
	c := MustCategories([]string{"chips", "snack", "drink"})
	class, kw, ok := c.Match("EnergyDrink_01")
	require.True(t, ok)
	require.Equal(t, 2, class)
	require.Equal(t, "drink", kw)

	_, _, ok = c.Match("Chair")
	require.False(t, ok)

	// First keyword in list order wins, not first position in the name
	c = MustCategories([]string{"chips", "bottle"})
	class, kw, ok = c.Match("BottleOfChips")
	require.True(t, ok)
	require.Equal(t, 0, class)
	require.Equal(t, "chips", kw)

	class, _, ok = c.Match("ChipsBottle")
	require.True(t, ok)
	require.Equal(t, 0, class)
}

func TestCategoriesValidation(t *testing.T) {
	_, err := NewCategories(nil)
	require.ErrorIs(t, err, ErrEmptyCategories)

	_, err = NewCategories([]string{"can", "Can "})
	require.Error(t, err)

	_, err = NewCategories([]string{"can", " "})
	require.Error(t, err)

	c, err := NewCategories([]string{" Chips", "DRINK"})
	require.NoError(t, err)
	require.Equal(t, []string{"chips", "drink"}, c.Keywords())
	i, ok := c.Index("Drink")
	require.True(t, ok)
	require.Equal(t, 1, i)
	require.Equal(t, "chips", c.Keyword(0))
	require.Equal(t, "", c.Keyword(5))
}

func TestDefaultKeywordsAreValid(t *testing.T) {
	c, err := NewCategories(DefaultEdibleKeywords)
	require.NoError(t, err)
	require.Equal(t, len(DefaultEdibleKeywords), c.Len())
}

func TestClassFileRoundTrip(t *testing.T) {
	c := MustCategories([]string{"chips", "snack", "drink"})
	buf := bytes.Buffer{}
	require.NoError(t, c.WriteClassFile(&buf))
	fn := filepath.Join(t.TempDir(), "classes.txt")
	require.NoError(t, os.WriteFile(fn, buf.Bytes(), 0644))
	loaded, err := LoadClassFile(fn)
	require.NoError(t, err)
	require.Equal(t, c.Keywords(), loaded)
}
