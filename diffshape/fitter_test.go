package diffshape

import (
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/meysamhadeli/gitshape/diffshape/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wideDoc(t *testing.T) *semanticDoc {
	t.Helper()
	hunks := make([]string, 10)
	for i := range hunks {
		hunks[i] = insertion(1+i*30, fmt.Sprintf("func F%d()", i), numbered(fmt.Sprintf("value%d", i), 20)...)
	}

	sd, err := newTestEngine().prepare(modifiedFile("pkg/wide.go", hunks...), 1)
	require.NoError(t, err)

	o := models.Options{PerFileHunkCap: 10, PreviewLines: 16}.WithDefaults()
	return newSemanticDoc(sd, o)
}

func TestFit_ShrinksMonotonically(t *testing.T) {
	doc := wideDoc(t)
	require.Len(t, doc.hunks, 10)

	out, err := fit(doc, 600, 1)
	require.NoError(t, err)
	require.NotEmpty(t, out.steps)

	first := out.steps[0]
	assert.Equal(t, 16, first.PreviewLines)
	assert.Equal(t, 10, first.Hunks)
	assert.Greater(t, first.Size, 600)

	for i := 1; i < len(out.steps); i++ {
		prev, cur := out.steps[i-1], out.steps[i]
		assert.LessOrEqual(t, cur.Size, prev.Size)
		// hunks are only dropped once previews reached the minimum
		if cur.Hunks < prev.Hunks {
			assert.Equal(t, 1, prev.PreviewLines)
		}
	}

	last := out.steps[len(out.steps)-1]
	assert.LessOrEqual(t, last.Size, 600)
	assert.Equal(t, last.Size, out.size)
	assert.Equal(t, utf8.RuneCountInString(out.payload), out.size)
	assert.Greater(t, out.hunks, 0)
	assert.Less(t, out.hunks, 10)
}

func TestFit_HalvesPreviews(t *testing.T) {
	out, err := fit(wideDoc(t), 600, 1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out.steps), 5)

	var previews []int
	for _, s := range out.steps[:5] {
		previews = append(previews, s.PreviewLines)
	}
	assert.Equal(t, []int{16, 8, 4, 2, 1}, previews)
}

func TestFit_NoStepsWhenItFits(t *testing.T) {
	doc := wideDoc(t)

	out, err := fit(doc, 100000, 1)
	require.NoError(t, err)
	assert.Empty(t, out.steps)
	assert.Equal(t, 10, out.hunks)
	assert.Equal(t, 16, out.previewLines)
}

func TestFit_BudgetExceeded(t *testing.T) {
	out, err := fit(wideDoc(t), 10, 1)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindBudgetExceeded))

	assert.Equal(t, 0, out.hunks)
	last := out.steps[len(out.steps)-1]
	assert.Equal(t, 0, last.Hunks)
	assert.Equal(t, 1, last.PreviewLines)
	assert.Contains(t, out.payload, `"hunks":[]`)
}

func TestFit_RespectsMinPreview(t *testing.T) {
	out, err := fit(wideDoc(t), 900, 3)
	require.NoError(t, err)
	for _, s := range out.steps {
		assert.GreaterOrEqual(t, s.PreviewLines, 3)
	}
}
