package overlay

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plain(text string, offset int) Segment {
	return Segment{Kind: Plain, Text: text, Offset: offset}
}

func mark(text string, offset int) Segment {
	return Segment{Kind: Highlighted, Text: text, Offset: offset}
}

func TestOverlay(t *testing.T) {
	t.Run("NoAnnotations", func(t *testing.T) {
		assert.Equal(t, []Segment{plain("Hello world", 0)}, Overlay("Hello world", nil))
	})

	t.Run("EmptyText", func(t *testing.T) {
		assert.Empty(t, Overlay("", nil))
		assert.Empty(t, Overlay("", []Annotation{{Word: "x", Position: 0}}))
	})

	t.Run("SingleExactMatch", func(t *testing.T) {
		got := Overlay("I has a apple", []Annotation{{Word: "has", Position: 2}})
		assert.Equal(t, []Segment{plain("I ", 0), mark("has", 2), plain(" a apple", 5)}, got)
	})

	t.Run("TolerantMatch", func(t *testing.T) {
		got := Overlay("I has a apple", []Annotation{{Word: "has", Position: 7}})
		assert.Equal(t, []Segment{plain("I ", 0), mark("has", 2), plain(" a apple", 5)}, got)
	})

	t.Run("BeyondTolerance", func(t *testing.T) {
		res := Default().Apply("I has a apple", []Annotation{{Word: "has", Position: 8}})
		assert.Equal(t, []Segment{plain("I has a apple", 0)}, res.Segments)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, SkipUnlocatable, res.Skipped[0].Reason)
	})

	t.Run("UnlocatableSkip", func(t *testing.T) {
		res := Default().Apply("Hello world", []Annotation{{Word: "xyzzy", Position: 0}})
		assert.Equal(t, []Segment{plain("Hello world", 0)}, res.Segments)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, SkipUnlocatable, res.Skipped[0].Reason)
	})

	t.Run("DistinctOccurrences", func(t *testing.T) {
		text := "the cat and the dog"
		got := Overlay(text, []Annotation{{Word: "the", Position: 0}, {Word: "the", Position: 12}})
		assert.Equal(t, []Segment{
			mark("the", 0),
			plain(" cat and ", 3),
			mark("the", 12),
			plain(" dog", 15),
		}, got)
	})

	t.Run("OverlappingDuplicateSkipped", func(t *testing.T) {
		text := "the cat and the dog"
		res := Default().Apply(text, []Annotation{{Word: "the", Position: 0}, {Word: "the", Position: 2}})
		assert.Equal(t, []Segment{mark("the", 0), plain(" cat and the dog", 3)}, res.Segments)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, SkipOverlapping, res.Skipped[0].Reason)
		assert.Equal(t, 2, res.Skipped[0].Annotation.Position)
	})

	t.Run("OverlappingDifferentWord", func(t *testing.T) {
		res := Default().Apply("an apple a day", []Annotation{{Word: "an apple", Position: 0}, {Word: "apple", Position: 3}})
		assert.Equal(t, []Segment{mark("an apple", 0), plain(" a day", 8)}, res.Segments)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, SkipOverlapping, res.Skipped[0].Reason)
	})

	t.Run("UnsortedInput", func(t *testing.T) {
		got := Overlay("she go to school yesterday", []Annotation{
			{Word: "yesterday", Position: 17},
			{Word: "go", Position: 4},
		})
		assert.Equal(t, []Segment{
			plain("she ", 0),
			mark("go", 4),
			plain(" to school ", 6),
			mark("yesterday", 17),
		}, got)
	})

	t.Run("TieKeepsListedOrder", func(t *testing.T) {
		res := Default().Apply("I has a apple", []Annotation{
			{Word: "ha", Position: 2},
			{Word: "has", Position: 2},
		})
		assert.Equal(t, []Segment{plain("I ", 0), mark("ha", 2), plain("s a apple", 4)}, res.Segments)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, "has", res.Skipped[0].Annotation.Word)
	})

	t.Run("AdjacentHighlightsStaySeparate", func(t *testing.T) {
		got := Overlay("abc", []Annotation{{Word: "a", Position: 0}, {Word: "b", Position: 1}})
		assert.Equal(t, []Segment{mark("a", 0), mark("b", 1), plain("c", 2)}, got)
	})

	t.Run("EmptyWordSkipped", func(t *testing.T) {
		res := Default().Apply("abc", []Annotation{{Word: "", Position: 1}})
		assert.Equal(t, []Segment{plain("abc", 0)}, res.Segments)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, SkipEmptyWord, res.Skipped[0].Reason)
	})

	t.Run("PositionPastEnd", func(t *testing.T) {
		res := Default().Apply("short", []Annotation{{Word: "short", Position: 500}})
		assert.Equal(t, []Segment{plain("short", 0)}, res.Segments)
		assert.Equal(t, 0, res.Highlights())
	})

	t.Run("NegativePosition", func(t *testing.T) {
		got := Overlay("oops here", []Annotation{{Word: "oops", Position: -3}})
		assert.Equal(t, []Segment{mark("oops", 0), plain(" here", 4)}, got)
	})

	t.Run("NegativePositionExtreme", func(t *testing.T) {
		res := Default().Apply("I has a apple", []Annotation{{Word: "has", Position: math.MinInt + 2}})
		assert.Equal(t, []Segment{plain("I ", 0), mark("has", 2), plain(" a apple", 5)}, res.Segments)
		assert.Empty(t, res.Skipped)
	})

	t.Run("WholeText", func(t *testing.T) {
		got := Overlay("teh", []Annotation{{Word: "teh", Position: 0}})
		assert.Equal(t, []Segment{mark("teh", 0)}, got)
	})

	t.Run("InputNotMutated", func(t *testing.T) {
		in := []Annotation{{Word: "b", Position: 4}, {Word: "a", Position: 0}}
		Overlay("a b", in)
		assert.Equal(t, []Annotation{{Word: "b", Position: 4}, {Word: "a", Position: 0}}, in)
	})
}

func TestOverlayMultibyte(t *testing.T) {
	text := "Café 😀 il sont là"

	t.Run("RunePositions", func(t *testing.T) {
		// "sont" starts at rune 10
		got := Overlay(text, []Annotation{{Word: "sont", Position: 10}})
		require.Len(t, got, 3)
		assert.Equal(t, "sont", got[1].Text)
		assert.Equal(t, Highlighted, got[1].Kind)
		assert.Equal(t, text, Join(got))
	})

	t.Run("UTF16Positions", func(t *testing.T) {
		// the emoji counts as two UTF-16 units, so "sont" starts at 11
		e, err := NewEngine(WithUnit(UnitUTF16), WithTolerance(0))
		require.NoError(t, err)
		res := e.Apply(text, []Annotation{{Word: "sont", Position: 11}})
		assert.Equal(t, 1, res.Highlights())
		assert.Equal(t, text, res.String())

		// with runes and no tolerance the same position is past the word start
		e, err = NewEngine(WithTolerance(0))
		require.NoError(t, err)
		res = e.Apply(text, []Annotation{{Word: "sont", Position: 11}})
		assert.Equal(t, 0, res.Highlights())
	})

	t.Run("BytePositions", func(t *testing.T) {
		e, err := NewEngine(WithUnit(UnitByte))
		require.NoError(t, err)
		// lookback lands inside the emoji and rounds down to its first byte
		res := e.Apply(text, []Annotation{{Word: "il", Position: 12}})
		assert.Equal(t, 1, res.Highlights())
		assert.Equal(t, text, res.String())
	})
}

func TestNewEngine(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		e, err := NewEngine()
		require.NoError(t, err)
		assert.Equal(t, DefaultTolerance, e.Tolerance())
		assert.Equal(t, UnitRune, e.Unit())
	})

	t.Run("NegativeTolerance", func(t *testing.T) {
		_, err := NewEngine(WithTolerance(-1))
		assert.ErrorIs(t, err, ErrInvalidTolerance)
	})

	t.Run("UnknownUnit", func(t *testing.T) {
		_, err := NewEngine(WithUnit("furlong"))
		assert.ErrorIs(t, err, ErrInvalidUnit)
	})

	t.Run("UnitNormalized", func(t *testing.T) {
		e, err := NewEngine(WithUnit(""))
		require.NoError(t, err)
		assert.Equal(t, UnitRune, e.Unit())

		e, err = NewEngine(WithUnit(" UTF16 "))
		require.NoError(t, err)
		assert.Equal(t, UnitUTF16, e.Unit())
	})

	t.Run("WiderTolerance", func(t *testing.T) {
		e, err := NewEngine(WithTolerance(10))
		require.NoError(t, err)
		res := e.Apply("I has a apple", []Annotation{{Word: "has", Position: 12}})
		assert.Equal(t, 1, res.Highlights())
	})
}

func TestOverlayProperties(t *testing.T) {
	words := []string{"the", "a", "cat", "xyzzy", "at", "dog", "", "é", "the cat"}
	texts := []string{
		"",
		"the cat sat on the mat",
		"a dog and a cat and a dog",
		"é à é à the the the",
		"no matches here at all",
	}
	rng := rand.New(rand.NewSource(42))

	for _, text := range texts {
		for iter := 0; iter < 200; iter++ {
			n := rng.Intn(6)
			anns := make([]Annotation, n)
			used := map[int]bool{}
			for i := range anns {
				pos := rng.Intn(len(text) + 10)
				for used[pos] {
					pos++
				}
				used[pos] = true
				anns[i] = Annotation{Word: words[rng.Intn(len(words))], Position: pos}
			}

			res := Default().Apply(text, anns)

			// lossless
			require.Equal(t, text, res.String())

			// every annotation is either highlighted or skipped
			require.Equal(t, n, res.Highlights()+len(res.Skipped))

			// no empty segments, no adjacent plain runs, offsets contiguous
			offset := 0
			for i, s := range res.Segments {
				require.NotEmpty(t, s.Text)
				require.Equal(t, offset, s.Offset)
				offset = s.End()
				if i > 0 && s.Kind == Plain {
					require.NotEqual(t, Plain, res.Segments[i-1].Kind)
				}
			}

			// permutation with distinct positions yields identical output
			shuffled := append([]Annotation(nil), anns...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			require.Equal(t, res.Segments, Default().Apply(text, shuffled).Segments)
		}
	}
}

func TestKindText(t *testing.T) {
	b, err := Highlighted.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "highlighted", string(b))

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("plain")))
	assert.Equal(t, Plain, k)
	assert.Error(t, k.UnmarshalText([]byte("bold")))
}
