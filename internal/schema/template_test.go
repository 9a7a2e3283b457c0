package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeTemplate(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want []Token
	}{
		{
			"pure literal",
			"results/stats.txt",
			[]Token{{TokenLiteral, "results/stats.txt"}},
		},
		{
			"variables and literals interleave",
			"$base_dir/$instance/reads.fq",
			[]Token{
				{TokenVariable, "base_dir"},
				{TokenLiteral, "/"},
				{TokenVariable, "instance"},
				{TokenLiteral, "/reads.fq"},
			},
		},
		{
			"ancestor reference",
			"@study/manifest.tsv",
			[]Token{
				{TokenAncestor, "study"},
				{TokenLiteral, "/manifest.tsv"},
			},
		},
		{
			"typed references",
			"tool -i !{input:reads} -o !{output:clean} --mode !{prop:mode}",
			[]Token{
				{TokenLiteral, "tool -i "},
				{TokenInput, "reads"},
				{TokenLiteral, " -o "},
				{TokenOutput, "clean"},
				{TokenLiteral, " --mode "},
				{TokenProp, "mode"},
			},
		},
		{
			"raw passes through",
			"sort -k2 !{raw:$2}",
			[]Token{
				{TokenLiteral, "sort -k2 "},
				{TokenRaw, "$2"},
			},
		},
		{
			"raw shell substitution keeps its braces",
			"awk '{print !{raw:${COL}}}'",
			[]Token{
				{TokenLiteral, "awk '{print "},
				{TokenRaw, "${COL}"},
				{TokenLiteral, "}'"},
			},
		},
		{
			"bare marker stays literal",
			"price in $ and @",
			[]Token{{TokenLiteral, "price in $ and @"}},
		},
		{
			"identifier stops at non-ident byte",
			"$a-b",
			[]Token{
				{TokenVariable, "a"},
				{TokenLiteral, "-b"},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tpl, err := TokenizeTemplate(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.src, tpl.Source)
			assert.Equal(t, tc.want, tpl.Tokens)
		})
	}
}

func TestTokenizeTemplateErrors(t *testing.T) {
	t.Run("unterminated reference", func(t *testing.T) {
		_, err := TokenizeTemplate("tool !{input:reads")
		assert.ErrorContains(t, err, "unterminated")
	})

	t.Run("missing type prefix", func(t *testing.T) {
		_, err := TokenizeTemplate("tool !{reads}")
		assert.ErrorContains(t, err, "lacks a type prefix")
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := TokenizeTemplate("tool !{glob:reads}")
		assert.ErrorContains(t, err, "unknown reference type")
	})
}
