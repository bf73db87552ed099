package synonyms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/feudsurvey/pkg/models"
)

func rules(pairs ...string) []models.SynonymRule {
	out := make([]models.SynonymRule, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.SynonymRule{From: pairs[i], To: pairs[i+1]})
	}
	return out
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []models.SynonymRule
	}{
		{
			name: "yaml file layout",
			input: `
synonyms:
  - from: pussycat
    to: kitty
  - from: kitty
    to: cat
`,
			want: rules("pussycat", "kitty", "kitty", "cat"),
		},
		{
			name:  "yaml mapping keeps order",
			input: "zebra: horse\napple: fruit\nmango: fruit\n",
			want:  rules("zebra", "horse", "apple", "fruit", "mango", "fruit"),
		},
		{
			name:  "json object keeps order",
			input: `{"tele": "tv", "telly": "tv", "auto": "car"}`,
			want:  rules("tele", "tv", "telly", "tv", "auto", "car"),
		},
		{
			name:  "json array",
			input: `[{"from": "doggo", "to": "dog"}, {"from": "", "to": "x"}, {"to": "y"}]`,
			want:  rules("doggo", "dog"),
		},
		{
			name:  "wrapped json object",
			input: `{"synonyms": {"kitty": "cat"}}`,
			want:  rules("kitty", "cat"),
		},
		{
			name:  "null target becomes empty",
			input: `{"um": null}`,
			want:  rules("um", ""),
		},
		{
			name:  "text form",
			input: "kitty => cat",
			want:  rules("kitty", "cat"),
		},
		{
			name:  "empty document",
			input: "",
			want:  []models.SynonymRule{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Rules())
		})
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("synonyms: [unclosed"))
	assert.Error(t, err)
}

func TestParseText(t *testing.T) {
	text := "pussycat => kitty\r\n" +
		"  kitty=>cat  \n" +
		"no separator here\n" +
		" => orphan\n" +
		"a => b => c\n" +
		"\n" +
		"kitty => feline\n"

	got := ParseText(text)
	assert.Equal(t, rules("pussycat", "kitty", "kitty", "feline", "a", "b => c"), got.Rules())
}

func TestTextRoundTrip(t *testing.T) {
	set := models.NewSynonymRuleSet(rules("pussycat", "kitty", "kitty", "cat")...)
	assert.Equal(t, set.Rules(), ParseText(set.Text()).Rules())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		got, err := Load(filepath.Join(dir, "missing.yaml"))
		require.NoError(t, err)
		assert.Zero(t, got.Len())
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(dir, "synonyms.yaml")
		data, err := Marshal(models.NewSynonymRuleSet(rules("doggo", "dog", "pupper", "dog")...))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0600))

		got, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, rules("doggo", "dog", "pupper", "dog"), got.Rules())
	})

	t.Run("text file", func(t *testing.T) {
		path := filepath.Join(dir, "synonyms.txt")
		require.NoError(t, os.WriteFile(path, []byte("kitty => cat\ndoggo => dog\n"), 0600))

		got, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, rules("kitty", "cat", "doggo", "dog"), got.Rules())
	})
}
