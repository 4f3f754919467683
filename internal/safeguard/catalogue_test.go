package safeguard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogue_Tables(t *testing.T) {
	cat, err := DefaultCatalogue()
	require.NoError(t, err)
	require.Positive(t, cat.Version)
	require.Equal(t, Default().Version(), cat.Version)

	require.Equal(t, []string{"kill you", "beat you", "hurt you", "punch you", "slap you", "shoot you", "stab you"}, cat.Threats.Phrases)
	require.Equal(t, []string{"murder", "stab"}, cat.Threats.Standalone)
	require.Len(t, cat.Threats.Objects, 2)
	require.Equal(t, "smash", cat.Threats.Objects[0].Verb)
	require.Equal(t, []string{"head", "face", "teeth", "skull", "nose"}, cat.Threats.Objects[0].Targets)
	require.Equal(t, "break", cat.Threats.Objects[1].Verb)
	require.Equal(t, []string{"legs", "arms", "neck", "bones", "nose", "jaw", "back"}, cat.Threats.Objects[1].Targets)

	require.Equal(t, []string{
		"i", "will", "am", "going", "to", "or", "and", "you", "your",
		"the", "a", "is", "are", "im", "ill", "be", "gonna", "in",
	}, cat.Fillers)
	require.Equal(t, []string{"ignore previous instructions", "system override"}, cat.Injections)
}

func TestLoadCatalogue_Errors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "malformed", raw: "version: [", want: "decode catalogue"},
		{name: "no version", raw: "threats: {phrases: [kill you]}\nattachments: [attached]", want: "version"},
		{name: "no threats", raw: "version: 1\nattachments: [attached]", want: "no threat entries"},
		{name: "object without targets", raw: "version: 1\nthreats: {objects: [{verb: smash}]}\nattachments: [attached]", want: "verb and targets"},
		{name: "no attachments", raw: "version: 1\nthreats: {phrases: [kill you]}", want: "no attachment patterns"},
		{name: "upper-case filler", raw: "version: 1\nthreats: {phrases: [kill you]}\nattachments: [attached]\nfillers: [You]", want: "lower-case"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadCatalogue([]byte(tc.raw))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestThreatPattern_Shape(t *testing.T) {
	table := ThreatTable{
		Phrases:    []string{"kill you"},
		Standalone: []string{"murder"},
		Objects:    []ThreatObject{{Verb: "smash", Targets: []string{"head", "face"}}},
	}
	gap := `[\s\p{Z}\x{FEFF}]+`
	require.Equal(t, `(?i)\b(?:(?:kill`+gap+`you)|(?:murder)|(?:smash`+gap+`your`+gap+`(?:head|face)))\b`, table.pattern())
}

func TestCustomCatalogue(t *testing.T) {
	cat, err := LoadCatalogue([]byte(`
version: 7
threats:
  phrases: [drown you]
attachments: [voice\s+note]
fillers: [i, will, you]
`))
	require.NoError(t, err)
	c, err := New(cat)
	require.NoError(t, err)
	require.Equal(t, 7, c.Version())
	require.False(t, c.Classify("I will drown you").Safe)
	require.True(t, c.Classify("I will kill you").Safe)
	require.False(t, c.Classify("here is a voice  note").Safe)
}
