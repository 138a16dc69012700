package mediation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midi-bridge/midi"
)

func intPtr(v int) *int { return &v }

func TestDefaultMappingsParse(t *testing.T) {
	table, err := DefaultMappings()
	require.NoError(t, err)
	require.NotEmpty(t, table)

	knobs, ok := table.Lookup("Arturia BeatStep")
	require.True(t, ok)
	assert.Len(t, knobs, 16)
	assert.True(t, midi.Special("Pan").Equal(knobs[0].Controller))
	assert.Nil(t, knobs[0].Channel)

	_, ok = table.Lookup("arturia beatstep")
	assert.False(t, ok, "lookup is by exact name")
}

func TestParseMappings(t *testing.T) {
	table, err := ParseMappings([]byte(`
- name: Test Device
  knobs:
    - channel: 2
      controller: {Numbered: 70}
    - controller: {Special: ModWheel}
`))
	require.NoError(t, err)
	knobs, ok := table.Lookup("Test Device")
	require.True(t, ok)
	require.Len(t, knobs, 2)
	assert.Equal(t, 2, *knobs[0].Channel)
	assert.True(t, midi.Numbered(70).Equal(knobs[0].Controller))
	assert.True(t, midi.Special("ModWheel").Equal(knobs[1].Controller))
}

func TestParseMappingsInvalid(t *testing.T) {
	tests := map[string]string{
		"not yaml":      "- name: [",
		"no name":       "- knobs: [{controller: {Numbered: 1}}]",
		"bad channel":   "- name: x\n  knobs: [{channel: 17, controller: {Numbered: 1}}]",
		"bad number":    "- name: x\n  knobs: [{controller: {Numbered: 200}}]",
		"both tags":     "- name: x\n  knobs: [{controller: {Numbered: 1, Special: Pan}}]",
		"no controller": "- name: x\n  knobs: [{channel: 1}]",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMappings([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidMapping)
		})
	}
}

func TestLoadMappingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: Mine\n  knobs: [{controller: {Numbered: 64}}]\n"), 0644))

	table, err := LoadMappingsFile(path)
	require.NoError(t, err)
	_, ok := table.Lookup("Mine")
	assert.True(t, ok)

	_, err = LoadMappingsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolverMatching(t *testing.T) {
	r := NewResolver([]KnobMapping{
		{Channel: intPtr(1), Controller: midi.Numbered(70)},
		{Controller: midi.Numbered(70)},
		{Controller: midi.Special("ModWheel")},
		{Channel: intPtr(4), Controller: midi.Special("Pan")},
	})

	tests := []struct {
		name    string
		channel int
		label   midi.ControllerLabel
		index   int
		ok      bool
	}{
		{"channel specific first", 1, midi.Numbered(70), 0, true},
		{"falls through to any channel", 2, midi.Numbered(70), 1, true},
		{"special any channel", 9, midi.Special("ModWheel"), 2, true},
		{"channel must match", 3, midi.Special("Pan"), 0, false},
		{"channel and label", 4, midi.Special("Pan"), 3, true},
		{"tag must match", 1, midi.Special("70"), 0, false},
		{"case sensitive", 1, midi.Special("modwheel"), 0, false},
		{"unmapped", 1, midi.Numbered(71), 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 2; i++ { // deterministic
				index, ok := r.Match(tc.channel, tc.label)
				assert.Equal(t, tc.ok, ok)
				if tc.ok {
					assert.Equal(t, tc.index, index)
				}
			}
		})
	}
}

func TestResolverPosition(t *testing.T) {
	r := NewResolver([]KnobMapping{{Controller: midi.Numbered(70)}, {Controller: midi.Special("ModWheel")}})

	knob, ok := r.Resolve(1, midi.Numbered(70), midi.Low(127))
	require.True(t, ok)
	assert.Equal(t, uint8(0), knob.Index)
	assert.InDelta(t, 1.0, knob.Position, 1e-6)

	knob, ok = r.Resolve(1, midi.Special("ModWheel"), midi.High(16383))
	require.True(t, ok)
	assert.Equal(t, uint8(1), knob.Index)
	assert.InDelta(t, 1.0, knob.Position, 1e-6)

	knob, _ = r.Resolve(1, midi.Special("ModWheel"), midi.High(0))
	assert.InDelta(t, 0.0, knob.Position, 1e-6)
}

func TestNilResolver(t *testing.T) {
	var r *Resolver
	_, ok := r.Resolve(1, midi.Numbered(70), midi.Low(1))
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	_, ok = NewResolver(nil).Resolve(1, midi.Numbered(70), midi.Low(1))
	assert.False(t, ok)
}
