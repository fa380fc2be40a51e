package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChordNormalizeOrderIndependent(t *testing.T) {
	a := Chord{Modifiers: []Modifier{ModShift, ModCtrl}, Key: KeyR}
	b := Chord{Modifiers: []Modifier{ModCtrl, ModShift}, Key: KeyR}

	assert.True(t, a.Equal(b))
	assert.Equal(t, "ctrl+shift+r", a.ID())
	assert.Equal(t, a.ID(), b.ID())
}

func TestChordNormalizeDropsDuplicates(t *testing.T) {
	c := Chord{Modifiers: []Modifier{ModCtrl, ModCtrl, ModShift}, Key: KeySpace}
	n := c.Normalize()

	assert.Equal(t, []Modifier{ModCtrl, ModShift}, n.Modifiers)
	assert.Equal(t, "ctrl+shift+space", c.ID())
}

func TestChordNotEqualDifferentKey(t *testing.T) {
	a := Chord{Modifiers: []Modifier{ModCtrl, ModShift}, Key: KeyR}
	b := Chord{Modifiers: []Modifier{ModCtrl, ModShift}, Key: KeyT}

	assert.False(t, a.Equal(b))
}

func TestChordValidate(t *testing.T) {
	tests := []struct {
		name    string
		chord   Chord
		wantErr bool
	}{
		{"валидный", Chord{Modifiers: []Modifier{ModCtrl}, Key: KeyR}, false},
		{"без модификаторов", Chord{Key: KeyF5}, true},
		{"голая буквенная клавиша", Chord{Key: KeyS}, true},
		{"без клавиши", Chord{Modifiers: []Modifier{ModCtrl}}, true},
		{"неизвестная клавиша", Chord{Modifiers: []Modifier{ModCtrl}, Key: Key("escape")}, true},
		{"неизвестный модификатор", Chord{Modifiers: []Modifier{Modifier("hyper")}, Key: KeyR}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.chord.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestChordIsZero(t *testing.T) {
	assert.True(t, Chord{}.IsZero())
	assert.False(t, Chord{Key: KeyR}.IsZero())
}
