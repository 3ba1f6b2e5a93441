//go:build !libretro

package cli

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/user-none/ezx48/emu"
)

// shiftedDigits are the US layout characters on Shift+0..9.
var shiftedDigits = [10]rune{')', '!', '@', '#', '$', '%', '^', '&', '*', '('}

// punctuation maps the remaining printable keys to their unshifted and
// shifted characters on a US layout.
var punctuation = map[ebiten.Key][2]rune{
	ebiten.KeyMinus:        {'-', '_'},
	ebiten.KeyEqual:        {'=', '+'},
	ebiten.KeyBracketLeft:  {'[', '{'},
	ebiten.KeyBracketRight: {']', '}'},
	ebiten.KeyBackslash:    {'\\', '|'},
	ebiten.KeySemicolon:    {';', ':'},
	ebiten.KeyQuote:        {'\'', '"'},
	ebiten.KeyComma:        {',', '<'},
	ebiten.KeyPeriod:       {'.', '>'},
	ebiten.KeySlash:        {'/', '?'},
	ebiten.KeyBackquote:    {'`', '~'},
	ebiten.KeySpace:        {' ', ' '},
	ebiten.KeyEnter:        {'\n', '\n'},
	ebiten.KeyNumpadEnter:  {'\n', '\n'},
	ebiten.KeyTab:          {'\t', '\t'},
	ebiten.KeyBackspace:    {emu.KeyBackspace, emu.KeyBackspace},
	ebiten.KeyDelete:       {emu.KeyDelete, emu.KeyDelete},
	ebiten.KeyEscape:       {emu.KeyEscape, emu.KeyEscape},
	ebiten.KeyArrowLeft:    {emu.KeyLeft, emu.KeyLeft},
	ebiten.KeyArrowDown:    {emu.KeyDown, emu.KeyDown},
	ebiten.KeyArrowUp:      {emu.KeyUp, emu.KeyUp},
	ebiten.KeyArrowRight:   {emu.KeyRight, emu.KeyRight},
	ebiten.KeyHome:         {emu.KeyHome, emu.KeyHome},
	ebiten.KeyEnd:          {emu.KeyEnd, emu.KeyEnd},
}

var (
	letterKeys = [26]ebiten.Key{
		ebiten.KeyA, ebiten.KeyB, ebiten.KeyC, ebiten.KeyD, ebiten.KeyE, ebiten.KeyF, ebiten.KeyG,
		ebiten.KeyH, ebiten.KeyI, ebiten.KeyJ, ebiten.KeyK, ebiten.KeyL, ebiten.KeyM, ebiten.KeyN,
		ebiten.KeyO, ebiten.KeyP, ebiten.KeyQ, ebiten.KeyR, ebiten.KeyS, ebiten.KeyT, ebiten.KeyU,
		ebiten.KeyV, ebiten.KeyW, ebiten.KeyX, ebiten.KeyY, ebiten.KeyZ,
	}
	digitKeys = [10]ebiten.Key{
		ebiten.KeyDigit0, ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4,
		ebiten.KeyDigit5, ebiten.KeyDigit6, ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9,
	}
	numpadKeys = [10]ebiten.Key{
		ebiten.KeyNumpad0, ebiten.KeyNumpad1, ebiten.KeyNumpad2, ebiten.KeyNumpad3, ebiten.KeyNumpad4,
		ebiten.KeyNumpad5, ebiten.KeyNumpad6, ebiten.KeyNumpad7, ebiten.KeyNumpad8, ebiten.KeyNumpad9,
	}
	functionKeys = [12]ebiten.Key{
		ebiten.KeyF1, ebiten.KeyF2, ebiten.KeyF3, ebiten.KeyF4, ebiten.KeyF5, ebiten.KeyF6,
		ebiten.KeyF7, ebiten.KeyF8, ebiten.KeyF9, ebiten.KeyF10, ebiten.KeyF11, ebiten.KeyF12,
	}
)

// keyCodes maps a host key to its unshifted and shifted key codes.
var keyCodes = buildKeyCodes()

func buildKeyCodes() map[ebiten.Key][2]rune {
	m := make(map[ebiten.Key][2]rune, len(punctuation)+58)
	for k, pair := range punctuation {
		m[k] = pair
	}
	for i, k := range letterKeys {
		m[k] = [2]rune{'a' + rune(i), 'A' + rune(i)}
	}
	for i, k := range digitKeys {
		m[k] = [2]rune{'0' + rune(i), shiftedDigits[i]}
	}
	for i, k := range numpadKeys {
		m[k] = [2]rune{'0' + rune(i), '0' + rune(i)}
	}
	for i, k := range functionKeys {
		m[k] = [2]rune{emu.KeyF1 + rune(i), emu.KeyF1 + rune(i)}
	}
	return m
}

// keyRune returns the key code a host key produces with Shift in the
// given state.
func keyRune(key ebiten.Key, shift bool) (rune, bool) {
	pair, ok := keyCodes[key]
	if !ok {
		return 0, false
	}
	if shift {
		return pair[1], true
	}
	return pair[0], true
}

// keySink receives translated key events.
type keySink interface {
	SetKey(down bool, code rune, mods emu.Modifier) emu.KeyResult
}

// keyTracker remembers the code sent for each held host key so the
// release matches the press even if Shift changed in between.
type keyTracker struct {
	sink keySink
	held map[ebiten.Key]rune
}

func newKeyTracker(sink keySink) *keyTracker {
	return &keyTracker{sink: sink, held: make(map[ebiten.Key]rune)}
}

// press sends a key press and returns what the matrix made of it.
func (kt *keyTracker) press(key ebiten.Key, mods emu.Modifier) emu.KeyResult {
	code, ok := keyRune(key, mods&emu.ModShift != 0)
	if !ok {
		return emu.KeyUnhandled
	}
	kt.held[key] = code
	return kt.sink.SetKey(true, code, mods)
}

// release sends the release for a key pressed earlier.
func (kt *keyTracker) release(key ebiten.Key, mods emu.Modifier) {
	code, ok := kt.held[key]
	if !ok {
		return
	}
	delete(kt.held, key)
	kt.sink.SetKey(false, code, mods)
}

// releaseAll releases every held key, used when focus is lost.
func (kt *keyTracker) releaseAll() {
	for key := range kt.held {
		kt.release(key, 0)
	}
}
