package main

import (
	libretro "github.com/user-none/eblitui/libretro"
	"github.com/user-none/ezx48/adapter"
)

func init() {
	libretro.RegisterFactory(&adapter.Factory{}, []libretro.RetropadMapping{
		{RetroID: libretro.JoypadA, BitID: 4},     // Fire (0)
		{RetroID: libretro.JoypadStart, BitID: 5}, // ENTER
		{RetroID: libretro.JoypadB, BitID: 7},     // SPACE
	})
}

func main() {}
