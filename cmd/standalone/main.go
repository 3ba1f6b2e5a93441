//go:build !libretro && !ios

package main

import (
	"flag"
	"log"

	"github.com/user-none/eblitui/standalone"
	"github.com/user-none/ezx48/adapter"
)

func main() {
	snapshotPath := flag.String("snapshot", "", "path to .sna or .z80 file (opens UI if not provided)")
	romPath := flag.String("rom", "", "system ROM locator (default: rom entry of config.json)")
	hideBorder := flag.Bool("hide-border", false, "show only the 256x192 display")
	throttle := flag.Bool("throttle", false, "limit to 50 frames per second")
	flag.Parse()

	factory := &adapter.Factory{ROMPath: *romPath}

	if *snapshotPath != "" {
		options := map[string]string{}
		if *hideBorder {
			options["hide_border"] = "true"
		}
		if *throttle {
			options["full_speed"] = "false"
		}
		if err := standalone.RunDirect(factory, *snapshotPath, "pal", options); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := standalone.Run(factory); err != nil {
		log.Fatal(err)
	}
}
