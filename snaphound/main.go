package main

import (
	"os"

	"github.com/lkarlslund/snaphound/modules/cli"
	_ "github.com/lkarlslund/snaphound/modules/cli/convert"
	"github.com/lkarlslund/snaphound/modules/ui"
)

func main() {
	err := cli.Run()

	if err != nil {
		ui.Error().Msg(err.Error())
		os.Exit(1)
	}
}
