package main

import (
	"vaxbot/cmd/vaxbot/commands"
	"vaxbot/lib/osutil"
)

func main() {
	commands.ExecuteContext(osutil.SignalContext())
}
