package doctolib

import (
	"vaxbot/lib/restyutil"
	"vaxbot/lib/telemetry"
)

var tracer = telemetry.Tracer("vaxbot.lib.scrapers.doctolib")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
