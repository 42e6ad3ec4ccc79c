package statestore

import "vaxbot/lib/telemetry"

var tracer = telemetry.Tracer("vaxbot.lib.statestore")
