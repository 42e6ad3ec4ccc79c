package hunter

import "vaxbot/lib/telemetry"

var tracer = telemetry.Tracer("vaxbot.services.hunter")
