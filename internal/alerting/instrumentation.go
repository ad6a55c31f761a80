package alerting

import "go.opentelemetry.io/otel"

const scopeName = "safetour/internal/alerting"

var tracer = otel.Tracer(scopeName)
