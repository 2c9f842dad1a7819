package offers

import (
	"os"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var spans = tracetest.NewSpanRecorder()

func TestMain(m *testing.M) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	otel.SetTracerProvider(tp)
	os.Exit(m.Run())
}

// endedSpans returns the names of finished spans tagged with key=value.
func endedSpans(key, value string) []string {
	var names []string
	for _, s := range spans.Ended() {
		for _, kv := range s.Attributes() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				names = append(names, s.Name())
				break
			}
		}
	}
	return names
}
