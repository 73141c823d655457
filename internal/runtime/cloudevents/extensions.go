package cloudevents

// Extension attributes written by the bridge sink. CloudEvents restricts
// extension names to lower-case alphanumerics.
const (
	ExtRunID         = "docflowrunid"
	ExtTerminal      = "docflowterminal"
	ExtCorrelationID = "correlationid"
)

// RunID returns the run of the producing processor.
func RunID(evt Event) string {
	return evt.GetExtensionString(ExtRunID)
}

// Terminal returns the socket name the event left the graph through.
func Terminal(evt Event) string {
	return evt.GetExtensionString(ExtTerminal)
}

// CorrelationID returns the correlation identifier, if present.
func CorrelationID(evt Event) string {
	return evt.GetExtensionString(ExtCorrelationID)
}
