package httpmodel

// ActionKind tags the variant an Action carries. Modeling Action as a
// struct with a Kind plus one populated payload field (rather than a
// type-switch over ten concrete types) keeps the dispatcher's branch a flat
// table lookup.
type ActionKind int

const (
	ActionResponse ActionKind = iota
	ActionResponseTemplate
	ActionResponseClassCallback
	ActionResponseObjectCallback
	ActionForward
	ActionForwardTemplate
	ActionForwardClassCallback
	ActionForwardObjectCallback
	ActionForwardReplace
	ActionError
)

func (k ActionKind) String() string {
	switch k {
	case ActionResponse:
		return "Response"
	case ActionResponseTemplate:
		return "ResponseTemplate"
	case ActionResponseClassCallback:
		return "ResponseClassCallback"
	case ActionResponseObjectCallback:
		return "ResponseObjectCallback"
	case ActionForward:
		return "Forward"
	case ActionForwardTemplate:
		return "ForwardTemplate"
	case ActionForwardClassCallback:
		return "ForwardClassCallback"
	case ActionForwardObjectCallback:
		return "ForwardObjectCallback"
	case ActionForwardReplace:
		return "ForwardReplace"
	case ActionError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ErrorBehavior selects the transport-level fault an Error action produces
// instead of a response.
type ErrorBehavior int

const (
	// ErrorDropConnection closes the client connection without writing
	// anything.
	ErrorDropConnection ErrorBehavior = iota
	// ErrorMalformedResponse writes deliberately invalid response bytes.
	ErrorMalformedResponse
)

// RequestOverride carries the field-level overrides ForwardReplace applies
// to the original request before forwarding.
type RequestOverride struct {
	Method  *string
	URI     *string
	Headers map[string]string
	Body    []byte
}

// ResponseOverride carries the field-level overrides ForwardReplace applies
// to the origin's response before it is written to the client.
type ResponseOverride struct {
	StatusCode *int
	Headers    map[string]string
	Body       []byte
}

// Template is an opaque, not-yet-rendered template body; rendering it is
// the concern of the Renderer interface in internal/template. Engine
// selects which renderer interprets Body ("text", the default, or "js").
type Template struct {
	Body   string
	Engine string
}

// ClassName identifies a named server-side class for *ClassCallback
// actions. It indexes internal/classcallback's registry.
type ClassName string

// CallbackID identifies a remote peer for *ObjectCallback actions. It
// indexes internal/peercallback's registry.
type CallbackID string

// Action is the tagged variant over the ten kinds ActionKind enumerates.
// Exactly one of the payload fields matching Kind is populated; the rest
// are nil/zero.
type Action struct {
	Kind ActionKind

	// Response (ResponseDelay also applies to ResponseTemplate)
	Response      *Response
	ResponseDelay Delay

	// ResponseTemplate
	ResponseTemplate *Template

	// ResponseClassCallback / ForwardClassCallback
	ClassName ClassName

	// ResponseObjectCallback / ForwardObjectCallback
	CallbackID CallbackID

	// Forward / ForwardTemplate (ForwardDelay also applies to ForwardReplace)
	ForwardHost     string
	ForwardPort     int
	ForwardScheme   string
	ForwardDelay    Delay
	ForwardTemplate *Template

	// ForwardReplace
	RequestOverride  *RequestOverride
	ResponseOverride *ResponseOverride

	// Error
	ErrorBehavior ErrorBehavior
	ErrorDelay    Delay
}
