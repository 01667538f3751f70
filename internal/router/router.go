package router

// Outcome classifies a routing decision.
type Outcome int

const (
	// OutcomeMalformed means the topic did not follow the peripheral grammar.
	OutcomeMalformed Outcome = iota

	// OutcomeIgnored means the topic was valid but the rule did not match.
	OutcomeIgnored

	// OutcomeRelayed means an output message was produced.
	OutcomeRelayed
)

// String returns the outcome name used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeMalformed:
		return "malformed"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeRelayed:
		return "relayed"
	default:
		return "unknown"
	}
}

// Message is an outbound (topic, payload) pair for the caller to publish.
type Message struct {
	Topic   string
	Payload []byte
}

// Decision is the full result of evaluating one inbound message.
type Decision struct {
	Outcome Outcome

	// Fields holds the parsed inbound topic. Zero when Outcome is OutcomeMalformed.
	Fields Fields

	// Output is the message to publish. Only set when Outcome is OutcomeRelayed.
	Output Message
}

// Logger is the optional diagnostic sink for malformed topics.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used for malformed-topic diagnostics.
func WithLogger(logger Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// Router applies a Rule to inbound peripheral topics.
type Router struct {
	rule   Rule
	logger Logger
}

// New creates a Router for rule.
func New(rule Rule, opts ...Option) *Router {
	r := &Router{rule: rule}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rule returns the rule the router applies.
func (r *Router) Rule() Rule {
	return r.rule
}

// Evaluate parses topic and applies the rule.
//
// A malformed topic is logged at warn level and reported as
// OutcomeMalformed. A valid topic the rule does not match is reported as
// OutcomeIgnored without logging. The payload is passed through as-is.
func (r *Router) Evaluate(topic string, payload []byte) Decision {
	in, err := Parse(topic)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("invalid topic format", "topic", topic)
		}
		return Decision{Outcome: OutcomeMalformed}
	}

	out, ok := r.rule.Apply(in)
	if !ok {
		return Decision{Outcome: OutcomeIgnored, Fields: in}
	}

	return Decision{
		Outcome: OutcomeRelayed,
		Fields:  in,
		Output: Message{
			Topic:   out.Topic(),
			Payload: payload,
		},
	}
}

// Route returns the message to publish for (topic, payload), and false
// when no action should be taken.
func (r *Router) Route(topic string, payload []byte) (Message, bool) {
	d := r.Evaluate(topic, payload)
	if d.Outcome != OutcomeRelayed {
		return Message{}, false
	}
	return d.Output, true
}
