package routing

// State is the aggregator's position after evaluating routes.
type State int

const (
	NoRouteMatched State = iota
	RouteMatched
)

func (s State) String() string {
	if s == RouteMatched {
		return "route_matched"
	}
	return "no_route_matched"
}

// RouteTestResult describes how one route fared against a submission.
type RouteTestResult struct {
	Index      int    `json:"index"`
	Route      Route  `json:"route"`
	Valid      bool   `json:"valid"`
	Reason     string `json:"reason,omitempty"`
	Found      bool   `json:"found"`
	MatchedKey string `json:"matchedKey,omitempty"`
	FieldValue string `json:"fieldValue"`
	Matched    bool   `json:"matched"`
}

// Evaluation is the aggregated result for one route list.
type Evaluation struct {
	Recipients   []string          `json:"recipients"`
	State        State             `json:"-"`
	FallbackUsed bool              `json:"fallbackUsed"`
	Results      []RouteTestResult `json:"results"`
}

// Matched reports whether any route matched.
func (e Evaluation) Matched() bool {
	return e.State == RouteMatched
}

// AggregateOption configures Aggregate.
type AggregateOption func(*aggregator)

// WithResolver overrides the field resolver used for every route.
func WithResolver(r Resolver) AggregateOption {
	return func(a *aggregator) {
		a.resolver = r
	}
}

type aggregator struct {
	resolver Resolver
}

// Aggregate evaluates every route against fields in order and unions the
// recipients of all that match. When the union is empty and fallback holds
// at least one address, the fallback list is returned instead. Malformed
// routes are skipped and reported with Valid=false.
func Aggregate(fields Fields, routes []Route, fallback string, opts ...AggregateOption) Evaluation {
	a := aggregator{resolver: NewResolver()}
	for _, opt := range opts {
		opt(&a)
	}

	var (
		set recipientSet
		ev  = Evaluation{State: NoRouteMatched, Results: make([]RouteTestResult, 0, len(routes))}
	)

	for i, route := range routes {
		result := RouteTestResult{Index: i, Route: route}

		if err := route.Validate(); err != nil {
			result.Reason = err.Error()
			ev.Results = append(ev.Results, result)
			continue
		}
		result.Valid = true

		res := a.resolver.Resolve(fields, route.Field)
		result.Found = res.Found
		result.MatchedKey = res.Key
		result.FieldValue = res.Value

		if res.Found && Evaluate(res.Value, route.Operator, route.Value) {
			result.Matched = true
			ev.State = RouteMatched
			set.add(route.Recipients)
		}

		ev.Results = append(ev.Results, result)
	}

	if set.empty() {
		fb := ParseRecipients(fallback)
		if len(fb) > 0 {
			ev.FallbackUsed = true
			set.list = fb
		}
	}

	ev.Recipients = set.list
	if ev.Recipients == nil {
		ev.Recipients = []string{}
	}
	return ev
}
