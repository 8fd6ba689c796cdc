package machine

// Action kind constants. Actions are a small closed set known at parse
// time; the runner matches on Kind exhaustively and rejects anything else.
const (
	ActionClick         = "click"
	ActionTypeText      = "type_text"
	ActionWait          = "wait"
	ActionNavigate      = "navigate"
	ActionExecuteScript = "execute_script"
	ActionScreenshot    = "screenshot"
)

// Action is one tagged driver operation. Which fields are meaningful
// depends on Kind: click and type_text use Selector (type_text also Text),
// wait uses Condition, navigate uses URL, execute_script uses Script,
// screenshot uses Name.
type Action struct {
	Kind string `yaml:"action" json:"action"`

	Selector  string `yaml:"selector,omitempty" json:"selector,omitempty"`
	Text      string `yaml:"text,omitempty" json:"text,omitempty"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
	URL       string `yaml:"url,omitempty" json:"url,omitempty"`
	Script    string `yaml:"script,omitempty" json:"script,omitempty"`
	Name      string `yaml:"name,omitempty" json:"name,omitempty"`

	// IgnoreErrors keeps a failing action from aborting the run.
	// The failure is still recorded.
	IgnoreErrors bool `yaml:"ignore_errors,omitempty" json:"ignore_errors,omitempty"`
}

// Assertion kind constants for inline transition assertions.
const (
	AssertElementExists  = "element_exists"
	AssertElementMissing = "element_missing"
	AssertTextEquals     = "text_equals"
	AssertAttribute      = "attribute_equals"
	AssertURLEquals      = "url_equals"
	AssertEvaluate       = "evaluate"
)

// Assertion is one tagged check evaluated after a transition fires.
// Failures are recorded, never raised; all assertions run before reporting.
type Assertion struct {
	Kind string `yaml:"assert" json:"assert"`

	Selector   string `yaml:"selector,omitempty" json:"selector,omitempty"`
	Attribute  string `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Expected   string `yaml:"expected,omitempty" json:"expected,omitempty"`
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`

	// Description labels the assertion in failure output.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Capture copies a value from the driver into the run's variables.
// Source is one of:
//
//	text:<selector>              element text
//	attribute:<selector>:<attr>  element attribute
//	url                          current URL
//	script:<code>                script result
type Capture struct {
	Var    string `yaml:"var" json:"var"`
	Source string `yaml:"source" json:"source"`
}

// Step is one unit of the playbook's main flow. It fires the referenced
// transitions in order and then processes its captures.
type Step struct {
	Name string `yaml:"name" json:"name"`

	// Transitions lists transition IDs to fire, in order.
	Transitions []string `yaml:"transitions" json:"transitions"`

	Capture []Capture `yaml:"capture,omitempty" json:"capture,omitempty"`

	// TimeoutMS is an advisory per-step budget. The runner polls against it
	// between executor calls; it never interrupts a call in flight.
	TimeoutMS int `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// PathAssertions constrain the state path recorded by a run.
type PathAssertions struct {
	// MustVisit states must each appear somewhere in the path.
	MustVisit []StateID `yaml:"must_visit,omitempty" json:"must_visit,omitempty"`

	// MustNotVisit states must never appear in the path.
	MustNotVisit []StateID `yaml:"must_not_visit,omitempty" json:"must_not_visit,omitempty"`

	// EndsAt, when set, must equal the last state of the path.
	EndsAt StateID `yaml:"ends_at,omitempty" json:"ends_at,omitempty"`
}

// Empty reports whether no path constraint is declared.
func (p PathAssertions) Empty() bool {
	return len(p.MustVisit) == 0 && len(p.MustNotVisit) == 0 && p.EndsAt == ""
}

// Output assertion kind constants.
const (
	OutputNotEmpty    = "not_empty"
	OutputEquals      = "equals"
	OutputMatches     = "matches"
	OutputLessThan    = "less_than"
	OutputGreaterThan = "greater_than"
)

// OutputAssertion checks one captured variable after teardown.
type OutputAssertion struct {
	Var  string `yaml:"var" json:"var"`
	Kind string `yaml:"check" json:"check"`

	// Value holds the comparison operand for equals, matches (a regular
	// expression), less_than and greater_than. Unused for not_empty.
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

// Performance is the advisory budget section of a playbook document.
// It is carried through for external reporting and not interpreted here.
type Performance struct {
	MaxDurationMS int `yaml:"max_duration_ms,omitempty" json:"max_duration_ms,omitempty"`
	MaxMemoryMB   int `yaml:"max_memory_mb,omitempty" json:"max_memory_mb,omitempty"`
}

// Playbook is a fully parsed declarative document: the machine plus the
// execution flow and the assertions judged after it.
type Playbook struct {
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Machine StateMachineSpec `json:"machine"`

	// Setup actions run before the first step; teardown actions always run,
	// even after a failure.
	Setup    []Action `json:"setup,omitempty"`
	Steps    []Step   `json:"steps"`
	Teardown []Action `json:"teardown,omitempty"`

	Path   PathAssertions    `json:"path,omitempty"`
	Output []OutputAssertion `json:"output,omitempty"`

	Performance Performance `json:"performance,omitempty"`
}
