package script

// Action represents a single step of a queue script
type Action struct {
	Type      string `yaml:"action"`               // navigate, wait, click, type, wait_for, get_text, get_all, include
	Selector  string `yaml:"selector,omitempty"`   // XPath locator of the target element
	Text      string `yaml:"text,omitempty"`       // Text to type (for type action)
	URL       string `yaml:"url,omitempty"`        // URL for navigate action
	Duration  int    `yaml:"duration,omitempty"`   // Pause in ms (for wait action)
	Timeout   int    `yaml:"timeout,omitempty"`    // Locator timeout in ms, 0 uses the queue default
	AllowSkip bool   `yaml:"allow_skip,omitempty"` // get_all: a missing element is not a failure
	Expect    string `yaml:"expect,omitempty"`     // get_text: substring the text must contain
	MinCount  int    `yaml:"min_count,omitempty"`  // get_all: minimum number of matches
	Include   string `yaml:"include,omitempty"`    // include: script file, relative to this one
}

// Script is a named, ordered list of actions
type Script struct {
	Name    string   `yaml:"name"`
	Actions []Action `yaml:"actions"`

	// path is where the script was loaded from; includes resolve against it.
	path string
}

// Path returns the file the script was loaded from, if any.
func (s *Script) Path() string { return s.path }

// Action types
const (
	ActionNavigate = "navigate"
	ActionWait     = "wait"
	ActionClick    = "click"
	ActionType     = "type"
	ActionWaitFor  = "wait_for"
	ActionGetText  = "get_text"
	ActionGetAll   = "get_all"
	ActionInclude  = "include"
)
