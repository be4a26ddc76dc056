package highway

import "strings"

type Action int

const (
	Forward Action = iota
	Backward
	Left
	Right
	None
)

const NumActions = 5

var actionNames = [NumActions]string{"forward", "backward", "left", "right", "none"}

// ActionFromIndex maps an action index to an action. Unknown indices are None.
func ActionFromIndex(i int) Action {
	if i < 0 || i >= NumActions {
		return None
	}
	return Action(i)
}

// ParseAction maps a (case-insensitive) action name to an action. Unknown
// names are None.
func ParseAction(s string) Action {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range actionNames {
		if name == s {
			return Action(i)
		}
	}
	return None
}

func (a Action) Index() int {
	return int(ActionFromIndex(int(a)))
}

func (a Action) String() string {
	return actionNames[a.Index()]
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	*a = ParseAction(string(b))
	return nil
}

func (a Action) isLaneChange() bool {
	return a == Left || a == Right
}
