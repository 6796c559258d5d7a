package approval

import "regexp"

// Action is the inbound decision verb carried in callback data.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionReject  Action = "reject"
)

var callbackPattern = regexp.MustCompile(`^approval_(confirm|reject)_([\w-]+)$`)

// CallbackData encodes an action and approval id into callback-button data.
func CallbackData(action Action, id string) string {
	return "approval_" + string(action) + "_" + id
}

// ParseCallback decodes callback data produced by CallbackData. ok is false
// for anything that is not a well-formed approval action.
func ParseCallback(data string) (action Action, id string, ok bool) {
	match := callbackPattern.FindStringSubmatch(data)
	if match == nil {
		return "", "", false
	}
	return Action(match[1]), match[2], true
}
