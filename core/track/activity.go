package track

import (
	"github.com/darasahq/darasa/core"
)

// Activity types
const (
	TypeDashboard    = "dashboard"
	TypeLearningPath = "learning_path"
	TypeModule       = "module"
	TypeQuiz         = "quiz"
)

var AllTypes = []string{TypeDashboard, TypeLearningPath, TypeModule, TypeQuiz}

// Activity is a single tracked unit of engagement. Its identity for
// deduplication purposes is the whole (Type, LearningPathID, ModuleID) tuple;
// there is no separate identifier.
type Activity struct {
	Type           string
	LearningPathID string
	ModuleID       string
}

func (a Activity) Key() string {
	return a.Type + "|" + a.LearningPathID + "|" + a.ModuleID
}

func IsValidType(typ string) bool {
	for _, t := range AllTypes {
		if t == typ {
			return true
		}
	}
	return false
}

// placeholder identifiers that stand in for "no user" in upstream auth layers
var placeholderUsers = map[string]struct{}{
	"anonymous": {},
	"guest":     {},
	"default":   {},
	"undefined": {},
	"null":      {},
	"0":         {},
}

// ValidUser reports whether id identifies a trackable user. Empty values and
// known placeholder/absence markers disable all tracking operations.
func ValidUser(id string) bool {
	id = core.CleanString(id, true /* lower */)
	if id == "" {
		return false
	}
	_, placeholder := placeholderUsers[id]
	return !placeholder
}
