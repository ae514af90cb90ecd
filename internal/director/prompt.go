package director

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt renders the fixed role-play instruction set for a
// scene: target language first, short in-character replies, gentle
// correction, native-language hints in parentheses.
func BuildSystemPrompt(sc SceneContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are playing the role of %q in this scenario: %s.\n", sc.AIRole, sc.Scenario)
	fmt.Fprintf(&sb, "The learner is playing %q.\n", sc.UserRole)
	fmt.Fprintf(&sb, "Speak primarily in %s. Keep every reply to 1-3 short sentences.\n", sc.TargetLanguage)
	sb.WriteString("Stay in character at all times.\n")
	sb.WriteString("If the learner makes a mistake, correct it gently inside your in-character reply.\n")
	fmt.Fprintf(&sb, "After each %s sentence, add a brief %s hint in parentheses.\n", sc.TargetLanguage, sc.NativeLanguage)
	return sb.String()
}

// BuildLinePrompt asks the director for the next scripted lines given the
// dialog so far. speakers lists the roles in play so generated lines can be
// attributed.
func BuildLinePrompt(history []string, speakers []string) string {
	var sb strings.Builder
	sb.WriteString("Continue the dialog. Write the next line for each role that should speak, one per line, prefixed with the role name and a colon.\n")
	fmt.Fprintf(&sb, "Roles: %s\n", strings.Join(speakers, ", "))
	if len(history) > 0 {
		sb.WriteString("Dialog so far:\n")
		for _, line := range history {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	} else {
		sb.WriteString("The scene is just starting; write the opening line.\n")
	}
	return sb.String()
}
