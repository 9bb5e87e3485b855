package chain

import (
	"strings"
	"unicode"
)

const instructionLogPrefix = "Program log: Instruction: "

// InstructionsFromLogs lists the program instructions announced in a
// transaction's log lines, converted to snake_case (EnterCombat -> enter_combat).
func InstructionsFromLogs(logs []string) []string {
	var names []string
	for _, line := range logs {
		name, ok := strings.CutPrefix(line, instructionLogPrefix)
		if !ok {
			continue
		}
		names = append(names, snakeCase(strings.TrimSpace(name)))
	}
	return names
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
