package lang

import (
	"regexp"

	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

// javaMethodRe matches a single-line method or constructor signature:
// optional annotations and modifiers, a return type (or a modifier standing
// in for one on constructors), the name and a parameter list closed on the
// same line. After the optional throws clause the line must end, open a
// body (which may close on the same line) or start a comment, so abstract
// and interface declarations ending in ";" are rejected.
//
// Known gaps, pinned by tests: "else if (x) {" reports a method named "if",
// and signatures whose parameter list spans lines are missed.
var javaMethodRe = regexp.MustCompile(
	`^\s*(?:@\w+(?:\([^)]*\))?\s+)*` +
		`(?:(?:public|protected|private|static|final|abstract|synchronized|native|default|strictfp)\s+)*` +
		`(?:<[^>]+>\s+)?` +
		`[\w.$]+(?:<[^()]*>)?(?:\[\])*\s+` +
		`(?P<name>[A-Za-z_$][\w$]*)\s*\([^)]*\)` +
		`\s*(?:throws\s+[\w.,\s]+)?(?:\{.*|//.*)?$`)

func init() {
	Languages["java"] = &Language{
		Name:       "java",
		Extensions: []string{".java"},
		Strategy:   LineRegex,
		Pattern:    javaMethodRe,
		Kind:       model.JavaMethod,
	}
}
