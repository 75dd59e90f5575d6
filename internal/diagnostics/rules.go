package diagnostics

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"astrols/internal/diag"
)

// SuppressedCodes are dropped wherever they appear. All of them are
// artifacts of presenting a component as TSX.
var SuppressedCodes = map[diag.Code]string{
	diag.DuplicateJSXAttribute:     "duplicate attributes are valid in component markup",
	diag.MissingDeclarationFile:    "implicit JSX runtime import",
	diag.ExtensionNotAllowed:       "implicit JSX runtime import",
	diag.ModuleSyntaxOutsideModule: "template is wrapped in a single fragment",
	diag.JSXFlagRequired:           "JSX is always enabled for components",
	diag.AllowJSXFlagRequired:      "JSX is always enabled for components",
	diag.ImportRequiresExtension:   "component imports keep their script extension",
	diag.DeclarationExpected:       "spread in synthesized attributes",
	diag.JSONModuleNotAllowed:      "JSON modules are allowed in components",
}

// Suppressed reports whether code is in the position-independent table.
func Suppressed(code diag.Code) bool {
	_, ok := SuppressedCodes[code]
	return ok
}

// opaqueOnly lists codes suppressed only inside an OpaqueBlock.
var opaqueOnly = map[diag.Code]bool{
	diag.UnexpectedGreaterThan: true,
}

// Rule is a user suppression rule. Code zero matches every code; an empty
// When matches unconditionally.
type Rule struct {
	Code diag.Code
	When string
}

type compiledRule struct {
	code    diag.Code
	program *vm.Program
}

// ruleEnv is the set of names a rule expression may use.
func ruleEnv(code diag.Code, message, category string, inScript, inOpaque bool, path string) map[string]any {
	return map[string]any{
		"code":          int(code),
		"message":       message,
		"category":      category,
		"within_script": inScript,
		"within_opaque": inOpaque,
		"path":          path,
	}
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	env := ruleEnv(0, "", "", false, false, "")
	for i, r := range rules {
		cr := compiledRule{code: r.Code}
		if r.When != "" {
			program, err := expr.Compile(r.When, expr.Env(env), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("suppress rule %d (%q): %w", i, r.When, err)
			}
			cr.program = program
		}
		out = append(out, cr)
	}
	return out, nil
}

// match runs the rule; an evaluation error never suppresses.
func (r compiledRule) match(code diag.Code, env map[string]any) bool {
	if r.code != 0 && r.code != code {
		return false
	}
	if r.program == nil {
		return true
	}
	out, err := expr.Run(r.program, env)
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}
