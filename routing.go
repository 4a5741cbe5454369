package parley

import (
	"log/slog"
	"strconv"
)

// RoutingInput is what a routing predicate sees for one turn.
type RoutingInput struct {
	// Text is the trimmed user input for this turn.
	Text string
	// History is a snapshot of the conversation before this turn.
	History []Message
	// Tools are the runtime tools available this turn.
	Tools []RuntimeTool
}

// RoutingRule pairs a predicate with the tool it forces when matched.
type RoutingRule struct {
	// Name labels the rule in logs. Optional.
	Name string
	// Match reports whether this rule applies to the turn.
	Match func(in RoutingInput) bool
	// ForceTool is the (unsanitized) tool name to force.
	ForceTool string
}

// RoutingPolicy decides the tool choice for a turn before the provider is
// called. Rules are evaluated in order; the first match wins.
type RoutingPolicy struct {
	Rules []RoutingRule
	// DryRun evaluates and logs decisions without enforcing them.
	// The returned choice is always auto.
	DryRun bool
}

// Evaluate returns the tool choice for the turn. A nil policy, an empty
// rule list, or no matching rule yields auto. A panicking predicate is
// treated as a non-match for that rule and never escapes to the caller.
func (p *RoutingPolicy) Evaluate(in RoutingInput, logger *slog.Logger) ToolChoice {
	if p == nil || len(p.Rules) == 0 {
		return AutoChoice()
	}
	if logger == nil {
		logger = nopLogger
	}

	for i, rule := range p.Rules {
		if rule.Match == nil || rule.ForceTool == "" {
			continue
		}
		if !safeMatch(rule, in, logger) {
			continue
		}
		if p.DryRun {
			logger.Info("routing dry run: rule matched",
				"rule", ruleLabel(rule, i),
				"would_force", rule.ForceTool)
			return AutoChoice()
		}
		logger.Debug("routing rule matched",
			"rule", ruleLabel(rule, i),
			"force_tool", rule.ForceTool)
		return ForcedChoice(SanitizeToolName(rule.ForceTool))
	}
	return AutoChoice()
}

// safeMatch runs the predicate with panic containment.
func safeMatch(rule RoutingRule, in RoutingInput, logger *slog.Logger) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("routing predicate panicked, rule skipped",
				"rule", rule.Name, "panic", r)
			matched = false
		}
	}()
	return rule.Match(in)
}

func ruleLabel(rule RoutingRule, i int) string {
	if rule.Name != "" {
		return rule.Name
	}
	return "rule_" + strconv.Itoa(i)
}
