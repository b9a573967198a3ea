package heal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// rulePack mirrors the YAML layout of a rule pack file.
type rulePack struct {
	Rules []packRule `yaml:"rules"`
}

type packRule struct {
	ID         string       `yaml:"id"`
	Name       string       `yaml:"name"`
	Clauses    []packClause `yaml:"clauses"`
	Action     packAction   `yaml:"action"`
	Cooldown   string       `yaml:"cooldown"`
	MaxRetries int          `yaml:"max_retries"`
	Enabled    *bool        `yaml:"enabled"`
}

type packClause struct {
	Kind      string  `yaml:"kind"`
	Metric    string  `yaml:"metric"`
	Threshold float64 `yaml:"threshold"`
	Severity  string  `yaml:"severity"`
}

type packAction struct {
	Kind   string            `yaml:"kind"`
	Params map[string]string `yaml:"params"`
}

// LoadRulePack reads self-healing rules from a YAML file. Every rule is
// validated here so a broken pack fails at startup, not mid-dispatch.
// Rules omitting the enabled field default to enabled.
func LoadRulePack(path string) ([]model.SelfHealingRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule pack: %w", err)
	}

	var pack rulePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse rule pack %s: %w", path, err)
	}

	rules := make([]model.SelfHealingRule, 0, len(pack.Rules))
	for i, pr := range pack.Rules {
		rule, err := pr.toRule()
		if err != nil {
			return nil, fmt.Errorf("rule pack %s, rule %d (%s): %w", path, i, pr.ID, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (pr packRule) toRule() (model.SelfHealingRule, error) {
	rule := model.SelfHealingRule{
		ID:         pr.ID,
		Name:       pr.Name,
		MaxRetries: pr.MaxRetries,
		Enabled:    pr.Enabled == nil || *pr.Enabled,
		Action: model.ActionSpec{
			Kind:   model.ActionKind(pr.Action.Kind),
			Params: pr.Action.Params,
		},
	}
	if pr.Cooldown != "" {
		cooldown, err := time.ParseDuration(pr.Cooldown)
		if err != nil {
			return model.SelfHealingRule{}, fmt.Errorf("bad cooldown: %w", err)
		}
		rule.Cooldown = cooldown
	}
	for _, pc := range pr.Clauses {
		rule.Clauses = append(rule.Clauses, model.ConditionClause{
			Kind:      model.ClauseKind(pc.Kind),
			Metric:    pc.Metric,
			Threshold: pc.Threshold,
			Severity:  model.Severity(pc.Severity),
		})
	}
	if err := rule.Validate(); err != nil {
		return model.SelfHealingRule{}, err
	}
	return rule, nil
}

// DefaultRules returns the built-in remediation rules used when no rule
// pack is configured: restart on runaway CPU, flush caches under memory
// pressure, scale out under sustained load, and page the on-call team
// for anything critical.
func DefaultRules() []model.SelfHealingRule {
	return []model.SelfHealingRule{
		{
			ID:   "restart-high-cpu",
			Name: "Restart service on high CPU",
			Clauses: []model.ConditionClause{
				{Kind: model.ClauseMetricGT, Metric: "cpu_usage", Threshold: 90},
			},
			Action:     model.ActionSpec{Kind: model.ActionServiceRestart},
			Cooldown:   30 * time.Minute,
			MaxRetries: 1,
			Enabled:    true,
		},
		{
			ID:   "clear-cache-memory",
			Name: "Clear cache on memory pressure",
			Clauses: []model.ConditionClause{
				{Kind: model.ClauseMetricGT, Metric: "memory_usage", Threshold: 85},
			},
			Action:   model.ActionSpec{Kind: model.ActionCacheClear},
			Cooldown: 15 * time.Minute,
			Enabled:  true,
		},
		{
			ID:   "scale-on-load",
			Name: "Scale out on sustained load",
			Clauses: []model.ConditionClause{
				{Kind: model.ClauseMetricGT, Metric: "load_average", Threshold: 5},
				{Kind: model.ClauseMetricGT, Metric: "response_time", Threshold: 2000},
			},
			Action: model.ActionSpec{
				Kind:   model.ActionScale,
				Params: map[string]string{"direction": "up"},
			},
			Cooldown: 10 * time.Minute,
			Enabled:  true,
		},
		{
			ID:   "notify-critical",
			Name: "Notify on-call on critical alerts",
			Clauses: []model.ConditionClause{
				{Kind: model.ClauseSeverityEquals, Severity: model.SeverityCritical},
			},
			Action: model.ActionSpec{
				Kind:   model.ActionNotifyTeam,
				Params: map[string]string{"channel": "oncall"},
			},
			Cooldown: 5 * time.Minute,
			Enabled:  true,
		},
	}
}
