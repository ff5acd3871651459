package slarule

import (
	"context"

	"go-cats/pkg/sla"
)

// Catalog exposes the rule repository to the SLA engine
type Catalog struct {
	repo RuleRepository
}

func NewCatalog(repo RuleRepository) sla.RuleCatalog {
	return &Catalog{repo: repo}
}

func (c *Catalog) CandidateRules(ctx context.Context, attrs sla.CaseAttributes) ([]sla.Rule, error) {
	return c.repo.FindCandidates(ctx, attrs.Kind)
}

func (c *Catalog) DefaultRule(ctx context.Context) (*sla.Rule, error) {
	return c.repo.FindDefault(ctx)
}
