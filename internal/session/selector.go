// ABOUTME: Agent selection policy for new conversations
// ABOUTME: First available agent in roster order wins; availability is re-checked at commit

package session

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/2389/coven-connect/internal/store"
)

// SelectAgent returns the first agent in company's roster that is available.
// It reads only the snapshot passed in; the store re-checks availability when
// the conversation is committed.
func SelectAgent(company *store.Company) (*store.Agent, error) {
	if company == nil {
		return nil, newError(KindNoAgentsAvailable, "select agent", fmt.Errorf("no company"))
	}

	agent, ok := lo.Find(company.Agents, func(a *store.Agent) bool {
		return a != nil && a.Available
	})
	if !ok {
		return nil, newError(KindNoAgentsAvailable, "select agent",
			fmt.Errorf("company %s has %d agents, none available", company.ID, len(company.Agents)))
	}
	return agent, nil
}
