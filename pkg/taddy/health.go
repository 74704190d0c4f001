package taddy

import (
	"context"
	"fmt"
)

const userDetailsQuery = `query GetUserDetails {
  me {
    id
    myDeveloperDetails {
      currentPlan
      allowedOnDemandTranscriptsLimit
      currentOnDemandTranscriptsUsage
    }
  }
}`

// HealthStatus reports provider connectivity and the account's plan, for
// operational diagnostics. Not used in the fetch hot path.
type HealthStatus struct {
	Connected     bool
	Plan          string
	OnDemandLimit int
	OnDemandUsage int
	Message       string
}

// HealthCheck queries account and plan metadata with a single attempt (no
// retry): a diagnostic should report the provider as it is right now.
func (c *Client) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	var resp struct {
		Me *struct {
			ID      string `json:"id"`
			Details *struct {
				CurrentPlan   string `json:"currentPlan"`
				OnDemandLimit int    `json:"allowedOnDemandTranscriptsLimit"`
				OnDemandUsage int    `json:"currentOnDemandTranscriptsUsage"`
			} `json:"myDeveloperDetails"`
		} `json:"me"`
	}

	if err := c.query(ctx, userDetailsQuery, nil, &resp); err != nil {
		return &HealthStatus{Connected: false, Message: err.Error()}, fmt.Errorf("taddy health check: %w", err)
	}

	status := &HealthStatus{Connected: true}
	if resp.Me != nil && resp.Me.Details != nil {
		status.Plan = resp.Me.Details.CurrentPlan
		status.OnDemandLimit = resp.Me.Details.OnDemandLimit
		status.OnDemandUsage = resp.Me.Details.OnDemandUsage
	}
	return status, nil
}
