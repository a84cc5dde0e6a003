package fleetclient

import (
	"context"
	"fmt"

	"github.com/printfleet/fleetclient/querycache"
)

func alertsKey(filters AlertFilters) string {
	return keyAlerts + filters.values().Encode()
}

// Alerts lists raised alerts, narrowed by filters.
func (c *Client) Alerts(ctx context.Context, filters AlertFilters) (*AlertList, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return cachedFetch(ctx, c.cache, alertsKey(filters), func(ctx context.Context) (*AlertList, error) {
		var list AlertList
		err := c.api.Get(ctx, "/alerts/", filters.values(), &list)
		return &list, err
	})
}

// Alert returns one alert by ID. Details are not polled, so they bypass the
// cache.
func (c *Client) Alert(ctx context.Context, id int) (*Alert, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var a Alert
	if err := c.api.Get(ctx, fmt.Sprintf("/alerts/%d/", id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// AcknowledgeAlert marks an alert as seen by the current user.
func (c *Client) AcknowledgeAlert(ctx context.Context, id int) (*Alert, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var a Alert
	if err := c.api.Post(ctx, fmt.Sprintf("/alerts/%d/acknowledge/", id), nil, &a); err != nil {
		return nil, fmt.Errorf("acknowledge alert %d: %w", id, err)
	}
	c.invalidateAlertLists()
	return &a, nil
}

// ResolveAlert closes an alert with optional notes.
func (c *Client) ResolveAlert(ctx context.Context, id int, notes string) (*Alert, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	body := map[string]string{}
	if notes != "" {
		body["resolution_notes"] = notes
	}
	var a Alert
	if err := c.api.Post(ctx, fmt.Sprintf("/alerts/%d/resolve/", id), body, &a); err != nil {
		return nil, fmt.Errorf("resolve alert %d: %w", id, err)
	}
	c.invalidateAlertLists()
	return &a, nil
}

// BulkAcknowledgeAlerts marks several alerts as seen in one call.
func (c *Client) BulkAcknowledgeAlerts(ctx context.Context, ids []int) error {
	if err := c.ready(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := c.api.Post(ctx, "/alerts/bulk_acknowledge/", map[string][]int{
		"alert_ids": ids,
	}, nil); err != nil {
		return fmt.Errorf("bulk acknowledge alerts: %w", err)
	}
	c.invalidateAlertLists()
	return nil
}

// AlertStatistics returns the fleet-wide alert summary.
func (c *Client) AlertStatistics(ctx context.Context) (*AlertStatistics, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return cachedFetch(ctx, c.cache, keyAlertStats, func(ctx context.Context) (*AlertStatistics, error) {
		var stats AlertStatistics
		err := c.api.Get(ctx, "/alerts/statistics/", nil, &stats)
		return &stats, err
	})
}

/*
====================================
ALERT RULES
====================================
*/

// AlertRules lists the configured alerting rules.
func (c *Client) AlertRules(ctx context.Context) ([]AlertRule, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return cachedFetch(ctx, c.cache, keyAlertRules, func(ctx context.Context) ([]AlertRule, error) {
		var rules []AlertRule
		err := c.api.Get(ctx, "/alerts/rules/", nil, &rules)
		return rules, err
	})
}

// CreateAlertRule adds a rule.
func (c *Client) CreateAlertRule(ctx context.Context, input AlertRuleInput) (*AlertRule, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rule AlertRule
	if err := c.api.Post(ctx, "/alerts/rules/", input, &rule); err != nil {
		return nil, fmt.Errorf("create alert rule: %w", err)
	}
	c.cache.Invalidate(keyAlertRules)
	return &rule, nil
}

// UpdateAlertRule patches a rule.
func (c *Client) UpdateAlertRule(ctx context.Context, id int, input AlertRuleInput) (*AlertRule, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rule AlertRule
	if err := c.api.Patch(ctx, fmt.Sprintf("/alerts/rules/%d/", id), input, &rule); err != nil {
		return nil, fmt.Errorf("update alert rule %d: %w", id, err)
	}
	c.cache.Invalidate(keyAlertRules)
	return &rule, nil
}

// DeleteAlertRule removes a rule.
func (c *Client) DeleteAlertRule(ctx context.Context, id int) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.api.Delete(ctx, fmt.Sprintf("/alerts/rules/%d/", id)); err != nil {
		return fmt.Errorf("delete alert rule %d: %w", id, err)
	}
	c.cache.Invalidate(keyAlertRules)
	return nil
}

// ToggleAlertRule flips a rule's active state.
func (c *Client) ToggleAlertRule(ctx context.Context, id int, active bool) (*AlertRule, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rule AlertRule
	if err := c.api.Patch(ctx, fmt.Sprintf("/alerts/rules/%d/", id), map[string]bool{
		"is_active": active,
	}, &rule); err != nil {
		return nil, fmt.Errorf("toggle alert rule %d: %w", id, err)
	}
	c.cache.Invalidate(keyAlertRules)
	return &rule, nil
}

// TestAlertRule fires a rule once against current data without persisting
// anything.
func (c *Client) TestAlertRule(ctx context.Context, id int) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.api.Post(ctx, fmt.Sprintf("/alerts/rules/%d/test/", id), nil, nil)
}

// WatchAlerts follows the filtered alert list on the configured interval.
// Updates carry an *AlertList.
func (c *Client) WatchAlerts(filters AlertFilters) *querycache.Subscription {
	return c.cache.Subscribe(alertsKey(filters), func(ctx context.Context) (any, error) {
		var list AlertList
		err := c.api.Get(ctx, "/alerts/", filters.values(), &list)
		return &list, err
	}, c.cfg.Refetch.Alerts)
}

// WatchAlertRules follows the rule list. Updates carry a []AlertRule.
func (c *Client) WatchAlertRules() *querycache.Subscription {
	return c.cache.Subscribe(keyAlertRules, func(ctx context.Context) (any, error) {
		var rules []AlertRule
		err := c.api.Get(ctx, "/alerts/rules/", nil, &rules)
		return rules, err
	}, c.cfg.Refetch.AlertRules)
}

// WatchAlertStatistics follows the alert summary. Updates carry an
// *AlertStatistics.
func (c *Client) WatchAlertStatistics() *querycache.Subscription {
	return c.cache.Subscribe(keyAlertStats, func(ctx context.Context) (any, error) {
		var stats AlertStatistics
		err := c.api.Get(ctx, "/alerts/statistics/", nil, &stats)
		return &stats, err
	}, c.cfg.Refetch.Statistics)
}

// invalidateAlertLists marks every filtered alert list and the alert summary
// stale.
func (c *Client) invalidateAlertLists() {
	c.cache.InvalidatePrefix(keyAlerts)
	c.cache.Invalidate(keyAlertStats)
}
