package fleetclient

import (
	"context"
	"fmt"
	"strconv"

	"github.com/printfleet/fleetclient/querycache"
)

func printersKey(filters PrinterFilters) string {
	return keyPrinters + filters.values().Encode()
}

func printerKey(id int) string {
	return keyPrinterDetail + strconv.Itoa(id)
}

// Printers lists the fleet, narrowed by filters. Each filter combination is
// cached independently; a mutation invalidates them all.
func (c *Client) Printers(ctx context.Context, filters PrinterFilters) (*PrinterList, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return cachedFetch(ctx, c.cache, printersKey(filters), func(ctx context.Context) (*PrinterList, error) {
		var list PrinterList
		err := c.api.Get(ctx, "/printers/", filters.values(), &list)
		return &list, err
	})
}

// Printer returns one device by ID.
func (c *Client) Printer(ctx context.Context, id int) (*Printer, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return cachedFetch(ctx, c.cache, printerKey(id), func(ctx context.Context) (*Printer, error) {
		var p Printer
		err := c.api.Get(ctx, fmt.Sprintf("/printers/%d/", id), nil, &p)
		return &p, err
	})
}

// CreatePrinter registers a device and invalidates every cached list.
func (c *Client) CreatePrinter(ctx context.Context, input PrinterCreate) (*Printer, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var p Printer
	if err := c.api.Post(ctx, "/printers/", input, &p); err != nil {
		return nil, fmt.Errorf("create printer: %w", err)
	}
	c.invalidatePrinterLists()
	return &p, nil
}

// UpdatePrinter patches a device and invalidates its detail entry and every
// cached list.
func (c *Client) UpdatePrinter(ctx context.Context, id int, update PrinterUpdate) (*Printer, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var p Printer
	if err := c.api.Patch(ctx, fmt.Sprintf("/printers/%d/", id), update, &p); err != nil {
		return nil, fmt.Errorf("update printer %d: %w", id, err)
	}
	c.cache.Invalidate(printerKey(id))
	c.invalidatePrinterLists()
	return &p, nil
}

// DeletePrinter removes a device.
func (c *Client) DeletePrinter(ctx context.Context, id int) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.api.Delete(ctx, fmt.Sprintf("/printers/%d/", id)); err != nil {
		return fmt.Errorf("delete printer %d: %w", id, err)
	}
	c.cache.Invalidate(printerKey(id))
	c.invalidatePrinterLists()
	return nil
}

// TestPrinterConnection probes the device over the network. The probe
// updates online state server-side, so the detail entry is invalidated.
func (c *Client) TestPrinterConnection(ctx context.Context, id int) (*ConnectionTest, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var result ConnectionTest
	if err := c.api.Post(ctx, fmt.Sprintf("/printers/%d/test_connection/", id), nil, &result); err != nil {
		return nil, fmt.Errorf("test connection for printer %d: %w", id, err)
	}
	c.cache.Invalidate(printerKey(id))
	return &result, nil
}

// RefreshSupplies asks the backend to poll the device's consumables now and
// returns the updated record.
func (c *Client) RefreshSupplies(ctx context.Context, id int) (*Printer, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var p Printer
	if err := c.api.Post(ctx, fmt.Sprintf("/printers/%d/refresh_supplies/", id), nil, &p); err != nil {
		return nil, fmt.Errorf("refresh supplies for printer %d: %w", id, err)
	}
	c.cache.Invalidate(printerKey(id))
	c.invalidatePrinterLists()
	return &p, nil
}

// DiscoverPrinters scans an IP range for devices.
func (c *Client) DiscoverPrinters(ctx context.Context, req DiscoveryRequest) (*DiscoveryResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var result DiscoveryResult
	if err := c.api.Post(ctx, "/printers/discover/", req, &result); err != nil {
		return nil, fmt.Errorf("discover printers: %w", err)
	}
	c.invalidatePrinterLists()
	return &result, nil
}

// PrinterStatistics returns the fleet-wide summary.
func (c *Client) PrinterStatistics(ctx context.Context) (*PrinterStatistics, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return cachedFetch(ctx, c.cache, keyPrinterStats, func(ctx context.Context) (*PrinterStatistics, error) {
		var stats PrinterStatistics
		err := c.api.Get(ctx, "/printers/statistics/", nil, &stats)
		return &stats, err
	})
}

// WatchPrinters follows the filtered list on the configured interval.
// Updates carry a *PrinterList. Stop the subscription when done.
func (c *Client) WatchPrinters(filters PrinterFilters) *querycache.Subscription {
	return c.cache.Subscribe(printersKey(filters), func(ctx context.Context) (any, error) {
		var list PrinterList
		err := c.api.Get(ctx, "/printers/", filters.values(), &list)
		return &list, err
	}, c.cfg.Refetch.Printers)
}

// WatchPrinter follows one device. Updates carry a *Printer.
func (c *Client) WatchPrinter(id int) *querycache.Subscription {
	return c.cache.Subscribe(printerKey(id), func(ctx context.Context) (any, error) {
		var p Printer
		err := c.api.Get(ctx, fmt.Sprintf("/printers/%d/", id), nil, &p)
		return &p, err
	}, c.cfg.Refetch.PrinterDetail)
}

// WatchPrinterStatistics follows the fleet summary. Updates carry a
// *PrinterStatistics.
func (c *Client) WatchPrinterStatistics() *querycache.Subscription {
	return c.cache.Subscribe(keyPrinterStats, func(ctx context.Context) (any, error) {
		var stats PrinterStatistics
		err := c.api.Get(ctx, "/printers/statistics/", nil, &stats)
		return &stats, err
	}, c.cfg.Refetch.Statistics)
}

// invalidatePrinterLists marks every filtered list variant and the fleet
// summary stale.
func (c *Client) invalidatePrinterLists() {
	c.cache.InvalidatePrefix(keyPrinters)
	c.cache.Invalidate(keyPrinterStats)
}
