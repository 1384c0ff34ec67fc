package api

import (
	"context"
	"time"

	"notespace/client/internal/content"
)

const beaconTimeout = 10 * time.Second

// Beacon sends a final save of rec without blocking the caller, the way a
// page unload hands its last write to the browser. The request outlives the
// caller's context; done, if non-nil, receives the result.
func (c *Client) Beacon(id content.ID, rec content.Record, done func(error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
		defer cancel()
		_, err := c.SaveDocument(ctx, id, rec)
		if err != nil {
			c.logger.Warn("beacon save failed", "document", id, "error", err)
		}
		if done != nil {
			done(err)
		}
	}()
}
