package dispatch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/osanchezp/loyaltynotify/internal/models"
)

// RunCampaign fans a campaign notification out over both channels
// concurrently and returns the per-channel summaries. A channel that fails
// outright still leaves the other channel's result in the map.
func (d *Dispatcher) RunCampaign(ctx context.Context, c *models.Campaign, kind models.CampaignJobKind) (map[models.Channel]models.Summary, error) {
	templateID := c.TemplateFor(kind)

	var mu sync.Mutex
	results := make(map[models.Channel]models.Summary, 2)

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range []models.Channel{models.ChannelPush, models.ChannelEmail} {
		ch := ch
		g.Go(func() error {
			job, err := d.Dispatch(gctx, Request{
				TemplateID:  templateID,
				Channel:     ch,
				Segment:     c.Segment,
				Options:     models.DispatchOptions{SaveToInbox: ch == models.ChannelPush},
				RequestedBy: "campaign:" + c.ID,
			})
			if err != nil {
				return fmt.Errorf("%s channel: %w", ch, err)
			}
			mu.Lock()
			results[ch] = job.Summary
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
