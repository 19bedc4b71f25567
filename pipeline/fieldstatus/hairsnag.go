package fieldstatus

import (
	"context"
	"fmt"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/pipeline"
)

// HairSnag maintains the fisher hair snag cubby layer: cubby locations take
// their status and completion flag from the most recent cubby check, and
// field photos are renamed.
type HairSnag struct {
	deps pipeline.Deps
}

// NewHairSnag builds the hair-snag pipeline.
func NewHairSnag(deps pipeline.Deps) *HairSnag {
	return &HairSnag{deps: deps}
}

func (p *HairSnag) Name() string { return "hair-snag" }

func (p *HairSnag) Description() string {
	return "Sync hair snag cubby status with the latest cubby checks and rename photos"
}

func (p *HairSnag) Run(ctx context.Context) error {
	itemID := p.deps.Config.AGO.Items.HairSnag
	if itemID == "" {
		return fmt.Errorf("hair snag item id not configured")
	}

	item, err := p.deps.AGO.Item(ctx, itemID)
	if err != nil {
		return fmt.Errorf("resolve hair snag item: %w", err)
	}

	cubbies, err := item.Layer(ctx, 0)
	if err != nil {
		return fmt.Errorf("resolve cubby layer: %w", err)
	}
	checks, err := item.Table(ctx, 0)
	if err != nil {
		return fmt.Errorf("resolve cubby check table: %w", err)
	}

	cubbySet, err := cubbies.Query(ctx, ago.QueryOptions{Where: "1=1"})
	if err != nil {
		return fmt.Errorf("query cubby locations: %w", err)
	}
	checkSet, err := checks.Query(ctx, ago.QueryOptions{Where: "1=1", OmitGeometry: true})
	if err != nil {
		return fmt.Errorf("query cubby checks: %w", err)
	}

	updates, err := carryLatest(ctx, cubbySet.Features, carrySpec{
		keyField:  "SITE_ID",
		dateField: "START_DATE",
		fields:    []string{"SITE_STATUS", "CHECK_COMPLETE"},
	}, byKeyQuery(checks, "SITE_ID"))
	if err != nil {
		return err
	}
	if len(updates) > 0 {
		p.deps.Logger.Info("Updating cubby statuses", "count", len(updates))
	}
	if err := applyUpdates(ctx, cubbies, updates); err != nil {
		return fmt.Errorf("update cubby locations: %w", err)
	}

	if err := renamePass(ctx, p.deps, cubbies, cubbySet.Features, "SITE_ID", ""); err != nil {
		return fmt.Errorf("rename cubby photos: %w", err)
	}
	if err := renamePass(ctx, p.deps, checks, checkSet.Features, "SITE_CHECK_ID", ""); err != nil {
		return fmt.Errorf("rename cubby check photos: %w", err)
	}

	return nil
}
