package saga

import (
	"context"

	"builder/internal/outcome"
)

// Subscriber is the part of the bus the follow-up workflows register on.
type Subscriber interface {
	Subscribe(kind outcome.Kind, handler outcome.Handler)
}

// Subscribe wires the workflows that start in response to other workflows'
// outcomes. Handlers only schedule tasks on the runner; they never block the
// publishing goroutine.
func (o *Orchestrator) Subscribe(bus Subscriber) {
	bus.Subscribe(outcome.KindFetchLands, func(_ context.Context, out outcome.Outcome) {
		if !out.Completed() {
			return
		}
		coords := LandCoords(out.Lands)
		o.runner.Go(outcome.KindFetchDeployments, "", func(ctx context.Context) {
			o.FetchDeployments(ctx, coords)
		})
	})

	bus.Subscribe(outcome.KindSaveItem, func(_ context.Context, out outcome.Outcome) {
		if !out.Completed() {
			return
		}
		for _, item := range out.Items {
			if item.CollectionID == "" || item.IsPublished {
				continue
			}
			collection, ok := o.state.Collection(item.CollectionID)
			if !ok {
				continue
			}
			o.runner.Go(outcome.KindSaveCollection, collection.ID, func(ctx context.Context) {
				o.SaveCollection(ctx, collection)
			})
		}
	})

	bus.Subscribe(outcome.KindFetchCollections, func(_ context.Context, out outcome.Outcome) {
		if !out.Completed() {
			return
		}
		o.runner.Go(outcome.KindSyncTokenIDs, "finish", o.FinishPublishing)
	})

	bus.Subscribe(outcome.KindSyncTokenIDs, func(_ context.Context, out outcome.Outcome) {
		if out.Status != outcome.StatusFailure {
			return
		}
		id := out.Key
		o.runner.Go(outcome.KindSyncTokenIDs, id, func(ctx context.Context) {
			o.retrySync(ctx, id)
		})
	})

	bus.Subscribe(outcome.KindFetchCollection, func(_ context.Context, out outcome.Outcome) {
		if !out.Completed() {
			return
		}
		id := out.Key
		o.runner.Go(outcome.KindFetchCollectionItems, id, func(ctx context.Context) {
			o.FetchCollectionItems(ctx, id)
		})
	})
}

// Connect loads everything an address needs when its wallet connects or
// changes.
func (o *Orchestrator) Connect(address string) {
	o.runner.Go(outcome.KindFetchCollections, address, func(ctx context.Context) {
		o.FetchCollections(ctx, address)
	})
	o.runner.Go(outcome.KindFetchItems, address, func(ctx context.Context) {
		o.FetchItems(ctx, address)
	})
	o.runner.Go(outcome.KindFetchLands, address, func(ctx context.Context) {
		o.FetchLands(ctx, address)
	})
}
