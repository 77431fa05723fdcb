package engine

import (
	"context"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/checkout"
)

// HeadState returns the HEAD mode tracked by the checkout controller.
func (e *Engine) HeadState(ctx context.Context) (checkout.State, error) {
	var state checkout.State

	err := e.read(ctx, "head_state", func(context.Context) error {
		state = e.checkout.State()

		return nil
	})

	return state, err
}

// CheckoutBranch checks out a local branch and attaches HEAD to it.
func (e *Engine) CheckoutBranch(ctx context.Context, name string) error {
	return e.write(ctx, "checkout_branch", func(ctx context.Context) error {
		return e.checkout.CheckoutBranch(ctx, name)
	})
}

// CheckoutCommit checks out a commit and detaches HEAD at it.
func (e *Engine) CheckoutCommit(ctx context.Context, rev string) error {
	return e.write(ctx, "checkout_commit", func(ctx context.Context) error {
		return e.checkout.CheckoutCommit(ctx, rev)
	})
}

// CheckoutTag checks out the commit a tag points at and detaches HEAD at it.
func (e *Engine) CheckoutTag(ctx context.Context, name string) error {
	return e.write(ctx, "checkout_tag", func(ctx context.Context) error {
		return e.checkout.CheckoutTag(ctx, name)
	})
}
