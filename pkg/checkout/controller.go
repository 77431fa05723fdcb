// Package checkout moves HEAD between branches, tags and commits. The HEAD
// mode is tracked by a finite state machine with two states: attached to a
// branch, or detached at a commit.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/looplab/fsm"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
)

// Mode is the HEAD mode.
type Mode string

// HEAD modes.
const (
	OnBranch Mode = "on_branch"
	Detached Mode = "detached"
)

// Events of the HEAD state machine.
const (
	EventCheckoutBranch   = "checkout_branch"
	EventCheckoutDetached = "checkout_detached"
)

// State is the current HEAD position. Branch is set when attached, Commit when
// HEAD resolves to a commit.
type State struct {
	Mode   Mode   `json:"mode"             yaml:"mode"`
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Commit string `json:"commit,omitempty" yaml:"commit,omitempty"`
}

// Controller performs checkouts and tracks the resulting HEAD mode.
type Controller struct {
	repo   *gitlib.Repository
	logger *slog.Logger
	fsm    *fsm.FSM
	state  State
}

// NewController reads HEAD and starts the state machine in the matching mode.
func NewController(repo *gitlib.Repository, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Controller{repo: repo, logger: logger}

	state, err := c.readHead()
	if err != nil {
		return nil, err
	}

	c.state = state
	c.fsm = fsm.NewFSM(
		string(state.Mode),
		fsm.Events{
			{Name: EventCheckoutBranch, Src: []string{string(OnBranch), string(Detached)}, Dst: string(OnBranch)},
			{Name: EventCheckoutDetached, Src: []string{string(OnBranch), string(Detached)}, Dst: string(Detached)},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				c.logger.DebugContext(ctx, "HEAD mode changed", "from", e.Src, "to", e.Dst)
			},
		},
	)

	return c, nil
}

func (c *Controller) readHead() (State, error) {
	head, err := c.repo.HeadState()
	if err != nil {
		return State{}, err
	}

	if head.Detached {
		return State{Mode: Detached, Commit: head.Hash.String()}, nil
	}

	state := State{Mode: OnBranch, Branch: head.Branch}
	if !head.Unborn {
		state.Commit = head.Hash.String()
	}

	return state, nil
}

// State returns the current HEAD position.
func (c *Controller) State() State {
	return c.state
}

// Refresh re-reads HEAD after operations that move it without a checkout,
// such as a commit.
func (c *Controller) Refresh(ctx context.Context) error {
	state, err := c.readHead()
	if err != nil {
		return err
	}

	event := EventCheckoutBranch
	if state.Mode == Detached {
		event = EventCheckoutDetached
	}

	return c.transition(ctx, event, state)
}

// CheckoutBranch checks out the tip of a local branch and attaches HEAD to it.
func (c *Controller) CheckoutBranch(ctx context.Context, name string) error {
	tip, err := c.repo.BranchTip(name)
	if err != nil {
		return err
	}

	err = c.repo.CheckoutCommitTree(tip)
	if err != nil {
		return fmt.Errorf("checkout branch %s: %w", name, err)
	}

	err = c.repo.SetHead(name)
	if err != nil {
		return err
	}

	return c.transition(ctx, EventCheckoutBranch, State{Mode: OnBranch, Branch: name, Commit: tip.String()})
}

// CheckoutCommit checks out a commit, given as a hash or any revision
// expression, and detaches HEAD at it.
func (c *Controller) CheckoutCommit(ctx context.Context, rev string) error {
	target, err := gitlib.ParseHash(rev)
	if err != nil {
		target, err = c.repo.ResolveRevision(rev)
		if err != nil {
			return err
		}
	}

	return c.detachAt(ctx, target)
}

// CheckoutTag checks out the commit a tag points at and detaches HEAD at it.
func (c *Controller) CheckoutTag(ctx context.Context, name string) error {
	target, err := c.repo.ResolveRevision(gitlib.TagRefPrefix + name)
	if err != nil {
		return err
	}

	return c.detachAt(ctx, target)
}

func (c *Controller) detachAt(ctx context.Context, target gitlib.Hash) error {
	err := c.repo.CheckoutCommitTree(target)
	if err != nil {
		return err
	}

	err = c.repo.SetHeadDetached(target)
	if err != nil {
		return err
	}

	return c.transition(ctx, EventCheckoutDetached, State{Mode: Detached, Commit: target.String()})
}

func (c *Controller) transition(ctx context.Context, event string, next State) error {
	err := c.fsm.Event(ctx, event)

	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return fmt.Errorf("HEAD state %s on %s: %w", c.fsm.Current(), event, err)
	}

	previous := c.state
	c.state = next

	c.logger.InfoContext(ctx, "HEAD moved",
		"event", event,
		"from_branch", previous.Branch,
		"from_commit", previous.Commit,
		"branch", next.Branch,
		"commit", next.Commit,
	)

	return nil
}
