package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (r *recordingSender) Send(ctx context.Context, title, message string) error {
	if r.err != nil {
		return r.err
	}
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, message)
	return nil
}

func (r *recordingSender) Name() string { return r.name }

func TestNotifierEventFilter(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{EventMarketCreated}, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), EventMarketCreated, "market 7"))
	require.NoError(t, n.Notify(context.Background(), EventMarketResolved, "market 7 resolved"))

	require.Len(t, sender.bodies, 1)
	assert.Equal(t, "market 7", sender.bodies[0])
	assert.Equal(t, "Market created", sender.titles[0])
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), EventProposalFailed, "step submitting_proposal"))
	require.Len(t, sender.bodies, 1)
	assert.Equal(t, "Proposal failed", sender.titles[0])
}

func TestNotifierPartialFailure(t *testing.T) {
	broken := &recordingSender{name: "broken", err: errors.New("webhook down")}
	healthy := &recordingSender{name: "healthy"}
	n := NewNotifier([]Sender{broken, healthy}, nil, slog.New(slog.DiscardHandler))

	err := n.Notify(context.Background(), EventMarketCreated, "market 9")
	assert.Error(t, err)
	assert.Len(t, healthy.bodies, 1)
}

func TestNotifierNoSenders(t *testing.T) {
	n := NewNotifier(nil, nil, slog.New(slog.DiscardHandler))
	assert.NoError(t, n.Notify(context.Background(), EventMarketCreated, "market 1"))
}
