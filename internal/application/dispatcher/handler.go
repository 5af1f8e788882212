package dispatcher

import (
	"context"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/event"
)

// Handler processes one chat event. Expected refusals are not errors.
type Handler func(ctx context.Context, evt *event.Event) error
