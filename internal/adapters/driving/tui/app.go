// Package tui runs the full-screen mirror viewer.
package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/mailmirror/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/mailmirror/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/mailmirror/internal/adapters/driving/tui/views/inbox"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driven"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driving"
)

// Subscriber reports mirror changes.
type Subscriber interface {
	Subscribe(obs driven.Observer) (unsubscribe func())
}

// Config holds what the viewer needs.
type Config struct {
	Accounts  driving.AccountService
	Sync      driving.SyncOrchestrator
	Mirror    Subscriber
	AccountID string
	Styles    *styles.Styles
}

// Run shows the inbox of cfg.AccountID until the user quits or ctx is done.
// Mirror changes made elsewhere (scheduler, other commands) refresh the list.
func Run(ctx context.Context, cfg Config, opts ...tea.ProgramOption) error {
	view := inbox.NewView(cfg.Styles, cfg.Accounts, cfg.Sync, cfg.AccountID)

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(view, opts...)

	if cfg.Mirror != nil {
		unsubscribe := cfg.Mirror.Subscribe(func(accountID string) {
			// Observers run inside the store's write path.
			go p.Send(messages.MirrorChanged{AccountID: accountID})
		})
		defer unsubscribe()
	}

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
