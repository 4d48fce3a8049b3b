package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/mailmirror/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// printer writes command output, styled only when stdout is a terminal.
type printer struct {
	out    io.Writer
	styles *styles.Styles
}

func newPrinter(cmd *cobra.Command) *printer {
	out := cmd.OutOrStdout()
	s := styles.Plain()
	if isTerminal(out) {
		s = styles.DefaultStyles()
	}
	return &printer{out: out, styles: s}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) result(r *domain.SyncResult) {
	outcome := string(r.Outcome)
	switch {
	case r.Succeeded():
		outcome = p.styles.Success.Render(outcome)
	case r.Outcome == domain.OutcomeFailed || r.NeedsReauth():
		outcome = p.styles.Error.Render(outcome)
	default:
		outcome = p.styles.Muted.Render(outcome)
	}

	p.line("%s  %s", p.styles.Subtitle.Render(r.AccountID), outcome)
	if r.Mode != "" && r.Mode != domain.SyncModeNone {
		details := fmt.Sprintf("mode=%s upserted=%d deleted=%d skipped=%d excluded=%d malformed=%d new=%d",
			r.Mode, r.Upserted, r.Deleted, r.Skipped, r.Excluded, r.Malformed, len(r.NewMessages))
		if r.FallbackUsed {
			details += " fallback"
		}
		p.line("    %s", details)
	}
	if r.Duration > 0 {
		p.line("    %s", p.styles.Muted.Render("took "+r.Duration.Round(time.Millisecond).String()))
	}
	if r.Err != nil && !r.Succeeded() {
		p.line("    %s", p.styles.Error.Render(r.Err.Error()))
	}
	if r.NeedsReauth() {
		p.line("    run 'mailmirror account add' to authorise %s again", r.AccountID)
	}
}

func (p *printer) message(m *domain.MirroredMessage) {
	marker := " "
	subject := m.Subject
	if !m.IsRead {
		marker = "*"
		subject = p.styles.Unread.Render(subject)
	}
	p.line("%s %-16s  %-24s  %s", marker, m.Date, truncate(m.Sender, 24), subject)
	p.line("  %s", p.styles.Muted.Render(m.MessageID))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
