package dashboard

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/reconctl/reconctl/internal/eventbus"
)

// Run drives a tea.Program off sub until the bus signals KindShutdown (or
// the run's final KindPhaseChange to PhaseDone), ctx is cancelled, or the
// user quits the dashboard with q/ctrl+c/esc. Quitting the dashboard never
// cancels ctx; it only detaches the view from the run.
//
// Grounded on internal/ralph/tui.go's forwarding goroutine: a callback-style
// producer (here, the bus subscription) is drained on its own goroutine and
// handed to the program via Send, keeping tea's own event loop the single
// writer of Model state.
func Run(ctx context.Context, sub *eventbus.Subscription, target string, totalTasks int) error {
	model := New(target, totalTasks)
	program := tea.NewProgram(model)

	go func() {
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					// The producer closed the bus without ever publishing
					// KindShutdown or a terminal PhaseChange (e.g. the run
					// failed before the scheduler started); quit the view
					// ourselves rather than leave it waiting forever.
					program.Quit()
					return
				}
				program.Send(ev)
			case <-ctx.Done():
				program.Quit()
				return
			}
		}
	}()

	_, err := program.Run()
	return err
}
