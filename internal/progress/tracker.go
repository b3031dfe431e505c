package progress

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"scenctl/internal/scenario"
	"scenctl/pkg/logging"
)

// Tracker forwards run progress into a bubbletea program. It satisfies the
// runner's observer interfaces and is safe for concurrent use.
type Tracker struct {
	send func(tea.Msg)
}

// ScenariosPlanned reports the number of selected scenarios
func (t *Tracker) ScenariosPlanned(units []*scenario.Unit) {
	t.send(plannedMsg{total: len(units)})
}

// ScenarioStarted marks a scenario as running
func (t *Tracker) ScenarioStarted(u *scenario.Unit) {
	t.send(startedMsg{id: u.ID, at: time.Now()})
}

// ScenarioFinished records a scenario result
func (t *Tracker) ScenarioFinished(r scenario.Result) {
	t.send(finishedMsg{result: r})
}

// Run shows the progress view while work executes. The context passed to
// work is cancelled when the user aborts. Run returns after both the view
// and work finished, with work's error.
func Run(ctx context.Context, level logging.LogLevel, work func(ctx context.Context, t *Tracker) error, opts ...tea.ProgramOption) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logChannel := logging.InitForTUI(level)
	defer logging.CloseTUIChannel()

	p := tea.NewProgram(NewModel(logChannel, cancel), opts...)
	tracker := &Tracker{send: p.Send}

	workDone := make(chan error, 1)
	go func() {
		err := work(runCtx, tracker)
		workDone <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-workDone
		return fmt.Errorf("progress view failed: %w", err)
	}
	return <-workDone
}
