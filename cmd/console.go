package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"

	"eksiblock/features/blocking"

	"github.com/fatih/color"
)

// consoleNotifier prints workflow callbacks for interactive runs.
type consoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleNotifier() *consoleNotifier {
	return &consoleNotifier{out: os.Stdout}
}

func (n *consoleNotifier) OnProgress(p blocking.Progress) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch {
	case p.IsCompleted:
		fmt.Fprintf(n.out, "%s %d/%d\n", color.GreenString("done"), p.CurrentCount, p.TotalCount)
	case p.IsAborted:
		fmt.Fprintf(n.out, "%s at %d/%d\n", color.YellowString("paused"), p.CurrentCount, p.TotalCount)
	default:
		fmt.Fprintf(n.out, "%s %d/%d\n", color.CyanString("progress"), p.CurrentCount, p.TotalCount)
	}
}

func (n *consoleNotifier) OnComplete(total int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "%s %d users processed\n", color.GreenString("completed"), total)
}

func (n *consoleNotifier) OnError(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "%s %s\n", color.RedString("error"), message)
}

func (n *consoleNotifier) OnAbort() {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.out, color.RedString("operation cancelled"))
}

func printStatus(out io.Writer, report blocking.StatusReport) {
	status := report.Status.String()
	switch report.Status {
	case blocking.StatusRunning, blocking.StatusCompleted:
		status = color.GreenString(status)
	case blocking.StatusPaused:
		status = color.YellowString(status)
	case blocking.StatusStuck, blocking.StatusFailed:
		status = color.RedString(status)
	}

	fmt.Fprintf(out, "status:     %s\n", status)
	if report.OperationID == "" {
		return
	}
	fmt.Fprintf(out, "operation:  %s\n", report.OperationID)
	fmt.Fprintf(out, "entries:    %v\n", report.EntryIDs)
	fmt.Fprintf(out, "block type: %s (thread: %t)\n", report.BlockType, report.IncludeThreadBlocking)
	fmt.Fprintf(out, "progress:   %d/%d, %d pending, %d failed\n",
		report.ProcessedCount, report.TotalCount, report.PendingCount, report.FailedCount)
}
