package live

import (
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"swarmguard/internal/guard"
)

// Controller runs the live UI and implements guard.Observer.
type Controller struct {
	events    chan Event
	program   *tea.Program
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// Start launches a live UI controller that writes to stdout.
func Start(stdout io.Writer, opts Options) *Controller {
	if stdout == nil {
		stdout = os.Stdout
	}
	events := make(chan Event, 256)
	model := NewModel(events, opts)
	program := tea.NewProgram(model, tea.WithOutput(stdout), tea.WithAltScreen())
	controller := &Controller{
		events:  events,
		program: program,
		done:    make(chan struct{}),
	}
	go func() {
		_, _ = program.Run()
		close(controller.done)
	}()
	return controller
}

// Close signals the UI to stop.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.events)
		c.mu.Unlock()
	})
}

// Wait blocks until the UI has exited.
func (c *Controller) Wait() {
	if c == nil {
		return
	}
	<-c.done
}

// Done is closed when the UI exits, including when the operator quits.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// OnEngineStart forwards engine start details to the UI.
func (c *Controller) OnEngineStart(swarm, instanceID string, guards int) {
	c.send(Event{Kind: EventEngineStart, Swarm: swarm, InstanceID: instanceID, Guards: guards})
}

// OnTick implements guard.Observer.
func (c *Controller) OnTick(snap guard.Snapshot) {
	c.send(Event{Kind: EventTick, Snapshot: snap})
}

// OnEngineStop marks the engine stopped and closes the UI.
func (c *Controller) OnEngineStop() {
	c.send(Event{Kind: EventEngineStop})
	c.Close()
}

// send enqueues an event without blocking the caller.
func (c *Controller) send(event Event) {
	if c == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	default:
	}
}
