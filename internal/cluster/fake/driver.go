// Package fake provides an in-memory cluster.Driver that records every call made on it.
package fake

import (
	"sync"

	"github.com/armadaproject/largestproduct/internal/cluster"
)

type Launch struct {
	OfferId cluster.OfferId
	Tasks   []cluster.TaskInfo
	Filters cluster.Filters
}

type Decline struct {
	OfferId cluster.OfferId
	Filters cluster.Filters
}

// Driver delivers whatever is pushed with Send and records what the scheduler does in response.
type Driver struct {
	events chan cluster.Event

	mu           sync.Mutex
	Launched     []Launch
	Declined     []Decline
	Acknowledged []cluster.TaskStatus
	// Calls lists method names in the order they were called.
	Calls   []string
	Aborted bool
	Stopped bool

	// Returned by the corresponding methods when set.
	LaunchErr error
	AckErr    error
}

func NewDriver() *Driver {
	return &Driver{events: make(chan cluster.Event, 1024)}
}

// Send queues events for delivery on Events.
func (d *Driver) Send(events ...cluster.Event) {
	for _, e := range events {
		d.events <- e
	}
}

func (d *Driver) Events() <-chan cluster.Event {
	return d.events
}

func (d *Driver) LaunchTasks(offerId cluster.OfferId, tasks []cluster.TaskInfo, filters cluster.Filters) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, "LaunchTasks")
	d.Launched = append(d.Launched, Launch{OfferId: offerId, Tasks: tasks, Filters: filters})
	return d.LaunchErr
}

func (d *Driver) DeclineOffer(offerId cluster.OfferId, filters cluster.Filters) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, "DeclineOffer")
	d.Declined = append(d.Declined, Decline{OfferId: offerId, Filters: filters})
	return nil
}

func (d *Driver) AcknowledgeStatusUpdate(status cluster.TaskStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, "AcknowledgeStatusUpdate")
	d.Acknowledged = append(d.Acknowledged, status)
	return d.AckErr
}

func (d *Driver) Abort() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, "Abort")
	d.Aborted = true
	return nil
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, "Stop")
	d.Stopped = true
	return nil
}
