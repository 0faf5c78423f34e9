package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// A driver that always consumes exactly its full budget.
func fullBudgetRunner(consumed *uint64) RunFunc {
	return func(budget uint64) uint64 {
		*consumed += budget
		return budget
	}
}

func TestAddEventThenPopConsumesReportedCycles(t *testing.T) {
	s := New()
	var consumed uint64
	var fired EventKind
	s.EngageDriver(DriverCPU, fullBudgetRunner(&consumed), func() {})
	s.AddEvent(EventHBlank, 100, func() { fired = EventHBlank; s.Stop() })

	s.Run()

	require.Equal(t, EventHBlank, fired)
	require.EqualValues(t, 100, s.Now())
	require.EqualValues(t, 100, consumed)
}

func TestEventsAtSameTimeFireInInsertionOrder(t *testing.T) {
	s := New()
	var order []string
	s.EngageDriver(DriverCPU, fullBudgetRunner(new(uint64)), func() {})
	s.AddEvent(EventHBlank, 10, func() { order = append(order, "first") })
	s.AddEvent(EventHBlankSetFlag, 10, func() {
		order = append(order, "second")
		s.Stop()
	})

	s.Run()

	require.Equal(t, []string{"first", "second"}, order)
}

func TestHigherPriorityDriverPreemptsLower(t *testing.T) {
	s := New()
	var cpuRan, dmaRan bool
	s.EngageDriver(DriverCPU, func(budget uint64) uint64 {
		cpuRan = true
		return budget
	}, func() {})
	s.AddEvent(EventHBlank, 50, func() { s.Stop() })

	// Engaging DMA0 mid-scenario should make it the one that actually runs.
	s.EngageDriver(DriverDMA0, func(budget uint64) uint64 {
		dmaRan = true
		return budget
	}, func() {})

	s.Run()

	require.True(t, dmaRan)
	require.False(t, cpuRan)
}

func TestDisengageDriverRemovesFromList(t *testing.T) {
	s := New()
	s.EngageDriver(DriverCPU, fullBudgetRunner(new(uint64)), func() {})
	s.EngageDriver(DriverDMA0, fullBudgetRunner(new(uint64)), func() {})
	require.True(t, s.IsEngaged(DriverDMA0))
	s.DisengageDriver(DriverDMA0)
	require.False(t, s.IsEngaged(DriverDMA0))
}

func TestRemoveEventDeletesFirstMatch(t *testing.T) {
	s := New()
	s.AddEvent(EventHBlank, 10, func() {})
	require.True(t, s.HasEvent(EventHBlank))
	s.RemoveEvent(EventHBlank)
	require.False(t, s.HasEvent(EventHBlank))
}

func TestChangeEventTimeReorders(t *testing.T) {
	s := New()
	var firedFirst EventKind
	s.EngageDriver(DriverCPU, fullBudgetRunner(new(uint64)), func() {})
	s.AddEvent(EventHBlank, 100, func() {})
	s.AddEvent(EventNewScanline, 200, func() { firedFirst = EventNewScanline; s.Stop() })
	s.ChangeEventTime(EventNewScanline, 10)

	s.Run()

	require.Equal(t, EventNewScanline, firedFirst)
	require.EqualValues(t, 10, s.Now())
}
