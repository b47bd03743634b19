package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

type mockTraceStore struct {
	assignments map[uuid.UUID]model.Assignment
	events      map[uuid.UUID]model.Event
	employees   map[uuid.UUID]model.Employee
}

func (m *mockTraceStore) AssignmentByID(ctx context.Context, id uuid.UUID) (model.Assignment, error) {
	a, ok := m.assignments[id]
	if !ok {
		return model.Assignment{}, fmt.Errorf("assignment %s not found", id)
	}
	return a, nil
}

func (m *mockTraceStore) EventByID(ctx context.Context, id uuid.UUID) (model.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("event %s not found", id)
	}
	return e, nil
}

func (m *mockTraceStore) EmployeeByID(ctx context.Context, id uuid.UUID) (model.Employee, error) {
	e, ok := m.employees[id]
	if !ok {
		return model.Employee{}, fmt.Errorf("employee %s not found", id)
	}
	return e, nil
}

func newMockTraceStore() *mockTraceStore {
	return &mockTraceStore{
		assignments: make(map[uuid.UUID]model.Assignment),
		events:      make(map[uuid.UUID]model.Event),
		employees:   make(map[uuid.UUID]model.Employee),
	}
}

func (m *mockTraceStore) seed(eventName string, state model.AssignmentState, origin *uuid.UUID) model.Assignment {
	event := model.Event{ID: uuid.New(), Name: eventName, Kind: model.KindCore}
	employee := model.Employee{ID: uuid.New(), Name: "Worker " + eventName}
	assignment := model.Assignment{
		ID:           uuid.New(),
		EventID:      event.ID,
		EmployeeID:   employee.ID,
		State:        state,
		BumpOriginID: origin,
	}
	m.events[event.ID] = event
	m.employees[employee.ID] = employee
	m.assignments[assignment.ID] = assignment
	return assignment
}

func TestTraceAssignment_WalksChain(t *testing.T) {
	store := newMockTraceStore()

	oldest := store.seed("First Home", model.AssignmentBumped, nil)
	middle := store.seed("Displacer", model.AssignmentBumped, &oldest.ID)
	newest := store.seed("Top Requester", model.AssignmentPending, &middle.ID)

	hops, err := TraceAssignment(context.Background(), store, newest.ID)
	require.NoError(t, err)
	require.Len(t, hops, 3)

	assert.Equal(t, newest.ID, hops[0].Assignment.ID)
	assert.Equal(t, "Top Requester", hops[0].Event.Name)
	assert.Equal(t, middle.ID, hops[1].Assignment.ID)
	assert.Equal(t, oldest.ID, hops[2].Assignment.ID)
	assert.Nil(t, hops[2].Assignment.BumpOriginID, "chain ends at an origin-free assignment")
}

func TestTraceAssignment_SingleHop(t *testing.T) {
	store := newMockTraceStore()
	only := store.seed("Never Bumped", model.AssignmentPending, nil)

	hops, err := TraceAssignment(context.Background(), store, only.ID)
	require.NoError(t, err)
	require.Len(t, hops, 1)
	assert.Equal(t, only.ID, hops[0].Assignment.ID)
}

func TestTraceAssignment_CycleDetected(t *testing.T) {
	store := newMockTraceStore()
	a := store.seed("A", model.AssignmentBumped, nil)
	b := store.seed("B", model.AssignmentBumped, &a.ID)

	// Hand-edited data can close a loop; the walk must not spin.
	broken := store.assignments[a.ID]
	broken.BumpOriginID = &b.ID
	store.assignments[a.ID] = broken

	hops, err := TraceAssignment(context.Background(), store, b.ID)
	require.Error(t, err)
	assert.Len(t, hops, 2, "hops up to the cycle are still returned")
}

func TestTraceAssignment_UnknownID(t *testing.T) {
	store := newMockTraceStore()
	_, err := TraceAssignment(context.Background(), store, uuid.New())
	assert.Error(t, err)
}
