package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

type mockListStore struct {
	events []model.Event
	err    error
}

func (m *mockListStore) UnscheduledEvents(ctx context.Context, window model.DateRange) ([]model.Event, error) {
	return m.events, m.err
}

func TestListUnscheduled_DriverOrder(t *testing.T) {
	day := model.Date(2026, time.March, 2)
	store := &mockListStore{events: []model.Event{
		{ID: uuid.New(), Name: "Freeosk Visit", Kind: model.KindFreeosk, DueDate: day},
		{ID: uuid.New(), Name: "Late Core", Kind: model.KindCore, DueDate: day.AddDate(0, 0, 5)},
		{ID: uuid.New(), Name: "Juicer Visit", Kind: model.KindJuicer, DueDate: day.AddDate(0, 0, 6)},
		{ID: uuid.New(), Name: "Early Core", Kind: model.KindCore, DueDate: day.AddDate(0, 0, 1)},
	}}

	events, err := ListUnscheduled(context.Background(), store, model.DateRange{From: day, To: day.AddDate(0, 0, 6)})
	require.NoError(t, err)

	got := make([]string, len(events))
	for i, ev := range events {
		got[i] = ev.Name
	}
	assert.Equal(t, []string{"Juicer Visit", "Early Core", "Late Core", "Freeosk Visit"}, got)
}

func TestListUnscheduled_StoreError(t *testing.T) {
	store := &mockListStore{err: errors.New("connection refused")}
	_, err := ListUnscheduled(context.Background(), store, model.DateRange{})
	assert.Error(t, err)
}
