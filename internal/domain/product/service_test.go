package product

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockRepo struct {
	byID      map[string]Product
	createErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{byID: map[string]Product{}}
}

func (m *mockRepo) List(context.Context) ([]Product, error) {
	out := make([]Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.byID[p.ID] = *p
	return nil
}

func (m *mockRepo) Update(_ context.Context, p *Product) error {
	if _, ok := m.byID[p.ID]; !ok {
		return ErrNotFound
	}
	m.byID[p.ID] = *p
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// --- Tests ---

func TestService_CRUD(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo())

	created, err := svc.Create(ctx, Input{Name: "Laptop", Price: decimal.RequireFromString("1000.00"), Type: "Electronics"})
	require.NoError(t, err)
	_, err = uuid.Parse(created.ID)
	require.NoError(t, err, "ids are UUIDs")

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	updated, err := svc.Update(ctx, created.ID, Input{Name: "Laptop Pro", Price: decimal.RequireFromString("1500"), Type: "Electronics"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Laptop Pro", updated.Name)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Laptop Pro", list[0].Name)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_NotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo())

	_, err := svc.Update(ctx, "missing", Input{Name: "x", Price: decimal.NewFromInt(1), Type: "t"})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, "missing"), ErrNotFound)
}

func TestService_CreateError(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = errors.New("unique violation")
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), Input{Name: "x", Price: decimal.NewFromInt(1), Type: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create product")
	assert.Contains(t, err.Error(), "unique violation")
}
