package client

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/agenda/internal/changefeed"
	"github.com/hitoshi/agenda/internal/model"
	"github.com/hitoshi/agenda/internal/security"
)

// --- モック ---

type mockClientRepo struct {
	findByIDFn    func(ctx context.Context, ownerID, id string) (*model.Client, error)
	listByOwnerFn func(ctx context.Context, ownerID string) ([]*model.Client, error)
	createFn      func(ctx context.Context, c *model.Client) error
	updateFn      func(ctx context.Context, c *model.Client) (bool, error)
}

func (m *mockClientRepo) FindByID(ctx context.Context, ownerID, id string) (*model.Client, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, ownerID, id)
	}
	return nil, nil
}
func (m *mockClientRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Client, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerID)
	}
	return nil, nil
}
func (m *mockClientRepo) Create(ctx context.Context, c *model.Client) error {
	if m.createFn != nil {
		return m.createFn(ctx, c)
	}
	return nil
}
func (m *mockClientRepo) Update(ctx context.Context, c *model.Client) (bool, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, c)
	}
	return true, nil
}

type recordingPublisher struct {
	events []changefeed.Event
}

func (p *recordingPublisher) Publish(e changefeed.Event) {
	p.events = append(p.events, e)
}

func assertAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

// --- Add ---

func TestAdd_CreatesClientAndPublishes(t *testing.T) {
	var created *model.Client
	repo := &mockClientRepo{
		createFn: func(ctx context.Context, c *model.Client) error {
			created = c
			return nil
		},
	}
	pub := &recordingPublisher{}
	svc := NewService(repo, security.NewTextSanitizer(), pub)

	c, err := svc.Add(context.Background(), "owner-1", Input{
		Name:  "  <b>Maria</b> ",
		Email: "maria@example.com",
		Phone: "090-0000-0000",
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if created == nil {
		t.Fatal("repository Create was not called")
	}
	if c.Name != "Maria" {
		t.Errorf("Name = %q, want %q", c.Name, "Maria")
	}
	if c.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %q, want %q", c.OwnerID, "owner-1")
	}
	if c.ID == "" {
		t.Error("ID should be generated")
	}
	if c.CreatedAt.IsZero() || !c.CreatedAt.Equal(c.UpdatedAt) {
		t.Errorf("CreatedAt = %v, UpdatedAt = %v", c.CreatedAt, c.UpdatedAt)
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	want := changefeed.Event{OwnerID: "owner-1", Collection: model.CollectionClients}
	if pub.events[0] != want {
		t.Errorf("event = %+v, want %+v", pub.events[0], want)
	}
}

func TestAdd_BlankName_ReturnsInvalidClient(t *testing.T) {
	called := false
	repo := &mockClientRepo{
		createFn: func(ctx context.Context, c *model.Client) error {
			called = true
			return nil
		},
	}
	svc := NewService(repo, security.NewTextSanitizer(), nil)

	_, err := svc.Add(context.Background(), "owner-1", Input{Name: "   "})
	assertAPIError(t, err, model.ErrCodeInvalidClient)
	if called {
		t.Error("Create should not be called for invalid input")
	}
}

func TestAdd_RepositoryError_IsWrapped(t *testing.T) {
	dbErr := errors.New("connection refused")
	repo := &mockClientRepo{
		createFn: func(ctx context.Context, c *model.Client) error { return dbErr },
	}
	pub := &recordingPublisher{}
	svc := NewService(repo, security.NewTextSanitizer(), pub)

	_, err := svc.Add(context.Background(), "owner-1", Input{Name: "Maria"})
	if !errors.Is(err, dbErr) {
		t.Errorf("error = %v, want wrapped %v", err, dbErr)
	}
	if len(pub.events) != 0 {
		t.Error("failed write should not publish")
	}
}

// --- Update ---

func TestUpdate_UpdatesFields(t *testing.T) {
	existing := &model.Client{ID: "c-1", OwnerID: "owner-1", Name: "Old"}
	var updated *model.Client
	repo := &mockClientRepo{
		findByIDFn: func(ctx context.Context, ownerID, id string) (*model.Client, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, c *model.Client) (bool, error) {
			updated = c
			return true, nil
		},
	}
	pub := &recordingPublisher{}
	svc := NewService(repo, security.NewTextSanitizer(), pub)

	c, err := svc.Update(context.Background(), "owner-1", "c-1", Input{Name: "New", Phone: "123"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated == nil || updated.Name != "New" || updated.Phone != "123" {
		t.Errorf("updated = %+v", updated)
	}
	if c.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
	if len(pub.events) != 1 {
		t.Errorf("published %d events, want 1", len(pub.events))
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc := NewService(&mockClientRepo{}, security.NewTextSanitizer(), nil)

	_, err := svc.Update(context.Background(), "owner-1", "missing", Input{Name: "New"})
	assertAPIError(t, err, model.ErrCodeClientNotFound)
}

func TestUpdate_DeletedConcurrently_ReturnsNotFound(t *testing.T) {
	repo := &mockClientRepo{
		findByIDFn: func(ctx context.Context, ownerID, id string) (*model.Client, error) {
			return &model.Client{ID: id, OwnerID: ownerID, Name: "Old"}, nil
		},
		updateFn: func(ctx context.Context, c *model.Client) (bool, error) {
			return false, nil
		},
	}
	svc := NewService(repo, security.NewTextSanitizer(), nil)

	_, err := svc.Update(context.Background(), "owner-1", "c-1", Input{Name: "New"})
	assertAPIError(t, err, model.ErrCodeClientNotFound)
}

// --- Get / List ---

func TestGet_ScopedByOwner(t *testing.T) {
	var gotOwner string
	repo := &mockClientRepo{
		findByIDFn: func(ctx context.Context, ownerID, id string) (*model.Client, error) {
			gotOwner = ownerID
			return &model.Client{ID: id, OwnerID: ownerID, Name: "Maria"}, nil
		},
	}
	svc := NewService(repo, security.NewTextSanitizer(), nil)

	c, err := svc.Get(context.Background(), "owner-1", "c-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotOwner != "owner-1" || c.ID != "c-1" {
		t.Errorf("owner = %q, client = %+v", gotOwner, c)
	}
}

func TestList_NilBecomesEmpty(t *testing.T) {
	svc := NewService(&mockClientRepo{}, security.NewTextSanitizer(), nil)

	clients, err := svc.List(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if clients == nil || len(clients) != 0 {
		t.Errorf("clients = %v, want empty slice", clients)
	}
}
