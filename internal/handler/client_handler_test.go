package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/hitoshi/agenda/internal/client"
	"github.com/hitoshi/agenda/internal/model"
)

func TestClientHandler_RequiresSettledIdentity(t *testing.T) {
	loading, _ := newTestStore(t)
	w := doRequest(t, newTestRouter(t, loading), http.MethodGet, "/api/clients", "")
	assertErrorCode(t, w, http.StatusServiceUnavailable, model.ErrCodeSessionLoading)

	signedOut, src := newTestStore(t)
	src.publish(nil)
	w = doRequest(t, newTestRouter(t, signedOut), http.MethodGet, "/api/clients", "")
	assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}

func TestClientHandler_List(t *testing.T) {
	store, _ := signedInStore(t, "uid-ana")
	svc := &mockClientService{
		listFn: func(ctx context.Context, ownerID string) ([]*model.Client, error) {
			if ownerID != "uid-ana" {
				t.Errorf("ownerID = %q, want %q", ownerID, "uid-ana")
			}
			return []*model.Client{
				{ID: "c-1", OwnerID: ownerID, Name: "Ana"},
				{ID: "c-2", OwnerID: ownerID, Name: "Bruno", Phone: "5555"},
			}, nil
		},
	}
	h := newTestRouter(t, store, func(d *RouterDeps) { d.ClientService = svc })

	w := doRequest(t, h, http.MethodGet, "/api/clients", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp []clientResponse
	decodeBody(t, w, &resp)
	if len(resp) != 2 || resp[1].Name != "Bruno" || resp[1].Phone != "5555" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClientHandler_List_EmptyIsArray(t *testing.T) {
	store, _ := signedInStore(t, "uid-ana")
	svc := &mockClientService{
		listFn: func(ctx context.Context, ownerID string) ([]*model.Client, error) {
			return []*model.Client{}, nil
		},
	}
	h := newTestRouter(t, store, func(d *RouterDeps) { d.ClientService = svc })

	w := doRequest(t, h, http.MethodGet, "/api/clients", "")
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want %q", got, "[]\n")
	}
}

func TestClientHandler_Create(t *testing.T) {
	store, _ := signedInStore(t, "uid-ana")
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := &mockClientService{
		addFn: func(ctx context.Context, ownerID string, in client.Input) (*model.Client, error) {
			if in.Name != "Ana" || in.Email != "ana@example.com" {
				t.Errorf("input = %+v", in)
			}
			return &model.Client{ID: "c-1", OwnerID: ownerID, Name: in.Name, Email: in.Email, CreatedAt: now, UpdatedAt: now}, nil
		},
	}
	h := newTestRouter(t, store, func(d *RouterDeps) { d.ClientService = svc })

	w := doRequest(t, h, http.MethodPost, "/api/clients", `{"name":"Ana","email":"ana@example.com"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp clientResponse
	decodeBody(t, w, &resp)
	if resp.ID != "c-1" || !resp.CreatedAt.Equal(now) {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClientHandler_Create_Invalid(t *testing.T) {
	store, _ := signedInStore(t, "uid-ana")
	svc := &mockClientService{
		addFn: func(ctx context.Context, ownerID string, in client.Input) (*model.Client, error) {
			return nil, model.NewInvalidClientError("顧客名は必須です")
		},
	}
	h := newTestRouter(t, store, func(d *RouterDeps) { d.ClientService = svc })

	w := doRequest(t, h, http.MethodPost, "/api/clients", `{"name":""}`)
	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidClient)
}

func TestClientHandler_Get_NotFound(t *testing.T) {
	store, _ := signedInStore(t, "uid-ana")
	svc := &mockClientService{
		getFn: func(ctx context.Context, ownerID, id string) (*model.Client, error) {
			if id != "missing" {
				t.Errorf("id = %q, want %q", id, "missing")
			}
			return nil, model.NewClientNotFoundError(id)
		},
	}
	h := newTestRouter(t, store, func(d *RouterDeps) { d.ClientService = svc })

	w := doRequest(t, h, http.MethodGet, "/api/clients/missing", "")
	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeClientNotFound)
}

func TestClientHandler_Update(t *testing.T) {
	store, _ := signedInStore(t, "uid-ana")
	svc := &mockClientService{
		updateFn: func(ctx context.Context, ownerID, id string, in client.Input) (*model.Client, error) {
			return &model.Client{ID: id, OwnerID: ownerID, Name: in.Name, Phone: in.Phone}, nil
		},
	}
	h := newTestRouter(t, store, func(d *RouterDeps) { d.ClientService = svc })

	w := doRequest(t, h, http.MethodPut, "/api/clients/c-1", `{"name":"Ana Maria","phone":"1234"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp clientResponse
	decodeBody(t, w, &resp)
	if resp.ID != "c-1" || resp.Name != "Ana Maria" || resp.Phone != "1234" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClientHandler_InternalError(t *testing.T) {
	store, _ := signedInStore(t, "uid-ana")
	svc := &mockClientService{
		listFn: func(ctx context.Context, ownerID string) ([]*model.Client, error) {
			return nil, context.DeadlineExceeded
		},
	}
	h := newTestRouter(t, store, func(d *RouterDeps) { d.ClientService = svc })

	w := doRequest(t, h, http.MethodGet, "/api/clients", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
