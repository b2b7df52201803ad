package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"feeScope/internal/model"
	"feeScope/internal/storage/memory"
)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	integrator := "0xf3c97b4ef9557975c70ddcb3be334d475c92dc5c"

	events := []model.FeeEvent{
		{ChainID: 137, BlockNumber: 200, TxHash: "0xaa", LogIndex: 0, Integrator: integrator, IntegratorFee: "5", ProtocolFee: "1"},
		{ChainID: 137, BlockNumber: 100, TxHash: "0xbb", LogIndex: 1, Integrator: integrator, IntegratorFee: "7", ProtocolFee: "2"},
		{ChainID: 137, BlockNumber: 100, TxHash: "0xbb", LogIndex: 0, Integrator: "0x1111111111111111111111111111111111111111", IntegratorFee: "9", ProtocolFee: "3"},
	}
	if err := store.SaveEvents(context.Background(), events); err != nil {
		t.Fatal(err)
	}
	if err := store.SetWatermark(context.Background(), 137, 250); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestGetEventsMixedCaseQuery(t *testing.T) {
	handler := NewHandler(seedStore(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/events?integrator=0xF3C97b4eF9557975C70dDcb3BE334D475c92Dc5C", nil)
	rec := httptest.NewRecorder()
	handler.GetEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp EventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Integrator != "0xf3c97b4ef9557975c70ddcb3be334d475c92dc5c" {
		t.Fatalf("integrator not normalized: %s", resp.Integrator)
	}
	if resp.Count != 2 || len(resp.Events) != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if resp.Events[0].BlockNumber != 100 || resp.Events[1].BlockNumber != 200 {
		t.Fatalf("events out of order: %+v", resp.Events)
	}
}

func TestGetEventsValidation(t *testing.T) {
	handler := NewHandler(seedStore(t), nil)

	cases := []string{
		"/v1/events",
		"/v1/events?integrator=bogus",
		"/v1/events?integrator=0xf3c97b4ef9557975c70ddcb3be334d475c92dc5c&limit=-1",
		"/v1/events?integrator=0xf3c97b4ef9557975c70ddcb3be334d475c92dc5c&offset=x",
	}
	for _, target := range cases {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		handler.GetEvents(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestGetStatus(t *testing.T) {
	handler := NewHandler(seedStore(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	rec := httptest.NewRecorder()
	handler.GetStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Watermarks) != 1 || resp.Watermarks[0].LastProcessedBlock != 250 {
		t.Fatalf("watermarks = %+v", resp.Watermarks)
	}
}

func TestHealth(t *testing.T) {
	handler := NewHandler(seedStore(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
