// Command petstore demonstrates the github.com/bjaus/oas framework
// with a realistic API covering every major feature.
//
// Run:
//
//	go run ./cmd/petstore
//
// Generate the OpenAPI document:
//
//	go run ./cmd/petstore -spec                        — print JSON to stdout
//	go run ./cmd/petstore -spec -yaml                  — print YAML instead
//	go run ./cmd/petstore -spec -o openapi.json        — write to file
//
// Then explore:
//
//	GET  http://localhost:8080/openapi.json            — OpenAPI document
//	GET  http://localhost:8080/openapi.yaml            — same, as YAML
//	GET  http://localhost:8080/v1/health               — health check
//	GET  http://localhost:8080/v1/pets                 — list pets
//	POST http://localhost:8080/v1/pets                 — create pet
//	GET  http://localhost:8080/v1/pets/{id}            — get pet
//	PATCH http://localhost:8080/v1/pets/{id}           — update pet
//	POST http://localhost:8080/v1/pets/{id}/adopt      — adopt pet
//	POST http://localhost:8080/v1/pets/{id}/photo      — upload photo (multipart)
//	GET  http://localhost:8080/v1/pets/{id}/photo      — download photo
//	GET  http://localhost:8080/v1/events               — SSE event stream
//	GET  http://localhost:8080/v1/ws                   — raw handler (WebSocket placeholder)
//	GET  http://localhost:8080/v1/legacy/ping          — legacy chi mux behind the raw escape hatch
//	DELETE http://localhost:8080/v1/admin/pets/{id}    — delete pet (API key + rate limited)
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bjaus/oas"
)

func main() {
	specFlag := flag.Bool("spec", false, "Print the OpenAPI document to stdout and exit")
	yamlFlag := flag.Bool("yaml", false, "Emit YAML instead of JSON (requires -spec)")
	outFlag := flag.String("o", "", "Output file for the document (requires -spec)")
	flag.Parse()

	svc, err := newRouter().Build()
	if err != nil {
		slog.Error("build failed", "err", err)
		os.Exit(1)
	}

	if *specFlag {
		if err := writeSpec(svc, *yamlFlag, *outFlag); err != nil {
			slog.Error("spec generation failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting server", "addr", ":8080", "spec", "http://localhost:8080/openapi.json")

	if err := svc.ListenAndServe(ctx, ":8080"); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
	}

	slog.Info("server stopped")
}

func newRouter() *oas.Router {
	r := oas.New(
		oas.WithTitle("Petstore API"),
		oas.WithVersion("1.0.0"),
		oas.WithAPIDescription("A pet adoption service demonstrating the oas framework."),
		oas.WithContact(oas.Contact{Name: "Petstore Team", Email: "team@petstore.example"}),
		oas.WithLicense(oas.License{Name: "MIT", Identifier: "MIT"}),
		oas.WithServers(
			oas.Server{URL: "http://localhost:8080", Description: "Local development"},
		),
		oas.WithSecurityScheme("bearerAuth", oas.BearerAuth("JWT")),
		oas.WithSecurityScheme("apiKey", oas.APIKeyAuth("X-API-Key", "header")),
		oas.WithGlobalSecurity("bearerAuth"),
		oas.WithTag(oas.Tag{Name: "pets", Description: "Pet catalog and adoption"}),
		oas.WithTag(oas.Tag{Name: "admin", Description: "Privileged operations"}),
	)

	// Global middleware.
	r.Use(oas.Recovery())
	r.Use(oas.RequestID())
	r.Use(oas.Logger(slog.Default()))

	// Serve the OpenAPI document at the root level.
	r.ServeSpec("/openapi.json")
	r.ServeSpecYAML("/openapi.yaml")

	// Documented webhook: delivered to subscribers when a pet is adopted.
	oas.Webhook[PetAdoptedEvent, oas.Void](r, "pet.adopted", http.MethodPost,
		oas.WithSummary("Pet adopted"),
		oas.WithDescription("Sent to registered subscribers after an adoption completes."),
		oas.WithTags("pets"),
	)

	// ---------- v1 group ----------

	v1 := r.Group("/v1", oas.WithGroupTags("v1"))

	// Health. Open endpoint, no auth required.
	oas.Get(v1, "/health", handleHealth,
		oas.WithSummary("Health check"),
		oas.WithDescription("Returns the current server time and status."),
		oas.WithTags("ops"),
		oas.WithNoSecurity(),
	)

	// Pets.
	oas.Get(v1, "/pets", handleListPets,
		oas.WithSummary("List pets"),
		oas.WithDescription("Returns pets filtered by adoption status and tags."),
		oas.WithTags("pets"),
	)
	oas.Post(v1, "/pets", handleCreatePet,
		oas.WithStatus(http.StatusCreated),
		oas.WithSummary("Create pet"),
		oas.WithTags("pets"),
		oas.WithLink("GetPetById", oas.Link{
			OperationID: "getPet",
			Parameters:  map[string]any{"id": "$response.body#/id"},
			Description: "Fetch the pet that was just created.",
		}),
	)
	oas.Get(v1, "/pets/{id}", handleGetPet,
		oas.WithOperationID("getPet"),
		oas.WithSummary("Get pet by ID"),
		oas.WithTags("pets"),
		oas.WithErrors(http.StatusNotFound),
	)
	oas.Patch(v1, "/pets/{id}", handleUpdatePet,
		oas.WithSummary("Update pet"),
		oas.WithTags("pets"),
		oas.WithErrors(http.StatusNotFound),
	)
	oas.Post(v1, "/pets/{id}/adopt", handleAdoptPet,
		oas.WithSummary("Adopt pet"),
		oas.WithDescription("Marks the pet as adopted and triggers the pet.adopted webhook."),
		oas.WithTags("pets"),
		oas.WithErrors(http.StatusNotFound, http.StatusConflict),
	)

	// Photo upload / download.
	oas.Post(v1, "/pets/{id}/photo", handleUploadPhoto,
		oas.WithStatus(http.StatusNoContent),
		oas.WithSummary("Upload photo"),
		oas.WithDescription("Accepts a multipart file upload for the pet's photo."),
		oas.WithTags("pets", "files"),
		oas.WithBodyLimit(8<<20), // 8 MB
	)
	oas.Get(v1, "/pets/{id}/photo", handleDownloadPhoto,
		oas.WithSummary("Download photo"),
		oas.WithDescription("Returns the pet's photo as a binary stream."),
		oas.WithTags("pets", "files"),
		oas.WithErrors(http.StatusNotFound),
	)

	// SSE event stream.
	oas.Get(v1, "/events", handleEvents,
		oas.WithSummary("Event stream"),
		oas.WithDescription("Server-Sent Events stream that emits adoption activity."),
		oas.WithTags("streaming"),
	)

	// Raw handler escape hatch (e.g. WebSocket placeholder).
	oas.Raw(r, http.MethodGet, "/v1/ws", handleWebSocket, oas.OperationInfo{
		Summary:     "WebSocket endpoint",
		Description: "Placeholder for a WebSocket upgrade. Demonstrates the Raw handler escape hatch.",
		Tags:        []string{"v1", "streaming"},
		Status:      http.StatusSwitchingProtocols,
	})

	// Endpoints that predate the typed handlers stay on the old chi mux
	// until they are ported, mounted behind the raw escape hatch.
	oas.Raw(r, http.MethodGet, "/v1/legacy/{path...}",
		http.StripPrefix("/v1/legacy", legacyRouter()).ServeHTTP,
		oas.OperationInfo{
			Summary:     "Legacy endpoints",
			Description: "Pre-migration endpoints still served by the previous chi router.",
			Tags:        []string{"v1", "legacy"},
		})

	// ---------- admin group: API key auth, rate limited ----------

	admin := r.Group("/v1/admin",
		oas.WithGroupTags("admin"),
		oas.WithGroupSecurity("apiKey"),
		oas.WithGroupMiddleware(
			requireAPIKey("letmein"),
			oas.RateLimit(oas.RateLimitConfig{Rate: 5, Burst: 10}),
		),
	)

	oas.Delete(admin, "/pets/{id}", handleDeletePet,
		oas.WithSummary("Delete pet"),
		oas.WithErrors(http.StatusNotFound),
		oas.WithExtension("x-audit", true),
	)

	return r
}

// ---------------------------------------------------------------------------
func writeSpec(svc *oas.Service, asYAML bool, outFile string) error {
	w := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile) //nolint:gosec // user-provided CLI flag
		if err != nil {
			return err
		}
		defer func() {
			if err := f.Close(); err != nil {
				slog.Error("failed to close output file", "err", err)
			}
		}()
		w = f
	}
	if asYAML {
		return svc.WriteSpecYAML(w)
	}
	return svc.WriteSpec(w)
}

// In-memory store
// ---------------------------------------------------------------------------

var store = newPetStore()

type petStore struct {
	mu     sync.RWMutex
	pets   map[uuid.UUID]*Pet
	photos map[uuid.UUID][]byte
	events chan oas.SSEEvent
}

func newPetStore() *petStore {
	s := &petStore{
		pets:   map[uuid.UUID]*Pet{},
		photos: map[uuid.UUID][]byte{},
		events: make(chan oas.SSEEvent, 16),
	}
	for _, p := range []*Pet{
		{ID: uuid.New(), Name: "Rex", Species: "dog", Age: 3, Status: "available", CreatedAt: time.Now()},
		{ID: uuid.New(), Name: "Whiskers", Species: "cat", Age: 5, Status: "pending", CreatedAt: time.Now()},
	} {
		s.pets[p.ID] = p
	}
	return s
}

func (s *petStore) list(status string, tags []string) []Pet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Pet, 0, len(s.pets))
	for _, p := range s.pets {
		if status != "" && p.Status != status {
			continue
		}
		if !hasAllTags(p.Tags, tags) {
			continue
		}
		out = append(out, *p)
	}
	return out
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *petStore) get(id uuid.UUID) (*Pet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pets[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (s *petStore) create(name, species string, age int, tags []string) *Pet {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Pet{
		ID:        uuid.New(),
		Name:      name,
		Species:   species,
		Age:       age,
		Tags:      tags,
		Status:    "available",
		CreatedAt: time.Now(),
	}
	s.pets[p.ID] = p
	cp := *p
	return &cp
}

func (s *petStore) update(id uuid.UUID, name string, age *int) (*Pet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pets[id]
	if !ok {
		return nil, false
	}
	if name != "" {
		p.Name = name
	}
	if age != nil {
		p.Age = *age
	}
	cp := *p
	return &cp, true
}

func (s *petStore) adopt(id uuid.UUID) (*Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pets[id]
	if !ok {
		return nil, oas.Errorf(http.StatusNotFound, "pet %s not found", id)
	}
	if p.Status == "adopted" {
		return nil, oas.Errorf(http.StatusConflict, "pet %s is already adopted", id)
	}
	p.Status = "adopted"
	cp := *p

	// Notify SSE subscribers without blocking the adoption.
	select {
	case s.events <- oas.SSEEvent{Event: "adopted", Data: cp}:
	default:
	}
	return &cp, nil
}

func (s *petStore) delete(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pets[id]; !ok {
		return false
	}
	delete(s.pets, id)
	delete(s.photos, id)
	return true
}

func (s *petStore) setPhoto(id uuid.UUID, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[id] = data
}

func (s *petStore) getPhoto(id uuid.UUID) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.photos[id]
	return data, ok
}

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// Pet is the core domain entity.
type Pet struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	Age       int       `json:"age"`
	Tags      []string  `json:"tags,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ---------------------------------------------------------------------------
// Request / Response types
// ---------------------------------------------------------------------------

// --- Health ---

type HealthResp struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// --- List Pets ---

type ListPetsReq struct {
	Status *string  `query:"status" enum:"available,pending,adopted" doc:"Filter by adoption status"`
	Tags   []string `query:"tags,omitempty" doc:"Only pets carrying every listed tag"`
	Limit  int      `query:"limit" minimum:"1" maximum:"100" doc:"Max results" default:"20"`
	Offset int      `query:"offset" minimum:"0" doc:"Pagination offset" default:"0"`
}

type ListPetsResp struct {
	Pets  []Pet `json:"pets"`
	Total int   `json:"total"`
}

// --- Create Pet ---

type CreatePetReq struct {
	Body struct {
		Name    string   `json:"name" required:"true" minLength:"1" maxLength:"64" doc:"Display name"`
		Species string   `json:"species" required:"true" enum:"dog,cat,bird,reptile" doc:"Species"`
		Age     int      `json:"age" minimum:"0" maximum:"40" doc:"Age in years"`
		Tags    []string `json:"tags,omitempty" maxItems:"10" uniqueItems:"true" doc:"Free-form labels"`
	}
}

// --- Get / Adopt / Delete Pet ---

type PetByIDReq struct {
	ID uuid.UUID `path:"id" doc:"Pet ID"`
}

// --- Update Pet ---

type UpdatePetReq struct {
	ID   uuid.UUID `path:"id" doc:"Pet ID"`
	Body struct {
		Name string `json:"name,omitempty" maxLength:"64" doc:"Display name"`
		Age  *int   `json:"age,omitempty" minimum:"0" maximum:"40" doc:"Age in years"`
	}
}

// --- Photo Upload (multipart form) ---

type UploadPhotoReq struct {
	ID      uuid.UUID      `path:"id" doc:"Pet ID"`
	Photo   oas.FileUpload `form:"photo,required" doc:"Photo file"`
	Caption string         `form:"caption,omitempty" maxLength:"120" doc:"Optional caption"`
}

// --- Webhook payload ---

type PetAdoptedEvent struct {
	Body struct {
		PetID     uuid.UUID `json:"pet_id" required:"true" doc:"The adopted pet"`
		AdoptedAt time.Time `json:"adopted_at" doc:"Completion time"`
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func handleHealth(_ context.Context, _ *oas.Void) (*HealthResp, error) {
	return &HealthResp{
		Status: "ok",
		Time:   time.Now(),
	}, nil
}

func handleListPets(_ context.Context, req *ListPetsReq) (*ListPetsResp, error) {
	status := ""
	if req.Status != nil {
		status = *req.Status
	}
	pets := store.list(status, req.Tags)
	total := len(pets)

	// Apply offset/limit.
	if req.Offset > len(pets) {
		pets = nil
	} else {
		pets = pets[req.Offset:]
	}
	if req.Limit > 0 && req.Limit < len(pets) {
		pets = pets[:req.Limit]
	}

	return &ListPetsResp{
		Pets:  pets,
		Total: total,
	}, nil
}

func handleCreatePet(_ context.Context, req *CreatePetReq) (*Pet, error) {
	pet := store.create(req.Body.Name, req.Body.Species, req.Body.Age, req.Body.Tags)
	return pet, nil
}

func handleGetPet(_ context.Context, req *PetByIDReq) (*Pet, error) {
	pet, ok := store.get(req.ID)
	if !ok {
		return nil, oas.Errorf(http.StatusNotFound, "pet %s not found", req.ID)
	}
	return pet, nil
}

func handleUpdatePet(_ context.Context, req *UpdatePetReq) (*Pet, error) {
	pet, ok := store.update(req.ID, req.Body.Name, req.Body.Age)
	if !ok {
		return nil, oas.Errorf(http.StatusNotFound, "pet %s not found", req.ID)
	}
	return pet, nil
}

func handleAdoptPet(_ context.Context, req *PetByIDReq) (*Pet, error) {
	return store.adopt(req.ID)
}

func handleDeletePet(_ context.Context, req *PetByIDReq) (*oas.Void, error) {
	if !store.delete(req.ID) {
		return nil, oas.Errorf(http.StatusNotFound, "pet %s not found", req.ID)
	}
	return &oas.Void{}, nil
}

func handleUploadPhoto(_ context.Context, req *UploadPhotoReq) (*oas.Void, error) {
	if _, ok := store.get(req.ID); !ok {
		return nil, oas.Errorf(http.StatusNotFound, "pet %s not found", req.ID)
	}

	rc, err := req.Photo.Open()
	if err != nil {
		return nil, oas.Errorf(http.StatusInternalServerError, "failed to read upload: %v", err)
	}
	defer func() {
		//nolint:errcheck,gosec // best-effort close
		rc.Close()
	}()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, oas.Errorf(http.StatusInternalServerError, "failed to read upload: %v", err)
	}

	store.setPhoto(req.ID, data)
	return &oas.Void{}, nil
}

func handleDownloadPhoto(_ context.Context, req *PetByIDReq) (*oas.Stream, error) {
	data, ok := store.getPhoto(req.ID)
	if !ok {
		return nil, oas.Errorf(http.StatusNotFound, "photo not found for pet %s", req.ID)
	}

	return &oas.Stream{
		ContentType: "image/png",
		Status:      http.StatusOK,
		Body:        bytes.NewReader(data),
	}, nil
}

func handleEvents(ctx context.Context, _ *oas.Void) (*oas.SSEStream, error) {
	ch := make(chan oas.SSEEvent)

	go func() {
		defer close(ch)
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-store.events:
				ch <- ev
			case t := <-ticker.C:
				ch <- oas.SSEEvent{Event: "heartbeat", Data: map[string]any{"time": t.Format(time.RFC3339)}}
			}
		}
	}()

	return &oas.SSEStream{Events: ch}, nil
}

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// In a real app you'd upgrade to WebSocket here.
	// This just demonstrates the Raw handler escape hatch.
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // best-effort response write
	fmt.Fprintln(w, "WebSocket upgrade would happen here.")
	//nolint:errcheck // best-effort response write
	fmt.Fprintf(w, "Method: %s, Path: %s\n", r.Method, r.URL.Path)
}

// legacyRouter is the pre-migration chi mux. Its endpoints are served
// verbatim under /v1/legacy until they are ported to typed handlers.
func legacyRouter() http.Handler {
	mux := chi.NewRouter()

	mux.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		//nolint:errcheck // best-effort response write
		fmt.Fprintln(w, "pong")
	})

	mux.Get("/pets/{id}/name", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid pet id", http.StatusBadRequest)
			return
		}
		pet, ok := store.get(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		//nolint:errcheck // best-effort response write
		fmt.Fprintln(w, pet.Name)
	})

	return mux
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// requireAPIKey enforces the apiKey security scheme documented on the
// admin group. Schemes describe, middleware enforces.
func requireAPIKey(key string) oas.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != key {
				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(http.StatusUnauthorized)
				//nolint:errcheck // best-effort response write
				fmt.Fprintf(w, `{"type":"about:blank","title":"Unauthorized","status":401,"detail":"missing or invalid API key"}`)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
