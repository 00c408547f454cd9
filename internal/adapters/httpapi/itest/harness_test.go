package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/campus-logistics/delivery-tracker-api/internal/adapters/httpapi"
	memdeliveryrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/deliveryrepo"
	memidempotency "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/idempotency"
	memsessionstore "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/sessionstore"
	memstaffrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/staffrepo"
	memuserrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/userrepo"
	pgdeliveryrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres/deliveryrepo"
	pgidempotency "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres/idempotency"
	pgstaffrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres/staffrepo"
	postgres_testutil "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres/testutil"
	pguserrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres/userrepo"
	redissessionstore "github.com/campus-logistics/delivery-tracker-api/internal/adapters/redis/sessionstore"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/dashboard"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/deliveries"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/seed"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/session"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/staff"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/auth/password"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/auth/sessiontoken"
	platformclock "github.com/campus-logistics/delivery-tracker-api/internal/platform/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/metrics"
	deliveryrepoport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/deliveryrepo"
	idempotencyport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/idempotency"
	sessionstoreport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/sessionstore"
	staffrepoport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/staffrepo"
	userrepoport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/userrepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
}

// newTestServer wires the full stack. The postgres backend also keeps sessions in Redis
// (an in-process miniredis), matching the production pairing.
func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()
	ctx := context.Background()

	clk := platformclock.NewManualClock(time.Now().UTC())

	var (
		userRepo     userrepoport.Repository
		deliveryRepo deliveryrepoport.Repository
		staffRepo    staffrepoport.Repository
		sessions     sessionstoreport.Store
		idemStore    idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		userRepo = pguserrepo.NewRepo(pool)
		deliveryRepo = pgdeliveryrepo.NewRepo(pool)
		staffRepo = pgstaffrepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool)

		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		sessions = redissessionstore.NewStore(rdb, clk)
	case backendMemory:
		userRepo = memuserrepo.NewRepo()
		deliveryRepo = memdeliveryrepo.NewRepo()
		staffRepo = memstaffrepo.NewRepo()
		idemStore = memidempotency.NewStore()
		sessions = memsessionstore.NewStore(clk)
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	hasher := password.NewHasher(bcrypt.MinCost)
	sessionSvc := session.NewService(userRepo, sessions, sessiontoken.NewSigner([]byte("itest-secret"), clk), hasher, clk, session.Options{})
	staffSvc := staff.NewService(staffRepo, deliveryRepo, userRepo, sessionSvc, clk, nil)
	deliverySvc := deliveries.NewService(deliveryRepo, userRepo, staffSvc, clk, deliveries.Options{})
	dashSvc := dashboard.NewService(deliverySvc, staffSvc)

	if _, err := seed.Run(ctx, seed.Deps{
		Users:      userRepo,
		Deliveries: deliveryRepo,
		Roster:     staffSvc,
		Hasher:     hasher,
		Clock:      clk,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	api := httpapi.NewServer(sessionSvc, deliverySvc, staffSvc, dashSvc, idemStore, clk, nil)
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{Metrics: metrics.New()})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, token string, body any, hdr ...string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

func (s *testServer) login(t *testing.T, email, pw string) string {
	t.Helper()
	status, body, _ := s.doJSON(t, http.MethodPost, "/login", "", map[string]string{"email": email, "password": pw})
	if status != http.StatusOK {
		t.Fatalf("login %s status=%d body=%s", email, status, string(body))
	}
	return mustUnmarshal[struct {
		Token string `json:"token"`
	}](t, body).Token
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
