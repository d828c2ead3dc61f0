package user_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/auth"
	"github.com/frahmantamala/identity-service/internal/core/datamodel/datamodeltest"
	"github.com/frahmantamala/identity-service/internal/session"
	sessionPostgres "github.com/frahmantamala/identity-service/internal/session/postgres"
	"github.com/frahmantamala/identity-service/internal/transport"
	"github.com/frahmantamala/identity-service/internal/user"
	userPostgres "github.com/frahmantamala/identity-service/internal/user/postgres"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Suite")
}

var _ = Describe("User Handler Integration", func() {
	var (
		ctx     context.Context
		handler *user.Handler
		owner   *user.User
		company *user.Company
	)

	BeforeEach(func() {
		ctx = context.Background()
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err := datamodeltest.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())

		users := userPostgres.NewUserRepository(db)
		companies := userPostgres.NewCompanyRepository(db)
		sessions := sessionPostgres.NewSessionRepository(db)

		issuer := auth.NewJWTTokenIssuer(auth.IssuerConfig{
			AccessSecret:  "access-secret-access-secret-access-secret",
			RefreshSecret: "refresh-secret-refresh-secret-refresh-secret",
		})
		manager := session.NewManager(issuer, auth.NewTokenHasher(bcrypt.MinCost), slogger)

		company = &user.Company{Name: "Acme", Email: "billing@acme.io"}
		Expect(companies.Create(ctx, company)).To(Succeed())
		owner = user.NewOwner(company.ID, "Ada", "ada@acme.io", "hash")
		Expect(users.Create(ctx, owner)).To(Succeed())

		_, err = manager.Create(ctx, sessions, owner.ID, internal.ClientInfo{UserAgent: "laptop"})
		Expect(err).NotTo(HaveOccurred())
		_, err = manager.Create(ctx, sessions, owner.ID, internal.ClientInfo{UserAgent: "phone"})
		Expect(err).NotTo(HaveOccurred())

		service := user.NewService(users, companies, sessions, manager, slogger)
		handler = user.NewHandler(transport.NewBaseHandler(slogger), service)
	})

	requestAs := func(path, userID string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if userID != "" {
			req = req.WithContext(internal.ContextWithUserID(req.Context(), userID))
		}
		return req
	}

	It("should return the profile with its company", func() {
		w := httptest.NewRecorder()

		handler.GetCurrentUser(w, requestAs("/users/me", owner.ID))

		Expect(w.Code).To(Equal(http.StatusOK))
		var body map[string]map[string]interface{}
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body["user"]["email"]).To(Equal("ada@acme.io"))
		Expect(body["user"]).NotTo(HaveKey("password_hash"))
		Expect(body["user"]).NotTo(HaveKey("PasswordHash"))
		Expect(body["company"]["id"]).To(Equal(company.ID))
	})

	It("should return 404 for a user that no longer exists", func() {
		w := httptest.NewRecorder()

		handler.GetCurrentUser(w, requestAs("/users/me", "b0b5ad3e-0000-4000-8000-000000000000"))

		Expect(w.Code).To(Equal(http.StatusNotFound))
		var body internal.Response
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body.Error.Code).To(Equal(internal.ErrCodeUserNotFound))
	})

	It("should reject requests without an authenticated user", func() {
		w := httptest.NewRecorder()

		handler.GetCurrentUser(w, requestAs("/users/me", ""))

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("should list active sessions without token hashes", func() {
		w := httptest.NewRecorder()

		handler.ListSessions(w, requestAs("/users/me/sessions", owner.ID))

		Expect(w.Code).To(Equal(http.StatusOK))
		raw := w.Body.String()
		Expect(raw).NotTo(ContainSubstring("hash"))
		var body user.SessionListResponse
		Expect(json.Unmarshal([]byte(raw), &body)).To(Succeed())
		Expect(body.Sessions).To(HaveLen(2))
	})
})
