package identity_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/auth"
	"github.com/frahmantamala/identity-service/internal/core/datamodel/datamodeltest"
	"github.com/frahmantamala/identity-service/internal/identity"
	identityPostgres "github.com/frahmantamala/identity-service/internal/identity/postgres"
	"github.com/frahmantamala/identity-service/internal/session"
	"github.com/frahmantamala/identity-service/internal/transport"
)

var _ = Describe("Identity Handler Integration", func() {
	var (
		handler  *identity.Handler
		notifier *recordingNotifier
	)

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err := datamodeltest.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())

		issuer := auth.NewJWTTokenIssuer(auth.IssuerConfig{
			AccessSecret:  "access-secret-access-secret-access-secret",
			RefreshSecret: "refresh-secret-refresh-secret-refresh-secret",
		})
		notifier = &recordingNotifier{}

		service := identity.NewService(identity.Dependencies{
			UnitOfWork: identityPostgres.NewUnitOfWork(db),
			Tokens:     issuer,
			Passwords:  auth.NewPasswordHasher(bcrypt.MinCost),
			Sessions:   session.NewManager(issuer, auth.NewTokenHasher(bcrypt.MinCost), slogger),
			OAuth:      &fakeVerifier{},
			Notifier:   notifier,
			Config:     identity.Config{FrontendURL: frontendURL},
			Logger:     slogger,
		})
		handler = identity.NewHandler(transport.NewBaseHandler(slogger), service)
	})

	post := func(h http.HandlerFunc, body string, ctx context.Context) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "ginkgo")
		if ctx != nil {
			req = req.WithContext(ctx)
		}
		w := httptest.NewRecorder()
		h(w, req)
		return w
	}

	errorBody := func(w *httptest.ResponseRecorder) map[string]interface{} {
		var body map[string]map[string]interface{}
		Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
		return body["error"]
	}

	const registerBody = `{"company_email":"a@x.com","company_name":"Acme","admin_email":"o@x.com","password":"Secret123","admin_name":"Owen"}`

	It("should register a company and answer 201", func() {
		// When
		w := post(handler.Register, registerBody, nil)

		// Then
		Expect(w.Code).To(Equal(http.StatusCreated))
		var result identity.MessageResult
		Expect(json.Unmarshal(w.Body.Bytes(), &result)).To(Succeed())
		Expect(result.Message).To(Equal(identity.MsgRegistered))
		Expect(notifier.Sent()).To(HaveLen(1))
	})

	It("should answer 409 for a duplicate company", func() {
		Expect(post(handler.Register, registerBody, nil).Code).To(Equal(http.StatusCreated))

		w := post(handler.Register, registerBody, nil)

		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(errorBody(w)["code"]).To(Equal(string(internal.ErrCodeCompanyExists)))
	})

	It("should list invalid fields with 400", func() {
		w := post(handler.Register, `{"company_email":"nope"}`, nil)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		body := errorBody(w)
		Expect(body["type"]).To(Equal(string(internal.ErrorTypeValidation)))
		Expect(body["details"]).To(HaveKey("errors"))
	})

	It("should reject a malformed body", func() {
		w := post(handler.SignIn, `{"email":`, nil)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should answer 202 without a session for an unverified sign-in", func() {
		// Given
		Expect(post(handler.Register, registerBody, nil).Code).To(Equal(http.StatusCreated))

		// When
		w := post(handler.SignIn, `{"email":"o@x.com","password":"Secret123"}`, nil)

		// Then
		Expect(w.Code).To(Equal(http.StatusAccepted))
		raw := w.Body.String()
		Expect(raw).To(ContainSubstring(`"verification_required":true`))
		Expect(raw).NotTo(ContainSubstring("access_token"))
		Expect(raw).NotTo(ContainSubstring("password"))
	})

	It("should answer 401 for bad credentials without revealing which part was wrong", func() {
		Expect(post(handler.Register, registerBody, nil).Code).To(Equal(http.StatusCreated))

		wrongPassword := post(handler.SignIn, `{"email":"o@x.com","password":"nope"}`, nil)
		unknownEmail := post(handler.SignIn, `{"email":"x@x.com","password":"nope"}`, nil)

		Expect(wrongPassword.Code).To(Equal(http.StatusUnauthorized))
		Expect(errorBody(wrongPassword)).To(Equal(errorBody(unknownEmail)))
	})

	It("should verify an email and return tokens", func() {
		// Given
		Expect(post(handler.Register, registerBody, nil).Code).To(Equal(http.StatusCreated))
		token := tokenFrom(notifier.Sent()[0])

		// When
		w := post(handler.VerifyEmail, `{"token":"`+token+`"}`, nil)

		// Then
		Expect(w.Code).To(Equal(http.StatusOK))
		var result identity.AuthResult
		Expect(json.Unmarshal(w.Body.Bytes(), &result)).To(Succeed())
		Expect(result.Session.AccessToken).NotTo(BeEmpty())
		Expect(result.Session.RefreshToken).NotTo(BeEmpty())
	})

	It("should require authentication for logout", func() {
		w := post(handler.Logout, `{"session_id":"8f14e45f-ceea-467f-a0e6-0b4a3c3f6d1e"}`, nil)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("should log out the authenticated user's session", func() {
		ctx := internal.ContextWithUserID(context.Background(), "8f14e45f-ceea-467f-a0e6-0b4a3c3f6d1e")

		w := post(handler.Logout, `{"session_id":"0b4a3c3f-ceea-467f-a0e6-8f14e45f6d1e"}`, ctx)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(identity.MsgLoggedOut))
	})

	It("should answer uniformly to reset requests", func() {
		w := post(handler.RequestPasswordReset, `{"email":"ghost@x.com"}`, nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(identity.MsgResetRequested))
		Expect(notifier.Sent()).To(BeEmpty())
	})
})
