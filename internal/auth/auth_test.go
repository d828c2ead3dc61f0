package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/transport"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

const (
	testAccessSecret  = "access-secret-access-secret-access-secret"
	testRefreshSecret = "refresh-secret-refresh-secret-refresh-secret"
	testUserID        = "2c1d2d56-4b7e-4bd1-9f62-2a4f4c0f0a11"
	testSessionID     = "8f0e3c7a-5d21-4e6b-a9c4-1b7d2e3f4a50"
)

var _ = ginkgo.Describe("JWTTokenIssuer", func() {
	var (
		issuer *JWTTokenIssuer
		now    time.Time
	)

	ginkgo.BeforeEach(func() {
		now = time.Now()
		issuer = NewJWTTokenIssuer(IssuerConfig{
			AccessSecret:  testAccessSecret,
			RefreshSecret: testRefreshSecret,
			Issuer:        "identity-service",
		}).WithClock(func() time.Time { return now })
	})

	ginkgo.Context("issuing", func() {
		ginkgo.It("should derive the expiry from the configured lifetimes", func() {
			// When
			pair, err := issuer.IssueTokenPair(testUserID, testSessionID)

			// Then
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(pair.Access.ExpiresAt).To(gomega.BeTemporally("~", now.Add(15*time.Minute), time.Second))
			gomega.Expect(pair.Refresh.ExpiresAt).To(gomega.BeTemporally("~", now.Add(7*24*time.Hour), time.Second))
		})

		ginkgo.It("should carry versioned claims whose exp matches the returned expiry", func() {
			// Given
			issued, err := issuer.IssueAccessToken(testUserID, testSessionID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			// When
			claims, err := issuer.Decode(issued.Token)

			// Then
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(claims.Version).To(gomega.Equal(ClaimsVersion))
			gomega.Expect(claims.UserID).To(gomega.Equal(testUserID))
			gomega.Expect(claims.Subject).To(gomega.Equal(testUserID))
			gomega.Expect(claims.SessionID).To(gomega.Equal(testSessionID))
			gomega.Expect(claims.Type).To(gomega.Equal(TokenTypeAccess))
			gomega.Expect(claims.ID).NotTo(gomega.BeEmpty())
			gomega.Expect(claims.ExpiresAt.Time.Equal(issued.ExpiresAt)).To(gomega.BeTrue())
		})

		ginkgo.It("should refuse an empty user id", func() {
			_, err := issuer.IssueAccessToken("", testSessionID)
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Context("verifying", func() {
		ginkgo.It("should accept a valid access token", func() {
			issued, err := issuer.IssueAccessToken(testUserID, testSessionID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			claims, err := issuer.VerifyAccessToken(issued.Token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(claims.UserID).To(gomega.Equal(testUserID))
		})

		ginkgo.It("should report expiry separately", func() {
			// Given
			issued, err := issuer.IssueAccessToken(testUserID, testSessionID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			// When
			now = now.Add(16 * time.Minute)
			_, err = issuer.VerifyAccessToken(issued.Token)

			// Then
			gomega.Expect(errors.Is(err, ErrTokenExpired)).To(gomega.BeTrue())
		})

		ginkgo.It("should not accept a refresh token as an access token", func() {
			issued, err := issuer.IssueRefreshToken(testUserID, testSessionID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = issuer.VerifyAccessToken(issued.Token)
			gomega.Expect(errors.Is(err, ErrInvalidToken)).To(gomega.BeTrue())
		})

		ginkgo.It("should reject a token signed with another secret", func() {
			other := NewJWTTokenIssuer(IssuerConfig{AccessSecret: "some-other-secret-some-other-secret", RefreshSecret: testRefreshSecret, Issuer: "identity-service"})
			issued, err := other.IssueAccessToken(testUserID, testSessionID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = issuer.VerifyAccessToken(issued.Token)
			gomega.Expect(errors.Is(err, ErrInvalidToken)).To(gomega.BeTrue())
		})

		ginkgo.It("should reject tokens with an unexpected algorithm", func() {
			claims := &Claims{
				Version: ClaimsVersion,
				UserID:  testUserID,
				Type:    TokenTypeAccess,
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   testUserID,
					Issuer:    "identity-service",
					ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
				},
			}
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testAccessSecret))
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = issuer.VerifyAccessToken(signed)
			gomega.Expect(errors.Is(err, ErrInvalidToken)).To(gomega.BeTrue())
		})

		ginkgo.It("should reject garbage without panicking", func() {
			for _, token := range []string{"", "abc", "a.b.c", strings.Repeat("x", 500)} {
				_, err := issuer.VerifyRefreshToken(token)
				gomega.Expect(errors.Is(err, ErrInvalidToken)).To(gomega.BeTrue())
			}
		})
	})
})

var _ = ginkgo.Describe("Hashers", func() {
	ginkgo.It("should hash and compare passwords", func() {
		hasher := NewPasswordHasher(bcrypt.MinCost)

		hash, err := hasher.Hash("correct horse battery staple")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(hasher.Compare(hash, "correct horse battery staple")).To(gomega.BeTrue())
		gomega.Expect(hasher.Compare(hash, "wrong")).To(gomega.BeFalse())
		gomega.Expect(hasher.Compare("", "anything")).To(gomega.BeFalse())
	})

	ginkgo.It("should reject passwords bcrypt cannot hash", func() {
		_, err := NewPasswordHasher(bcrypt.MinCost).Hash(strings.Repeat("p", 73))
		gomega.Expect(errors.Is(err, ErrPasswordTooLong)).To(gomega.BeTrue())
	})

	ginkgo.It("should distinguish long tokens that share a 72 byte prefix", func() {
		hasher := NewTokenHasher(bcrypt.MinCost)
		prefix := strings.Repeat("t", 100)

		hash, err := hasher.Hash(prefix + "one")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(hasher.Compare(hash, prefix+"one")).To(gomega.BeTrue())
		gomega.Expect(hasher.Compare(hash, prefix+"two")).To(gomega.BeFalse())
	})

	ginkgo.It("should generate distinct random tokens", func() {
		a, err := GenerateRandomToken()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		b, err := GenerateRandomToken()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(a).To(gomega.HaveLen(64))
		gomega.Expect(a).NotTo(gomega.Equal(b))
	})
})

var _ = ginkgo.Describe("APIKeys", func() {
	ginkgo.It("should generate prefixed keys with stable fingerprints", func() {
		keys, err := NewAPIKeys("fingerprint-secret")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		key, err := keys.Generate()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(key).To(gomega.HavePrefix(APIKeyPrefix))
		gomega.Expect(key).To(gomega.HaveLen(len(APIKeyPrefix) + 64))
		gomega.Expect(keys.Fingerprint(key)).To(gomega.HaveLen(12))
		gomega.Expect(keys.Fingerprint(key)).To(gomega.Equal(keys.Fingerprint(key)))
		gomega.Expect(SafeCompare(key, key)).To(gomega.BeTrue())
		gomega.Expect(SafeCompare(key, key+"x")).To(gomega.BeFalse())
	})

	ginkgo.It("should require a secret", func() {
		_, err := NewAPIKeys("")
		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})

var _ = ginkgo.Describe("Middleware", func() {
	var (
		issuer     *JWTTokenIssuer
		middleware *Middleware
		revoked    map[string]bool
		seenUserID string
		next       http.Handler
	)

	ginkgo.BeforeEach(func() {
		issuer = NewJWTTokenIssuer(IssuerConfig{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret})
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		revoked = map[string]bool{}
		checkSession := func(_ context.Context, sessionID, userID string) error {
			if revoked[sessionID] || userID != testUserID {
				return internal.NewAuthenticationError("No active session", internal.ErrCodeNoActiveSession)
			}
			return nil
		}
		middleware = NewMiddleware(transport.NewBaseHandler(lg), issuer, checkSession)
		seenUserID = ""
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenUserID = internal.UserIDFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})

	ginkgo.It("should pass the caller's id to the next handler", func() {
		issued, err := issuer.IssueAccessToken(testUserID, testSessionID)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("Authorization", "bearer "+issued.Token)
		w := httptest.NewRecorder()

		middleware.RequireAccessToken(next).ServeHTTP(w, req)

		gomega.Expect(w.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(seenUserID).To(gomega.Equal(testUserID))
	})

	ginkgo.It("should reject a missing or refresh token", func() {
		refresh, err := issuer.IssueRefreshToken(testUserID, testSessionID)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		for _, header := range []string{"", "Bearer " + refresh.Token} {
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()

			middleware.RequireAccessToken(next).ServeHTTP(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		}
		gomega.Expect(seenUserID).To(gomega.BeEmpty())
	})

	ginkgo.It("should reject a token whose session was signed out", func() {
		// Given
		issued, err := issuer.IssueAccessToken(testUserID, testSessionID)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		revoked[testSessionID] = true

		// When
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+issued.Token)
		w := httptest.NewRecorder()
		middleware.RequireAccessToken(next).ServeHTTP(w, req)

		// Then
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(w.Body.String()).To(gomega.ContainSubstring(string(internal.ErrCodeNoActiveSession)))
		gomega.Expect(seenUserID).To(gomega.BeEmpty())
	})

	ginkgo.It("should reject a token that names no session", func() {
		issued, err := issuer.IssueAccessToken(testUserID, "")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+issued.Token)
		w := httptest.NewRecorder()
		middleware.RequireAccessToken(next).ServeHTTP(w, req)

		gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(seenUserID).To(gomega.BeEmpty())
	})
})
