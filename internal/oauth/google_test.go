package oauth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/oauth"
)

func TestOAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "OAuth Suite")
}

const (
	testKID      = "google-test-key"
	testAudience = "client-123.apps.googleusercontent.com"
)

var signingKey *rsa.PrivateKey

var _ = BeforeSuite(func() {
	var err error
	signingKey, err = rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).NotTo(HaveOccurred())
})

type idTokenClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

func signIDToken(key *rsa.PrivateKey, kid string, claims idTokenClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	Expect(err).NotTo(HaveOccurred())
	return signed
}

var _ = Describe("GoogleVerifier", func() {
	var (
		ctx      context.Context
		verifier *oauth.GoogleVerifier
		claims   idTokenClaims
	)

	BeforeEach(func() {
		ctx = context.Background()
		jwks := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
			testKID: keyfunc.NewGivenCustom(&signingKey.PublicKey, keyfunc.GivenKeyOptions{
				Algorithm: jwt.SigningMethodRS256.Alg(),
			}),
		})
		verifier = oauth.NewGoogleVerifier(jwks, nil)

		claims = idTokenClaims{
			Email:         "grace@gmail.com",
			EmailVerified: true,
			Name:          "Grace Hopper",
			Picture:       "https://lh3.googleusercontent.com/a/photo",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "https://accounts.google.com",
				Subject:   "1234567890",
				Audience:  jwt.ClaimStrings{testAudience},
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	})

	It("should return the identity asserted by a valid token", func() {
		// Given
		idToken := signIDToken(signingKey, testKID, claims)

		// When
		identity, err := verifier.Verify(ctx, idToken, testAudience)

		// Then
		Expect(err).NotTo(HaveOccurred())
		Expect(identity.Email).To(Equal("grace@gmail.com"))
		Expect(identity.Name).To(Equal("Grace Hopper"))
		Expect(identity.Picture).To(Equal("https://lh3.googleusercontent.com/a/photo"))
		Expect(identity.SubjectID).To(Equal("1234567890"))
		Expect(identity.EmailVerified).To(BeTrue())
	})

	It("should accept the bare issuer form", func() {
		claims.Issuer = "accounts.google.com"
		_, err := verifier.Verify(ctx, signIDToken(signingKey, testKID, claims), testAudience)
		Expect(err).NotTo(HaveOccurred())
	})

	DescribeTable("rejected tokens",
		func(mutate func(c *idTokenClaims), audience string) {
			mutate(&claims)
			_, err := verifier.Verify(ctx, signIDToken(signingKey, testKID, claims), audience)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeAuthentication))
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidFederatedAuth))
		},
		Entry("wrong audience", func(c *idTokenClaims) {}, "someone-else"),
		Entry("expired", func(c *idTokenClaims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		}, testAudience),
		Entry("foreign issuer", func(c *idTokenClaims) { c.Issuer = "https://evil.example.com" }, testAudience),
		Entry("no email", func(c *idTokenClaims) { c.Email = "" }, testAudience),
	)

	It("should reject tokens signed by an unknown key", func() {
		// Given
		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		Expect(err).NotTo(HaveOccurred())

		// When
		_, err = verifier.Verify(ctx, signIDToken(otherKey, testKID, claims), testAudience)

		// Then
		Expect(errors.Is(err, oauth.ErrInvalidIDToken)).To(BeTrue())
	})

	It("should reject a token with an unknown kid", func() {
		_, err := verifier.Verify(ctx, signIDToken(signingKey, "rotated", claims), testAudience)
		Expect(errors.Is(err, oauth.ErrInvalidIDToken)).To(BeTrue())
	})

	It("should require a configured audience", func() {
		_, err := verifier.Verify(ctx, signIDToken(signingKey, testKID, claims), "")
		Expect(err).To(HaveOccurred())
		Expect(internal.IsKnown(err)).To(BeFalse())
	})
})

var _ = Describe("DisabledVerifier", func() {
	It("should reject every token as an authentication failure", func() {
		_, err := oauth.DisabledVerifier{}.Verify(context.Background(), "anything", testAudience)

		Expect(err).To(MatchError(oauth.ErrNotConfigured))
		Expect(internal.IsKnown(err)).To(BeTrue())
	})
})
