package swagger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/identity-service/internal/transport/swagger"
)

func TestSwagger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Swagger Suite")
}

var _ = Describe("OpenAPI document", func() {
	It("should be a valid document describing every auth route", func() {
		doc, err := swagger.Load(context.Background())

		Expect(err).NotTo(HaveOccurred())
		for _, path := range []string{
			"/auth/register",
			"/auth/signin",
			"/auth/verify-email",
			"/auth/signin-with-google",
			"/auth/refresh-access-token",
			"/auth/request-reset-password",
			"/auth/reset-password",
			"/auth/logout",
			"/auth/logout-all",
		} {
			Expect(doc.Paths.Find(path)).NotTo(BeNil(), path)
		}
	})

	It("should serve the raw document", func() {
		w := httptest.NewRecorder()
		swagger.SpecHandler(w, httptest.NewRequest(http.MethodGet, "/openapi.yml", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(HavePrefix("openapi: 3.0.3"))
	})
})
