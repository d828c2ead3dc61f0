package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/notification"
)

func TestNotification(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notification Suite")
}

type recordingSender struct {
	mu       sync.Mutex
	failures int
	sent     []notification.Message
	attempts int
}

func (s *recordingSender) Send(ctx context.Context, msg notification.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return errors.New("provider unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Sent() []notification.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification.Message(nil), s.sent...)
}

func (s *recordingSender) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// slowSender takes delay per message and gives up when ctx ends first.
type slowSender struct {
	recordingSender
	delay time.Duration
}

func (s *slowSender) Send(ctx context.Context, msg notification.Message) error {
	select {
	case <-time.After(s.delay):
		return s.recordingSender.Send(ctx, msg)
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ = Describe("Notifications", func() {
	var (
		ctx         context.Context
		mr          *miniredis.Miniredis
		client      *redis.Client
		queue       *notification.RedisQueue
		idempotency *notification.RedisIdempotencyStore
		dispatcher  *notification.Dispatcher
		sender      *recordingSender
		processor   *notification.Processor
		logger      *slog.Logger
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)

		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)

		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		queue = notification.NewRedisQueue(client, "")
		idempotency = notification.NewRedisIdempotencyStore(client)
		dispatcher = notification.NewDispatcher(queue, logger)
		sender = &recordingSender{}
		processor = notification.NewProcessor(queue, idempotency, sender, notification.ProcessorConfig{
			MaxWorkers:  2,
			MaxAttempts: 3,
			Backoff:     time.Millisecond,
		}, logger)
	})

	Describe("Dispatcher", func() {
		It("should enqueue a job on the redis list", func() {
			// When
			err := dispatcher.SendEmail(ctx, notification.TypeVerification, notification.Payload{
				To:  "ada@acme.io",
				URL: "https://app.example.com/verify-email?token=abc",
			})

			// Then
			Expect(err).NotTo(HaveOccurred())
			depth, err := queue.Len(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(depth).To(Equal(int64(1)))

			job, err := queue.Pop(ctx, time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(job.ID).NotTo(BeEmpty())
			Expect(job.Type).To(Equal(notification.TypeVerification))
			Expect(job.Payload.To).To(Equal("ada@acme.io"))
		})

		It("should reject an invalid recipient", func() {
			err := dispatcher.SendEmail(ctx, notification.TypeWelcome, notification.Payload{To: "not-an-email"})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
			Expect(mr.Exists(notification.DefaultQueueName)).To(BeFalse())
		})

		It("should reject an unknown type", func() {
			err := dispatcher.SendEmail(ctx, notification.Type("sms"), notification.Payload{To: "ada@acme.io"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Subjects", func() {
		DescribeTable("per type",
			func(typ notification.Type, payload notification.Payload, expected string) {
				Expect(typ.Subject(payload)).To(Equal(expected))
			},
			Entry("verification", notification.TypeVerification, notification.Payload{}, "Verify Your Account"),
			Entry("password reset", notification.TypePasswordReset, notification.Payload{}, "Reset Your Password"),
			Entry("welcome", notification.TypeWelcome, notification.Payload{}, "Welcome"),
			Entry("custom with subject", notification.TypeCustom, notification.Payload{Subject: "Hi"}, "Hi"),
			Entry("custom without subject", notification.TypeCustom, notification.Payload{}, "Notification"),
		)
	})

	Describe("Processor.Handle", func() {
		var job notification.Job

		BeforeEach(func() {
			job = notification.Job{
				ID:   "job-1",
				Type: notification.TypeWelcome,
				Payload: notification.Payload{
					To:             "ada@acme.io",
					URL:            "https://app.example.com/dashboard",
					IdempotencyKey: "welcome:user-1",
				},
			}
		})

		It("should deliver once per idempotency key", func() {
			// When
			Expect(processor.Handle(ctx, job)).To(Succeed())
			Expect(processor.Handle(ctx, job)).To(Succeed())

			// Then
			Expect(sender.Sent()).To(HaveLen(1))
			Expect(sender.Sent()[0].Subject).To(Equal("Welcome"))
			Expect(mr.Exists("email:idempotent:welcome:user-1")).To(BeTrue())
			Expect(mr.TTL("email:idempotent:welcome:user-1")).To(Equal(time.Hour))
		})

		It("should retry until the provider accepts", func() {
			// Given
			sender.failures = 2

			// When
			err := processor.Handle(ctx, job)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(sender.Attempts()).To(Equal(3))
			Expect(sender.Sent()).To(HaveLen(1))
		})

		It("should release the key after the last failed attempt", func() {
			// Given
			sender.failures = 3

			// When
			err := processor.Handle(ctx, job)

			// Then
			Expect(err).To(HaveOccurred())
			Expect(sender.Attempts()).To(Equal(3))
			Expect(mr.Exists("email:idempotent:welcome:user-1")).To(BeFalse())

			Expect(processor.Handle(ctx, job)).To(Succeed())
			Expect(sender.Sent()).To(HaveLen(1))
		})

		It("should always send jobs without a key", func() {
			job.Payload.IdempotencyKey = ""

			Expect(processor.Handle(ctx, job)).To(Succeed())
			Expect(processor.Handle(ctx, job)).To(Succeed())

			Expect(sender.Sent()).To(HaveLen(2))
		})
	})

	Describe("Processor worker pool", func() {
		It("should deliver queued jobs in the background", func() {
			// Given
			processor.Start(ctx)
			DeferCleanup(processor.Shutdown)

			// When
			for _, to := range []string{"a@acme.io", "b@acme.io", "c@acme.io"} {
				Expect(dispatcher.SendEmail(ctx, notification.TypeCustom, notification.Payload{To: to, Subject: "Hello"})).To(Succeed())
			}

			// Then
			Eventually(func() int { return len(sender.Sent()) }).
				WithTimeout(5 * time.Second).
				WithPolling(20 * time.Millisecond).
				Should(Equal(3))
		})
	})

	Describe("Processor shutdown", func() {
		It("should leave every undelivered job on the queue", func() {
			// Given
			const enqueued = 20
			for i := 0; i < enqueued; i++ {
				Expect(dispatcher.SendEmail(ctx, notification.TypeWelcome, notification.Payload{
					To:             fmt.Sprintf("user%d@acme.io", i),
					URL:            "https://app.example.com/dashboard",
					IdempotencyKey: fmt.Sprintf("welcome:user-%d", i),
				})).To(Succeed())
			}
			slow := &slowSender{delay: 200 * time.Millisecond}
			first := notification.NewProcessor(queue, idempotency, slow, notification.ProcessorConfig{
				MaxWorkers:  2,
				MaxAttempts: 3,
				Backoff:     time.Millisecond,
			}, logger)

			// When
			first.Start(ctx)
			Eventually(func() int { return len(slow.Sent()) }).
				WithTimeout(5 * time.Second).
				WithPolling(10 * time.Millisecond).
				Should(BeNumerically(">=", 1))
			first.Shutdown()

			// Then
			delivered := len(slow.Sent())
			queued, err := queue.Len(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(delivered + int(queued)).To(Equal(enqueued))

			// And a later worker delivers the rest exactly once
			processor.Start(ctx)
			DeferCleanup(processor.Shutdown)
			Eventually(func() int { return len(sender.Sent()) }).
				WithTimeout(5 * time.Second).
				WithPolling(20 * time.Millisecond).
				Should(Equal(int(queued)))

			recipients := map[string]int{}
			for _, msg := range append(slow.Sent(), sender.Sent()...) {
				recipients[msg.To]++
			}
			Expect(recipients).To(HaveLen(enqueued))
			for to, count := range recipients {
				Expect(count).To(Equal(1), to)
			}
		})

		It("should requeue a job handed over after cancellation", func() {
			// Given
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			job := notification.Job{
				ID:      "job-late",
				Type:    notification.TypeWelcome,
				Payload: notification.Payload{To: "ada@acme.io", IdempotencyKey: "welcome:user-late"},
			}

			// When
			err := processor.Handle(cancelled, job)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(sender.Attempts()).To(BeZero())
			Expect(mr.Exists("email:idempotent:welcome:user-late")).To(BeFalse())
			requeued, err := queue.Pop(ctx, time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(requeued.ID).To(Equal("job-late"))
		})
	})

	Describe("HTTPSender", func() {
		It("should post the message with the api key", func() {
			// Given
			var (
				gotAuth string
				gotBody notification.Message
			)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())
				w.WriteHeader(http.StatusAccepted)
			}))
			DeferCleanup(server.Close)

			httpSender := notification.NewHTTPSender(notification.HTTPSenderConfig{
				URL:         server.URL,
				APIKey:      "provider-key",
				FromAddress: "no-reply@acme.io",
			})

			// When
			err := httpSender.Send(ctx, notification.Message{Type: notification.TypeWelcome, To: "ada@acme.io", Subject: "Welcome"})

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(gotAuth).To(Equal("Bearer provider-key"))
			Expect(gotBody.From).To(Equal("no-reply@acme.io"))
			Expect(gotBody.To).To(Equal("ada@acme.io"))
		})

		It("should fail on a non-2xx response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
			DeferCleanup(server.Close)

			err := notification.NewHTTPSender(notification.HTTPSenderConfig{URL: server.URL}).
				Send(ctx, notification.Message{To: "ada@acme.io"})
			Expect(err).To(MatchError(ContainSubstring("502")))
		})
	})
})
