package probe_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"watchtower/internal/probe"
	"watchtower/internal/store"
)

func checkFor(target string) store.Check {
	return store.Check{
		ID:             "abcdefghij0123456789",
		UserPhone:      "5551234567",
		Protocol:       store.ProtocolHTTP,
		URL:            strings.TrimPrefix(target, "http://"),
		Method:         "get",
		SuccessCodes:   []int{200},
		TimeoutSeconds: 1,
	}
}

var _ = Describe("Executor", func() {
	var executor *probe.Executor

	BeforeEach(func() {
		executor = probe.NewExecutor()
	})

	It("should report the response status code when the request completes", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		outcome := executor.Run(context.Background(), checkFor(server.URL))
		Expect(outcome.ResponseCode).To(Equal(http.StatusInternalServerError))
		Expect(outcome.Err).To(BeNil())
		Expect(outcome.TimedOut).To(BeFalse())
	})

	It("should use the check's method", func() {
		var gotMethod string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
		}))
		defer server.Close()

		check := checkFor(server.URL)
		check.Method = "post"
		executor.Run(context.Background(), check)
		Expect(gotMethod).To(Equal(http.MethodPost))
	})

	It("should report a transport error when the connection is refused", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		target := server.URL
		server.Close()

		outcome := executor.Run(context.Background(), checkFor(target))
		Expect(outcome.Err).To(HaveOccurred())
		Expect(outcome.ResponseCode).To(BeZero())
		Expect(outcome.TimedOut).To(BeFalse())
	})

	It("should report cancellation, not a timeout, when the caller's context is cancelled", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(3 * time.Second)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()

		check := checkFor(server.URL)
		check.TimeoutSeconds = 5
		outcome := executor.Run(ctx, check)
		Expect(outcome.Canceled).To(BeTrue())
		Expect(outcome.TimedOut).To(BeFalse())
		Expect(outcome.Err).To(BeNil())
	})

	It("should report a timeout when no response arrives within the bound", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(3 * time.Second)
		}))
		defer server.Close()

		start := time.Now()
		outcome := executor.Run(context.Background(), checkFor(server.URL))
		Expect(outcome.TimedOut).To(BeTrue())
		Expect(outcome.ResponseCode).To(BeZero())
		Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
	})
})

var _ = Describe("Outcome encoding", func() {
	It("should encode an absent value as false", func() {
		data, err := json.Marshal(probe.Outcome{ResponseCode: 200})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(MatchJSON(`{"error": false, "responseCode": 200}`))
	})

	It("should encode a timeout as the string timeout", func() {
		data, err := json.Marshal(probe.Outcome{TimedOut: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(MatchJSON(`{"error": "timeout", "responseCode": false}`))
	})

	It("should round-trip through decoding", func() {
		data, err := json.Marshal(probe.Outcome{TimedOut: true})
		Expect(err).NotTo(HaveOccurred())

		var got probe.Outcome
		Expect(json.Unmarshal(data, &got)).To(Succeed())
		Expect(got.TimedOut).To(BeTrue())
		Expect(got.ResponseCode).To(BeZero())
	})
})
