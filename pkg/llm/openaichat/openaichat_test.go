package openaichat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramhq/engram/pkg/llm"
	"github.com/engramhq/engram/pkg/llm/openaichat"
)

var _ = Describe("Client", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "hello"}}]}`))
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newClient := func(apiKey string) *openaichat.Client {
		return openaichat.New(openaichat.Config{BaseURL: server.URL, APIKey: apiKey})
	}

	request := func() *llm.ChatRequest {
		return &llm.ChatRequest{
			Model:    "llama3.1",
			Messages: []llm.Message{{Role: "user", Content: "hi"}},
		}
	}

	Describe("Complete", func() {
		It("posts to the chat completions path and returns the content", func() {
			var gotPath, gotContentType string
			var gotBody llm.ChatRequest
			handler = func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotContentType = r.Header.Get("Content-Type")
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())
				w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "merged"}}]}`))
			}

			content, err := newClient("").Complete(context.Background(), request())

			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal("merged"))
			Expect(gotPath).To(Equal("/chat/completions"))
			Expect(gotContentType).To(Equal("application/json"))
			Expect(gotBody.Model).To(Equal("llama3.1"))
		})

		It("sends a bearer token when an API key is configured", func() {
			var gotAuth string
			handler = func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				w.Write([]byte(`{"choices": []}`))
			}

			_, err := newClient("sk-test").Complete(context.Background(), request())

			Expect(err).NotTo(HaveOccurred())
			Expect(gotAuth).To(Equal("Bearer sk-test"))
		})

		It("omits the Authorization header without an API key", func() {
			var gotAuth string
			handler = func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				w.Write([]byte(`{"choices": []}`))
			}

			_, err := newClient("").Complete(context.Background(), request())

			Expect(err).NotTo(HaveOccurred())
			Expect(gotAuth).To(BeEmpty())
		})

		It("returns empty content for an empty choice list without error", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"choices": []}`))
			}

			content, err := newClient("").Complete(context.Background(), request())

			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(BeEmpty())
		})

		It("surfaces the API error message on non-2xx", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error": {"message": "invalid api key", "type": "auth"}}`))
			}

			_, err := newClient("bad").Complete(context.Background(), request())

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("401"))
			Expect(err.Error()).To(ContainSubstring("invalid api key"))
		})

		It("reports the status alone when the error body is opaque", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(`upstream exploded`))
			}

			_, err := newClient("").Complete(context.Background(), request())

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("502"))
		})

		It("errors on an undecodable success body", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			}

			_, err := newClient("").Complete(context.Background(), request())

			Expect(err).To(HaveOccurred())
		})

		It("errors when the server is unreachable", func() {
			client := openaichat.New(openaichat.Config{BaseURL: "http://127.0.0.1:1"})

			_, err := client.Complete(context.Background(), request())

			Expect(err).To(HaveOccurred())
		})

		It("honors context cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := newClient("").Complete(ctx, request())

			Expect(err).To(HaveOccurred())
		})
	})
})
