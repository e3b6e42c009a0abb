package reasoner_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/misaka-coder/chronos/pkg/reasoner"
)

var _ = Describe("NewCaller", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("openai provider", func() {
		It("posts the prompt and extracts the first choice", func() {
			var gotPath, gotAuth string
			var gotBody map[string]any

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotAuth = r.Header.Get("Authorization")
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())

				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"choices":[{"message":{"content":"a reply"}}]}`))
			}))
			defer server.Close()

			call, err := reasoner.NewCaller(reasoner.Config{
				Provider: "openai",
				Model:    "gpt-4o-mini",
				APIKey:   "test-key",
				BaseURL:  server.URL,
			})
			Expect(err).NotTo(HaveOccurred())

			reply, err := call(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("a reply"))
			Expect(gotPath).To(Equal("/v1/chat/completions"))
			Expect(gotAuth).To(Equal("Bearer test-key"))
			Expect(gotBody["model"]).To(Equal("gpt-4o-mini"))
		})

		It("classifies a non-200 status as unavailable", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer server.Close()

			call, err := reasoner.NewCaller(reasoner.Config{
				Provider: "openai",
				APIKey:   "test-key",
				BaseURL:  server.URL,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = call(ctx, "hello")
			Expect(errors.Is(err, reasoner.ErrUnavailable)).To(BeTrue())
		})

		It("classifies an empty choice list as unavailable", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"choices":[]}`))
			}))
			defer server.Close()

			call, err := reasoner.NewCaller(reasoner.Config{
				Provider: "openai",
				APIKey:   "test-key",
				BaseURL:  server.URL,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = call(ctx, "hello")
			Expect(errors.Is(err, reasoner.ErrUnavailable)).To(BeTrue())
		})
	})

	Describe("anthropic provider", func() {
		It("sends the api key and version headers and extracts text", func() {
			var gotKey, gotVersion, gotPath string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotKey = r.Header.Get("x-api-key")
				gotVersion = r.Header.Get("anthropic-version")

				w.Write([]byte(`{"content":[{"type":"text","text":"claude says hi"}]}`))
			}))
			defer server.Close()

			call, err := reasoner.NewCaller(reasoner.Config{
				Provider: "anthropic",
				APIKey:   "test-key",
				BaseURL:  server.URL,
			})
			Expect(err).NotTo(HaveOccurred())

			reply, err := call(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("claude says hi"))
			Expect(gotPath).To(Equal("/v1/messages"))
			Expect(gotKey).To(Equal("test-key"))
			Expect(gotVersion).To(Equal("2023-06-01"))
		})
	})

	Describe("ollama provider", func() {
		It("posts a non-streaming chat request", func() {
			var gotBody map[string]any

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/chat"))
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())

				w.Write([]byte(`{"message":{"content":"local reply"},"done":true}`))
			}))
			defer server.Close()

			call, err := reasoner.NewCaller(reasoner.Config{
				Provider: "ollama",
				Model:    "llama3.2",
				BaseURL:  server.URL,
			})
			Expect(err).NotTo(HaveOccurred())

			reply, err := call(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("local reply"))
			Expect(gotBody["stream"]).To(Equal(false))
		})

		It("classifies a connection failure as unavailable", func() {
			call, err := reasoner.NewCaller(reasoner.Config{
				Provider: "ollama",
				BaseURL:  "http://127.0.0.1:1",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = call(ctx, "hello")
			Expect(errors.Is(err, reasoner.ErrUnavailable)).To(BeTrue())
		})
	})

	It("rejects an unsupported provider", func() {
		_, err := reasoner.NewCaller(reasoner.Config{Provider: "carrier-pigeon", APIKey: "k"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Mock", func() {
	It("replays scripted replies and repeats the last one", func() {
		mock := reasoner.NewMock("first", "second")

		r1, err := mock.Call(context.Background(), "p1")
		Expect(err).NotTo(HaveOccurred())
		Expect(r1).To(Equal("first"))

		r2, _ := mock.Call(context.Background(), "p2")
		Expect(r2).To(Equal("second"))

		r3, _ := mock.Call(context.Background(), "p3")
		Expect(r3).To(Equal("second"))

		Expect(mock.CallCount()).To(Equal(3))
		Expect(mock.Prompts()).To(Equal([]string{"p1", "p2", "p3"}))
	})

	It("fails every call after FailWith", func() {
		mock := reasoner.NewMock("ok")
		mock.FailWith(errors.New("down"))

		_, err := mock.Call(context.Background(), "p")
		Expect(err).To(MatchError("down"))
	})
})
