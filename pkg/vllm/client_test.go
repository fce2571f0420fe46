package vllm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spyre/pkg/llm"
	"github.com/papercomputeco/spyre/pkg/vllm"
)

// recorder captures the requests a fake vLLM server receives.
type recorder struct {
	mu     sync.Mutex
	paths  []string
	bodies []map[string]any
}

func (r *recorder) record(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	var parsed map[string]any
	_ = json.Unmarshal(body, &parsed)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, req.URL.Path)
	r.bodies = append(r.bodies, parsed)
}

func (r *recorder) last() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bodies[len(r.bodies)-1]
}

func newClient(url string) *vllm.Client {
	c, err := vllm.NewClient(vllm.Config{BaseURL: url, Model: "granite"})
	Expect(err).NotTo(HaveOccurred())
	return c
}

var _ = Describe("Client", func() {
	var (
		ctx context.Context
		rec *recorder
	)

	BeforeEach(func() {
		ctx = context.Background()
		rec = &recorder{}
	})

	Describe("NewClient", func() {
		It("defaults the base URL", func() {
			c, err := vllm.NewClient(vllm.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.BaseURL()).To(Equal(vllm.DefaultBaseURL))
		})

		It("trims a trailing slash", func() {
			c, err := vllm.NewClient(vllm.Config{BaseURL: "http://vllm:8000/"})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.BaseURL()).To(Equal("http://vllm:8000"))
		})

		It("rejects a URL without a scheme", func() {
			_, err := vllm.NewClient(vllm.Config{BaseURL: "vllm:8000"})
			Expect(err).To(HaveOccurred())
		})

		It("rejects a negative pool size", func() {
			_, err := vllm.NewClient(vllm.Config{PoolSize: -1})
			Expect(err).To(MatchError(ContainSubstring("pool size")))
		})
	})

	Describe("Completions", func() {
		It("posts a batched prompt and returns every choice", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				rec.record(r)
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"choices":[{"index":0,"text":" Yes"},{"index":1,"text":" No"}]}`)
			}))
			defer srv.Close()

			resp, err := newClient(srv.URL).Completions(ctx, &llm.CompletionRequest{
				Prompt:      []string{"a", "b"},
				Temperature: llm.Ptr(0.0),
				MaxTokens:   llm.Ptr(3),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Texts()).To(Equal([]string{" Yes", " No"}))

			Expect(rec.paths).To(Equal([]string{vllm.PathCompletions}))
			body := rec.last()
			Expect(body["model"]).To(Equal("granite"))
			Expect(body["prompt"]).To(Equal([]any{"a", "b"}))
			Expect(body["temperature"]).To(BeNumerically("==", 0))
			Expect(body["max_tokens"]).To(BeNumerically("==", 3))
			Expect(body).NotTo(HaveKey("stream"))
		})

		It("keeps an explicit model", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				rec.record(r)
				_, _ = io.WriteString(w, `{"choices":[{"text":"ok"}]}`)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).Completions(ctx, &llm.CompletionRequest{Model: "other", Prompt: "x"})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.last()["model"]).To(Equal("other"))
		})
	})

	Describe("Complete", func() {
		It("returns the trimmed first choice text", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"choices":[{"text":"  A summary.\n"}]}`)
			}))
			defer srv.Close()

			res := newClient(srv.URL).Complete(ctx, &llm.CompletionRequest{Prompt: "x"})
			Expect(res.OK()).To(BeTrue())
			Expect(res.Text).To(Equal("A summary."))
		})

		It("fails with a protocol error carrying the status and body", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, "model loading")
			}))
			defer srv.Close()

			res := newClient(srv.URL).Complete(ctx, &llm.CompletionRequest{Prompt: "x"})
			Expect(res.OK()).To(BeFalse())
			Expect(errors.Is(res.Err, vllm.ErrProtocol)).To(BeTrue())

			var statusErr *vllm.StatusError
			Expect(errors.As(res.Err, &statusErr)).To(BeTrue())
			Expect(statusErr.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(res.Reason()).To(ContainSubstring("model loading"))
		})

		It("fails with a shape error when choices are empty", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"choices":[]}`)
			}))
			defer srv.Close()

			res := newClient(srv.URL).Complete(ctx, &llm.CompletionRequest{Prompt: "x"})
			Expect(errors.Is(res.Err, vllm.ErrShape)).To(BeTrue())
		})

		It("fails with a shape error on a non-JSON body", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `<html>gateway</html>`)
			}))
			defer srv.Close()

			res := newClient(srv.URL).Complete(ctx, &llm.CompletionRequest{Prompt: "x"})
			Expect(errors.Is(res.Err, vllm.ErrShape)).To(BeTrue())
		})

		It("fails with a transport error when the server is unreachable", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			url := srv.URL
			srv.Close()

			res := newClient(url).Complete(ctx, &llm.CompletionRequest{Prompt: "x"})
			Expect(errors.Is(res.Err, vllm.ErrTransport)).To(BeTrue())
		})
	})

	Describe("Chat", func() {
		It("returns the first message content", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				rec.record(r)
				_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Paris"}}]}`)
			}))
			defer srv.Close()

			res := newClient(srv.URL).Chat(ctx, &llm.ChatRequest{
				Messages:          []llm.Message{{Role: llm.RoleUser, Content: "capital of France?"}},
				RepetitionPenalty: llm.Ptr(1.1),
				Stop:              []string{"</s>"},
			})
			Expect(res.OK()).To(BeTrue())
			Expect(res.Text).To(Equal("Paris"))

			Expect(rec.paths).To(Equal([]string{vllm.PathChatCompletions}))
			body := rec.last()
			Expect(body["repetition_penalty"]).To(BeNumerically("~", 1.1))
			Expect(body["stop"]).To(Equal([]any{"</s>"}))
		})

		It("fails with a shape error when the message is missing", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"choices":[{"text":"wrong endpoint shape"}]}`)
			}))
			defer srv.Close()

			res := newClient(srv.URL).Chat(ctx, &llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}}})
			Expect(errors.Is(res.Err, vllm.ErrShape)).To(BeTrue())
		})
	})

	Describe("Tokenize and Detokenize", func() {
		It("round trips through the tokenizer endpoints", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				rec.record(r)
				switch r.URL.Path {
				case vllm.PathTokenize:
					_, _ = io.WriteString(w, `{"count":3,"tokens":[1,2,3]}`)
				case vllm.PathDetokenize:
					_, _ = io.WriteString(w, `{"prompt":"a b c"}`)
				}
			}))
			defer srv.Close()

			c := newClient(srv.URL)
			tokens, err := c.Tokenize(ctx, "a b c")
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens).To(Equal([]llm.TokenID{1, 2, 3}))
			Expect(rec.last()["prompt"]).To(Equal("a b c"))

			text, err := c.Detokenize(ctx, tokens)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("a b c"))
			Expect(rec.last()["tokens"]).To(Equal([]any{1.0, 2.0, 3.0}))
		})

		It("sends an empty token list rather than null", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				rec.record(r)
				_, _ = io.WriteString(w, `{"prompt":""}`)
			}))
			defer srv.Close()

			text, err := newClient(srv.URL).Detokenize(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(BeEmpty())
			Expect(rec.last()["tokens"]).To(Equal([]any{}))
		})

		It("propagates tokenizer failures", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).Tokenize(ctx, "x")
			Expect(err).To(MatchError(vllm.ErrProtocol))
			Expect(err.Error()).To(HavePrefix("tokenizing"))
		})

		It("reports a missing tokens field as a shape error", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"count":0}`)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).Tokenize(ctx, "x")
			Expect(err).To(MatchError(vllm.ErrShape))
		})

		It("reports a missing prompt field as a shape error", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"count":0}`)
			}))
			defer srv.Close()

			text, err := newClient(srv.URL).Detokenize(ctx, []llm.TokenID{1})
			Expect(err).To(MatchError(vllm.ErrShape))
			Expect(err.Error()).To(HavePrefix("detokenizing"))
			Expect(text).To(BeEmpty())
		})
	})

	Describe("connection pool", func() {
		It("never exceeds the pool size in concurrent requests", func() {
			var inflight, peak atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				n := inflight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				inflight.Add(-1)
				_, _ = io.WriteString(w, `{"choices":[{"text":"ok"}]}`)
			}))
			defer srv.Close()

			c, err := vllm.NewClient(vllm.Config{BaseURL: srv.URL, PoolSize: 2})
			Expect(err).NotTo(HaveOccurred())

			var wg sync.WaitGroup
			for range 8 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					res := c.Complete(ctx, &llm.CompletionRequest{Prompt: "x"})
					Expect(res.OK()).To(BeTrue())
				}()
			}
			wg.Wait()

			Expect(peak.Load()).To(BeNumerically("<=", 2))
		})
	})

	Describe("rate limiting", func() {
		It("gives up when the context is cancelled while waiting", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"choices":[{"text":"ok"}]}`)
			}))
			defer srv.Close()

			c, err := vllm.NewClient(vllm.Config{BaseURL: srv.URL, RateLimit: 0.001})
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Complete(ctx, &llm.CompletionRequest{Prompt: "x"}).OK()).To(BeTrue())

			short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			res := c.Complete(short, &llm.CompletionRequest{Prompt: "x"})
			Expect(errors.Is(res.Err, vllm.ErrTransport)).To(BeTrue())
		})
	})
})
