package llm_test

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spyre/pkg/llm"
)

var _ = Describe("TokenBudget", func() {
	It("subtracts the template and question reservations", func() {
		b := llm.TokenBudget{TotalLimit: 6000, ReservedForTemplate: 250, ReservedForQuestion: 12}
		Expect(b.Remaining()).To(Equal(5738))
	})

	It("clamps to zero when the reservations exceed the limit", func() {
		b := llm.TokenBudget{TotalLimit: 100, ReservedForTemplate: 250, ReservedForQuestion: 12}
		Expect(b.Remaining()).To(BeZero())
	})
})

var _ = Describe("Result", func() {
	It("reports success", func() {
		r := llm.Success("hello")
		Expect(r.OK()).To(BeTrue())
		Expect(r.Text).To(Equal("hello"))
		Expect(r.Reason()).To(BeEmpty())
	})

	It("reports failure with the error message", func() {
		r := llm.Failure(errors.New("connection refused"))
		Expect(r.OK()).To(BeFalse())
		Expect(r.Reason()).To(Equal("connection refused"))
	})
})

var _ = Describe("JoinDocuments", func() {
	It("joins content in order with the separator", func() {
		docs := []llm.Document{{Content: "a"}, {Content: "b"}, {Content: "c"}}
		Expect(llm.JoinDocuments(docs, llm.DocumentSeparator)).To(Equal("a\n\nb\n\nc"))
	})

	It("returns an empty string for no documents", func() {
		Expect(llm.JoinDocuments(nil, llm.DocumentSeparator)).To(BeEmpty())
	})

	It("decodes page_content from retrieval payloads", func() {
		var docs []llm.Document
		err := json.Unmarshal([]byte(`[{"page_content":"x","chunk_id":"c1"}]`), &docs)
		Expect(err).NotTo(HaveOccurred())
		Expect(docs[0].Content).To(Equal("x"))
		Expect(docs[0].ChunkID).To(Equal("c1"))
	})
})

var _ = Describe("CompletionRequest", func() {
	It("serializes a zero temperature when set", func() {
		req := llm.CompletionRequest{Model: "m", Prompt: []string{"p"}, Temperature: llm.Ptr(0.0), MaxTokens: llm.Ptr(3)}
		b, err := json.Marshal(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(ContainSubstring(`"temperature":0`))
		Expect(string(b)).To(ContainSubstring(`"max_tokens":3`))
		Expect(string(b)).NotTo(ContainSubstring("repetition_penalty"))
	})
})

var _ = Describe("CompletionResponse", func() {
	It("returns choice texts in arrival order", func() {
		resp := llm.CompletionResponse{Choices: []llm.Choice{{Text: " Yes"}, {Text: "No"}}}
		Expect(resp.Texts()).To(Equal([]string{" Yes", "No"}))
	})
})
