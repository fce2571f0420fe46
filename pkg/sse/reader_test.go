package sse

import (
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// drain reads every event from r.
func drain(r *Reader) []*Event {
	var events []*Event
	for {
		ev, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		if ev == nil {
			return events
		}
		events = append(events, ev)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

var _ = Describe("Reader", func() {
	Describe("Next", func() {
		Context("with vLLM-style streams", func() {
			It("yields one event per data line", func() {
				input := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n" +
					"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n"
				r := NewReader(strings.NewReader(input))

				ev1, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev1.Data).To(Equal("{\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}"))
				Expect(ev1.Line).To(Equal(1))

				ev2, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev2.Data).To(Equal("{\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}"))
				Expect(ev2.Line).To(Equal(2))

				ev3, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev3).To(BeNil())
			})

			It("yields events separated by blank lines", func() {
				r := NewReader(strings.NewReader("data: first\n\ndata: second\n\n"))

				events := drain(r)
				Expect(events).To(HaveLen(2))
				Expect(events[0].Data).To(Equal("first"))
				Expect(events[1].Data).To(Equal("second"))
			})

			It("keeps a malformed payload as its own event", func() {
				r := NewReader(strings.NewReader("data: {\"a\":1}\ndata: {not json\ndata: {\"b\":2}\n"))

				events := drain(r)
				Expect(events).To(HaveLen(3))
				Expect(events[1].Data).To(Equal("{not json"))
			})

			It("marks the done sentinel", func() {
				r := NewReader(strings.NewReader("data: {}\ndata: [DONE]\n"))

				events := drain(r)
				Expect(events).To(HaveLen(2))
				Expect(events[0].Done()).To(BeFalse())
				Expect(events[1].Done()).To(BeTrue())
			})

			It("strips carriage returns from CRLF framing", func() {
				r := NewReader(strings.NewReader("data: hello\r\n\r\n"))

				events := drain(r)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("hello"))
			})
		})

		Context("with event and id fields", func() {
			It("carries the type and id onto the next data line", func() {
				r := NewReader(strings.NewReader("event: delta\nid: 42\ndata: hello\n\ndata: bare\n"))

				events := drain(r)
				Expect(events).To(HaveLen(2))
				Expect(events[0].Type).To(Equal("delta"))
				Expect(events[0].ID).To(Equal("42"))
				Expect(events[1].Type).To(BeEmpty())
				Expect(events[1].ID).To(BeEmpty())
			})
		})

		Context("with lines that carry no data", func() {
			It("ignores comment lines", func() {
				r := NewReader(strings.NewReader(": keep-alive\ndata: hello\n"))

				events := drain(r)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("hello"))
			})

			It("ignores lines without the data prefix", func() {
				r := NewReader(strings.NewReader("hello there\nretry: 3000\nfoo: bar\ndata: kept\n"))

				events := drain(r)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("kept"))
				Expect(events[0].Line).To(Equal(4))
			})
		})

		Context("with data field variations", func() {
			It("handles data field with no space after colon", func() {
				r := NewReader(strings.NewReader("data:no-space\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("no-space"))
			})

			It("strips only a single leading space", func() {
				r := NewReader(strings.NewReader("data:  two\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal(" two"))
			})

			It("handles empty data field", func() {
				r := NewReader(strings.NewReader("data:\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).NotTo(BeNil())
				Expect(ev.Data).To(BeEmpty())
			})
		})

		Context("edge cases", func() {
			It("returns nil on empty input", func() {
				r := NewReader(strings.NewReader(""))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("returns nil on input with only blank lines", func() {
				r := NewReader(strings.NewReader("\n\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("yields the last line when the stream ends without a newline", func() {
				r := NewReader(strings.NewReader("data: unterminated"))

				events := drain(r)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("unterminated"))
			})

			It("reports an overlong line and continues after it", func() {
				r := NewReaderSize(strings.NewReader(
					"data: ok\n"+
						"data: "+strings.Repeat("x", 64)+"\n"+
						"data: next\n",
				), 16)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("ok"))

				ev, err = r.Next()
				Expect(err).To(MatchError(ErrLineTooLong))
				Expect(ev).To(BeNil())

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("next"))
				Expect(ev.Line).To(Equal(3))
			})

			It("reports an overlong final line before the end", func() {
				r := NewReaderSize(strings.NewReader("data: "+strings.Repeat("x", 64)), 16)

				_, err := r.Next()
				Expect(err).To(MatchError(ErrLineTooLong))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("surfaces read errors from the source", func() {
				r := NewReader(io.MultiReader(strings.NewReader("data: ok\n"), failingReader{}))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("ok"))

				ev, err = r.Next()
				Expect(err).To(MatchError("connection reset"))
				Expect(ev).To(BeNil())
			})
		})
	})
})
