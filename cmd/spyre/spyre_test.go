package spyrecmder_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	spyrecmder "github.com/papercomputeco/spyre/cmd/spyre"
	"github.com/papercomputeco/spyre/pkg/llm"
)

var _ = Describe("NewSpyreCmd", func() {
	It("registers every subcommand", func() {
		cmd := spyrecmder.NewSpyreCmd()
		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements(
			"serve", "classify", "summarize", "qa", "query", "tokenize", "config", "version",
		))
	})

	It("registers the global flags", func() {
		cmd := spyrecmder.NewSpyreCmd()
		for _, name := range []string{"debug", "config-dir", "env-file"} {
			Expect(cmd.PersistentFlags().Lookup(name)).NotTo(BeNil(), name)
		}
	})
})

var _ = Describe("Commands", func() {
	var (
		server    *inference
		tmpDir    string
		configDir string
		promptsAt string
		stdout    *bytes.Buffer
		stderr    *bytes.Buffer
	)

	writeJSON := func(name string, v any) string {
		data, err := json.Marshal(v)
		Expect(err).NotTo(HaveOccurred())
		path := filepath.Join(tmpDir, name)
		Expect(os.WriteFile(path, data, 0o600)).To(Succeed())
		return path
	}

	run := func(args ...string) error {
		cmd := spyrecmder.NewSpyreCmd()
		cmd.SetOut(stdout)
		cmd.SetErr(stderr)
		cmd.SetArgs(append(args, "--config-dir", configDir))
		return cmd.Execute()
	}

	BeforeEach(func() {
		server = newInference()
		DeferCleanup(server.Close)

		tmpDir = GinkgoT().TempDir()
		configDir = filepath.Join(tmpDir, ".spyre")
		Expect(os.MkdirAll(configDir, 0o755)).To(Succeed())

		promptsAt = filepath.Join(tmpDir, "prompts.json")
		Expect(os.WriteFile(promptsAt, []byte(testPrompts), 0o600)).To(Succeed())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = os.Chdir(origDir) })
		Expect(os.Chdir(tmpDir)).To(Succeed())
		GinkgoT().Setenv("HOME", filepath.Join(tmpDir, "home"))

		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}
	})

	Describe("classify", func() {
		It("prints the blocks the model keeps", func() {
			input := writeJSON("blocks.json", []llm.TextBlock{
				{Text: "keep this one"},
				{Text: "drop this one"},
				{Text: "and this one"},
			})

			Expect(run("classify", "-i", input, "-e", server.URL, "-p", promptsAt)).To(Succeed())

			var kept []llm.TextBlock
			Expect(json.Unmarshal(stdout.Bytes(), &kept)).To(Succeed())
			Expect(kept).To(Equal([]llm.TextBlock{{Text: "keep this one"}, {Text: "and this one"}}))
		})

		It("requires an input file", func() {
			Expect(run("classify", "-e", server.URL, "-p", promptsAt)).NotTo(Succeed())
		})

		It("appends JSON logs to log.file", func() {
			logPath := filepath.Join(tmpDir, "logs", "spyre.log")
			GinkgoT().Setenv("SPYRE_LOG_FILE", logPath)
			input := writeJSON("blocks.json", []llm.TextBlock{{Text: "keep this one"}})

			Expect(run("classify", "-i", input, "-e", server.URL, "-p", promptsAt)).To(Succeed())

			data, err := os.ReadFile(logPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"msg":"classified text blocks"`))
			Expect(string(data)).To(ContainSubstring(`"kept":1`))
		})
	})

	Describe("summarize", func() {
		It("prints one summary per table, in order", func() {
			server.reply = "A small table."
			input := writeJSON("tables.json", []llm.Table{
				{HTML: "<table>one</table>"},
				{HTML: "<table>fail</table>"},
				{HTML: "<table>three</table>"},
			})

			Expect(run("summarize", "-i", input, "-e", server.URL, "-p", promptsAt, "-w", "2")).To(Succeed())

			var summaries []string
			Expect(json.Unmarshal(stdout.Bytes(), &summaries)).To(Succeed())
			Expect(summaries).To(Equal([]string{"A small table.", "No summary.", "A small table."}))
		})
	})

	Describe("qa", func() {
		It("prints generated pairs tied to their chunks", func() {
			server.reply = "Q: What is the capital? A: Paris"
			input := writeJSON("chunks.json", []llm.Document{
				{Content: "Paris is the capital of France.", ChunkID: "c1"},
			})

			Expect(run("qa", "-i", input, "-e", server.URL, "-p", promptsAt)).To(Succeed())

			var pairs []llm.QAPair
			Expect(json.Unmarshal(stdout.Bytes(), &pairs)).To(Succeed())
			Expect(pairs).To(Equal([]llm.QAPair{{
				Question: "What is the capital?",
				Answer:   "Paris",
				Context:  "Paris is the capital of France.",
				ChunkID:  "c1",
			}}))
		})
	})

	Describe("query", func() {
		var docs string

		BeforeEach(func() {
			docs = writeJSON("docs.json", []llm.Document{
				{Content: "Refunds are issued within 30 days."},
				{Content: "Shipping is free."},
			})
		})

		It("prints the answer", func() {
			Expect(run("query", "-q", "How long do refunds take?", "-i", docs,
				"-e", server.URL, "-p", promptsAt, "--raw")).To(Succeed())

			Expect(stdout.String()).To(Equal("The answer.\n"))
		})

		It("streams the answer", func() {
			server.chunks = []string{"Within ", "30 days."}

			Expect(run("query", "-q", "How long?", "-i", docs,
				"-e", server.URL, "-p", promptsAt, "--stream")).To(Succeed())

			Expect(stdout.String()).To(Equal("Within 30 days.\n"))
		})

		It("requires a question", func() {
			Expect(run("query", "-i", docs, "-e", server.URL, "-p", promptsAt)).NotTo(Succeed())
		})

		It("fails without a prompt template file", func() {
			err := run("query", "-q", "How long?", "-i", docs, "-e", server.URL)
			Expect(err).To(MatchError(ContainSubstring("no prompt template file")))
		})
	})

	Describe("tokenize", func() {
		It("prints the token ids", func() {
			Expect(run("tokenize", "-e", server.URL, "one two one")).To(Succeed())

			var ids []int
			Expect(json.Unmarshal(stdout.Bytes(), &ids)).To(Succeed())
			Expect(ids).To(Equal([]int{0, 1, 0}))
		})

		It("prints only the count", func() {
			Expect(run("tokenize", "-e", server.URL, "--count", "a", "b", "c")).To(Succeed())
			Expect(stdout.String()).To(Equal("3\n"))
		})
	})

	Describe("version", func() {
		It("prints the build information", func() {
			Expect(run("version")).To(Succeed())
			Expect(stdout.String()).To(ContainSubstring("Version:"))
		})
	})
})
